package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1/responses"

const maxResponseBodyBytes = 8 * 1024 * 1024

const defaultOpenAITimeout = 60 * time.Second

// OpenAI talks to the Responses API directly. Retries are bounded and
// only applied to transport failures, 429s and 5xx answers.
type OpenAI struct {
	apiKey     string
	endpoint   string
	model      string
	timeout    time.Duration
	maxRetries int
	httpClient httpDoer
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

func NewOpenAI(cfg Config) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultOpenAITimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &OpenAI{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		endpoint:   normalizeEndpoint(cfg.BaseURL),
		model:      strings.TrimSpace(cfg.Model),
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{},
	}, nil
}

func (c *OpenAI) Name() string {
	return "openai"
}

func (c *OpenAI) Generate(ctx context.Context, messages []Message) (string, Usage, error) {
	input := make([]inputMsg, 0, len(messages))
	for _, m := range messages {
		input = append(input, inputMsg{
			Role:    m.Role,
			Content: []inputContent{{Type: "input_text", Text: m.Content}},
		})
	}

	resp, err := c.callResponses(ctx, input)
	if err != nil {
		return "", Usage{}, err
	}

	text := strings.TrimSpace(extractOutputText(resp))
	if text == "" {
		return "", Usage{}, errors.New("empty model output")
	}
	return text, Usage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

type responseRequest struct {
	Model string     `json:"model"`
	Input []inputMsg `json:"input"`
}

type inputMsg struct {
	Role    string         `json:"role"`
	Content []inputContent `json:"content"`
}

type inputContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responseBody struct {
	OutputText string       `json:"output_text"`
	Output     []outputItem `json:"output"`
	Usage      apiUsage     `json:"usage"`
	Error      *apiError    `json:"error"`
}

type outputItem struct {
	Type    string          `json:"type"`
	Role    string          `json:"role"`
	Text    string          `json:"text"`
	Content []contentOutput `json:"content"`
}

type contentOutput struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (c *OpenAI) callResponses(ctx context.Context, input []inputMsg) (responseBody, error) {
	payload, err := json.Marshal(responseRequest{Model: c.model, Input: input})
	if err != nil {
		return responseBody{}, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		apiCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.doRequest(apiCtx, payload)
		cancel()

		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt == c.maxRetries {
			break
		}
		if !isRetriableError(err) {
			break
		}
		if err := sleepBackoff(ctx, attempt); err != nil {
			return responseBody{}, err
		}
	}
	return responseBody{}, lastErr
}

func (c *OpenAI) doRequest(ctx context.Context, payload []byte) (responseBody, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return responseBody{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return responseBody{}, fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes+1))
	if err != nil {
		return responseBody{}, fmt.Errorf("read response body: %w", err)
	}
	if len(body) > maxResponseBodyBytes {
		return responseBody{}, fmt.Errorf("read response body: exceeds limit (%d bytes)", maxResponseBodyBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return responseBody{}, &httpStatusError{statusCode: resp.StatusCode, message: decodeAPIError(body)}
	}

	var decoded responseBody
	if err := json.Unmarshal(body, &decoded); err != nil {
		return responseBody{}, fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil && strings.TrimSpace(decoded.Error.Message) != "" {
		return responseBody{}, fmt.Errorf("api error: %s", decoded.Error.Message)
	}
	return decoded, nil
}

// extractOutputText prefers the aggregated output_text field and falls
// back to walking the output items.
func extractOutputText(resp responseBody) string {
	if strings.TrimSpace(resp.OutputText) != "" {
		return resp.OutputText
	}

	var b strings.Builder
	for _, item := range resp.Output {
		if item.Text != "" {
			b.WriteString(item.Text)
			continue
		}
		for _, content := range item.Content {
			if content.Type == "output_text" || content.Type == "text" {
				b.WriteString(content.Text)
			}
		}
	}
	return b.String()
}

func normalizeEndpoint(base string) string {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		return defaultOpenAIEndpoint
	}

	trimmed = strings.TrimRight(trimmed, "/")
	switch {
	case strings.HasSuffix(trimmed, "/responses"):
		return trimmed
	case strings.HasSuffix(trimmed, "/v1"):
		return trimmed + "/responses"
	case strings.Contains(trimmed, "/v1/"):
		return trimmed
	default:
		return trimmed + "/v1/responses"
	}
}

func decodeAPIError(body []byte) string {
	var wrapped struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error != nil && strings.TrimSpace(wrapped.Error.Message) != "" {
		return strings.TrimSpace(wrapped.Error.Message)
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "empty error response"
	}
	return text
}

type httpStatusError struct {
	statusCode int
	message    string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("openai status %d: %s", e.statusCode, e.message)
}

func isRetriableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.statusCode == http.StatusTooManyRequests || statusErr.statusCode >= 500
	}
	return true
}

func sleepBackoff(ctx context.Context, attempt int) error {
	base := 500.0
	ms := int(base * math.Pow(2, float64(attempt)))
	if ms > 4000 {
		ms = 4000
	}

	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
