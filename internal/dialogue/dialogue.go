// Package dialogue runs a turn-alternating conversation between two
// agents and stops it when the end-signal analyzer, a turn budget, or a
// safety limit says so.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"selfplay/internal/analyzer"
)

const (
	StatusNaturalEnd        = "natural_end"
	StatusMaxTurnsReached   = "max_turns_reached"
	StatusDurationReached   = "duration_limit_reached"
	StatusTokenLimitReached = "token_limit_reached"
	StatusError             = "error"
)

const (
	defaultMaxTurns       = 10
	defaultMaxDuration    = 15 * time.Minute
	defaultMaxTotalTokens = 120000
)

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Turn is one exchange step. Message is the prompt that elicited
// Response; Turns are appended by the runner only and never reordered.
type Turn struct {
	Index     int       `json:"index"`
	Speaker   string    `json:"speaker"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// EndSignal records the analyzer's latest verdict for a run.
type EndSignal struct {
	Detected   bool    `json:"detected"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	AtTurn     int     `json:"at_turn"`
}

type Metrics struct {
	LatencyMS        int64 `json:"latency_ms"`
	PromptTokens     int   `json:"prompt_tokens"`
	CompletionTokens int   `json:"completion_tokens"`
	TotalTokens      int   `json:"total_tokens"`
}

type Result struct {
	ID        string    `json:"id"`
	Scenario  string    `json:"scenario,omitempty"`
	Start     string    `json:"start"`
	Turns     []Turn    `json:"turns"`
	EndSignal EndSignal `json:"end_signal"`
	Status    string    `json:"status"`
	Metrics   Metrics   `json:"metrics"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

type ReplyInput struct {
	Message string
}

type ReplyOutput struct {
	Content string
	Usage   Usage
}

// Agent produces one utterance per Reply call. Implementations carry
// their own memory of the conversation so far.
type Agent interface {
	Name() string
	Reply(ctx context.Context, input ReplyInput) (ReplyOutput, error)
}

type Config struct {
	// Scenario labels the run in results and exports.
	Scenario string
	// MaxTurns caps the number of exchange steps. Zero means the
	// default cap; the runner never runs unbounded.
	MaxTurns int
	// AutoEnd enables the end-signal analyzer after each turn.
	AutoEnd bool
	// EndThreshold is passed to the analyzer. Zero means its default.
	EndThreshold float64
	// TurnDelay throttles successive agent calls.
	TurnDelay      time.Duration
	MaxDuration    time.Duration
	MaxTotalTokens int
}

type Runner struct {
	detector *analyzer.Analyzer
	cfg      Config
}

func New(cfg Config) *Runner {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = defaultMaxTurns
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = defaultMaxDuration
	}
	if cfg.MaxTotalTokens <= 0 {
		cfg.MaxTotalTokens = defaultMaxTotalTokens
	}
	return &Runner{
		detector: analyzer.New(analyzer.Config{EndThreshold: cfg.EndThreshold}),
		cfg:      cfg,
	}
}

// Run alternates first and second, starting with first replying to the
// start message. onTurn, when set, observes each appended turn.
func (r *Runner) Run(ctx context.Context, first, second Agent, start string, onTurn func(Turn)) (Result, error) {
	started := time.Now().UTC()
	res := Result{
		ID:        uuid.NewString(),
		Scenario:  strings.TrimSpace(r.cfg.Scenario),
		Start:     strings.TrimSpace(start),
		StartedAt: started,
	}

	if first == nil || second == nil {
		finalizeResult(&res, started, StatusError)
		return res, errors.New("both agents are required")
	}
	if res.Start == "" {
		finalizeResult(&res, started, StatusError)
		return res, errors.New("start message must not be empty")
	}

	speakers := [2]Agent{first, second}
	message := res.Start

	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			finalizeResult(&res, started, StatusError)
			return res, fmt.Errorf("conversation canceled: %w", err)
		}

		if status, shouldStop := r.preTurnStatus(started, i); shouldStop {
			finalizeResult(&res, started, status)
			return res, nil
		}

		speaker := speakers[i%2]
		stepCtx, cancel := r.callContext(ctx, started)
		turn, err := r.generateTurn(stepCtx, &res, speaker, message, i+1)
		cancel()
		if err != nil {
			if status, isDurationStop := r.durationStatusOnAgentError(started, err); isDurationStop {
				finalizeResult(&res, started, status)
				return res, nil
			}
			finalizeResult(&res, started, StatusError)
			return res, fmt.Errorf("generate turn %d: %w", i+1, err)
		}
		res.Turns = append(res.Turns, turn)
		if onTurn != nil {
			onTurn(turn)
		}

		if reachedTokenLimit(res.Metrics.TotalTokens, r.cfg.MaxTotalTokens) {
			finalizeResult(&res, started, StatusTokenLimitReached)
			return res, nil
		}

		if r.cfg.AutoEnd {
			verdict := r.detector.DetectEndSignals(analyzerTurns(res.Turns), len(res.Turns))
			res.EndSignal = EndSignal{
				Detected:   verdict.ShouldEnd,
				Confidence: verdict.Confidence,
				Reason:     verdict.Reason,
				AtTurn:     len(res.Turns),
			}
			if verdict.ShouldEnd {
				finalizeResult(&res, started, StatusNaturalEnd)
				return res, nil
			}
		}

		message = turn.Response

		if r.cfg.TurnDelay > 0 {
			if err := sleepWithContext(ctx, r.cfg.TurnDelay); err != nil {
				finalizeResult(&res, started, StatusError)
				return res, fmt.Errorf("conversation canceled: %w", err)
			}
		}
	}
}

func (r *Runner) preTurnStatus(started time.Time, turnIndex int) (string, bool) {
	if turnIndex >= r.cfg.MaxTurns {
		return StatusMaxTurnsReached, true
	}
	if reachedDurationLimit(started, r.cfg.MaxDuration) {
		return StatusDurationReached, true
	}
	return "", false
}

func (r *Runner) generateTurn(ctx context.Context, res *Result, speaker Agent, message string, turnNo int) (Turn, error) {
	out, err := speaker.Reply(ctx, ReplyInput{Message: message})
	if err != nil {
		return Turn{}, err
	}
	addUsage(&res.Metrics, out.Usage)

	content := strings.TrimSpace(out.Content)
	if content == "" {
		return Turn{}, fmt.Errorf("turn %d was empty", turnNo)
	}
	return Turn{
		Index:     turnNo,
		Speaker:   speaker.Name(),
		Message:   message,
		Response:  content,
		Timestamp: time.Now().UTC(),
	}, nil
}

func analyzerTurns(turns []Turn) []analyzer.Turn {
	out := make([]analyzer.Turn, len(turns))
	for i, turn := range turns {
		out[i] = analyzer.Turn{
			Speaker:  turn.Speaker,
			Message:  turn.Message,
			Response: turn.Response,
		}
	}
	return out
}

func addUsage(metrics *Metrics, usage Usage) {
	metrics.PromptTokens += usage.PromptTokens
	metrics.CompletionTokens += usage.CompletionTokens
	metrics.TotalTokens += usage.TotalTokens
}
