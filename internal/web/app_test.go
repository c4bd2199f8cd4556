package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"selfplay/internal/analyzer"
	"selfplay/internal/dialogue"
)

type stubAgent struct {
	name string
}

func (s *stubAgent) Name() string { return s.name }

func (s *stubAgent) Reply(_ context.Context, _ dialogue.ReplyInput) (dialogue.ReplyOutput, error) {
	return dialogue.ReplyOutput{Content: "ok"}, nil
}

type stubRunner struct {
	mu          sync.Mutex
	callCount   int
	starts      []string
	agentNames  [][2]string
	result      dialogue.Result
	streamTurns []dialogue.Turn
	err         error
}

func (s *stubRunner) Run(_ context.Context, first, second dialogue.Agent, start string, onTurn func(dialogue.Turn)) (dialogue.Result, error) {
	s.mu.Lock()
	s.callCount++
	s.starts = append(s.starts, start)
	s.agentNames = append(s.agentNames, [2]string{first.Name(), second.Name()})
	s.mu.Unlock()

	if onTurn != nil {
		for _, turn := range s.streamTurns {
			onTurn(turn)
		}
	}
	if s.err != nil {
		return dialogue.Result{}, s.err
	}
	return s.result, nil
}

type stoppableRunner struct {
	startOnce sync.Once
	doneOnce  sync.Once
	started   chan struct{}
	done      chan struct{}
}

func (s *stoppableRunner) Run(ctx context.Context, _, _ dialogue.Agent, _ string, _ func(dialogue.Turn)) (dialogue.Result, error) {
	s.startOnce.Do(func() {
		if s.started != nil {
			close(s.started)
		}
	})
	<-ctx.Done()
	s.doneOnce.Do(func() {
		if s.done != nil {
			close(s.done)
		}
	})
	return dialogue.Result{}, ctx.Err()
}

func stubAgentFactory(role, systemMessage string) (dialogue.Agent, error) {
	return &stubAgent{name: role}, nil
}

func newTestApp(t *testing.T, runner Runner) *App {
	t.Helper()
	return NewApp(Config{
		OutputDir: t.TempDir(),
		Runner:    runner,
		Agents:    stubAgentFactory,
		Now:       time.Now,
	})
}

func postJSON(t *testing.T, app *App, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	return rec
}

func TestRunEndpointExecutesTemplate(t *testing.T) {
	runner := &stubRunner{
		result: dialogue.Result{
			Scenario: "Doctor | Patient",
			Turns: []dialogue.Turn{
				{Index: 1, Speaker: "Doctor", Message: "start", Response: "hello"},
			},
			EndSignal: dialogue.EndSignal{Detected: true, Confidence: 0.62, Reason: "Farewell detected", AtTurn: 1},
			Status:    dialogue.StatusNaturalEnd,
		},
	}
	app := NewApp(Config{
		OutputDir: t.TempDir(),
		Runner:    runner,
		Agents:    stubAgentFactory,
		Now: func() time.Time {
			return time.Date(2026, 3, 1, 1, 2, 3, 4, time.UTC)
		},
	})

	rec := postJSON(t, app, "/api/run", `{"template":"Doctor | Patient"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if runner.callCount != 1 {
		t.Fatalf("expected 1 runner call, got %d", runner.callCount)
	}
	if len(runner.agentNames) != 1 || runner.agentNames[0] != [2]string{"Doctor", "Patient"} {
		t.Fatalf("unexpected agents: %#v", runner.agentNames)
	}

	var resp runResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Result.Status != dialogue.StatusNaturalEnd {
		t.Fatalf("unexpected result status: %s", resp.Result.Status)
	}
	if resp.SavedJSONPath == "" || resp.SavedMarkdownPath == "" || resp.SavedHTMLPath == "" {
		t.Fatalf("expected saved paths, got %#v", resp)
	}
	for _, path := range []string{resp.SavedJSONPath, resp.SavedMarkdownPath, resp.SavedHTMLPath} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("saved file not found: %v", err)
		}
	}
}

func TestRunEndpointAvoidsOutputPathCollision(t *testing.T) {
	runner := &stubRunner{
		result: dialogue.Result{
			Scenario: "Doctor | Patient",
			Status:   dialogue.StatusMaxTurnsReached,
		},
	}
	app := NewApp(Config{
		OutputDir: t.TempDir(),
		Runner:    runner,
		Agents:    stubAgentFactory,
		Now: func() time.Time {
			return time.Date(2026, 3, 1, 1, 2, 3, 4, time.UTC)
		},
	})

	makeRequest := func() runResponse {
		rec := postJSON(t, app, "/api/run", `{"template":"Doctor | Patient"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
		}
		var resp runResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		return resp
	}

	first := makeRequest()
	second := makeRequest()

	if first.SavedJSONPath == second.SavedJSONPath {
		t.Fatalf("expected different json paths, got same path %s", first.SavedJSONPath)
	}
	if _, err := os.Stat(first.SavedJSONPath); err != nil {
		t.Fatalf("first json file missing: %v", err)
	}
	if _, err := os.Stat(second.SavedJSONPath); err != nil {
		t.Fatalf("second json file missing: %v", err)
	}
}

func TestNextOutputPathIsUniqueUnderConcurrency(t *testing.T) {
	app := NewApp(Config{
		OutputDir: t.TempDir(),
		Runner:    &stubRunner{},
		Agents:    stubAgentFactory,
		Now: func() time.Time {
			return time.Date(2026, 3, 1, 1, 2, 3, 4, time.UTC)
		},
	})

	const n = 120
	type result struct {
		path string
		err  error
	}
	out := make(chan result, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			path, err := app.nextOutputPath()
			out <- result{path: path, err: err}
		}()
	}
	wg.Wait()
	close(out)

	seen := make(map[string]struct{}, n)
	for r := range out {
		if r.err != nil {
			t.Fatalf("nextOutputPath returned error: %v", r.err)
		}
		if _, exists := seen[r.path]; exists {
			t.Fatalf("duplicate path generated: %s", r.path)
		}
		seen[r.path] = struct{}{}
	}
	if len(seen) != n {
		t.Fatalf("expected %d unique paths, got %d", n, len(seen))
	}
}

func TestRunEndpointValidatesTemplate(t *testing.T) {
	runner := &stubRunner{}
	app := newTestApp(t, runner)

	rec := postJSON(t, app, "/api/run", `{"template":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if runner.callCount != 0 {
		t.Fatalf("runner must not be called, got %d", runner.callCount)
	}
}

func TestRunEndpointRejectsUnknownTemplate(t *testing.T) {
	runner := &stubRunner{}
	app := newTestApp(t, runner)

	rec := postJSON(t, app, "/api/run", `{"template":"NoSuch | Template"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "unknown template") {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}
	if runner.callCount != 0 {
		t.Fatalf("runner must not be called, got %d", runner.callCount)
	}
}

func TestRunEndpointRejectsUnknownField(t *testing.T) {
	app := newTestApp(t, &stubRunner{})

	rec := postJSON(t, app, "/api/run", `{"template":"Doctor | Patient","unexpected":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRunEndpointRejectsMultipleJSONValues(t *testing.T) {
	app := newTestApp(t, &stubRunner{})

	rec := postJSON(t, app, "/api/run", `{"template":"Doctor | Patient"}{"template":"no"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestTemplatesEndpointListsBuiltins(t *testing.T) {
	app := newTestApp(t, &stubRunner{})

	req := httptest.NewRequest(http.MethodGet, "/api/templates", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}

	var resp templatesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Templates) == 0 {
		t.Fatal("expected builtin templates")
	}

	found := false
	for _, tmpl := range resp.Templates {
		if tmpl.Name == "Doctor | Patient" {
			found = true
			if len(tmpl.Roles) != 2 {
				t.Fatalf("unexpected roles: %#v", tmpl.Roles)
			}
			if strings.TrimSpace(tmpl.Start) == "" {
				t.Fatal("expected non-empty start message")
			}
		}
	}
	if !found {
		t.Fatalf("Doctor | Patient not listed: %#v", resp.Templates)
	}
}

func TestStreamStartAndSubscribeStreamsTurnsAndComplete(t *testing.T) {
	runner := &stubRunner{
		streamTurns: []dialogue.Turn{
			{Index: 1, Speaker: "Doctor", Message: "start", Response: "first"},
			{Index: 2, Speaker: "Patient", Message: "first", Response: "second"},
		},
		result: dialogue.Result{
			Scenario: "Doctor | Patient",
			Status:   dialogue.StatusMaxTurnsReached,
		},
	}
	app := newTestApp(t, runner)

	startRec := postJSON(t, app, "/api/run/stream/start", `{"template":"Doctor | Patient"}`)
	if startRec.Code != http.StatusAccepted {
		t.Fatalf("unexpected start status: %d body=%s", startRec.Code, startRec.Body.String())
	}
	var started streamStartResponse
	if err := json.Unmarshal(startRec.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	if strings.TrimSpace(started.RunID) == "" {
		t.Fatalf("missing run_id: %#v", started)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/run/stream?run_id="+started.RunID, nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type: %s", ct)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event: start") {
		t.Fatalf("missing start event: %s", body)
	}
	if !strings.Contains(body, "event: turn") {
		t.Fatalf("missing turn event: %s", body)
	}
	if !strings.Contains(body, "event: complete") {
		t.Fatalf("missing complete event: %s", body)
	}
	if !strings.Contains(body, "\"speaker\":\"Doctor\"") {
		t.Fatalf("missing streamed turn payload: %s", body)
	}
	if !strings.Contains(body, "\"saved_json_path\"") {
		t.Fatalf("missing completion payload: %s", body)
	}
}

func TestStreamStartValidatesTemplate(t *testing.T) {
	app := newTestApp(t, &stubRunner{})

	rec := postJSON(t, app, "/api/run/stream/start", `{"template":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestStreamSubscribeRequiresRunID(t *testing.T) {
	app := newTestApp(t, &stubRunner{})

	req := httptest.NewRequest(http.MethodGet, "/api/run/stream", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestStreamSubscribeUnknownRunID(t *testing.T) {
	runner := &stubRunner{}
	app := newTestApp(t, runner)

	req := httptest.NewRequest(http.MethodGet, "/api/run/stream?run_id=missing", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if runner.callCount != 0 {
		t.Fatalf("runner must not be called, got %d", runner.callCount)
	}
}

func TestStreamStopEndpointCancelsRun(t *testing.T) {
	blocking := &stoppableRunner{
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
	app := newTestApp(t, blocking)

	startRec := postJSON(t, app, "/api/run/stream/start", `{"template":"Doctor | Patient"}`)
	if startRec.Code != http.StatusAccepted {
		t.Fatalf("unexpected start status: %d body=%s", startRec.Code, startRec.Body.String())
	}

	var started streamStartResponse
	if err := json.Unmarshal(startRec.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	if strings.TrimSpace(started.RunID) == "" {
		t.Fatalf("missing run_id: %#v", started)
	}

	select {
	case <-blocking.started:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not start")
	}

	stopRec := postJSON(t, app, "/api/run/stream/stop", `{"run_id":"`+started.RunID+`"}`)
	if stopRec.Code != http.StatusOK {
		t.Fatalf("unexpected stop status: %d body=%s", stopRec.Code, stopRec.Body.String())
	}

	select {
	case <-blocking.done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner was not canceled")
	}

	streamReq := httptest.NewRequest(http.MethodGet, "/api/run/stream?run_id="+started.RunID, nil)
	streamRec := httptest.NewRecorder()
	app.Handler().ServeHTTP(streamRec, streamReq)
	if streamRec.Code != http.StatusOK {
		t.Fatalf("unexpected stream status: %d body=%s", streamRec.Code, streamRec.Body.String())
	}
	if !strings.Contains(streamRec.Body.String(), "event: stopped") {
		t.Fatalf("missing stopped event: %s", streamRec.Body.String())
	}
}

func TestStreamRunTimeoutEmitsRunError(t *testing.T) {
	blocking := &stoppableRunner{
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
	app := NewApp(Config{
		OutputDir:  t.TempDir(),
		Runner:     blocking,
		Agents:     stubAgentFactory,
		Now:        time.Now,
		RunTimeout: 60 * time.Millisecond,
	})

	startRec := postJSON(t, app, "/api/run/stream/start", `{"template":"Doctor | Patient"}`)
	if startRec.Code != http.StatusAccepted {
		t.Fatalf("unexpected start status: %d body=%s", startRec.Code, startRec.Body.String())
	}

	var started streamStartResponse
	if err := json.Unmarshal(startRec.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode start response: %v", err)
	}

	select {
	case <-blocking.started:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not start")
	}

	streamReq := httptest.NewRequest(http.MethodGet, "/api/run/stream?run_id="+started.RunID, nil)
	streamRec := httptest.NewRecorder()
	app.Handler().ServeHTTP(streamRec, streamReq)
	if streamRec.Code != http.StatusOK {
		t.Fatalf("unexpected stream status: %d body=%s", streamRec.Code, streamRec.Body.String())
	}
	body := streamRec.Body.String()
	if !strings.Contains(body, "event: run_error") {
		t.Fatalf("expected run_error event on timeout, body=%s", body)
	}
	if !strings.Contains(body, "context deadline exceeded") {
		t.Fatalf("expected context deadline error detail, body=%s", body)
	}

	select {
	case <-blocking.done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner was not canceled by timeout")
	}
}

func TestAnalyzeEndpointDetectsFarewell(t *testing.T) {
	app := newTestApp(t, &stubRunner{})

	payload := `{"turns":[
		{"speaker":"Doctor","message":"start","response":"Let me walk you through the plan."},
		{"speaker":"Patient","message":"plan","response":"That makes sense, I understand now."},
		{"speaker":"Doctor","message":"understood","response":"Thank you so much, that's all I needed, goodbye! I will wait for your next question."},
		{"speaker":"Patient","message":"goodbye","response":"Goodbye, thank you for your help. I will wait for your next question."}
	]}`
	rec := postJSON(t, app, "/api/analyze", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}

	var verdict analyzer.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("decode verdict: %v", err)
	}
	if !verdict.ShouldEnd {
		t.Fatalf("expected end verdict, got %#v", verdict)
	}
	if verdict.Reason != analyzer.ReasonFarewell {
		t.Fatalf("unexpected reason: %s", verdict.Reason)
	}
	if verdict.Confidence < 0.5 {
		t.Fatalf("unexpected confidence: %f", verdict.Confidence)
	}
}

func TestAnalyzeEndpointReportsTooEarly(t *testing.T) {
	app := newTestApp(t, &stubRunner{})

	payload := `{"turns":[
		{"speaker":"Doctor","message":"start","response":"Goodbye, thanks!"},
		{"speaker":"Patient","message":"bye","response":"Goodbye!"}
	]}`
	rec := postJSON(t, app, "/api/analyze", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}

	var verdict analyzer.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("decode verdict: %v", err)
	}
	if verdict.ShouldEnd {
		t.Fatalf("expected no end verdict before minimum turns, got %#v", verdict)
	}
	if verdict.Reason != analyzer.ReasonTooEarly {
		t.Fatalf("unexpected reason: %s", verdict.Reason)
	}
}

func TestAnalyzeEndpointRejectsMalformedTurns(t *testing.T) {
	app := newTestApp(t, &stubRunner{})

	payload := `{"turns":[
		{"speaker":"","message":"start","response":"hello"}
	]}`
	rec := postJSON(t, app, "/api/analyze", payload)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "missing speaker") {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}
}

func TestAnalyzeEndpointRequiresTurns(t *testing.T) {
	app := newTestApp(t, &stubRunner{})

	rec := postJSON(t, app, "/api/analyze", `{"turns":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpointExposesRunCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	runner := &stubRunner{
		result: dialogue.Result{
			Scenario:  "Doctor | Patient",
			Status:    dialogue.StatusNaturalEnd,
			EndSignal: dialogue.EndSignal{Detected: true, Confidence: 0.7, Reason: "Farewell detected", AtTurn: 4},
			Metrics:   dialogue.Metrics{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		},
	}
	app := NewApp(Config{
		OutputDir: t.TempDir(),
		Runner:    runner,
		Agents:    stubAgentFactory,
		Registry:  registry,
		Now:       time.Now,
	})

	runRec := postJSON(t, app, "/api/run", `{"template":"Doctor | Patient"}`)
	if runRec.Code != http.StatusOK {
		t.Fatalf("unexpected run status: %d body=%s", runRec.Code, runRec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected metrics status: %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `selfplay_conversations_total{status="natural_end"} 1`) {
		t.Fatalf("missing conversation counter: %s", body)
	}
	if !strings.Contains(body, `selfplay_end_reasons_total{reason="Farewell detected"} 1`) {
		t.Fatalf("missing end reason counter: %s", body)
	}
}

func TestTemplatesEndpointMethodNotAllowed(t *testing.T) {
	app := newTestApp(t, &stubRunner{})

	req := httptest.NewRequest(http.MethodPost, "/api/templates", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodGet {
		t.Fatalf("unexpected allow header: %s", allow)
	}
}

func TestIndexEndpointServed(t *testing.T) {
	app := NewApp(Config{
		OutputDir: filepath.Join(t.TempDir(), "out"),
		Runner:    &stubRunner{},
		Agents:    stubAgentFactory,
		Now:       time.Now,
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct == "" {
		t.Fatal("missing content type")
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("Self-play Web")) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestStaticAssetServed(t *testing.T) {
	app := newTestApp(t, &stubRunner{})

	req := httptest.NewRequest(http.MethodGet, "/static/app.js", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "const templateList") {
		t.Fatalf("unexpected static content: %s", rec.Body.String())
	}
}

func TestDecodeStrictJSONRejectsTrailingGarbage(t *testing.T) {
	var out runRequest
	err := decodeStrictJSON(io.MultiReader(
		strings.NewReader(`{"template":"ok"}`),
		strings.NewReader(`42`),
	), &out)
	if err == nil {
		t.Fatal("expected error for trailing value")
	}
}
