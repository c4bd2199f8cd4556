package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"selfplay/internal/dialogue"
)

// Finished runs stay available to late subscribers for this long.
const runRetention = 10 * time.Minute

// Streamed turn buffers are capped; subscribers arriving after the cap
// is exceeded miss the oldest turns but keep a consistent cursor.
const runBufferMax = 512

type streamStartEvent struct {
	RunID    string `json:"run_id"`
	Template string `json:"template"`
	Start    string `json:"start"`
}

type streamStartResponse struct {
	RunID string `json:"run_id"`
}

type streamStopRequest struct {
	RunID string `json:"run_id"`
}

type conversationRun struct {
	id    string
	start streamStartEvent

	cancel context.CancelFunc

	mu         sync.RWMutex
	turns      []dialogue.Turn
	baseCursor int
	maxTurns   int
	done       bool
	stopped    bool
	resp       runResponse
	runErr     error

	updates chan struct{}
}

func newConversationRun(id string, start streamStartEvent, cancel context.CancelFunc, maxTurns int) *conversationRun {
	return &conversationRun{
		id:       id,
		start:    start,
		cancel:   cancel,
		maxTurns: maxTurns,
		updates:  make(chan struct{}, 1),
	}
}

func (r *conversationRun) appendTurn(turn dialogue.Turn) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.turns = append(r.turns, turn)
	if r.maxTurns > 0 && len(r.turns) > r.maxTurns {
		drop := len(r.turns) - r.maxTurns
		r.turns = append([]dialogue.Turn(nil), r.turns[drop:]...)
		r.baseCursor += drop
	}
	r.mu.Unlock()
	r.notify()
}

func (r *conversationRun) stop() {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()
	r.cancel()
	r.notify()
}

func (r *conversationRun) finish(resp runResponse, runErr error) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}

	if runErr != nil && r.stopped && errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	r.resp = resp
	r.runErr = runErr
	r.done = true
	r.mu.Unlock()
	r.notify()
}

func (r *conversationRun) snapshot(cursor int) ([]dialogue.Turn, int, bool, bool, runResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cursor < r.baseCursor {
		cursor = r.baseCursor
	}
	if cursor < 0 {
		cursor = 0
	}
	localCursor := cursor - r.baseCursor
	if localCursor < 0 {
		localCursor = 0
	}
	if localCursor > len(r.turns) {
		localCursor = len(r.turns)
	}

	turns := append([]dialogue.Turn(nil), r.turns[localCursor:]...)
	return turns, cursor, r.done, r.stopped, r.resp, r.runErr
}

func (r *conversationRun) waitForUpdate(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.updates:
		return nil
	}
}

func (r *conversationRun) notify() {
	select {
	case r.updates <- struct{}{}:
	default:
	}
}

func (a *App) handleStreamStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer body.Close()

	tmpl, err := a.decodeRunTemplate(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runCtx := context.Background()
	var cancel context.CancelFunc
	if a.runTimeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, a.runTimeout)
	} else {
		runCtx, cancel = context.WithCancel(runCtx)
	}

	run := newConversationRun(uuid.NewString(), streamStartEvent{
		Template: tmpl.Name,
		Start:    tmpl.Start,
	}, cancel, runBufferMax)
	run.start.RunID = run.id
	a.registerRun(run)

	go func() {
		defer cancel()
		resp, runErr := a.runConversation(runCtx, tmpl, run.appendTurn)
		run.finish(resp, runErr)
		time.AfterFunc(runRetention, func() { a.unregisterRun(run.id) })
	}()

	writeJSON(w, http.StatusAccepted, streamStartResponse{RunID: run.id})
}

func (a *App) handleStreamStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer body.Close()

	var req streamStopRequest
	if err := decodeStrictJSON(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	id := strings.TrimSpace(req.RunID)
	if id == "" {
		writeError(w, http.StatusBadRequest, "run_id is required")
		return
	}

	run, ok := a.lookupRun(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown run_id")
		return
	}

	run.stop()
	writeJSON(w, http.StatusOK, map[string]any{"run_id": id, "stopped": true})
}

func (a *App) handleStreamSubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming is not supported by this server")
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("run_id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "run_id is required")
		return
	}
	run, found := a.lookupRun(id)
	if !found {
		writeError(w, http.StatusNotFound, "unknown run_id")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	if err := writeSSE(w, flusher, "start", run.start); err != nil {
		return
	}

	cursor := 0
	for {
		turns, adjusted, done, stopped, resp, runErr := run.snapshot(cursor)
		cursor = adjusted
		for _, turn := range turns {
			if err := writeSSE(w, flusher, "turn", turn); err != nil {
				return
			}
			cursor++
		}

		if done {
			switch {
			case stopped:
				_ = writeSSE(w, flusher, "stopped", map[string]string{"run_id": run.id})
			case runErr != nil:
				_ = writeSSE(w, flusher, "run_error", map[string]string{"error": runErr.Error()})
			default:
				_ = writeSSE(w, flusher, "complete", resp)
			}
			return
		}

		if err := run.waitForUpdate(r.Context()); err != nil {
			return
		}
	}
}

func (a *App) registerRun(run *conversationRun) {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	a.runs[run.id] = run
}

func (a *App) unregisterRun(id string) {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	delete(a.runs, id)
}

func (a *App) lookupRun(id string) (*conversationRun, bool) {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	run, ok := a.runs[id]
	return run, ok
}
