package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"selfplay/internal/analyzer"
	"selfplay/internal/dialogue"
	"selfplay/internal/metrics"
	"selfplay/internal/output"
	"selfplay/internal/template"
)

const (
	defaultAddr       = ":8080"
	maxRequestBytes   = 2 * 1024 * 1024
	serverStopTimeout = 5 * time.Second
)

type Runner interface {
	Run(ctx context.Context, first, second dialogue.Agent, start string, onTurn func(dialogue.Turn)) (dialogue.Result, error)
}

// AgentFactory builds one conversation participant for a template role.
type AgentFactory func(role, systemMessage string) (dialogue.Agent, error)

type Config struct {
	Templates    *template.Library
	OutputDir    string
	Runner       Runner
	Agents       AgentFactory
	EndThreshold float64
	Registry     *prometheus.Registry
	Now          func() time.Time
	// RunTimeout caps a streamed background run. Zero means no cap.
	RunTimeout time.Duration
}

type App struct {
	templates  *template.Library
	outputDir  string
	runner     Runner
	agents     AgentFactory
	detector   *analyzer.Analyzer
	registry   *prometheus.Registry
	metrics    *metrics.Collector
	now        func() time.Time
	runTimeout time.Duration

	pathMu    sync.Mutex
	lastStamp time.Time

	runMu sync.Mutex
	runs  map[string]*conversationRun
}

type runRequest struct {
	Template string `json:"template"`
}

type runResponse struct {
	Result            dialogue.Result `json:"result"`
	SavedJSONPath     string          `json:"saved_json_path"`
	SavedMarkdownPath string          `json:"saved_markdown_path"`
	SavedHTMLPath     string          `json:"saved_html_path"`
}

type templateInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Roles       []string `json:"roles"`
	Start       string   `json:"start"`
}

type templatesResponse struct {
	Templates []templateInfo `json:"templates"`
}

type analyzeRequest struct {
	Turns []dialogue.Turn `json:"turns"`
}

func NewApp(cfg Config) *App {
	if cfg.Templates == nil {
		cfg.Templates = template.NewLibrary()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	a := &App{
		templates:  cfg.Templates,
		outputDir:  cfg.OutputDir,
		runner:     cfg.Runner,
		agents:     cfg.Agents,
		detector:   analyzer.New(analyzer.Config{EndThreshold: cfg.EndThreshold}),
		registry:   cfg.Registry,
		now:        cfg.Now,
		runTimeout: cfg.RunTimeout,
		runs:       make(map[string]*conversationRun),
	}
	if a.registry != nil {
		a.metrics = metrics.NewCollector(a.registry)
	}
	return a
}

func (a *App) Start(ctx context.Context, addr string) error {
	if a.runner == nil {
		return errors.New("runner is required")
	}
	if a.agents == nil {
		return errors.New("agent factory is required")
	}
	if strings.TrimSpace(addr) == "" {
		addr = defaultAddr
	}

	server := &http.Server{
		Addr:    addr,
		Handler: a.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverStopTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	mux.HandleFunc("/", a.handleIndex)
	mux.HandleFunc("/api/templates", a.handleTemplates)
	mux.HandleFunc("/api/run", a.handleRun)
	mux.HandleFunc("/api/run/stream/start", a.handleStreamStart)
	mux.HandleFunc("/api/run/stream/stop", a.handleStreamStop)
	mux.HandleFunc("/api/run/stream", a.handleStreamSubscribe)
	mux.HandleFunc("/api/analyze", a.handleAnalyze)
	if a.registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	}
	return mux
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, indexHTML)
}

func (a *App) handleTemplates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	names := a.templates.Names()
	infos := make([]templateInfo, 0, len(names))
	for _, name := range names {
		tmpl, ok := a.templates.Get(name)
		if !ok {
			continue
		}
		infos = append(infos, templateInfo{
			Name:        tmpl.Name,
			Description: tmpl.Description,
			Roles:       tmpl.Roles,
			Start:       tmpl.Start,
		})
	}
	writeJSON(w, http.StatusOK, templatesResponse{Templates: infos})
}

func (a *App) handleRun(w http.ResponseWriter, r *http.Request) {
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

	resp, err := a.runConversation(r.Context(), tmpl, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer body.Close()

	var req analyzeRequest
	if err := decodeStrictJSON(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.Turns) == 0 {
		writeError(w, http.StatusBadRequest, "turns are required")
		return
	}

	verdict, err := dialogue.AnalyzeTurns(a.detector, req.Turns)
	if err != nil {
		if errors.Is(err, dialogue.ErrInvalidTurnFormat) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

func (a *App) decodeRunTemplate(body io.Reader) (template.Template, error) {
	var req runRequest
	if err := decodeStrictJSON(body, &req); err != nil {
		return template.Template{}, fmt.Errorf("invalid request body: %w", err)
	}
	name := strings.TrimSpace(req.Template)
	if name == "" {
		return template.Template{}, errors.New("template is required")
	}
	tmpl, ok := a.templates.Get(name)
	if !ok {
		return template.Template{}, fmt.Errorf("unknown template %q", name)
	}
	return tmpl, nil
}

func (a *App) runConversation(ctx context.Context, tmpl template.Template, onTurn func(dialogue.Turn)) (runResponse, error) {
	first, err := a.agents(tmpl.Roles[0], tmpl.SystemMessages[tmpl.Roles[0]])
	if err != nil {
		return runResponse{}, fmt.Errorf("create agent %s: %w", tmpl.Roles[0], err)
	}
	second, err := a.agents(tmpl.Roles[1], tmpl.SystemMessages[tmpl.Roles[1]])
	if err != nil {
		return runResponse{}, fmt.Errorf("create agent %s: %w", tmpl.Roles[1], err)
	}

	result, err := a.runner.Run(ctx, first, second, tmpl.Start, onTurn)
	if err != nil {
		return runResponse{}, fmt.Errorf("run conversation: %w", err)
	}
	if a.metrics != nil {
		a.metrics.ObserveResult(result)
	}

	savePath, err := a.nextOutputPath()
	if err != nil {
		return runResponse{}, fmt.Errorf("allocate output path: %w", err)
	}
	if err := output.SaveResult(savePath, result); err != nil {
		return runResponse{}, fmt.Errorf("save result: %w", err)
	}

	return runResponse{
		Result:            result,
		SavedJSONPath:     savePath,
		SavedMarkdownPath: output.MarkdownPath(savePath),
		SavedHTMLPath:     output.HTMLPath(savePath),
	}, nil
}

// nextOutputPath hands out strictly increasing timestamps so that two
// runs finishing in the same instant never share a result path.
func (a *App) nextOutputPath() (string, error) {
	if err := os.MkdirAll(a.outputDir, 0o755); err != nil {
		return "", err
	}

	a.pathMu.Lock()
	defer a.pathMu.Unlock()
	stamp := a.now().UTC()
	if !stamp.After(a.lastStamp) {
		stamp = a.lastStamp.Add(time.Nanosecond)
	}
	a.lastStamp = stamp
	return output.NewTimestampPath(a.outputDir, stamp), nil
}

func writeSSE(w io.Writer, flusher http.Flusher, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
