package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"selfplay/internal/dialogue"
	"selfplay/internal/output"
	"selfplay/internal/template"
)

type Runner interface {
	Run(ctx context.Context, first, second dialogue.Agent, start string, onTurn func(dialogue.Turn)) (dialogue.Result, error)
}

// AgentFactory builds one conversation participant for a template role.
type AgentFactory func(role, systemMessage string) (dialogue.Agent, error)

type Config struct {
	Templates    *template.Library
	TemplateFile string
	OutputDir    string
	MaxTurns     int
	Runner       Runner
	Agents       AgentFactory
	Now          func() time.Time
}

type App struct {
	templates    *template.Library
	templateFile string
	outputDir    string
	maxTurns     int
	runner       Runner
	agents       AgentFactory
	now          func() time.Time
}

func NewApp(cfg Config) *App {
	if cfg.Templates == nil {
		cfg.Templates = template.NewLibrary()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &App{
		templates:    cfg.Templates,
		templateFile: cfg.TemplateFile,
		outputDir:    cfg.OutputDir,
		maxTurns:     normalizeMaxTurns(cfg.MaxTurns),
		runner:       cfg.Runner,
		agents:       cfg.Agents,
		now:          cfg.Now,
	}
}

func (a *App) Start(ctx context.Context) error {
	if a.runner == nil {
		return errors.New("runner is required")
	}
	if a.agents == nil {
		return errors.New("agent factory is required")
	}

	m := newModel(ctx, modelConfig{
		Templates:    a.templates,
		TemplateFile: a.templateFile,
		OutputDir:    a.outputDir,
		MaxTurns:     a.maxTurns,
		Runner:       a.runner,
		Agents:       a.agents,
		Now:          a.now,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

type modelConfig struct {
	Templates    *template.Library
	TemplateFile string
	OutputDir    string
	MaxTurns     int
	Runner       Runner
	Agents       AgentFactory
	Now          func() time.Time
}

type model struct {
	ctx context.Context

	templates    *template.Library
	templateFile string
	outputDir    string
	maxTurns     int
	runner       Runner
	agents       AgentFactory
	now          func() time.Time

	input           textinput.Model
	logViewport     viewport.Model
	spin            spinner.Model
	logs            []string
	wrappedLogs     []string
	wrappedWidth    int
	width           int
	height          int
	running         bool
	runningSince    time.Time
	turnCount       int
	speakerTurns    map[string]int
	lastSpeakerName string
	currentTemplate string
	autoFollow      bool
	runCancel       context.CancelFunc

	commandHistory []string
	historyCursor  int

	lastResultPath string
}

const (
	defaultWidth  = 100
	defaultHeight = 32
	logBufferMax  = 4000
	scrollStep    = 5
)

type templatesLoadedMsg struct {
	count int
	err   error
}

type conversationTurnMsg struct {
	turn dialogue.Turn
}

type conversationStreamStartedMsg struct {
	events <-chan tea.Msg
}

type conversationStreamMsg struct {
	events  <-chan tea.Msg
	payload tea.Msg
	closed  bool
}

type conversationCompletedMsg struct {
	result  *dialogue.Result
	path    string
	err     error
	saveErr error
}

func newModel(ctx context.Context, cfg modelConfig) model {
	if cfg.Templates == nil {
		cfg.Templates = template.NewLibrary()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = "Run a scenario. /run <template> or just type its name"
	ti.Focus()
	ti.CharLimit = 1024 * 32
	ti.Width = defaultWidth - 4

	vp := viewport.New(defaultWidth-4, defaultHeight-12)
	vp.SetContent("")

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))

	m := model{
		ctx:           ctx,
		templates:     cfg.Templates,
		templateFile:  cfg.TemplateFile,
		outputDir:     cfg.OutputDir,
		maxTurns:      normalizeMaxTurns(cfg.MaxTurns),
		runner:        cfg.Runner,
		agents:        cfg.Agents,
		now:           cfg.Now,
		input:         ti,
		logViewport:   vp,
		spin:          sp,
		logs:          []string{"Self-play Studio ready."},
		width:         defaultWidth,
		height:        defaultHeight,
		autoFollow:    true,
		speakerTurns:  make(map[string]int),
		historyCursor: 0,
	}
	m.resizeLayout()
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spin.Tick}
	if m.templateFile != "" {
		cmds = append(cmds, loadTemplatesCmd(m.templates, m.templateFile))
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.resizeLayout()
		return m, nil

	case spinner.TickMsg:
		return m, m.updateSpinner(typed)

	case tea.KeyMsg:
		if cmd, handled := m.handleKeyMessage(typed); handled {
			return m, cmd
		}

	case templatesLoadedMsg:
		m.handleTemplatesLoaded(typed)
		return m, nil

	case conversationStreamStartedMsg:
		return m, listenConversationEventsCmd(typed.events)

	case conversationStreamMsg:
		return m.handleConversationStreamMessage(typed)

	case conversationCompletedMsg:
		// Backward compatibility: treat direct completion as final event.
		m.applyConversationCompleted(typed)
		return m, nil
	}

	return m, m.updateInteractiveInputs(msg)
}

func (m *model) updateSpinner(msg spinner.TickMsg) tea.Cmd {
	var cmd tea.Cmd
	m.spin, cmd = m.spin.Update(msg)
	if m.running {
		return cmd
	}
	return nil
}

func (m *model) handleKeyMessage(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.runCancel != nil {
			m.runCancel()
			m.runCancel = nil
		}
		return tea.Quit, true
	case tea.KeyCtrlF:
		m.autoFollow = !m.autoFollow
		if m.autoFollow {
			m.logViewport.GotoBottom()
		}
		m.appendLog("auto-follow: " + onOff(m.autoFollow))
		return nil, true
	case tea.KeyCtrlL:
		m.logs = nil
		m.refreshLogViewport()
		return nil, true
	case tea.KeyCtrlP:
		m.input.SetValue(m.historyPrev())
		m.input.CursorEnd()
		return nil, true
	case tea.KeyCtrlN:
		m.input.SetValue(m.historyNext())
		m.input.CursorEnd()
		return nil, true
	case tea.KeyPgUp:
		m.autoFollow = false
		m.logViewport.LineUp(scrollStep)
		return nil, true
	case tea.KeyPgDown:
		m.autoFollow = false
		m.logViewport.LineDown(scrollStep)
		return nil, true
	case tea.KeyHome:
		m.autoFollow = false
		m.logViewport.GotoTop()
		return nil, true
	case tea.KeyEnd:
		m.autoFollow = true
		m.logViewport.GotoBottom()
		return nil, true
	case tea.KeyEnter:
		cmdLine := strings.TrimSpace(m.input.Value())
		m.input.SetValue("")
		if cmdLine == "" {
			return nil, true
		}
		m.pushHistory(cmdLine)
		return m.handleCommand(cmdLine), true
	default:
		return nil, false
	}
}

func (m *model) handleTemplatesLoaded(msg templatesLoadedMsg) {
	if msg.err != nil {
		m.appendLog("Failed to load " + m.templateFile + ": " + msg.err.Error())
		m.appendLog("Use /load after fixing the file.")
		return
	}
	m.appendLog(pluralTemplates(m.templates.Len()) + " available")
}

func (m *model) handleConversationStreamMessage(msg conversationStreamMsg) (tea.Model, tea.Cmd) {
	if msg.closed {
		if m.running {
			m.running = false
			m.runCancel = nil
			m.appendLogs("conversation stream closed", "==== conversation end ====")
		}
		return *m, nil
	}

	switch payload := msg.payload.(type) {
	case conversationTurnMsg:
		m.turnCount++
		m.speakerTurns[payload.turn.Speaker]++
		m.lastSpeakerName = payload.turn.Speaker
		m.appendTurnLog(payload.turn)
		return *m, listenConversationEventsCmd(msg.events)
	case conversationCompletedMsg:
		m.applyConversationCompleted(payload)
		return *m, nil
	default:
		return *m, listenConversationEventsCmd(msg.events)
	}
}

func (m *model) applyConversationCompleted(msg conversationCompletedMsg) {
	m.running = false
	m.runCancel = nil
	if msg.err != nil {
		m.appendLog("conversation failed: " + msg.err.Error())
		m.appendLog("==== conversation end ====")
		return
	}
	if msg.saveErr != nil {
		m.appendLog("save failed: " + msg.saveErr.Error())
	} else {
		m.lastResultPath = msg.path
		m.appendLog("saved result: " + msg.path)
		m.appendLog("saved transcript: " + output.MarkdownPath(msg.path))
	}
	if msg.result != nil {
		m.appendLog("status: " + msg.result.Status)
		if msg.result.EndSignal.Detected {
			m.appendLog(formatEndSignal(msg.result.EndSignal))
		}
	}
	m.appendLog("==== conversation end ====")
}

func (m *model) updateInteractiveInputs(msg tea.Msg) tea.Cmd {
	mouseWheelUp, mouseWheelDown := isMouseWheelScroll(msg)
	var viewportCmd tea.Cmd
	var inputCmd tea.Cmd
	m.logViewport, viewportCmd = m.logViewport.Update(msg)
	m.input, inputCmd = m.input.Update(msg)
	if mouseWheelUp {
		m.autoFollow = false
	}
	if mouseWheelDown && m.logViewport.AtBottom() {
		m.autoFollow = true
	}
	return tea.Batch(viewportCmd, inputCmd)
}

func isMouseWheelScroll(msg tea.Msg) (up bool, down bool) {
	mm, ok := msg.(tea.MouseMsg)
	if !ok || mm.Action != tea.MouseActionPress {
		return false, false
	}
	switch mm.Button { //nolint:exhaustive
	case tea.MouseButtonWheelUp:
		return true, false
	case tea.MouseButtonWheelDown:
		return false, true
	default:
		return false, false
	}
}
