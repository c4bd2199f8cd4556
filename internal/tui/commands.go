package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"selfplay/internal/dialogue"
	"selfplay/internal/output"
	"selfplay/internal/template"
)

func (m *model) handleCommand(line string) tea.Cmd {
	command, arg := parseCommand(line)
	switch command {
	case "/exit":
		return m.handleExitCommand()
	case "/stop":
		return m.handleStopCommand(arg)
	case "/follow":
		return m.handleFollowCommand(arg)
	case "/help":
		return m.handleHelpCommand(arg)
	case "/load":
		return m.handleLoadCommand(arg)
	case "/show":
		return m.handleShowCommand(arg)
	case "/run":
		return m.handleRunCommand(arg)
	default:
		return m.handleUnknownOrPlainText(line)
	}
}

func (m *model) handleExitCommand() tea.Cmd {
	if m.runCancel != nil {
		m.runCancel()
		m.runCancel = nil
	}
	m.appendLog("bye")
	return tea.Quit
}

func (m *model) handleStopCommand(arg string) tea.Cmd {
	if arg != "" {
		m.appendLog("usage: /stop")
		return nil
	}
	if !m.running || m.runCancel == nil {
		m.appendLog("no running conversation to stop")
		return nil
	}
	m.appendLog("stop requested...")
	m.runCancel()
	return nil
}

func (m *model) handleFollowCommand(arg string) tea.Cmd {
	mode := strings.ToLower(strings.TrimSpace(arg))
	if mode == "" || mode == "toggle" {
		m.autoFollow = !m.autoFollow
		if m.autoFollow {
			m.logViewport.GotoBottom()
		}
		m.appendLog("auto-follow: " + onOff(m.autoFollow))
		return nil
	}

	switch mode {
	case "on":
		m.autoFollow = true
		m.logViewport.GotoBottom()
		m.appendLog("auto-follow: ON")
	case "off":
		m.autoFollow = false
		m.appendLog("auto-follow: OFF")
	default:
		m.appendLog("usage: /follow [on|off|toggle]")
	}
	return nil
}

func (m *model) handleHelpCommand(arg string) tea.Cmd {
	if arg != "" {
		m.appendLog("usage: /help")
		return nil
	}
	m.appendHelp()
	return nil
}

func (m *model) handleLoadCommand(arg string) tea.Cmd {
	if arg != "" {
		m.appendLog("usage: /load")
		return nil
	}
	if m.templateFile == "" {
		m.appendLog("no template file configured")
		return nil
	}
	return loadTemplatesCmd(m.templates, m.templateFile)
}

func (m *model) handleShowCommand(arg string) tea.Cmd {
	if arg != "" {
		m.appendLog("usage: /show")
		return nil
	}
	m.appendTemplateList()
	return nil
}

func (m *model) handleRunCommand(arg string) tea.Cmd {
	if arg == "" {
		m.appendLog("usage: /run <template>")
		return nil
	}
	if m.running {
		m.appendLog("a conversation is already running")
		return nil
	}
	tmpl, ok := m.templates.Get(arg)
	if !ok {
		m.appendLog(fmt.Sprintf("unknown template %q; use /show", arg))
		return nil
	}
	return m.startConversation(tmpl)
}

func (m *model) startConversation(tmpl template.Template) tea.Cmd {
	first, err := m.agents(tmpl.Roles[0], tmpl.SystemMessages[tmpl.Roles[0]])
	if err != nil {
		m.appendLog("create agent " + tmpl.Roles[0] + ": " + err.Error())
		return nil
	}
	second, err := m.agents(tmpl.Roles[1], tmpl.SystemMessages[tmpl.Roles[1]])
	if err != nil {
		m.appendLog("create agent " + tmpl.Roles[1] + ": " + err.Error())
		return nil
	}

	m.running = true
	m.autoFollow = true
	m.runningSince = m.now()
	m.turnCount = 0
	m.speakerTurns = make(map[string]int)
	m.lastSpeakerName = ""
	m.currentTemplate = tmpl.Name

	runCtx, cancel := context.WithCancel(m.ctx)
	m.runCancel = cancel

	m.appendLog("==== conversation start ====")
	m.appendLog("running template: " + tmpl.Name)
	return tea.Batch(
		runConversationCmd(runCtx, m.runner, first, second, tmpl.Start, m.outputDir, m.now),
		m.spin.Tick,
	)
}

func (m *model) handleUnknownOrPlainText(line string) tea.Cmd {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "/") {
		m.appendLog("unknown command. Use /run <template>, /stop, /follow, /show, /load, /help, /exit")
		return nil
	}
	// Plain text is treated as a template name.
	return m.handleCommand("/run " + trimmed)
}

func (m *model) appendTemplateList() {
	names := m.templates.Names()
	if len(names) == 0 {
		m.appendLog("no templates loaded")
		return
	}
	lines := make([]string, 0, len(names)+1)
	lines = append(lines, fmt.Sprintf("templates (%d):", len(names)))
	for i, name := range names {
		tmpl, _ := m.templates.Get(name)
		lines = append(lines, fmt.Sprintf("%d. %s - %s", i+1, name, tmpl.Description))
	}
	m.appendLogs(lines...)
}

func (m *model) appendLog(line string) {
	m.appendLogs(line)
}

func (m *model) appendLogs(lines ...string) {
	if len(lines) == 0 {
		return
	}
	m.logs = append(m.logs, lines...)

	trimmed := false
	if len(m.logs) > logBufferMax {
		m.logs = m.logs[len(m.logs)-logBufferMax:]
		trimmed = true
	}

	if trimmed || m.wrappedLogs == nil || m.wrappedWidth != m.logViewport.Width {
		m.refreshLogViewport()
		return
	}

	m.wrappedLogs = append(m.wrappedLogs, wrapLogLines(lines, m.logViewport.Width)...)
	m.logViewport.SetContent(strings.Join(m.wrappedLogs, "\n"))
	if m.autoFollow {
		m.logViewport.GotoBottom()
	}
}

func (m *model) appendTurnLog(turn dialogue.Turn) {
	m.appendLogs(formatTurnLines(turn)...)
}

func (m *model) appendHelp() {
	m.appendLogs(
		"commands:",
		"  /run <template> : start a conversation",
		"  /stop           : stop the running conversation",
		"  /follow [mode]  : auto-follow log (on/off/toggle)",
		"  /show           : show available templates",
		"  /load           : reload the template file",
		"  /help           : show this help",
		"  /exit           : quit",
		"shortcuts: Ctrl+P/Ctrl+N history, Ctrl+F follow toggle, PgUp/PgDn/Home/End scroll, wheel/trackpad scroll, Ctrl+L clear",
	)
}

func (m *model) pushHistory(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if len(m.commandHistory) == 0 || m.commandHistory[len(m.commandHistory)-1] != line {
		m.commandHistory = append(m.commandHistory, line)
	}
	m.historyCursor = len(m.commandHistory)
}

func (m *model) historyPrev() string {
	if len(m.commandHistory) == 0 {
		return ""
	}
	if m.historyCursor > 0 {
		m.historyCursor--
	}
	return m.commandHistory[m.historyCursor]
}

func (m *model) historyNext() string {
	if len(m.commandHistory) == 0 {
		return ""
	}
	if m.historyCursor < len(m.commandHistory)-1 {
		m.historyCursor++
		return m.commandHistory[m.historyCursor]
	}
	m.historyCursor = len(m.commandHistory)
	return ""
}

func loadTemplatesCmd(lib *template.Library, path string) tea.Cmd {
	return func() tea.Msg {
		count, err := lib.LoadFile(path)
		return templatesLoadedMsg{count: count, err: err}
	}
}

func runConversationCmd(ctx context.Context, runner Runner, first, second dialogue.Agent, start string, outputDir string, now func() time.Time) tea.Cmd {
	return func() tea.Msg {
		events := make(chan tea.Msg, 64)
		go func() {
			defer close(events)
			send := func(msg tea.Msg) bool {
				select {
				case events <- msg:
					return true
				case <-ctx.Done():
					return false
				}
			}

			result, err := runner.Run(ctx, first, second, start, func(turn dialogue.Turn) {
				_ = send(conversationTurnMsg{turn: turn})
			})
			if err != nil {
				_ = send(conversationCompletedMsg{err: err})
				return
			}

			path := output.NewTimestampPath(outputDir, now())
			saveErr := output.SaveResult(path, result)
			_ = send(conversationCompletedMsg{
				result:  &result,
				path:    path,
				saveErr: saveErr,
			})
		}()

		return conversationStreamStartedMsg{events: events}
	}
}

func listenConversationEventsCmd(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return conversationStreamMsg{closed: true}
		}
		return conversationStreamMsg{
			events:  events,
			payload: msg,
		}
	}
}
