// Package repl implements the line-oriented interface used in pipes
// and CI runs.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"selfplay/internal/commandutil"
	"selfplay/internal/dialogue"
	"selfplay/internal/output"
	"selfplay/internal/template"
	"selfplay/internal/turnfmt"
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
	Runner       Runner
	Agents       AgentFactory
	Writer       io.Writer
	Now          func() time.Time
}

type App struct {
	templates    *template.Library
	templateFile string
	outputDir    string
	runner       Runner
	agents       AgentFactory
	writer       io.Writer
	now          func() time.Time

	lastResultPath string
}

const maxREPLInputBytes = 1024 * 1024

var replCommandAliases = map[string]string{
	"run":        "/run",
	"/run":       "/run",
	"templates":  "/templates",
	"/templates": "/templates",
	"show":       "/show",
	"/show":      "/show",
	"load":       "/load",
	"/load":      "/load",
	"help":       "/help",
	"/help":      "/help",
	"exit":       "/exit",
	"/exit":      "/exit",
}

func parseCommand(line string) (command string, arg string) {
	return commandutil.Parse(line, replCommandAliases)
}

func NewApp(cfg Config) *App {
	if cfg.Templates == nil {
		cfg.Templates = template.NewLibrary()
	}
	if cfg.Writer == nil {
		cfg.Writer = io.Discard
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &App{
		templates:    cfg.Templates,
		templateFile: cfg.TemplateFile,
		outputDir:    cfg.OutputDir,
		runner:       cfg.Runner,
		agents:       cfg.Agents,
		writer:       cfg.Writer,
		now:          cfg.Now,
	}
}

func (a *App) Start(ctx context.Context, in io.Reader) error {
	if a.runner == nil {
		return errors.New("runner is required")
	}
	if a.agents == nil {
		return errors.New("agent factory is required")
	}
	if in == nil {
		return errors.New("input reader is required")
	}

	a.printLine("Self-play Conversation REPL")
	a.printLine("Commands: /templates, /run <template>, /show, /load, /help, /exit")

	if a.templateFile != "" {
		if err := a.loadTemplates(); err != nil {
			a.printLine(fmt.Sprintf("Failed to load %s: %v", a.templateFile, err))
			a.printLine("Use /load after fixing the file.")
		}
	}
	a.printLine(fmt.Sprintf("%d templates available", a.templates.Len()))

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxREPLInputBytes)
	for {
		if _, err := fmt.Fprint(a.writer, "selfplay> "); err != nil {
			return err
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			a.printLine("")
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		quit := a.handleLine(ctx, line)
		if quit {
			return nil
		}
	}
}

func (a *App) handleLine(ctx context.Context, line string) bool {
	command, arg := parseCommand(line)
	switch command {
	case "/exit":
		a.printLine("bye")
		return true
	case "/help":
		if arg != "" {
			a.printLine("usage: /help")
			return false
		}
		a.printHelp()
		return false
	case "/load":
		if arg != "" {
			a.printLine("usage: /load")
			return false
		}
		if a.templateFile == "" {
			a.printLine("no template file configured")
			return false
		}
		if err := a.loadTemplates(); err != nil {
			a.printLine(fmt.Sprintf("load failed: %v", err))
		} else {
			a.printLine(fmt.Sprintf("%d templates available", a.templates.Len()))
		}
		return false
	case "/templates":
		if arg != "" {
			a.printLine("usage: /templates")
			return false
		}
		a.showTemplates()
		return false
	case "/show":
		if arg != "" {
			a.printLine("usage: /show")
			return false
		}
		a.showStatus()
		return false
	case "/run":
		if arg == "" {
			a.printLine("usage: /run <template>")
			return false
		}
		a.runConversation(ctx, arg)
		return false
	default:
		if strings.HasPrefix(strings.TrimSpace(line), "/") {
			a.printLine("unknown command. Use /templates, /run <template>, /show, /load, /help, /exit")
			return false
		}
		// A bare line is taken as a template name.
		_ = a.handleLine(ctx, "/run "+strings.TrimSpace(line))
		return false
	}
}

func (a *App) loadTemplates() error {
	_, err := a.templates.LoadFile(a.templateFile)
	return err
}

func (a *App) showTemplates() {
	names := a.templates.Names()
	a.printLine(fmt.Sprintf("templates (%d):", len(names)))
	for i, name := range names {
		tmpl, _ := a.templates.Get(name)
		a.printLine(fmt.Sprintf("%d. %s - %s", i+1, name, tmpl.Description))
	}
}

func (a *App) showStatus() {
	a.printLine(fmt.Sprintf("%d templates available", a.templates.Len()))
	if a.lastResultPath != "" {
		a.printLine("last result: " + a.lastResultPath)
	}
}

func (a *App) runConversation(ctx context.Context, name string) {
	tmpl, ok := a.templates.Get(name)
	if !ok {
		a.printLine(fmt.Sprintf("unknown template %q; use /templates", name))
		return
	}

	first, err := a.agents(tmpl.Roles[0], tmpl.SystemMessages[tmpl.Roles[0]])
	if err != nil {
		a.printLine(fmt.Sprintf("create agent %s: %v", tmpl.Roles[0], err))
		return
	}
	second, err := a.agents(tmpl.Roles[1], tmpl.SystemMessages[tmpl.Roles[1]])
	if err != nil {
		a.printLine(fmt.Sprintf("create agent %s: %v", tmpl.Roles[1], err))
		return
	}

	a.printLine("running conversation...")
	result, err := a.runner.Run(ctx, first, second, tmpl.Start, func(turn dialogue.Turn) {
		for _, line := range formatTurnLines(turn) {
			a.printLine(line)
		}
	})
	if err != nil {
		a.printLine(fmt.Sprintf("conversation failed: %v", err))
		return
	}

	path := output.NewTimestampPath(a.outputDir, a.now())
	if err := output.SaveResult(path, result); err != nil {
		a.printLine(fmt.Sprintf("save failed: %v", err))
	} else {
		a.lastResultPath = path
		a.printLine("saved result: " + path)
		a.printLine("saved transcript: " + output.MarkdownPath(path))
	}

	a.printLine("status: " + result.Status)
	if result.EndSignal.Detected {
		a.printLine(fmt.Sprintf("end signal: %s (%.2f) at turn %d",
			result.EndSignal.Reason, result.EndSignal.Confidence, result.EndSignal.AtTurn))
	}
}

func (a *App) printLine(msg string) {
	_, _ = fmt.Fprintln(a.writer, msg)
}

func formatTurnLines(turn dialogue.Turn) []string {
	return turnfmt.FormatLines(turn, turnfmt.Options{
		Header: func(t dialogue.Turn) string {
			return fmt.Sprintf("---- turn %d | %s ----", t.Index, t.Speaker)
		},
		Separator:     func(dialogue.Turn) string { return strings.Repeat("-", 52) },
		ContentPrefix: "  ",
	})
}

func (a *App) printHelp() {
	a.printLine("commands:")
	a.printLine("  /templates       : list conversation templates")
	a.printLine("  /run <template>  : run a conversation")
	a.printLine("  /show            : show status")
	a.printLine("  /load            : reload the template file")
	a.printLine("  /help            : show this help")
	a.printLine("  /exit            : quit")
}
