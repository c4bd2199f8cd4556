package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"

	"selfplay/internal/agent"
	"selfplay/internal/config"
	"selfplay/internal/dialogue"
	"selfplay/internal/persona"
	"selfplay/internal/personadb"
	"selfplay/internal/provider"
	"selfplay/internal/repl"
	"selfplay/internal/template"
	"selfplay/internal/tui"
	"selfplay/internal/web"
)

const personaSampleTimeout = 5 * time.Second

type runtimeOptions struct {
	templateFile   string
	webMode        bool
	addr           string
	importPersonas string
}

func main() {
	opts, err := parseRuntimeOptions(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "argument error:", err)
		os.Exit(1)
	}

	// Importing personas only needs the database, not a provider
	// credential, so it runs before the full config load.
	if opts.importPersonas != "" {
		if err := importPersonas(opts.importPersonas); err != nil {
			_, _ = fmt.Fprintln(os.Stderr, "import error:", err)
			os.Exit(1)
		}
		return
	}

	settings, err := config.FromEnv()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	if opts.templateFile == "" {
		opts.templateFile = settings.TemplateFile
	}

	llm, err := provider.ForName(settings.Provider, provider.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Timeout:    settings.RequestTimeout,
		MaxRetries: settings.APIMaxRetries,
	})
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "provider error:", err)
		os.Exit(1)
	}

	var store *personadb.Store
	if settings.PersonaDBPath != "" {
		store, err = personadb.Open(settings.PersonaDBPath)
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, "persona db error:", err)
			os.Exit(1)
		}
		defer store.Close()
	}
	agents := newAgentFactory(llm, store)

	runner := dialogue.New(dialogue.Config{
		MaxTurns:       settings.MaxTurns,
		AutoEnd:        settings.AutoEnd,
		EndThreshold:   settings.EndThreshold,
		TurnDelay:      settings.TurnDelay,
		MaxDuration:    settings.MaxDuration,
		MaxTotalTokens: settings.MaxTotalTokens,
	})

	if opts.webMode {
		if err := runWeb(opts, settings, runner, agents); err != nil {
			_, _ = fmt.Fprintln(os.Stderr, "runtime error:", err)
			os.Exit(1)
		}
		return
	}

	if isTTY() {
		app := tui.NewApp(tui.Config{
			TemplateFile: opts.templateFile,
			OutputDir:    settings.OutputDir,
			MaxTurns:     settings.MaxTurns,
			Runner:       runner,
			Agents:       agents,
			Now:          time.Now,
		})
		if err := app.Start(context.Background()); err != nil {
			_, _ = fmt.Fprintln(os.Stderr, "runtime error:", err)
			os.Exit(1)
		}
		return
	}

	// Fallback for non-interactive shells (pipes, CI).
	app := repl.NewApp(repl.Config{
		TemplateFile: opts.templateFile,
		OutputDir:    settings.OutputDir,
		Runner:       runner,
		Agents:       agents,
		Writer:       os.Stdout,
		Now:          time.Now,
	})

	if err := app.Start(context.Background(), os.Stdin); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "runtime error:", err)
		os.Exit(1)
	}
}

func runWeb(opts runtimeOptions, settings config.Settings, runner web.Runner, agents web.AgentFactory) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	library := template.NewLibrary()
	if opts.templateFile != "" {
		count, err := library.LoadFile(opts.templateFile)
		if err != nil {
			return fmt.Errorf("load templates: %w", err)
		}
		_, _ = fmt.Fprintf(os.Stderr, "loaded %d templates from %s\n", count, opts.templateFile)

		go func() {
			err := library.Watch(ctx, opts.templateFile, func(count int, err error) {
				if err != nil {
					_, _ = fmt.Fprintln(os.Stderr, "template reload error:", err)
					return
				}
				_, _ = fmt.Fprintf(os.Stderr, "reloaded %d templates\n", count)
			})
			if err != nil {
				_, _ = fmt.Fprintln(os.Stderr, "template watch error:", err)
			}
		}()
	}

	app := web.NewApp(web.Config{
		Templates:    library,
		OutputDir:    settings.OutputDir,
		Runner:       runner,
		Agents:       agents,
		EndThreshold: settings.EndThreshold,
		Registry:     prometheus.NewRegistry(),
		Now:          time.Now,
		RunTimeout:   settings.MaxDuration,
	})

	_, _ = fmt.Fprintf(os.Stderr, "listening on %s\n", opts.addr)
	return app.Start(ctx, opts.addr)
}

// newAgentFactory builds provider-backed chatbots. With a persona pool
// attached, each agent is seeded with one randomly sampled persona on
// top of the template's role instructions.
func newAgentFactory(llm provider.Provider, store *personadb.Store) func(role, systemMessage string) (dialogue.Agent, error) {
	return func(role, systemMessage string) (dialogue.Agent, error) {
		if store != nil {
			enriched, err := personaSystemMessage(store, systemMessage)
			if err != nil {
				return nil, err
			}
			systemMessage = enriched
		}
		return agent.NewChatbot(role, systemMessage, llm)
	}
}

func personaSystemMessage(store *personadb.Store, base string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), personaSampleTimeout)
	defer cancel()

	picks, err := store.SampleRandom(ctx, 1)
	if err != nil {
		return "", fmt.Errorf("sample persona: %w", err)
	}
	if len(picks) == 0 {
		return base, nil
	}
	if base == "" {
		return persona.SystemMessage(picks[0]), nil
	}
	return base + "\n\n" + persona.SystemMessage(picks[0]), nil
}

func importPersonas(path string) error {
	dbPath := strings.TrimSpace(os.Getenv("SELFPLAY_PERSONA_DB"))
	if dbPath == "" {
		return fmt.Errorf("SELFPLAY_PERSONA_DB must point at the persona database")
	}

	store, err := personadb.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open persona db: %w", err)
	}
	defer store.Close()

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open personas file: %w", err)
	}
	defer file.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	count, err := store.ImportJSONL(ctx, file)
	if err != nil {
		return fmt.Errorf("import personas: %w", err)
	}
	_, _ = fmt.Fprintf(os.Stdout, "imported %d personas into %s\n", count, dbPath)
	return nil
}

func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func parseRuntimeOptions(args []string) (runtimeOptions, error) {
	fs := flag.NewFlagSet("selfplay", flag.ContinueOnError)
	templateFile := fs.String("templates", "", "path to a template yaml file")
	fs.StringVar(templateFile, "template", "", "alias of -templates")
	webMode := fs.Bool("web", false, "serve the web ui instead of the terminal ui")
	addr := fs.String("addr", "", "listen address for -web (default :8080)")
	importPersonas := fs.String("import-personas", "", "import a personas jsonl file into the persona db and exit")
	fs.SetOutput(os.Stderr)

	if err := fs.Parse(args); err != nil {
		return runtimeOptions{}, err
	}
	if len(fs.Args()) > 0 {
		return runtimeOptions{}, fmt.Errorf("unexpected positional args: %s", strings.Join(fs.Args(), " "))
	}

	return runtimeOptions{
		templateFile:   strings.TrimSpace(*templateFile),
		webMode:        *webMode,
		addr:           strings.TrimSpace(*addr),
		importPersonas: strings.TrimSpace(*importPersonas),
	}, nil
}
