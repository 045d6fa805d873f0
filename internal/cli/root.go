package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"lawgpt/internal/config"
	"lawgpt/internal/display"
	"lawgpt/internal/listener"
	"lawgpt/internal/logger"
	"lawgpt/internal/pipeline"
	"lawgpt/internal/supervisor"
)

var (
	cfg *config.Config

	flagBackend     string
	flagModel       string
	flagPrompts     string
	flagDB          string
	flagNoArchive   bool
	flagDebug       bool
	flagMaxAttempts int
)

var rootCmd = &cobra.Command{
	Use:   "lawgpt",
	Short: "Staged legal research assistant for Philippine law",
	Long: `LawGPT turns a legal question into a styled research brief. It interviews you until
the question is clear, plans research tasks, researches and validates each one, then
synthesizes and formats the result.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		applyFlags(cmd)
		if err := logger.Init(cfg.LogPath, cfg.Debug); err != nil {
			return fmt.Errorf("could not initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, !flagNoArchive)
		if err != nil {
			return err
		}
		defer a.close()
		return interactive(a)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagBackend, "backend", "", "LLM backend: endpoint, gemini or ollama (env LAWGPT_BACKEND)")
	pf.StringVar(&flagModel, "model", "", "model name for gemini/ollama (env LAWGPT_MODEL)")
	pf.StringVar(&flagPrompts, "prompts", "", "YAML file overriding the built-in prompts (env LAWGPT_PROMPTS)")
	pf.StringVar(&flagDB, "db", "", "SQLite archive of finished runs (env LAWGPT_DB)")
	pf.BoolVar(&flagNoArchive, "no-archive", false, "do not archive finished runs")
	pf.BoolVar(&flagDebug, "debug", false, "debug logging (env LAWGPT_DEBUG)")
	pf.IntVar(&flagMaxAttempts, "max-attempts", 0, "model calls allowed per phase (env LAWGPT_MAX_PHASE_ATTEMPTS)")

	rootCmd.AddCommand(askCmd, chatCmd, runCmd, batchCmd, historyCmd, showCmd, serveCmd)
}

// applyFlags lets explicit flags win over the environment.
func applyFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("backend") {
		cfg.Backend = flagBackend
	}
	if f.Changed("model") {
		cfg.Model = flagModel
	}
	if f.Changed("prompts") {
		cfg.PromptsPath = flagPrompts
	}
	if f.Changed("db") {
		cfg.DBPath = flagDB
	}
	if f.Changed("debug") {
		cfg.Debug = flagDebug
	}
	if f.Changed("max-attempts") && flagMaxAttempts > 0 {
		cfg.MaxPhaseAttempts = flagMaxAttempts
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

const helpText = `Commands:
  /reset    start the current research over
  /state    show the current phase and tasks
  /metrics  show call metrics for this session
  /ask <q>  quick answer without the research pipeline
  /chat <m> short multi-turn chat that remembers earlier /chat turns
  exit      quit`

func interactive(a *app) error {
	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".lawgpt", "history")
	}
	if err := listener.Init("⚖️  > ", historyFile); err != nil {
		return fmt.Errorf("failed to init terminal input: %w", err)
	}
	defer listener.Close()

	m := a.manager(func(e pipeline.Event) {
		listener.AsyncPrintln(display.FormatEvent(e))
	})
	chat := a.chat()
	conv := a.conversation()
	go reportResults(m)

	s := m.Start()
	printGreeting(s)
	listener.AsyncPrintln(helpText)

	for {
		input, err := listener.GetInput()
		if errors.Is(err, listener.ErrClosed) {
			fmt.Println("Goodbye!")
			return nil
		}
		if err != nil {
			return err
		}

		switch lower := strings.ToLower(input); {
		case input == "":
			continue
		case lower == "exit" || lower == "quit":
			fmt.Println("Goodbye!")
			return nil
		case lower == "/reset":
			s.Reset()
			printGreeting(s)
			continue
		case lower == "/state":
			listener.AsyncPrintln(display.FormatState(s.State()))
			continue
		case lower == "/metrics":
			listener.AsyncPrintln(display.FormatSessionMetrics(s.Metrics()))
			continue
		case strings.HasPrefix(lower, "/ask "):
			withInterrupt(func(ctx context.Context) {
				answer, err := chat.Ask(ctx, input[len("/ask "):])
				if err != nil {
					listener.AsyncPrintln(fmt.Sprintf("[Ask FAILED] %v", err))
					return
				}
				listener.AsyncPrintln(display.RenderFinal(answer))
			})
			continue
		case strings.HasPrefix(lower, "/chat "):
			withInterrupt(func(ctx context.Context) {
				reply, err := conv.Chat(ctx, input[len("/chat "):])
				if err != nil {
					listener.AsyncPrintln(fmt.Sprintf("[Chat FAILED] %v", err))
					return
				}
				listener.AsyncPrintln(display.RenderFinal(reply))
			})
			continue
		}

		var st pipeline.State
		withInterrupt(func(ctx context.Context) {
			st, err = m.Submit(ctx, s.ID, input)
		})
		if err != nil && !st.Done() {
			logger.Log.Warnw("submit failed", "session", s.ID, "error", err)
		}
		if st.Phase != pipeline.PhaseIdle {
			continue
		}

		if st.Done() {
			listener.AsyncPrintln(display.RenderFinal(st.FinalHTML))
			listener.AsyncPrintln(display.FormatSessionMetrics(s.Metrics()))
			if listener.AskYesNo("Save the brief as HTML?") {
				saveBrief(s.ID, st.FinalHTML)
			}
		}
		_ = m.Close(s.ID)
		s = m.Start()
		listener.AsyncPrintln(fmt.Sprintf("New session %s. Ask another question, or 'exit' to quit.", s.ID))
	}
}

// withInterrupt runs fn with a context cancelled by Ctrl+C.
func withInterrupt(fn func(ctx context.Context)) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	fn(ctx)
}

func printGreeting(s *pipeline.Session) {
	for _, msg := range s.Visible() {
		listener.AsyncPrintln(display.FormatEvent(pipeline.Event{Kind: pipeline.EventMessage, Message: &msg}))
	}
}

func reportResults(m *supervisor.Manager) {
	for r := range m.Results() {
		switch r.Status {
		case supervisor.StatusSucceeded:
			logger.Log.Infow("session finished", "session", r.SessionID, "fragments", len(r.Fragments))
		default:
			listener.AsyncPrintln(fmt.Sprintf("[Session %s %s] %s", r.SessionID, r.Status, r.Error))
		}
	}
}

func saveBrief(id, final string) {
	path := fmt.Sprintf("brief-%s.html", id)
	doc := display.Document("LawGPT brief "+id, display.RenderBrief(final))
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		listener.AsyncPrintln(fmt.Sprintf("[Save FAILED] %v", err))
		return
	}
	listener.AsyncPrintln("Saved " + path)
}
