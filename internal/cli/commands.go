package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"lawgpt/internal/display"
	"lawgpt/internal/logger"
	"lawgpt/internal/pipeline"
	"lawgpt/internal/server"
	"lawgpt/internal/supervisor"
)

var (
	flagJSON        bool
	flagHTMLOut     string
	flagConcurrency int
	flagLimit       int
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Quick answer from the general LawGPT prompt, no research pipeline",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, false)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signalContext(cmd)
		defer stop()
		answer, err := a.chat().Ask(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), display.RenderFinal(answer))
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Multi-turn chat under the short LawGPT prompt, one message per line of stdin",
	Long: `Chat with LawGPT outside the research pipeline. Every message is sent together
with the earlier turns. An optional argument is sent first; further messages are read
from stdin, one per line, until EOF or "exit".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, false)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signalContext(cmd)
		defer stop()
		return chatLoop(ctx, a.conversation(), strings.Join(args, " "), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

var runCmd = &cobra.Command{
	Use:   "run <question>",
	Short: "Research one question end to end without prompting",
	Long: `Research one question end to end. Follow-up questions from intake are answered
with a standing instruction to proceed on reasonable assumptions.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, !flagNoArchive)
		if err != nil {
			return err
		}
		defer a.close()

		out := cmd.OutOrStdout()
		errOut := cmd.ErrOrStderr()
		observer := func(e pipeline.Event) {
			if flagJSON {
				return
			}
			if line := display.FormatEvent(e); line != "" {
				fmt.Fprintln(errOut, line)
			}
		}
		s := pipeline.NewSession("", a.client, a.options(observer))

		ctx, stop := signalContext(cmd)
		defer stop()
		st, err := pipeline.RunToCompletion(ctx, s, strings.Join(args, " "), cfg.MaxIntakeNudges)
		if flagJSON {
			if encErr := writeJSON(out, supervisor.ResultOf(s, err)); encErr != nil {
				return encErr
			}
			return err
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(out, display.RenderFinal(st.FinalHTML))
		fmt.Fprintln(errOut, display.FormatSessionMetrics(s.Metrics()))
		if flagHTMLOut != "" {
			doc := display.Document("LawGPT brief "+s.ID, display.RenderBrief(st.FinalHTML))
			if err := os.WriteFile(flagHTMLOut, []byte(doc), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", flagHTMLOut, err)
			}
			fmt.Fprintln(errOut, "Saved "+flagHTMLOut)
		}
		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch [file]",
	Short: "Research many questions concurrently, one per line (stdin when no file)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		questions, err := readQuestions(in)
		if err != nil {
			return err
		}
		if len(questions) == 0 {
			return fmt.Errorf("no questions to research")
		}

		a, err := newApp(cfg, !flagNoArchive)
		if err != nil {
			return err
		}
		defer a.close()

		errOut := cmd.ErrOrStderr()
		m := a.manager(func(e pipeline.Event) {
			if e.Kind == pipeline.EventPhase || e.Kind == pipeline.EventError {
				fmt.Fprintln(errOut, display.FormatEvent(e))
			}
		})

		concurrency := flagConcurrency
		if concurrency <= 0 {
			concurrency = cfg.BatchConcurrency
		}
		ctx, stop := signalContext(cmd)
		defer stop()

		start := time.Now()
		results, err := m.RunBatch(ctx, questions, concurrency, cfg.MaxIntakeNudges)
		logger.Log.Infow("batch finished", "questions", len(questions), "duration", time.Since(start), "error", err)

		if flagJSON {
			if encErr := writeJSON(cmd.OutOrStdout(), results); encErr != nil {
				return encErr
			}
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tSTATUS\tFRAGMENTS\tQUESTION")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.SessionID, r.Status, len(r.Fragments), clip(r.Question, 60))
		}
		if flushErr := w.Flush(); flushErr != nil {
			return flushErr
		}
		return err
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived research runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, true)
		if err != nil {
			return err
		}
		defer a.close()

		runs, err := a.archive.ListRuns(cmd.Context(), flagLimit)
		if err != nil {
			return err
		}
		if flagJSON {
			return writeJSON(cmd.OutOrStdout(), runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No archived runs.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tCREATED\tFRAGMENTS\tUNVERIFIED\tQUESTION")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
				r.SessionID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Fragments, r.Unverified, clip(r.Question, 60))
		}
		return w.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print an archived brief",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, true)
		if err != nil {
			return err
		}
		defer a.close()

		run, err := a.archive.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if flagJSON {
			return writeJSON(out, run)
		}
		if flagHTMLOut != "" {
			doc := display.Document("LawGPT brief "+run.SessionID, display.RenderBrief(run.FinalHTML))
			return os.WriteFile(flagHTMLOut, []byte(doc), 0o644)
		}
		fmt.Fprintf(out, "Question: %s\n\n", run.Question)
		for i, f := range run.Fragments {
			fmt.Fprintf(out, "  %d. [%s] %s\n", i+1, f.Status, f.Task)
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, display.RenderFinal(run.FinalHTML))
		fmt.Fprintln(out, display.FormatSessionMetrics(run.Metrics))
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve research sessions as MCP tools over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, !flagNoArchive)
		if err != nil {
			return err
		}
		defer a.close()

		m := a.manager(func(e pipeline.Event) {
			logger.Log.Debugw("session event", "session", e.SessionID, "kind", e.Kind, "phase", e.Phase, "text", e.Text)
		})
		go drainResults(m)
		logger.Log.Infow("MCP server starting", "version", server.Version)
		return server.ServeStdio(server.New(m, a.chat(), a.conversation(), a.archive))
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, batchCmd, historyCmd, showCmd} {
		c.Flags().BoolVar(&flagJSON, "json", false, "print JSON instead of formatted text")
	}
	for _, c := range []*cobra.Command{runCmd, showCmd} {
		c.Flags().StringVarP(&flagHTMLOut, "out", "o", "", "also write the brief as a standalone HTML file")
	}
	batchCmd.Flags().IntVarP(&flagConcurrency, "concurrency", "c", 0, "sessions researched at once (env LAWGPT_BATCH_CONCURRENCY)")
	historyCmd.Flags().IntVarP(&flagLimit, "limit", "n", 20, "number of runs to list, 0 for all")
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

type chatter interface {
	Chat(ctx context.Context, text string) (string, error)
}

// chatLoop sends first, when given, then every non-blank line of in, printing
// each reply.
func chatLoop(ctx context.Context, c chatter, first string, in io.Reader, out io.Writer) error {
	send := func(text string) error {
		reply, err := c.Chat(ctx, text)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, display.RenderFinal(reply))
		return nil
	}

	if strings.TrimSpace(first) != "" {
		if err := send(first); err != nil {
			return err
		}
	}
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		if err := send(line); err != nil {
			return err
		}
	}
	return sc.Err()
}

// readQuestions returns the non-blank lines of r, skipping # comments.
func readQuestions(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func drainResults(m *supervisor.Manager) {
	for r := range m.Results() {
		logger.Log.Infow("session result", "session", r.SessionID, "status", r.Status, "error", r.Error)
	}
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
