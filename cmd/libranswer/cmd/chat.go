package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/libranswer/libranswer/internal/logging"
	"github.com/libranswer/libranswer/internal/orchestrator"
	"github.com/libranswer/libranswer/internal/tui"
	"github.com/libranswer/libranswer/internal/ui"
)

// defaultSystemPrompt seeds every new session (spec §4.7's immutable
// messages[0]).
const defaultSystemPrompt = `You are a research assistant answering questions strictly from the
user's personal PDF library. Cite every claim with the numbered
bracket citations supplied in context. If the retrieved evidence does
not support an answer, say so instead of guessing.`

// chatOptions holds CLI flags for the chat command, grounded on the
// teacher search command's options-struct shape.
type chatOptions struct {
	profile string
	session string
	tui     bool
}

func newChatCmd() *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat [query]",
		Short: "Ask a question against the active profile's library",
		Long: `Ask a question against the active profile's indexed PDFs.

With a query argument, answers once and exits. Without one, starts an
interactive REPL that keeps the same session across turns.

Examples:
  libranswer chat "what does Smith 2019 say about transfer learning?"
  libranswer chat --session 3fa9c1a2-...
  libranswer chat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runChat(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().StringVar(&opts.profile, "profile", "", "Profile slug (default: active profile)")
	cmd.Flags().StringVar(&opts.session, "session", "", "Resume an existing session id (default: start a new one)")
	cmd.Flags().BoolVar(&opts.tui, "tui", false, "Use the interactive bubbletea chat view instead of the line REPL")
	return cmd
}

func runChat(ctx context.Context, cmd *cobra.Command, query string, opts chatOptions) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if _, cleanup, err := logging.Setup(logCfg); err == nil {
		defer cleanup()
	}

	env, err := buildEnvironment(ctx, opts.profile)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	sessionID := opts.session
	if sessionID == "" {
		sess, err := env.sessions.CreateSession(defaultSystemPrompt)
		if err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}
		sessionID = sess.ID
	}

	styles := ui.DefaultStyles()
	out := cmd.OutOrStdout()

	if query != "" {
		slog.Info("chat_turn_started", slog.String("profile", env.profile.Slug), slog.String("session", sessionID))
		result, err := env.orchestrator.Chat(ctx, sessionID, query)
		if err != nil {
			return err
		}
		printChatResult(out, styles, result)
		return nil
	}

	if opts.tui {
		return tui.Run(ctx, env.orchestrator.Chat, sessionID)
	}

	_, _ = fmt.Fprintf(out, "%s  (session %s, ctrl-d to exit)\n\n", styles.Dim.Render("libranswer chat"), sessionID)
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		_, _ = fmt.Fprint(out, styles.Active.Render("> "))
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		slog.Info("chat_turn_started", slog.String("profile", env.profile.Slug), slog.String("session", sessionID))
		result, err := env.orchestrator.Chat(ctx, sessionID, line)
		if err != nil {
			_, _ = fmt.Fprintln(out, styles.Error.Render(err.Error()))
			continue
		}
		printChatResult(out, styles, result)
		_, _ = fmt.Fprintln(out)
	}
}

// printChatResult renders an answer and its numbered citations, grounded
// on the teacher output package's text-mode result formatting but
// retargeted from file:line search hits to bibliographic citations.
func printChatResult(out io.Writer, styles ui.Styles, result *orchestrator.Result) {
	_, _ = fmt.Fprintln(out, result.Answer)
	if len(result.Citations) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, styles.Dim.Render("Sources:"))
	for _, c := range result.Citations {
		authors := strings.Join(c.Authors, ", ")
		loc := ""
		if c.Page > 0 {
			loc = fmt.Sprintf(", p.%d", c.Page)
		}
		_, _ = fmt.Fprintln(out, styles.Dim.Render(fmt.Sprintf("  [%d] %s. %s (%d)%s", c.ID, authors, c.Title, c.Year, loc)))
	}
}
