package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// newSessionsCmd manages C7 conversation sessions within the active
// profile, grounded on the teacher sessions command's list/delete shape
// (tabwriter table, relative "time ago" formatting) retargeted from named
// project sessions to message threads.
func newSessionsCmd() *cobra.Command {
	var profileSlug string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage chat sessions in the active profile",
		Long: `List or delete chat sessions.

Examples:
  # List sessions in the active profile
  libranswer sessions

  # Delete a session
  libranswer sessions delete 3fa9c1a2-...`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSessionsList(cmd, profileSlug)
		},
	}

	cmd.PersistentFlags().StringVar(&profileSlug, "profile", "", "Profile slug (default: active profile)")
	cmd.AddCommand(newSessionsDeleteCmd(&profileSlug))
	return cmd
}

func newSessionsDeleteCmd(profileSlug *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete SESSION_ID",
		Short: "Delete a session and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsDelete(cmd, *profileSlug, args[0])
		},
	}
}

func runSessionsList(cmd *cobra.Command, profileSlug string) error {
	mgr, err := newProfileManager()
	if err != nil {
		return err
	}
	meta, err := activeProfileOrErr(mgr, profileSlug)
	if err != nil {
		return err
	}
	store, err := newSessionStore(mgr, meta.Slug)
	if err != nil {
		return err
	}

	sessions, err := store.ListSessions()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "")
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Start one with: libranswer chat")
		return nil
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tMESSAGES\tLAST ACTIVE")
	_, _ = fmt.Fprintln(w, "--\t--------\t-----------")
	for _, s := range sessions {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", s.ID, s.MessageCount, formatTimeAgo(s.UpdatedAt))
	}
	return w.Flush()
}

func runSessionsDelete(cmd *cobra.Command, profileSlug, sessionID string) error {
	mgr, err := newProfileManager()
	if err != nil {
		return err
	}
	meta, err := activeProfileOrErr(mgr, profileSlug)
	if err != nil {
		return err
	}
	store, err := newSessionStore(mgr, meta.Slug)
	if err != nil {
		return err
	}

	if err := store.DeleteSession(sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Session %s deleted.\n", sessionID)
	return nil
}

// formatTimeAgo formats a time as a human-readable "time ago" string.
func formatTimeAgo(t time.Time) string {
	d := time.Since(t)

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case d < 24*time.Hour:
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("Jan 2, 2006")
	}
}
