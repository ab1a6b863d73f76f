package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/libranswer/libranswer/internal/profile"
)

// newProfileCmd manages C10 profiles, grounded on the teacher switch/sessions
// commands' list-then-act subcommand shape.
func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage library profiles",
		Long: `A profile is one independent library: its own PDFs, index, provider
settings, and chat sessions. Exactly one profile is active at a time.

Examples:
  libranswer profile create my-library --display-name "My Library"
  libranswer profile list
  libranswer profile activate my-library
  libranswer profile config my-library --provider openai --model gpt-4o-mini \
      --embedding-model nomic-embed-text --bibliographic-source ~/refs/export.json`,
	}

	cmd.AddCommand(newProfileCreateCmd())
	cmd.AddCommand(newProfileListCmd())
	cmd.AddCommand(newProfileActivateCmd())
	cmd.AddCommand(newProfileDeleteCmd())
	cmd.AddCommand(newProfileConfigCmd())
	return cmd
}

func newProfileCreateCmd() *cobra.Command {
	var displayName, description string
	cmd := &cobra.Command{
		Use:   "create SLUG",
		Short: "Create a new profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newProfileManager()
			if err != nil {
				return err
			}
			slug := args[0]
			if displayName == "" {
				displayName = slug
			}
			if _, err := mgr.Create(slug, displayName, description); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Profile %q created.\n", slug)
			return nil
		},
	}
	cmd.Flags().StringVar(&displayName, "display-name", "", "Human-readable name (default: slug)")
	cmd.Flags().StringVar(&description, "description", "", "Optional description")
	return cmd
}

func newProfileListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := newProfileManager()
			if err != nil {
				return err
			}
			profiles, err := mgr.List()
			if err != nil {
				return err
			}
			if len(profiles) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No profiles found. Create one with: libranswer profile create <slug>")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "SLUG\tNAME\tACTIVE")
			_, _ = fmt.Fprintln(w, "----\t----\t------")
			for _, p := range profiles {
				active := ""
				if p.Active {
					active = "*"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", p.Metadata.Slug, p.Metadata.DisplayName, active)
			}
			return w.Flush()
		},
	}
}

func newProfileActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate SLUG",
		Short: "Make a profile the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newProfileManager()
			if err != nil {
				return err
			}
			if err := mgr.Activate(args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Profile %q is now active.\n", args[0])
			return nil
		},
	}
}

func newProfileDeleteCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete SLUG",
		Short: "Delete a profile and all its data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newProfileManager()
			if err != nil {
				return err
			}
			if err := mgr.Delete(args[0], force); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Profile %q deleted.\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Delete even if this is the active profile")
	return cmd
}

func newProfileConfigCmd() *cobra.Command {
	var providerID, activeModel, embeddingModelID, credentials, bibliographicPath string

	cmd := &cobra.Command{
		Use:   "config SLUG",
		Short: "View or update a profile's settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newProfileManager()
			if err != nil {
				return err
			}
			slug := args[0]
			settings, err := mgr.Settings(slug)
			if err != nil {
				return err
			}

			changed := false
			if providerID != "" {
				settings.ProviderID = providerID
				changed = true
			}
			if activeModel != "" {
				settings.ActiveModel = activeModel
				changed = true
			}
			if embeddingModelID != "" {
				settings.EmbeddingModelID = embeddingModelID
				changed = true
			}
			if credentials != "" {
				settings.Credentials = credentials
				changed = true
			}
			if bibliographicPath != "" {
				settings.BibliographicPath = bibliographicPath
				changed = true
			}

			if changed {
				if err := mgr.SaveSettings(slug, settings); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Profile %q updated.\n", slug)
				return nil
			}

			printSettings(cmd, settings)
			return nil
		},
	}

	cmd.Flags().StringVar(&providerID, "provider", "", "Provider id: local, openai, anthropic, groq, together, perplexity")
	cmd.Flags().StringVar(&activeModel, "model", "", "Chat model name")
	cmd.Flags().StringVar(&embeddingModelID, "embedding-model", "", "Embedding model name (Ollama) or \"static\"")
	cmd.Flags().StringVar(&credentials, "api-key", "", "Provider API key")
	cmd.Flags().StringVar(&bibliographicPath, "bibliographic-source", "", "Path to the reference manager export (JSON)")
	return cmd
}

func printSettings(cmd *cobra.Command, s *profile.Settings) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "provider_id:            %s\n", s.ProviderID)
	_, _ = fmt.Fprintf(out, "active_model:           %s\n", s.ActiveModel)
	_, _ = fmt.Fprintf(out, "embedding_model_id:     %s\n", s.EmbeddingModelID)
	_, _ = fmt.Fprintf(out, "bibliographic_source:   %s\n", s.BibliographicPath)
	hasKey := "no"
	if s.Credentials != "" {
		hasKey = "yes"
	}
	_, _ = fmt.Fprintf(out, "credentials configured: %s\n", hasKey)
}
