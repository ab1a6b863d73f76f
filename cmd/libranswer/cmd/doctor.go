package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/libranswer/libranswer/internal/preflight"
	"github.com/libranswer/libranswer/internal/profile"
)

// newDoctorCmd checks that the active profile's dependencies are
// reachable. Reuses preflight.CheckResult/CheckStatus for a familiar
// PASS/WARN/FAIL shape, but runs libranswer-specific checks (provider
// auth, embedder and reranker availability, profile root writability)
// instead of preflight.Checker.RunAll, which is scoped to scanning a
// source-code project root.
func newDoctorCmd() *cobra.Command {
	var profileSlug string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the active profile's dependencies are reachable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd.Context(), cmd, profileSlug)
		},
	}
	cmd.Flags().StringVar(&profileSlug, "profile", "", "Profile slug (default: active profile)")
	return cmd
}

func runDoctor(ctx context.Context, cmd *cobra.Command, profileSlug string) error {
	var results []preflight.CheckResult

	results = append(results, checkProfileRoot())

	mgr, err := newProfileManager()
	if err != nil {
		results = append(results, preflight.CheckResult{
			Name: "profile_manager", Status: preflight.StatusFail, Required: true,
			Message: err.Error(),
		})
		printDoctorResults(cmd, results)
		return nil
	}

	meta, err := activeProfileOrErr(mgr, profileSlug)
	if err != nil {
		results = append(results, preflight.CheckResult{
			Name: "active_profile", Status: preflight.StatusFail, Required: true,
			Message: err.Error(),
		})
		printDoctorResults(cmd, results)
		return nil
	}
	results = append(results, preflight.CheckResult{
		Name: "active_profile", Status: preflight.StatusPass, Required: true,
		Message: fmt.Sprintf("using profile %q", meta.Slug),
	})

	env, err := buildEnvironment(ctx, meta.Slug)
	if err != nil {
		results = append(results, preflight.CheckResult{
			Name: "environment", Status: preflight.StatusFail, Required: true,
			Message: err.Error(),
		})
		printDoctorResults(cmd, results)
		return nil
	}
	defer func() { _ = env.Close() }()

	settings, err := mgr.Settings(meta.Slug)
	if err != nil {
		results = append(results, preflight.CheckResult{
			Name: "source_path", Status: preflight.StatusFail, Required: true,
			Message: err.Error(),
		})
	} else {
		results = append(results, checkSourcePath(settings.BibliographicPath))
	}
	results = append(results, checkCollectionsDiskSpace(mgr, meta.Slug))

	results = append(results, checkEmbedder(ctx, env))
	results = append(results, checkReranker(ctx, env))
	results = append(results, checkProvider(ctx, env))

	printDoctorResults(cmd, results)
	return nil
}

// checkSourcePath confirms the profile's bibliographic source export is
// readable before index/serve attempt to open it (SPEC_FULL.md §6's
// preflight requirement for "source path readability").
func checkSourcePath(path string) preflight.CheckResult {
	result := preflight.CheckResult{Name: "source_path", Required: true}
	if path == "" {
		result.Status = preflight.StatusFail
		result.Message = "no bibliographic source configured; run 'libranswer profile config <slug> --bibliographic-source <path>'"
		return result
	}
	f, err := os.Open(path)
	if err != nil {
		result.Status = preflight.StatusFail
		result.Message = fmt.Sprintf("cannot read %s", path)
		result.Details = err.Error()
		return result
	}
	_ = f.Close()
	result.Status = preflight.StatusPass
	result.Message = path
	return result
}

// checkCollectionsDiskSpace confirms the profile's store directory (where
// the BM25/vector collections live) has room before an index run
// (SPEC_FULL.md §6's preflight requirement for "disk space for the
// collections root").
func checkCollectionsDiskSpace(mgr *profile.Manager, slug string) preflight.CheckResult {
	storeDir := mgr.StoreDir(slug)
	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		return preflight.CheckResult{
			Name: "collections_disk_space", Status: preflight.StatusFail, Required: true,
			Message: fmt.Sprintf("cannot create %s", storeDir), Details: err.Error(),
		}
	}
	result := preflight.New().CheckDiskSpace(storeDir)
	result.Name = "collections_disk_space"
	return result
}

func checkProfileRoot() preflight.CheckResult {
	root := profileRoot()
	if err := os.MkdirAll(root, 0o755); err != nil {
		return preflight.CheckResult{
			Name: "profile_root", Status: preflight.StatusFail, Required: true,
			Message: fmt.Sprintf("cannot create %s", root), Details: err.Error(),
		}
	}
	checker := preflight.New()
	result := checker.CheckWritePermissions(root)
	result.Name = "profile_root"
	if result.Status == preflight.StatusPass {
		result.Message = root
	}
	return result
}

func checkEmbedder(ctx context.Context, env *environment) preflight.CheckResult {
	if env.embedder.Available(ctx) {
		return preflight.CheckResult{
			Name: "embedder", Status: preflight.StatusPass, Required: true,
			Message: env.embedder.ModelName(),
		}
	}
	return preflight.CheckResult{
		Name: "embedder", Status: preflight.StatusFail, Required: true,
		Message: fmt.Sprintf("embedder %q is not reachable", env.embedder.ModelName()),
	}
}

func checkReranker(ctx context.Context, env *environment) preflight.CheckResult {
	if env.reranker.Available(ctx) {
		return preflight.CheckResult{
			Name: "reranker", Status: preflight.StatusPass, Required: false,
			Message: "reachable",
		}
	}
	return preflight.CheckResult{
		Name: "reranker", Status: preflight.StatusWarn, Required: false,
		Message: "unreachable, falling back to retrieval order without reranking",
	}
}

func checkProvider(ctx context.Context, env *environment) preflight.CheckResult {
	if err := env.provider.Validate(ctx); err != nil {
		return preflight.CheckResult{
			Name: "provider", Status: preflight.StatusFail, Required: true,
			Message: fmt.Sprintf("provider %q failed validation", env.provider.ID()), Details: err.Error(),
		}
	}
	return preflight.CheckResult{
		Name: "provider", Status: preflight.StatusPass, Required: true,
		Message: fmt.Sprintf("%s (%s)", env.provider.Label(), env.provider.ID()),
	}
}

func printDoctorResults(cmd *cobra.Command, results []preflight.CheckResult) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, "libranswer doctor")
	_, _ = fmt.Fprintln(out, "=================")
	_, _ = fmt.Fprintln(out)

	critical := false
	for _, r := range results {
		_, _ = fmt.Fprintf(out, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if r.Details != "" {
			_, _ = fmt.Fprintf(out, "      %s\n", r.Details)
		}
		if r.IsCritical() {
			critical = true
		}
	}
	_, _ = fmt.Fprintln(out)
	if critical {
		_, _ = fmt.Fprintln(out, "One or more required checks failed.")
	} else {
		_, _ = fmt.Fprintln(out, "All required checks passed.")
	}
}
