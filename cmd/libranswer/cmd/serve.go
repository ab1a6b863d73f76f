package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/libranswer/libranswer/internal/bibsource"
	liberrors "github.com/libranswer/libranswer/internal/errors"
	"github.com/libranswer/libranswer/internal/httpserver"
	"github.com/libranswer/libranswer/internal/index"
	"github.com/libranswer/libranswer/internal/mcpserver"
	"github.com/libranswer/libranswer/internal/store"
)

// newServeCmd exposes chat/index/profile/session over MCP (default) or
// HTTP+JSON (--http), grounded on the teacher serve command's
// stdio-loop shape (cmd/amanmcp/cmd's Serve-until-signal pattern),
// retargeted to mcpserver.Server and internal/httpserver.Server.
func newServeCmd() *cobra.Command {
	var (
		httpMode bool
		addr     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run libranswer as an MCP or HTTP server",
		Long: `Expose chat, index, and profile/session management as MCP tools
over stdio, for use from MCP-speaking clients such as Claude Desktop or
Claude Code. Pass --http to instead serve the same operations as a
JSON API over HTTP.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if httpMode {
				return runServeHTTP(cmd.Context(), addr)
			}
			return runServe(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&httpMode, "http", false, "Serve over HTTP+JSON instead of MCP/stdio")
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "Listen address when --http is set")
	return cmd
}

func runServe(ctx context.Context) error {
	mgr, err := newProfileManager()
	if err != nil {
		return err
	}

	srv, err := mcpserver.New(mgr, mcpEnvironmentFactory)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

func runServeHTTP(ctx context.Context, addr string) error {
	mgr, err := newProfileManager()
	if err != nil {
		return err
	}

	srv := httpserver.New(mgr, httpEnvironmentFactory)
	httpSrv := &http.Server{Addr: addr, Handler: srv}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return httpSrv.Close()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return liberrors.Wrap("http-server-failed", err)
		}
		return nil
	}
}

// mcpEnvironmentFactory adapts buildEnvironment to mcpserver's narrower
// Environment shape, keeping mcpserver ignorant of cmd/libranswer's full
// C1-C10 wiring.
func mcpEnvironmentFactory(ctx context.Context, slug string) (*mcpserver.Environment, error) {
	env, err := buildEnvironment(ctx, slug)
	if err != nil {
		return nil, err
	}

	return &mcpserver.Environment{
		Manager: env.mgr,
		Close:   env.Close,
		Chat: func(ctx context.Context, sessionID, query string) (string, []mcpserver.Citation, string, error) {
			if sessionID == "" {
				sess, err := env.sessions.CreateSession(defaultSystemPrompt)
				if err != nil {
					return "", nil, "", fmt.Errorf("failed to start session: %w", err)
				}
				sessionID = sess.ID
			}
			result, err := env.orchestrator.Chat(ctx, sessionID, query)
			if err != nil {
				return "", nil, "", err
			}
			citations := make([]mcpserver.Citation, 0, len(result.Citations))
			for _, c := range result.Citations {
				citations = append(citations, mcpserver.Citation{
					ID: c.ID, Title: c.Title, Authors: c.Authors, Year: c.Year, Page: c.Page,
				})
			}
			return result.Answer, citations, sessionID, nil
		},
		Index: func(ctx context.Context) (string, error) {
			if env.settings.BibliographicPath == "" {
				return "", liberrors.ValidationErr(fmt.Sprintf("profile %q has no bibliographic_source configured", env.profile.Slug), nil)
			}
			bibItems, err := bibsource.Collect(ctx, bibsource.NewJSONSource(env.settings.BibliographicPath))
			if err != nil {
				return "", liberrors.ExtractionError("collect bibliographic source", err)
			}
			items := make([]*store.Item, 0, len(bibItems))
			for _, b := range bibItems {
				items = append(items, &store.Item{ID: b.ID, Title: b.Title, Authors: b.Authors, Year: b.Year, PDFPath: b.PDFPath})
			}
			runner := index.NewRunner(env.library, env.embedder, newChunker(), index.RunnerConfig{}, index.NoOpProgressSink{})
			report, err := runner.Index(ctx, items)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("indexed %d/%d items (%d chunks, %d skipped, %d errored) in %s",
				report.Succeeded, report.Total, report.Chunks, report.Skipped, report.Errored, report.Duration), nil
		},
	}, nil
}

// httpEnvironmentFactory adapts buildEnvironment to httpserver's narrower
// Environment shape, the HTTP-transport counterpart of
// mcpEnvironmentFactory above. The chat/index bodies are deliberately
// mirrored rather than shared: the two factories adapt the same
// buildEnvironment to two structurally similar but distinct target
// types (mcpserver.Citation vs httpserver.Citation), matching how the
// teacher keeps each transport's adapter self-contained rather than
// introducing a shared generic layer for two call sites.
func httpEnvironmentFactory(ctx context.Context, slug string) (*httpserver.Environment, error) {
	env, err := buildEnvironment(ctx, slug)
	if err != nil {
		return nil, err
	}

	return &httpserver.Environment{
		Close: env.Close,
		Chat: func(ctx context.Context, sessionID, query string) (string, []httpserver.Citation, string, error) {
			if sessionID == "" {
				sess, err := env.sessions.CreateSession(defaultSystemPrompt)
				if err != nil {
					return "", nil, "", fmt.Errorf("failed to start session: %w", err)
				}
				sessionID = sess.ID
			}
			result, err := env.orchestrator.Chat(ctx, sessionID, query)
			if err != nil {
				return "", nil, "", err
			}
			citations := make([]httpserver.Citation, 0, len(result.Citations))
			for _, c := range result.Citations {
				citations = append(citations, httpserver.Citation{
					ID: c.ID, Title: c.Title, Authors: c.Authors, Year: c.Year, Page: c.Page,
				})
			}
			return result.Answer, citations, sessionID, nil
		},
		Index: func(ctx context.Context) (string, error) {
			if env.settings.BibliographicPath == "" {
				return "", liberrors.ValidationErr(fmt.Sprintf("profile %q has no bibliographic_source configured", env.profile.Slug), nil)
			}
			bibItems, err := bibsource.Collect(ctx, bibsource.NewJSONSource(env.settings.BibliographicPath))
			if err != nil {
				return "", liberrors.ExtractionError("collect bibliographic source", err)
			}
			items := make([]*store.Item, 0, len(bibItems))
			for _, b := range bibItems {
				items = append(items, &store.Item{ID: b.ID, Title: b.Title, Authors: b.Authors, Year: b.Year, PDFPath: b.PDFPath})
			}
			runner := index.NewRunner(env.library, env.embedder, newChunker(), index.RunnerConfig{}, index.NoOpProgressSink{})
			report, err := runner.Index(ctx, items)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("indexed %d/%d items (%d chunks, %d skipped, %d errored) in %s",
				report.Succeeded, report.Total, report.Chunks, report.Skipped, report.Errored, report.Duration), nil
		},
	}, nil
}
