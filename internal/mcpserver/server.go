// Package mcpserver exposes the chat engine over the Model Context
// Protocol, so MCP-speaking clients (Claude Desktop, Claude Code) can
// drive it alongside the CLI.
//
// Grounded on the teacher's internal/mcp/server.go (mcp.Server wrapping,
// AddTool registration pattern, error-code mapping), with the tool set
// replaced: the teacher exposes code-search tools (search, search_code,
// search_docs, index_status) over one project; this server exposes
// chat, index, and profile/session management over one profile store.
package mcpserver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	liberrors "github.com/libranswer/libranswer/internal/errors"
	"github.com/libranswer/libranswer/internal/profile"
	"github.com/libranswer/libranswer/pkg/version"
)

// EnvironmentFactory builds (or rebuilds) the full chat environment for
// slug. The server calls it lazily per tool invocation rather than
// holding one environment open for the process lifetime, since §4.10
// profile-switching means the active profile can change between calls.
type EnvironmentFactory func(ctx context.Context, slug string) (*Environment, error)

// Environment is the subset of cmd/libranswer's environment a tool
// handler needs: orchestrator for chat, runner for index, manager for
// profile/session administration. Kept as an interface-free struct
// (not importing cmd/libranswer, which would be a layering inversion);
// cmd/libranswer's own environment type satisfies this by construction.
type Environment struct {
	Chat    ChatFunc
	Index   IndexFunc
	Manager *profile.Manager
	Close   func() error
}

// ChatFunc runs one chat turn. sessionID may be empty, meaning "start a
// new session".
type ChatFunc func(ctx context.Context, sessionID, query string) (answer string, citations []Citation, newSessionID string, err error)

// IndexFunc runs a full index pass over the profile's bibliographic
// source and returns a short human-readable summary.
type IndexFunc func(ctx context.Context) (summary string, err error)

// Citation mirrors orchestrator.Citation without importing it directly,
// keeping mcpserver's dependency surface limited to what its tool
// schemas need to marshal.
type Citation struct {
	ID      int      `json:"id"`
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
	Year    int      `json:"year"`
	Page    int      `json:"page,omitempty"`
}

// Server wraps an mcp.Server and the factory used to resolve a profile's
// environment on each tool call.
type Server struct {
	mcp        *mcp.Server
	newEnv     EnvironmentFactory
	profileMgr *profile.Manager
	logger     *slog.Logger
}

// New constructs a Server and registers its tool set. mgr resolves and
// lists profiles directly (profile_list/create/activate/delete don't
// need a full chat Environment); newEnv builds one on demand for
// chat/index calls.
func New(mgr *profile.Manager, newEnv EnvironmentFactory) (*Server, error) {
	if mgr == nil {
		return nil, errors.New("profile manager is required")
	}
	if newEnv == nil {
		return nil, errors.New("environment factory is required")
	}

	s := &Server{
		newEnv:     newEnv,
		profileMgr: mgr,
		logger:     slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "libranswer",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying SDK server, for callers that need to
// run it over a transport (stdio, etc.).
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Serve runs the server over stdio until ctx is cancelled, grounded on
// the teacher's Serve method. Only stdio is wired: the teacher's sse
// branch was a documented SDK limitation, not a feature this module
// would otherwise support, so it was not carried forward.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting mcp server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp server stopped")
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "chat",
		Description: "Ask a question against a library profile's indexed PDFs. Returns an evidence-backed answer with numbered citations. Omit session_id to start a new conversation; pass one back to continue it.",
	}, s.chatHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index",
		Description: "Index a library profile's bibliographic source: extract, chunk, embed, and upsert every PDF into the dense and sparse indexes. Re-running re-indexes every item.",
	}, s.indexHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "profile_list",
		Description: "List all library profiles and which one is active.",
	}, s.profileListHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "profile_create",
		Description: "Create a new library profile.",
	}, s.profileCreateHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "profile_activate",
		Description: "Make a library profile the active one.",
	}, s.profileActivateHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "profile_delete",
		Description: "Delete a library profile and all its data.",
	}, s.profileDeleteHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "session_list",
		Description: "List chat sessions for a library profile.",
	}, s.sessionListHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "session_delete",
		Description: "Delete a chat session and its messages.",
	}, s.sessionDeleteHandler)

	s.logger.Info("mcp tools registered", slog.Int("count", 8))
}

// mapError flattens a liberrors.LibError down to its message for the MCP
// client, in place of the teacher's sentinel-error-per-subsystem MapError
// table; it does not branch on error category. LibError.Error() already
// renders code+message+cause (see internal/errors/format.go), so there is
// nothing left to translate. Other errors are returned unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var libErr *liberrors.LibError
	if errors.As(err, &libErr) {
		return errors.New(libErr.Error())
	}
	return err
}
