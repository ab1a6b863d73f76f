package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ChatInput defines the input schema for the chat tool.
type ChatInput struct {
	Profile   string `json:"profile" jsonschema:"the library profile slug to query"`
	Query     string `json:"query" jsonschema:"the question to ask"`
	SessionID string `json:"session_id,omitempty" jsonschema:"an existing session id to continue, omit to start a new conversation"`
}

// ChatOutput defines the output schema for the chat tool.
type ChatOutput struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	SessionID string     `json:"session_id"`
}

func (s *Server) chatHandler(ctx context.Context, _ *mcp.CallToolRequest, input ChatInput) (
	*mcp.CallToolResult,
	ChatOutput,
	error,
) {
	if input.Query == "" {
		return nil, ChatOutput{}, errInvalidParams("query is required")
	}
	env, err := s.newEnv(ctx, input.Profile)
	if err != nil {
		return nil, ChatOutput{}, mapError(err)
	}
	defer func() { _ = env.Close() }()

	answer, citations, sessionID, err := env.Chat(ctx, input.SessionID, input.Query)
	if err != nil {
		return nil, ChatOutput{}, mapError(err)
	}
	return nil, ChatOutput{Answer: answer, Citations: citations, SessionID: sessionID}, nil
}

// IndexInput defines the input schema for the index tool.
type IndexInput struct {
	Profile string `json:"profile" jsonschema:"the library profile slug to index"`
}

// IndexOutput defines the output schema for the index tool.
type IndexOutput struct {
	Summary string `json:"summary"`
}

func (s *Server) indexHandler(ctx context.Context, _ *mcp.CallToolRequest, input IndexInput) (
	*mcp.CallToolResult,
	IndexOutput,
	error,
) {
	env, err := s.newEnv(ctx, input.Profile)
	if err != nil {
		return nil, IndexOutput{}, mapError(err)
	}
	defer func() { _ = env.Close() }()

	summary, err := env.Index(ctx)
	if err != nil {
		return nil, IndexOutput{}, mapError(err)
	}
	return nil, IndexOutput{Summary: summary}, nil
}

// ProfileListInput defines the input schema for the profile_list tool (no parameters).
type ProfileListInput struct{}

// ProfileInfo describes one profile in a profile_list response.
type ProfileInfo struct {
	Slug        string `json:"slug"`
	DisplayName string `json:"display_name"`
	Active      bool   `json:"active"`
}

// ProfileListOutput defines the output schema for the profile_list tool.
type ProfileListOutput struct {
	Profiles []ProfileInfo `json:"profiles"`
}

func (s *Server) profileListHandler(_ context.Context, _ *mcp.CallToolRequest, _ ProfileListInput) (
	*mcp.CallToolResult,
	ProfileListOutput,
	error,
) {
	profiles, err := s.profileMgr.List()
	if err != nil {
		return nil, ProfileListOutput{}, mapError(err)
	}
	out := ProfileListOutput{Profiles: make([]ProfileInfo, 0, len(profiles))}
	for _, p := range profiles {
		out.Profiles = append(out.Profiles, ProfileInfo{
			Slug:        p.Metadata.Slug,
			DisplayName: p.Metadata.DisplayName,
			Active:      p.Active,
		})
	}
	return nil, out, nil
}

// ProfileCreateInput defines the input schema for the profile_create tool.
type ProfileCreateInput struct {
	Slug        string `json:"slug" jsonschema:"short unique identifier for the new profile"`
	DisplayName string `json:"display_name,omitempty" jsonschema:"human-readable name, defaults to slug"`
	Description string `json:"description,omitempty"`
}

// ProfileCreateOutput defines the output schema for the profile_create tool.
type ProfileCreateOutput struct {
	Slug string `json:"slug"`
}

func (s *Server) profileCreateHandler(_ context.Context, _ *mcp.CallToolRequest, input ProfileCreateInput) (
	*mcp.CallToolResult,
	ProfileCreateOutput,
	error,
) {
	if input.Slug == "" {
		return nil, ProfileCreateOutput{}, errInvalidParams("slug is required")
	}
	displayName := input.DisplayName
	if displayName == "" {
		displayName = input.Slug
	}
	if _, err := s.profileMgr.Create(input.Slug, displayName, input.Description); err != nil {
		return nil, ProfileCreateOutput{}, mapError(err)
	}
	return nil, ProfileCreateOutput{Slug: input.Slug}, nil
}

// ProfileActivateInput defines the input schema for the profile_activate tool.
type ProfileActivateInput struct {
	Slug string `json:"slug" jsonschema:"the profile slug to activate"`
}

// ProfileActivateOutput defines the output schema for the profile_activate tool.
type ProfileActivateOutput struct {
	Slug string `json:"slug"`
}

func (s *Server) profileActivateHandler(_ context.Context, _ *mcp.CallToolRequest, input ProfileActivateInput) (
	*mcp.CallToolResult,
	ProfileActivateOutput,
	error,
) {
	if err := s.profileMgr.Activate(input.Slug); err != nil {
		return nil, ProfileActivateOutput{}, mapError(err)
	}
	return nil, ProfileActivateOutput{Slug: input.Slug}, nil
}

// ProfileDeleteInput defines the input schema for the profile_delete tool.
type ProfileDeleteInput struct {
	Slug  string `json:"slug" jsonschema:"the profile slug to delete"`
	Force bool   `json:"force,omitempty" jsonschema:"delete even if this is the active profile"`
}

// ProfileDeleteOutput defines the output schema for the profile_delete tool (no fields; success is the absence of an error).
type ProfileDeleteOutput struct{}

func (s *Server) profileDeleteHandler(_ context.Context, _ *mcp.CallToolRequest, input ProfileDeleteInput) (
	*mcp.CallToolResult,
	ProfileDeleteOutput,
	error,
) {
	if err := s.profileMgr.Delete(input.Slug, input.Force); err != nil {
		return nil, ProfileDeleteOutput{}, mapError(err)
	}
	return nil, ProfileDeleteOutput{}, nil
}

// SessionListInput defines the input schema for the session_list tool.
type SessionListInput struct {
	Profile string `json:"profile" jsonschema:"the library profile slug whose sessions to list"`
}

// SessionInfo describes one session in a session_list response.
type SessionInfo struct {
	ID           string `json:"id"`
	MessageCount int    `json:"message_count"`
}

// SessionListOutput defines the output schema for the session_list tool.
type SessionListOutput struct {
	Sessions []SessionInfo `json:"sessions"`
}

func (s *Server) sessionListHandler(ctx context.Context, _ *mcp.CallToolRequest, input SessionListInput) (
	*mcp.CallToolResult,
	SessionListOutput,
	error,
) {
	meta, err := activeOrNamed(s.profileMgr, input.Profile)
	if err != nil {
		return nil, SessionListOutput{}, mapError(err)
	}
	store, err := newConvoStore(s.profileMgr, meta)
	if err != nil {
		return nil, SessionListOutput{}, mapError(err)
	}
	sessions, err := store.ListSessions()
	if err != nil {
		return nil, SessionListOutput{}, mapError(err)
	}
	out := SessionListOutput{Sessions: make([]SessionInfo, 0, len(sessions))}
	for _, sess := range sessions {
		out.Sessions = append(out.Sessions, SessionInfo{ID: sess.ID, MessageCount: sess.MessageCount})
	}
	return nil, out, nil
}

// SessionDeleteInput defines the input schema for the session_delete tool.
type SessionDeleteInput struct {
	Profile   string `json:"profile" jsonschema:"the library profile slug the session belongs to"`
	SessionID string `json:"session_id" jsonschema:"the session id to delete"`
}

// SessionDeleteOutput defines the output schema for the session_delete tool (no fields; success is the absence of an error).
type SessionDeleteOutput struct{}

func (s *Server) sessionDeleteHandler(ctx context.Context, _ *mcp.CallToolRequest, input SessionDeleteInput) (
	*mcp.CallToolResult,
	SessionDeleteOutput,
	error,
) {
	meta, err := activeOrNamed(s.profileMgr, input.Profile)
	if err != nil {
		return nil, SessionDeleteOutput{}, mapError(err)
	}
	store, err := newConvoStore(s.profileMgr, meta)
	if err != nil {
		return nil, SessionDeleteOutput{}, mapError(err)
	}
	if err := store.DeleteSession(input.SessionID); err != nil {
		return nil, SessionDeleteOutput{}, mapError(err)
	}
	return nil, SessionDeleteOutput{}, nil
}
