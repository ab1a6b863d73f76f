package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	liberrors "github.com/libranswer/libranswer/internal/errors"
)

// chatRequest/chatResponse mirror mcpserver's ChatInput/ChatOutput JSON
// shape, so a client can use either transport against the same fields.
type chatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Query     string `json:"query"`
}

type chatResponse struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	SessionID string     `json:"session_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, liberrors.ValidationErr("malformed request body", err))
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, liberrors.ValidationErr("query must not be empty", nil))
		return
	}

	env, err := s.newEnv(r.Context(), slug)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	defer func() { _ = env.Close() }()

	answer, citations, sessionID, err := env.Chat(r.Context(), req.SessionID, req.Query)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Answer: answer, Citations: citations, SessionID: sessionID})
}

type indexResponse struct {
	Summary string `json:"summary"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	env, err := s.newEnv(r.Context(), slug)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	defer func() { _ = env.Close() }()

	summary, err := env.Index(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, indexResponse{Summary: summary})
}

type profileSummary struct {
	Slug   string `json:"slug"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.profileMgr.List()
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	out := make([]profileSummary, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, profileSummary{Slug: p.Metadata.Slug, Name: p.Metadata.DisplayName, Active: p.Active})
	}
	writeJSON(w, http.StatusOK, out)
}

type sessionSummary struct {
	ID           string `json:"id"`
	MessageCount int    `json:"message_count"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	meta, err := activeOrNamed(s.profileMgr, slug)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	store, err := newConvoStore(s.profileMgr, meta)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	sessions, err := store.ListSessions()
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	out := make([]sessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionSummary{ID: sess.ID, MessageCount: sess.MessageCount})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	sessionID := chi.URLParam(r, "sessionID")

	meta, err := activeOrNamed(s.profileMgr, slug)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	store, err := newConvoStore(s.profileMgr, meta)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	if err := store.DeleteSession(sessionID); err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeJSON and writeError mirror fbrzx-airplane-chat's server.go response
// helpers: set Content-Type, write the status, and encode the body, logging
// (not failing) an encode error since headers are already committed.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("http_encode_failed", slog.String("error", err.Error()))
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: liberrors.GetCode(err)})
}

// statusForError maps this module's error taxonomy (spec §7) to an HTTP
// status by error category. (internal/mcpserver's mapError has no such
// mapping; it only flattens the error to its message.)
func statusForError(err error) int {
	switch liberrors.GetCategory(err) {
	case liberrors.CategoryValidation:
		return http.StatusBadRequest
	case liberrors.CategoryExtraction:
		return http.StatusUnprocessableEntity
	case liberrors.CategoryProvider:
		return http.StatusBadGateway
	case liberrors.CategoryStore, liberrors.CategoryConfigMismatch:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
