// Package convo implements the C7 conversation store: per-profile chat
// sessions with an immutable system message, ordered message history, and
// token-budget-aware trimming for retrieval (spec §4.7). Grounded on the
// teacher's internal/session package (JSON-on-disk records, atomic
// temp-file-then-rename writes, a directory-backed manager), generalized
// from "named project session" to "message-thread session".
package convo

import "time"

// Snippet is a denormalized evidence record attached to an assistant
// message: a chunk's display metadata copied at answer time so the
// citation remains readable even if the source item is later deleted
// (spec §9's "cyclic structure in sessions" note).
type Snippet struct {
	ChunkID    string
	CitationID int // 1-based
	Text       string
	Title      string
	Authors    []string
	Year       int
	Page       int
	PDFPath    string
}

// Message is one turn in a session.
type Message struct {
	ID        string
	Role      string // "system", "user", "assistant"
	Content   string
	CreatedAt time.Time
	Evidence  []Snippet // only set on assistant messages
}

// Session is an ordered list of messages for one conversation, seeded with
// an immutable system message at creation (spec §4.7, testable property 2).
type Session struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  []Message
}

// Info summarizes a session for listing, mirroring the teacher's
// SessionInfo without the project-path/size/validity fields that don't
// apply to a message thread.
type Info struct {
	ID           string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

func (s *Session) ToInfo() Info {
	return Info{ID: s.ID, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt, MessageCount: len(s.Messages)}
}
