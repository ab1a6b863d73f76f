package convo

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RoleSystem, RoleUser, RoleAssistant name the three message roles spec
// §4.7/§8 reason about.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Store persists sessions for one profile under a directory, one
// subdirectory per session (teacher's Manager shape, generalized from
// named project sessions to generated-id message threads). All operations
// on a given session are serialized by mu: spec §5 requires message
// persistence within a session to be strictly sequential and never
// reordered.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a Store rooted at dir, creating it if absent.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("session storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session storage: %w", err)
	}
	return &Store{dir: dir}, nil
}

// CreateSession seeds a new session with the immutable system message
// (spec §4.7, testable property 2: messages[0].role == system and is
// byte-identical to what was injected here).
func (s *Store) CreateSession(systemPrompt string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Messages: []Message{
			{ID: uuid.NewString(), Role: RoleSystem, Content: systemPrompt, CreatedAt: now},
		},
	}
	if err := saveSession(s.sessionDir(sess.ID), sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// AppendMessage appends msg to the session's message list and persists it.
// The caller is responsible for ordering calls (user append, then the LLM
// call, then assistant append) — AppendMessage itself never reorders or
// merges.
func (s *Store) AppendMessage(sessionID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := loadSession(s.sessionDir(sessionID))
	if err != nil {
		return err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	sess.Messages = append(sess.Messages, msg)
	sess.UpdatedAt = msg.CreatedAt
	return saveSession(s.sessionDir(sessionID), sess)
}

// GetSession returns the full, untrimmed message history.
func (s *Store) GetSession(sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadSession(s.sessionDir(sessionID))
}

// ListMessages returns a trimmed view of the session sized to fit
// tokenBudget, always preserving the system message and the most recent
// user/assistant pairs in insertion order (spec §4.7). A tokenBudget <= 0
// means "no trimming", returning the full history.
func (s *Store) ListMessages(sessionID string, tokenBudget int) ([]Message, error) {
	sess, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if tokenBudget <= 0 {
		return sess.Messages, nil
	}
	return TrimToBudget(sess.Messages, tokenBudget), nil
}

// ListSessions returns every session under this store.
func (s *Store) ListSessions() ([]Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session storage: %w", err)
	}

	var infos []Info
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sess, err := loadSession(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue // skip unreadable/corrupt sessions, matching the teacher's List()
		}
		infos = append(infos, sess.ToInfo())
	}
	return infos, nil
}

// DeleteSession removes a session and all its data.
func (s *Store) DeleteSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.sessionDir(sessionID)
	if _, err := os.Stat(filepath.Join(dir, sessionFileName)); os.IsNotExist(err) {
		return fmt.Errorf("session %q not found", sessionID)
	}
	return os.RemoveAll(dir)
}

func (s *Store) sessionDir(sessionID string) string {
	return filepath.Join(s.dir, sessionID)
}
