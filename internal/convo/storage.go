package convo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// sessionFileName is the metadata file name within each session directory,
// matching the teacher's session.json convention.
const sessionFileName = "session.json"

// saveSession persists a session to disk with an atomic
// temp-file-then-rename write, grounded on the teacher's SaveSession.
func saveSession(dir string, sess *Session) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	path := filepath.Join(dir, sessionFileName)
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("save session file: %w", err)
	}
	return nil
}

// loadSession loads a session from disk.
func loadSession(dir string) (*Session, error) {
	path := filepath.Join(dir, sessionFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("session.json not found in %s", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("read session.json: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parse session.json: %w", err)
	}
	return &sess, nil
}
