// Package profile implements the C10 profile manager: a directory of named
// profiles, each owning its own settings, session store, and collection
// root, with exactly one profile active at a time (spec §4.10, §6).
//
// Grounded on teacher internal/session/manager.go (a directory-backed
// manager enumerating named on-disk records) merged with
// internal/config/config.go's YAML-on-disk settings shape and its
// applyEnvOverrides pattern — the teacher keeps these as two separate
// concepts ("session" = a named project workspace, "config" = one global
// YAML file with AMANMCP_* env overrides); this package fuses them into
// the spec's single "Profile" concept, since spec §4.10 describes exactly
// what the teacher's Manager does, but applied per-named-unit rather than
// globally. Settings still live at settings.yaml per SPEC_FULL.md §3.3,
// with LIBRANSWER_* environment variables overriding the on-disk value at
// load time, same precedence order the teacher documents for SearchConfig
// (file → env, profile settings standing in for the teacher's
// user-config/profile-config pair since there is no separate global tier
// here).
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	liberrors "github.com/libranswer/libranswer/internal/errors"
)

// slugPattern mirrors the teacher's ValidateSessionName character class,
// restricted further to lowercase-with-dashes since a profile slug also
// becomes a directory name and a display identifier.
var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

const (
	metadataFileName  = "profile.json"
	settingsFileName  = "settings.yaml"
	activeProfileFile = "active-profile"
	sessionsSubdir    = "sessions"
	storeSubdir       = "store"

	// maxSettingsBackups bounds how many timestamped settings.yaml backups
	// SaveSettings retains per profile before pruning the oldest.
	maxSettingsBackups   = 3
	settingsBackupSuffix = ".bak"
)

// Metadata is the profile.json record: identity, independent of settings.
type Metadata struct {
	Slug        string    `json:"slug"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Settings is the settings.yaml record: the configuration options named in
// spec §6 plus the generation knobs from §4.6.
type Settings struct {
	ProviderID        string `yaml:"provider_id" json:"provider_id"`
	ActiveModel       string `yaml:"active_model" json:"active_model"`
	EmbeddingModelID  string `yaml:"embedding_model_id" json:"embedding_model_id"`
	Credentials       string `yaml:"credentials,omitempty" json:"credentials,omitempty"`
	BibliographicPath string `yaml:"bibliographic_source_path" json:"bibliographic_source_path"`

	Temperature     *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxOutputTokens *int     `yaml:"max_output_tokens,omitempty" json:"max_output_tokens,omitempty"`

	// HistoryTokenBudget caps the conversation history sent to the
	// provider on each turn (spec §4.7's list_messages view). Unset means
	// the orchestrator's own default applies.
	HistoryTokenBudget *int `yaml:"history_token_budget,omitempty" json:"history_token_budget,omitempty"`
}

// Info summarizes a profile for listing.
type Info struct {
	Metadata Metadata
	Active   bool
}

// Manager owns the profiles directory. All structural operations (create,
// delete, activate) are serialized by mu so that "exactly one active
// profile" (spec §4.10) never observes a torn intermediate state.
type Manager struct {
	root string
	mu   sync.Mutex
}

// NewManager creates a Manager rooted at root (spec §6's
// "<profile-root>"'s parent directory), creating it if absent.
func NewManager(root string) (*Manager, error) {
	if root == "" {
		return nil, liberrors.ValidationErr("profile root directory is required", nil)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, liberrors.StoreError("create profiles root", err)
	}
	return &Manager{root: root}, nil
}

// ValidateSlug checks a profile slug against the allowed character set,
// grounded on the teacher's ValidateSessionName.
func ValidateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return liberrors.ValidationErr(
			fmt.Sprintf("profile slug %q must be lowercase alphanumeric with dashes, max 64 chars", slug), nil)
	}
	return nil
}

func (m *Manager) profileDir(slug string) string {
	return filepath.Join(m.root, slug)
}

// Create makes a new profile directory with default settings. The first
// profile ever created becomes active automatically; later calls require
// an explicit Activate.
func (m *Manager) Create(slug, displayName, description string) (*Metadata, error) {
	if err := ValidateSlug(slug); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	dir := m.profileDir(slug)
	if _, err := os.Stat(dir); err == nil {
		return nil, liberrors.ValidationErr(fmt.Sprintf("profile %q already exists", slug), nil)
	}

	for _, sub := range []string{sessionsSubdir, storeSubdir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, liberrors.StoreError("create profile directory", err)
		}
	}

	meta := &Metadata{Slug: slug, DisplayName: displayName, Description: description, CreatedAt: time.Now()}
	if err := writeJSON(filepath.Join(dir, metadataFileName), meta); err != nil {
		return nil, err
	}
	if err := writeYAML(filepath.Join(dir, settingsFileName), &Settings{}); err != nil {
		return nil, err
	}

	existing, err := m.listLocked()
	if err != nil {
		return nil, err
	}
	if len(existing) == 1 {
		if err := m.activateLocked(slug); err != nil {
			return nil, err
		}
	}
	return meta, nil
}

// List returns every profile, most-recently-created order not guaranteed
// (directory order), with Active set for whichever one is currently
// activated.
func (m *Manager) List() ([]Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listLocked()
}

func (m *Manager) listLocked() ([]Info, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, liberrors.StoreError("list profiles", err)
	}
	active, _ := m.activeSlugLocked()

	var infos []Info
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var meta Metadata
		if err := readJSON(filepath.Join(m.root, e.Name(), metadataFileName), &meta); err != nil {
			continue
		}
		infos = append(infos, Info{Metadata: meta, Active: meta.Slug == active})
	}
	return infos, nil
}

// Active returns the currently active profile's metadata, or a
// ValidationError if none is active.
func (m *Manager) Active() (*Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slug, err := m.activeSlugLocked()
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := readJSON(filepath.Join(m.profileDir(slug), metadataFileName), &meta); err != nil {
		return nil, liberrors.StoreError("read active profile metadata", err)
	}
	return &meta, nil
}

func (m *Manager) activeSlugLocked() (string, error) {
	data, err := os.ReadFile(filepath.Join(m.root, activeProfileFile))
	if os.IsNotExist(err) {
		return "", liberrors.ValidationErr("no active profile", nil)
	}
	if err != nil {
		return "", liberrors.StoreError("read active profile marker", err)
	}
	return string(data), nil
}

// Activate makes slug the sole active profile (spec §4.10: "exactly one
// active at a time"). Rebinding C4/C7/C1 to the new profile's directories
// is the caller's responsibility (internal/orchestrator, cmd/libranswer) —
// Activate itself only updates the durable marker so it survives restarts.
func (m *Manager) Activate(slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activateLocked(slug)
}

func (m *Manager) activateLocked(slug string) error {
	if _, err := os.Stat(m.profileDir(slug)); os.IsNotExist(err) {
		return liberrors.ValidationErr(fmt.Sprintf("unknown profile %q", slug), nil)
	}
	path := filepath.Join(m.root, activeProfileFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(slug), 0o644); err != nil {
		return liberrors.StoreError("write active profile marker", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return liberrors.StoreError("commit active profile marker", err)
	}
	return nil
}

// Delete removes a profile's directory. Deleting the active profile is
// refused unless force is true (spec §4.10).
func (m *Manager) Delete(slug string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	active, err := m.activeSlugLocked()
	isActive := err == nil && active == slug
	if isActive && !force {
		return liberrors.ValidationErr(fmt.Sprintf("profile %q is active; use force to delete it anyway", slug), nil)
	}

	dir := m.profileDir(slug)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return liberrors.ValidationErr(fmt.Sprintf("unknown profile %q", slug), nil)
	}
	if err := os.RemoveAll(dir); err != nil {
		return liberrors.StoreError("delete profile directory", err)
	}
	if isActive {
		_ = os.Remove(filepath.Join(m.root, activeProfileFile))
	}
	return nil
}

// Settings loads slug's settings.yaml, then applies LIBRANSWER_* environment
// overrides (spec §3.3's file-then-env precedence).
func (m *Manager) Settings(slug string) (*Settings, error) {
	var s Settings
	if err := readYAML(filepath.Join(m.profileDir(slug), settingsFileName), &s); err != nil {
		return nil, liberrors.StoreError("read profile settings", err)
	}
	applyEnvOverrides(&s)
	return &s, nil
}

// SaveSettings persists slug's settings.yaml, taking a timestamped backup of
// the previous version first (grounded on teacher internal/config/backup.go's
// BackupUserConfig/cleanupOldBackups, retargeted from the single global
// config file to one profile's settings.yaml).
func (m *Manager) SaveSettings(slug string, s *Settings) error {
	dir := m.profileDir(slug)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return liberrors.ValidationErr(fmt.Sprintf("unknown profile %q", slug), nil)
	}
	path := filepath.Join(dir, settingsFileName)
	if _, err := backupSettings(path); err != nil {
		return err
	}
	return writeYAML(path, s)
}

// applyEnvOverrides mirrors teacher internal/config's applyEnvOverrides
// (AMANMCP_* reading into a *Config field by field), renamed to this
// module's LIBRANSWER_* prefix and narrowed to the Settings fields spec §6
// actually names.
func applyEnvOverrides(s *Settings) {
	if v := os.Getenv("LIBRANSWER_PROVIDER_ID"); v != "" {
		s.ProviderID = v
	}
	if v := os.Getenv("LIBRANSWER_ACTIVE_MODEL"); v != "" {
		s.ActiveModel = v
	}
	if v := os.Getenv("LIBRANSWER_EMBEDDING_MODEL_ID"); v != "" {
		s.EmbeddingModelID = v
	}
	if v := os.Getenv("LIBRANSWER_CREDENTIALS"); v != "" {
		s.Credentials = v
	}
	if v := os.Getenv("LIBRANSWER_BIBLIOGRAPHIC_SOURCE_PATH"); v != "" {
		s.BibliographicPath = v
	}
	if v := os.Getenv("LIBRANSWER_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			s.Temperature = &f
		}
	}
	if v := os.Getenv("LIBRANSWER_MAX_OUTPUT_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.MaxOutputTokens = &n
		}
	}
	if v := os.Getenv("LIBRANSWER_HISTORY_TOKEN_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.HistoryTokenBudget = &n
		}
	}
}

// backupSettings copies path to a timestamped sibling before it's
// overwritten, pruning old backups beyond maxSettingsBackups. Returns "" with
// no error if path does not exist yet (nothing to back up on first save).
func backupSettings(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", liberrors.StoreError("read settings for backup", err)
	}

	backupPath := fmt.Sprintf("%s%s.%s", path, settingsBackupSuffix, time.Now().Format("20060102-150405"))
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", liberrors.StoreError("write settings backup", err)
	}
	pruneSettingsBackups(path)
	return backupPath, nil
}

// pruneSettingsBackups keeps only the maxSettingsBackups newest backups for
// path, removing older ones on a best-effort basis.
func pruneSettingsBackups(path string) {
	dir := filepath.Dir(path)
	prefix := filepath.Base(path) + settingsBackupSuffix + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	var backups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			backups = append(backups, filepath.Join(dir, e.Name()))
		}
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i] > backups[j] })
	for _, old := range backups[min(len(backups), maxSettingsBackups):] {
		_ = os.Remove(old)
	}
}

// SessionsDir returns the directory a convo.Store should be rooted at for
// slug (spec §6's sessions.{sessions}, realized as a directory of
// per-session records, matching internal/convo's own layout).
func (m *Manager) SessionsDir(slug string) string {
	return filepath.Join(m.profileDir(slug), sessionsSubdir)
}

// StoreDir returns the collections root a store.Library's dense/sparse
// backends should be rooted at for slug (spec §6's store/lib_<model-id>
// and bm25_<model-id> entries live under here, named via
// store.CollectionName).
func (m *Manager) StoreDir(slug string) string {
	return filepath.Join(m.profileDir(slug), storeSubdir)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return liberrors.StoreError("marshal profile record", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return liberrors.StoreError("write profile record", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return liberrors.StoreError("commit profile record", err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// writeYAML and readYAML give settings.yaml the same atomic
// temp-file-then-rename durability as writeJSON/readJSON give profile.json,
// using gopkg.in/yaml.v3 per spec §3.3 rather than encoding/json, since
// settings.yaml is meant to be hand-editable the way the teacher's global
// config.yaml is.
func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return liberrors.StoreError("marshal profile settings", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return liberrors.StoreError("write profile settings", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return liberrors.StoreError("commit profile settings", err)
	}
	return nil
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, v)
}
