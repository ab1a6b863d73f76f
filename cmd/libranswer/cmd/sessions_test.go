package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimeAgo_Buckets(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "just now", formatTimeAgo(now.Add(-10*time.Second)))
	assert.Equal(t, "1 minute ago", formatTimeAgo(now.Add(-90*time.Second)))
	assert.Equal(t, "5 minutes ago", formatTimeAgo(now.Add(-5*time.Minute)))
	assert.Equal(t, "1 hour ago", formatTimeAgo(now.Add(-90*time.Minute)))
	assert.Equal(t, "3 hours ago", formatTimeAgo(now.Add(-3*time.Hour)))
	assert.Equal(t, "1 day ago", formatTimeAgo(now.Add(-30*time.Hour)))
	assert.Equal(t, "3 days ago", formatTimeAgo(now.Add(-72*time.Hour)))
	assert.Equal(t, now.Add(-10*24*time.Hour).Format("Jan 2, 2006"), formatTimeAgo(now.Add(-10*24*time.Hour)))
}

func TestSessionsList_EmptyProfile_PrintsHint(t *testing.T) {
	withProfileRoot(t)
	mgr, err := newProfileManager()
	require.NoError(t, err)
	_, err = mgr.Create("library-a", "A", "")
	require.NoError(t, err)

	sessionsCmd := newSessionsCmd()
	var out bytes.Buffer
	sessionsCmd.SetArgs([]string{})
	sessionsCmd.SetOut(&out)
	require.NoError(t, sessionsCmd.Execute())
	assert.Contains(t, out.String(), "No sessions found")
}

func TestSessionsList_ShowsCreatedSession(t *testing.T) {
	withProfileRoot(t)
	mgr, err := newProfileManager()
	require.NoError(t, err)
	_, err = mgr.Create("library-a", "A", "")
	require.NoError(t, err)

	store, err := newSessionStore(mgr, "library-a")
	require.NoError(t, err)
	sess, err := store.CreateSession("system prompt")
	require.NoError(t, err)

	sessionsCmd := newSessionsCmd()
	var out bytes.Buffer
	sessionsCmd.SetArgs([]string{})
	sessionsCmd.SetOut(&out)
	require.NoError(t, sessionsCmd.Execute())
	assert.Contains(t, out.String(), sess.ID)
}

func TestSessionsDelete_RemovesSession(t *testing.T) {
	withProfileRoot(t)
	mgr, err := newProfileManager()
	require.NoError(t, err)
	_, err = mgr.Create("library-a", "A", "")
	require.NoError(t, err)

	store, err := newSessionStore(mgr, "library-a")
	require.NoError(t, err)
	sess, err := store.CreateSession("system prompt")
	require.NoError(t, err)

	sessionsCmd := newSessionsCmd()
	var out bytes.Buffer
	sessionsCmd.SetArgs([]string{"delete", sess.ID})
	sessionsCmd.SetOut(&out)
	require.NoError(t, sessionsCmd.Execute())
	assert.Contains(t, out.String(), "deleted")

	remaining, err := store.ListSessions()
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestSessionsDelete_UnknownSessionErrors(t *testing.T) {
	withProfileRoot(t)
	mgr, err := newProfileManager()
	require.NoError(t, err)
	_, err = mgr.Create("library-a", "A", "")
	require.NoError(t, err)

	sessionsCmd := newSessionsCmd()
	sessionsCmd.SetArgs([]string{"delete", "does-not-exist"})
	sessionsCmd.SetOut(&bytes.Buffer{})
	assert.Error(t, sessionsCmd.Execute())
}
