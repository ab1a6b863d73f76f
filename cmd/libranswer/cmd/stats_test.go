package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configureTestProfile(t *testing.T, slug string) {
	t.Helper()
	mgr, err := newProfileManager()
	require.NoError(t, err)
	_, err = mgr.Create(slug, slug, "")
	require.NoError(t, err)
	settings, err := mgr.Settings(slug)
	require.NoError(t, err)
	settings.ProviderID = "local"
	settings.ActiveModel = "test-model"
	settings.EmbeddingModelID = "static"
	require.NoError(t, mgr.SaveSettings(slug, settings))
}

func TestRunStats_FreshProfile_PrintsZeroState(t *testing.T) {
	withProfileRoot(t)
	configureTestProfile(t, "library-a")

	cmd := newStatsCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)

	err := runStats(context.Background(), cmd, "library-a")
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Total queries:      0")
	assert.Contains(t, text, "Zero-result rate:   0.0%")
}

func TestRunStats_UnknownProfile_Errors(t *testing.T) {
	withProfileRoot(t)

	cmd := newStatsCmd()
	cmd.SetOut(&bytes.Buffer{})
	err := runStats(context.Background(), cmd, "does-not-exist")
	assert.Error(t, err)
}
