package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPEnvironmentFactory_IndexWithoutBibliographicSource_ReturnsValidationError(t *testing.T) {
	withProfileRoot(t)
	configureTestProfile(t, "library-a")

	env, err := httpEnvironmentFactory(context.Background(), "library-a")
	require.NoError(t, err)
	defer func() { _ = env.Close() }()

	_, err = env.Index(context.Background())
	assert.ErrorContains(t, err, "no bibliographic_source configured")
}

func TestHTTPEnvironmentFactory_Chat_CreatesSessionWhenEmpty(t *testing.T) {
	withProfileRoot(t)
	configureTestProfile(t, "library-a")

	env, err := httpEnvironmentFactory(context.Background(), "library-a")
	require.NoError(t, err)
	defer func() { _ = env.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// The local provider has nothing listening behind it in this test
	// environment, so the call fails downstream of session creation --
	// this still exercises the session-bootstrap branch of the adapter.
	_, _, sessionID, err := env.Chat(ctx, "", "what is diversity filtering?")
	assert.Error(t, err)
	assert.Empty(t, sessionID)
}

func TestMCPEnvironmentFactory_IndexWithoutBibliographicSource_ReturnsValidationError(t *testing.T) {
	withProfileRoot(t)
	configureTestProfile(t, "library-a")

	env, err := mcpEnvironmentFactory(context.Background(), "library-a")
	require.NoError(t, err)
	defer func() { _ = env.Close() }()

	_, err = env.Index(context.Background())
	assert.ErrorContains(t, err, "no bibliographic_source configured")
}

func TestRunServeHTTP_ShutsDownOnContextCancel(t *testing.T) {
	withProfileRoot(t)
	configureTestProfile(t, "library-a")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServeHTTP(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("runServeHTTP did not shut down after context cancellation")
	}
}
