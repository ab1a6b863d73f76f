package mcpserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	liberrors "github.com/libranswer/libranswer/internal/errors"
)

func TestChatHandler_RejectsEmptyQuery(t *testing.T) {
	srv, _ := newTestServer(t, stubEnvironmentFactory(nil, nil))

	_, _, err := srv.chatHandler(context.Background(), nil, ChatInput{Profile: "library-a"})
	assert.Error(t, err)
}

func TestChatHandler_ReturnsAnswerAndSessionID(t *testing.T) {
	env := &Environment{
		Chat: func(_ context.Context, sessionID, query string) (string, []Citation, string, error) {
			if sessionID == "" {
				sessionID = "new-session"
			}
			return "answer to " + query, []Citation{{ID: 1, Title: "Some Book"}}, sessionID, nil
		},
		Close: func() error { return nil },
	}
	srv, _ := newTestServer(t, stubEnvironmentFactory(env, nil))

	_, out, err := srv.chatHandler(context.Background(), nil, ChatInput{Profile: "library-a", Query: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "answer to hello", out.Answer)
	assert.Equal(t, "new-session", out.SessionID)
	require.Len(t, out.Citations, 1)
	assert.Equal(t, "Some Book", out.Citations[0].Title)
}

func TestChatHandler_PropagatesProviderError(t *testing.T) {
	env := &Environment{
		Chat: func(context.Context, string, string) (string, []Citation, string, error) {
			return "", nil, "", liberrors.ProviderErr("upstream unavailable", nil)
		},
		Close: func() error { return nil },
	}
	srv, _ := newTestServer(t, stubEnvironmentFactory(env, nil))

	_, _, err := srv.chatHandler(context.Background(), nil, ChatInput{Profile: "library-a", Query: "hello"})
	assert.Error(t, err)
}

func TestIndexHandler_ReturnsSummary(t *testing.T) {
	env := &Environment{
		Index: func(context.Context) (string, error) { return "indexed 3/3 items", nil },
		Close: func() error { return nil },
	}
	srv, _ := newTestServer(t, stubEnvironmentFactory(env, nil))

	_, out, err := srv.indexHandler(context.Background(), nil, IndexInput{Profile: "library-a"})
	require.NoError(t, err)
	assert.Equal(t, "indexed 3/3 items", out.Summary)
}

func TestProfileListHandler_ReturnsActiveFlag(t *testing.T) {
	srv, _ := newTestServer(t, stubEnvironmentFactory(nil, nil))

	_, out, err := srv.profileListHandler(context.Background(), nil, ProfileListInput{})
	require.NoError(t, err)
	require.Len(t, out.Profiles, 1)
	assert.Equal(t, "library-a", out.Profiles[0].Slug)
	assert.True(t, out.Profiles[0].Active)
}

func TestProfileCreateHandler_RejectsEmptySlug(t *testing.T) {
	srv, _ := newTestServer(t, stubEnvironmentFactory(nil, nil))

	_, _, err := srv.profileCreateHandler(context.Background(), nil, ProfileCreateInput{})
	assert.Error(t, err)
}

func TestProfileCreateHandler_DefaultsDisplayNameToSlug(t *testing.T) {
	srv, mgr := newTestServer(t, stubEnvironmentFactory(nil, nil))

	_, out, err := srv.profileCreateHandler(context.Background(), nil, ProfileCreateInput{Slug: "library-b"})
	require.NoError(t, err)
	assert.Equal(t, "library-b", out.Slug)

	profiles, err := mgr.List()
	require.NoError(t, err)
	require.Len(t, profiles, 2)
}

func TestProfileActivateHandler_SwitchesActiveProfile(t *testing.T) {
	srv, mgr := newTestServer(t, stubEnvironmentFactory(nil, nil))
	_, err := mgr.Create("library-b", "Library B", "")
	require.NoError(t, err)

	_, out, err := srv.profileActivateHandler(context.Background(), nil, ProfileActivateInput{Slug: "library-b"})
	require.NoError(t, err)
	assert.Equal(t, "library-b", out.Slug)

	active, err := mgr.Active()
	require.NoError(t, err)
	assert.Equal(t, "library-b", active.Slug)
}

func TestProfileDeleteHandler_RefusesActiveWithoutForce(t *testing.T) {
	srv, _ := newTestServer(t, stubEnvironmentFactory(nil, nil))

	_, _, err := srv.profileDeleteHandler(context.Background(), nil, ProfileDeleteInput{Slug: "library-a"})
	assert.Error(t, err)
}

func TestProfileDeleteHandler_WithForce_Succeeds(t *testing.T) {
	srv, mgr := newTestServer(t, stubEnvironmentFactory(nil, nil))

	_, _, err := srv.profileDeleteHandler(context.Background(), nil, ProfileDeleteInput{Slug: "library-a", Force: true})
	require.NoError(t, err)

	profiles, err := mgr.List()
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestSessionListAndDeleteHandlers(t *testing.T) {
	srv, mgr := newTestServer(t, stubEnvironmentFactory(nil, nil))
	meta, err := mgr.Active()
	require.NoError(t, err)
	store, err := newConvoStore(mgr, meta)
	require.NoError(t, err)
	sess, err := store.CreateSession("system prompt")
	require.NoError(t, err)

	_, listOut, err := srv.sessionListHandler(context.Background(), nil, SessionListInput{Profile: "library-a"})
	require.NoError(t, err)
	require.Len(t, listOut.Sessions, 1)
	assert.Equal(t, sess.ID, listOut.Sessions[0].ID)

	_, _, err = srv.sessionDeleteHandler(context.Background(), nil, SessionDeleteInput{Profile: "library-a", SessionID: sess.ID})
	require.NoError(t, err)

	_, afterOut, err := srv.sessionListHandler(context.Background(), nil, SessionListInput{Profile: "library-a"})
	require.NoError(t, err)
	assert.Empty(t, afterOut.Sessions)
}

func TestSessionDeleteHandler_UnknownSessionErrors(t *testing.T) {
	srv, _ := newTestServer(t, stubEnvironmentFactory(nil, nil))

	_, _, err := srv.sessionDeleteHandler(context.Background(), nil, SessionDeleteInput{Profile: "library-a", SessionID: "does-not-exist"})
	assert.Error(t, err)
}
