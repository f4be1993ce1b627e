package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medassist-ai/core/state"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(context.Background(), "sqlite://file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndGetSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateSession(ctx, "", "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := store.GetSession(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Nil(t, got.State)
}

func TestGetSessionUnknownIDReturnsNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetSession(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAppendMessageAndListInInsertionOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "", "user-1")
	require.NoError(t, err)

	_, err = store.AppendMessage(ctx, sess.ID, state.RoleUser, state.MessageTypeText, "what's the dosage for ibuprofen?")
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, sess.ID, state.RoleAssistant, state.MessageTypeText, "200-400mg every 4-6 hours")
	require.NoError(t, err)

	messages, err := store.ListMessages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, state.RoleUser, messages[0].Role)
	assert.Equal(t, state.RoleAssistant, messages[1].Role)
	assert.Contains(t, messages[1].Content, "200-400mg")
}

func TestAppendMessageIDMatchesListedID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "", "user-1")
	require.NoError(t, err)

	appended, err := store.AppendMessage(ctx, sess.ID, state.RoleUser, state.MessageTypeText, "what's the dosage for ibuprofen?")
	require.NoError(t, err)
	require.NotEmpty(t, appended.ID)

	messages, err := store.ListMessages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, appended.ID, messages[0].ID)
}

func TestAppendMessageRejectsInvalidRole(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "", "user-1")
	require.NoError(t, err)

	_, err = store.AppendMessage(ctx, sess.ID, state.Role("bogus"), state.MessageTypeText, "x")
	require.Error(t, err)
}

func TestUpdateStatePersistsSnapshot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "", "user-1")
	require.NoError(t, err)

	snapshot := []byte(`{"current_node":"supervisor"}`)
	require.NoError(t, store.UpdateState(ctx, sess.ID, snapshot))

	got, err := store.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, snapshot, got.State)
}

func TestUpdateStateUnknownSessionReturnsNotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.UpdateState(context.Background(), "ghost", []byte("{}"))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDeleteSessionCascadesMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "", "user-1")
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, sess.ID, state.RoleUser, state.MessageTypeText, "hello")
	require.NoError(t, err)

	require.NoError(t, store.DeleteSession(ctx, sess.ID))

	_, err = store.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	messages, err := store.ListMessages(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestFormatForClientNormalizesShape(t *testing.T) {
	messages := []state.Message{
		{ID: "m1", Role: state.RoleUser, Type: state.MessageTypeText, Content: "hi"},
	}
	out := FormatForClient(messages)
	require.Len(t, out, 1)
	assert.Equal(t, "user", out[0].Role)
	assert.Equal(t, "hi", out[0].Content)
}
