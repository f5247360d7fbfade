package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citymarket/gateward/pkg/auth"
)

func newTestStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewSessionStore(client, "session"), mr
}

func testSession(token string) *auth.Session {
	return &auth.Session{
		Token:     token,
		UserID:    "u1",
		IsActive:  true,
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
		CreatedAt: time.Now().UTC(),
	}
}

func TestSessionRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testSession("tok-1")))

	found, err := store.FindByToken(ctx, "tok-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "u1", found.UserID)
	assert.True(t, found.IsActive)
}

func TestSessionMissIsNilNil(t *testing.T) {
	store, _ := newTestStore(t)

	found, err := store.FindByToken(context.Background(), "no-such-token")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestDeactivateKeepsRecordAndTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testSession("tok-1")))
	ttlBefore := mr.TTL("session:tok-1")
	require.Greater(t, ttlBefore, time.Duration(0))

	require.NoError(t, store.Deactivate(ctx, "tok-1"))

	found, err := store.FindByToken(ctx, "tok-1")
	require.NoError(t, err)
	require.NotNil(t, found, "deactivation must not delete the session")
	assert.False(t, found.IsActive)
	assert.Greater(t, mr.TTL("session:tok-1"), time.Duration(0), "deactivation must keep the TTL")
}

func TestDeactivateIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// Missing session is a no-op.
	require.NoError(t, store.Deactivate(ctx, "ghost"))

	require.NoError(t, store.Create(ctx, testSession("tok-1")))
	require.NoError(t, store.Deactivate(ctx, "tok-1"))
	require.NoError(t, store.Deactivate(ctx, "tok-1"))

	found, err := store.FindByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, found.IsActive)
}

func TestSessionExpiresFromRedisAfterGrace(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	session := testSession("tok-1")
	session.ExpiresAt = time.Now().Add(time.Minute).UTC()
	require.NoError(t, store.Create(ctx, session))

	mr.FastForward(time.Minute + expiryGrace + time.Second)

	found, err := store.FindByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestCorruptSessionIsDropped(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("session:tok-1", "{not json"))

	_, err := store.FindByToken(ctx, "tok-1")
	assert.Error(t, err)
	assert.False(t, mr.Exists("session:tok-1"), "corrupt record must be deleted")
}
