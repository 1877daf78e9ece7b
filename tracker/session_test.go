package tracker

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreResolve(t *testing.T) {
	store := NewSessionStore(time.Minute)

	first := store.Resolve("")
	require.NotEmpty(t, first.ID)
	_, err := uuid.Parse(first.ID)
	require.NoError(t, err)

	again := store.Resolve(first.ID)
	assert.Same(t, first, again)
	assert.Equal(t, 1, store.Len())

	malformed := store.Resolve("not-a-session")
	assert.NotEqual(t, "not-a-session", malformed.ID)

	known := uuid.NewString()
	adopted := store.Resolve(known)
	assert.Equal(t, known, adopted.ID)
	assert.Equal(t, 3, store.Len())
}

func TestSessionFirstTouchIsCachedOnce(t *testing.T) {
	sess := &Session{ID: "s"}
	calls := 0

	got := sess.FirstTouchSource(func() string { calls++; return "google" })
	assert.Equal(t, "google", got)

	got = sess.FirstTouchSource(func() string { calls++; return "direct" })
	assert.Equal(t, "google", got)
	assert.Equal(t, 1, calls)
}

func TestSessionStoreSweep(t *testing.T) {
	clock := newFakeClock()
	store := NewSessionStore(10 * time.Minute)
	store.now = clock.Now

	stale := store.Resolve("")
	clock.Advance(6 * time.Minute)
	fresh := store.Resolve("")
	clock.Advance(6 * time.Minute)

	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())

	// The stale id is adopted again, with a clean state.
	back := store.Resolve(stale.ID)
	assert.NotSame(t, stale, back)
	assert.Same(t, fresh, store.Resolve(fresh.ID))
}

func TestRestoreFirstTouch(t *testing.T) {
	sess := &Session{ID: "s"}

	sess.RestoreFirstTouch("  ")
	assert.Empty(t, sess.FirstTouch())

	sess.RestoreFirstTouch("bad\nsource")
	assert.Empty(t, sess.FirstTouch())

	sess.RestoreFirstTouch(strings.Repeat("x", maxSourceLen+1))
	assert.Empty(t, sess.FirstTouch())

	sess.RestoreFirstTouch("instagram")
	assert.Equal(t, "instagram", sess.FirstTouch())

	sess.RestoreFirstTouch("google")
	assert.Equal(t, "instagram", sess.FirstTouch(), "a cached source is never replaced")
	assert.Equal(t, "instagram", sess.FirstTouchSource(func() string { return "direct" }))
}
