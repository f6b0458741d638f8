package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datar/core"
)

// fakeCapability allocates counted handles and serves scripted history.
type fakeCapability struct {
	createErr  error
	historyErr error
	history    []core.Event
	allocated  int
}

type fakeHandle struct{ id, userID string }

func (h *fakeHandle) ID() string     { return h.id }
func (h *fakeHandle) UserID() string { return h.userID }

func (f *fakeCapability) Name() string { return "fake" }

func (f *fakeCapability) NewContext(_ context.Context, userID string) (core.Handle, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.allocated++
	return &fakeHandle{id: fmt.Sprintf("handle-%d", f.allocated), userID: userID}, nil
}

func (f *fakeCapability) Execute(context.Context, core.Handle, core.Content) (<-chan core.Event, <-chan error, error) {
	return nil, nil, errors.New("not used in store tests")
}

func (f *fakeCapability) History(context.Context, core.Handle) ([]core.Event, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

// testClock is an advanceable clock for deterministic timestamps.
type testClock struct{ now time.Time }

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestStore(fc *fakeCapability, optFns ...func(o *Options)) (*Store, *testClock) {
	clk := newTestClock()
	all := append([]func(o *Options){func(o *Options) { o.Clock = clk.Now }}, optFns...)
	return NewStore(fc, all...), clk
}

func TestStore_GetOrCreateIsIdempotent(t *testing.T) {
	store, _ := newTestStore(&fakeCapability{})
	ctx := context.Background()

	h1, err := store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	h2, err := store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, h1.ID(), h2.ID(), "same session id must yield the same handle")
	assert.Equal(t, 1, store.Len())

	md, ok := store.Metadata("s1")
	require.True(t, ok)
	assert.Equal(t, 0, md.MessageCount)
	assert.Equal(t, md.CreatedAt, md.LastActivityAt)
}

func TestStore_GetOrCreateStampsLastActivity(t *testing.T) {
	store, clk := newTestStore(&fakeCapability{})
	ctx := context.Background()

	_, err := store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	created, _ := store.Metadata("s1")

	clk.Advance(5 * time.Second)
	_, err = store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)

	md, _ := store.Metadata("s1")
	assert.Equal(t, created.CreatedAt, md.CreatedAt, "creation time must not move")
	assert.True(t, md.LastActivityAt.After(created.LastActivityAt))
}

func TestStore_CreationFailureLeavesNoState(t *testing.T) {
	store, _ := newTestStore(&fakeCapability{createErr: errors.New("upstream unavailable")})

	_, err := store.GetOrCreate(context.Background(), "s1")

	var ce *CreationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "s1", ce.SessionID)
	assert.Equal(t, 0, store.Len())
	_, ok := store.Metadata("s1")
	assert.False(t, ok, "no orphan metadata after failed creation")
}

func TestStore_RecordCompletedMessage(t *testing.T) {
	store, clk := newTestStore(&fakeCapability{})
	ctx := context.Background()

	_, err := store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)

	clk.Advance(time.Second)
	require.NoError(t, store.RecordCompletedMessage("s1"))
	require.NoError(t, store.RecordCompletedMessage("s1"))

	md, _ := store.Metadata("s1")
	assert.Equal(t, 2, md.MessageCount)
	assert.True(t, md.LastActivityAt.After(md.CreatedAt))

	err = store.RecordCompletedMessage("nope")
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestStore_DeleteRemovesHandleAndMetadataTogether(t *testing.T) {
	store, clk := newTestStore(&fakeCapability{})
	ctx := context.Background()

	h1, err := store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, store.RecordCompletedMessage("s1"))
	before, _ := store.Metadata("s1")

	assert.True(t, store.Delete("s1"))
	assert.False(t, store.Delete("s1"), "second delete is a no-op")
	assert.Equal(t, 0, store.Len())

	// Recreation starts from scratch: fresh handle, zeroed count, new timestamps.
	clk.Advance(time.Minute)
	h2, err := store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	assert.NotEqual(t, h1.ID(), h2.ID())

	md, _ := store.Metadata("s1")
	assert.Equal(t, 0, md.MessageCount)
	assert.True(t, md.CreatedAt.After(before.CreatedAt))
}

func TestStore_ListOrderedByCreation(t *testing.T) {
	store, clk := newTestStore(&fakeCapability{})
	ctx := context.Background()

	for _, id := range []string{"s1", "s2", "s3"} {
		_, err := store.GetOrCreate(ctx, id)
		require.NoError(t, err)
		clk.Advance(time.Second)
	}

	entries := store.List()
	require.Len(t, entries, 3)
	assert.Equal(t, "s1", entries[0].SessionID)
	assert.Equal(t, "s3", entries[2].SessionID)
}

func TestStore_HistoryDegradesToEmpty(t *testing.T) {
	fc := &fakeCapability{historyErr: errors.New("history backend down")}
	store, _ := newTestStore(fc)
	ctx := context.Background()

	// Unknown session: empty, no error surface.
	assert.Empty(t, store.History(ctx, "missing"))

	_, err := store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, store.History(ctx, "s1"), "capability failure degrades to empty history")
}

func TestStore_HistoryMapsConversationalTurns(t *testing.T) {
	userEv := core.NewUserMessageEvent("hola")
	assistantEv := core.NewMessageEvent("fake", "¡Hola! Soy Gente Pasto.")
	partial := core.NewMessageEvent("fake", "fragment")
	partial.Partial = true
	control := core.NewEvent("fake") // no content

	fc := &fakeCapability{history: []core.Event{userEv, partial, control, assistantEv}}
	store, _ := newTestStore(fc)
	ctx := context.Background()

	_, err := store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)

	messages := store.History(ctx, "s1")
	require.Len(t, messages, 2, "partials and content-free events are filtered")
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "hola", messages[0].Content)
	assert.Equal(t, "assistant", messages[1].Role)
}

func TestStore_EvictsLeastRecentlyActive(t *testing.T) {
	store, clk := newTestStore(&fakeCapability{}, func(o *Options) { o.MaxSessions = 2 })
	ctx := context.Background()

	_, err := store.GetOrCreate(ctx, "old")
	require.NoError(t, err)
	clk.Advance(time.Second)
	_, err = store.GetOrCreate(ctx, "mid")
	require.NoError(t, err)

	// Touch "old" so "mid" becomes the eviction candidate.
	clk.Advance(time.Second)
	_, err = store.GetOrCreate(ctx, "old")
	require.NoError(t, err)

	clk.Advance(time.Second)
	_, err = store.GetOrCreate(ctx, "new")
	require.NoError(t, err)

	assert.Equal(t, 2, store.Len())
	_, ok := store.Metadata("mid")
	assert.False(t, ok, "least recently active session should be evicted")
	_, ok = store.Metadata("old")
	assert.True(t, ok)
}

func TestStore_IdleTTLSweep(t *testing.T) {
	store, clk := newTestStore(&fakeCapability{}, func(o *Options) { o.IdleTTL = time.Minute })
	ctx := context.Background()

	_, err := store.GetOrCreate(ctx, "stale")
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	_, err = store.GetOrCreate(ctx, "fresh")
	require.NoError(t, err)

	_, ok := store.Metadata("stale")
	assert.False(t, ok, "idle session should be swept")
	assert.Equal(t, 1, store.Len())
}
