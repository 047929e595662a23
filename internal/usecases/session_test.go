package usecases

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionSelectPlan(t *testing.T) {
	session := NewSession(testCatalog(t))

	assert.False(t, session.CanSubmit())

	require.NoError(t, session.SelectPlan(goldenNest))
	session.SetAmount("0.5")

	snapshot := session.Snapshot()
	assert.Equal(t, goldenNest, snapshot.PlanLabel)
	assert.Equal(t, goldenNestTo, snapshot.Recipient)
	assert.Equal(t, StateIdle, snapshot.State)
	assert.Equal(t, ResultIdle, snapshot.Status)
	assert.True(t, snapshot.CanSubmit)

	err := session.SelectPlan("Platinum Nest")
	assert.ErrorIs(t, err, ErrUnknownPlan)

	snapshot = session.Snapshot()
	assert.Empty(t, snapshot.PlanLabel)
	assert.Empty(t, snapshot.Recipient)
	assert.False(t, snapshot.CanSubmit)

	// Clearing the selection is not an error.
	require.NoError(t, session.SelectPlan(""))
	assert.False(t, session.CanSubmit())
}

func TestSessionSubmitNeedsAmount(t *testing.T) {
	session := NewSession(testCatalog(t))
	require.NoError(t, session.SelectPlan(goldenNest))

	session.SetAmount("   ")
	assert.False(t, session.CanSubmit())

	session.SetAmount("1")
	assert.True(t, session.CanSubmit())
}

func TestSessionDropsStaleAttempts(t *testing.T) {
	session := NewSession(testCatalog(t))
	require.NoError(t, session.SelectPlan(goldenNest))
	session.SetAmount("1")

	first, ok := session.begin()
	require.True(t, ok)
	second, ok := session.begin()
	require.True(t, ok)

	assert.False(t, session.succeed(first.attempt))
	assert.Equal(t, StateValidating, session.Snapshot().State)

	assert.True(t, session.fail(second.attempt, "boom"))
	snapshot := session.Snapshot()
	assert.Equal(t, StateFailure, snapshot.State)
	assert.Equal(t, ResultFailed, snapshot.Status)
	assert.Equal(t, "boom", snapshot.ErrorMessage)
	assert.True(t, snapshot.Loading)

	session.busy.Store(true)
	session.finish(first.attempt)
	assert.False(t, session.Busy())
	assert.True(t, session.Snapshot().Loading)

	session.busy.Store(true)
	session.finish(second.attempt)
	assert.False(t, session.Snapshot().Loading)
	assert.True(t, session.Snapshot().CanSubmit)
}

func TestSessionFinishPublishesSubmittableSnapshot(t *testing.T) {
	session := NewSession(testCatalog(t))
	require.NoError(t, session.SelectPlan(goldenNest))
	session.SetAmount("1")

	updates, unsubscribe := session.Subscribe(8)
	defer unsubscribe()
	<-updates

	require.True(t, session.busy.CompareAndSwap(false, true))
	in, ok := session.begin()
	require.True(t, ok)
	assert.False(t, (<-updates).CanSubmit)

	session.succeed(in.attempt)
	assert.False(t, (<-updates).CanSubmit)

	session.finish(in.attempt)
	last := <-updates
	assert.False(t, last.Loading)
	assert.True(t, last.CanSubmit)
	assert.Equal(t, StateSuccess, last.State)
}

func TestSessionBeginResetsPreviousResult(t *testing.T) {
	session := NewSession(testCatalog(t))
	require.NoError(t, session.SelectPlan(goldenNest))
	session.SetAmount("1")

	in, _ := session.begin()
	session.recordSignature(in.attempt, testSignature(7))
	session.fail(in.attempt, "Transaction failed")

	next, ok := session.begin()
	require.True(t, ok)
	assert.Equal(t, in.attempt+1, next.attempt)

	snapshot := session.Snapshot()
	assert.Equal(t, StateValidating, snapshot.State)
	assert.Equal(t, ResultIdle, snapshot.Status)
	assert.Empty(t, snapshot.ErrorMessage)
	assert.Empty(t, snapshot.LastTransactionID)
}

func TestSessionDiscard(t *testing.T) {
	session := NewSession(testCatalog(t))
	require.NoError(t, session.SelectPlan(goldenNest))
	session.SetAmount("1")

	updates, unsubscribe := session.Subscribe(4)
	defer unsubscribe()

	initial := <-updates
	assert.Equal(t, session.ID(), initial.ID)

	in, ok := session.begin()
	require.True(t, ok)
	<-updates

	session.Discard()
	session.Discard()

	assert.True(t, session.Discarded())
	assert.False(t, session.CanSubmit())
	assert.Error(t, session.ctx.Err())

	// Results arriving after the discard are dropped.
	assert.False(t, session.succeed(in.attempt))

	_, open := <-updates
	assert.False(t, open)

	_, ok = session.begin()
	assert.False(t, ok)

	late, _ := session.Subscribe(1)
	_, open = <-late
	assert.False(t, open)
}

func TestSessionSubscribeReceivesChanges(t *testing.T) {
	session := NewSession(testCatalog(t))

	updates, unsubscribe := session.Subscribe(0)
	<-updates

	session.SetAmount("2")
	snapshot := <-updates
	assert.Equal(t, "2", snapshot.Amount)

	unsubscribe()
	_, open := <-updates
	assert.False(t, open)

	// Changes after unsubscribing must not block.
	session.SetAmount("3")
}

func TestSessionStore(t *testing.T) {
	store := NewSessionStore(testCatalog(t))

	session := store.Create()
	got, err := store.Get(session.ID())
	require.NoError(t, err)
	assert.Same(t, session, got)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Discard(session.ID()))
	assert.True(t, session.Discarded())
	assert.Equal(t, 0, store.Len())

	_, err = store.Get(session.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, store.Discard(session.ID()), ErrSessionNotFound)
}

func TestSessionStoreRemoveIdle(t *testing.T) {
	store := NewSessionStore(testCatalog(t))

	idle := store.Create()
	busy := store.Create()
	busy.busy.Store(true)

	time.Sleep(20 * time.Millisecond)
	fresh := store.Create()

	removed := store.RemoveIdle(10 * time.Millisecond)
	assert.Equal(t, 1, removed)
	assert.True(t, idle.Discarded())
	assert.False(t, busy.Discarded())
	assert.False(t, fresh.Discarded())
	assert.Equal(t, 2, store.Len())
}
