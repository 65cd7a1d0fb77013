package operation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmathy/carlink/core/event"
	"github.com/kmathy/carlink/infra/logger"
)

func newTestTracker() *Tracker {
	return NewTracker(logger.NopLogger{})
}

func TestRegisterResolveSuccess(t *testing.T) {
	tr := newTestTracker()
	defer tr.Close()

	ch, err := tr.Register("op-1", "VIN123", 5*time.Second)
	require.NoError(t, err)

	tr.Resolve("op-1", event.StatusCompletedSuccess, "")
	select {
	case res := <-ch:
		assert.Equal(t, ResultSuccess, res.Status)
		assert.Equal(t, "op-1", res.OperationID)
		assert.Equal(t, "VIN123", res.VIN)
		assert.Empty(t, res.ErrorCode)
	case <-time.After(time.Second):
		t.Fatal("result not delivered")
	}
	assert.Equal(t, 0, tr.Pending())
}

func TestInProgressDoesNotResolve(t *testing.T) {
	tr := newTestTracker()
	defer tr.Close()

	ch, err := tr.Register("op-1", "VIN123", 5*time.Second)
	require.NoError(t, err)

	tr.Resolve("op-1", event.StatusInProgress, "")
	select {
	case res := <-ch:
		t.Fatalf("unexpected resolution: %+v", res)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 1, tr.Pending())

	tr.Resolve("op-1", event.StatusCompletedSuccess, "")
	res := <-ch
	assert.Equal(t, ResultSuccess, res.Status)
}

func TestResolveFailureCarriesErrorCode(t *testing.T) {
	tr := newTestTracker()
	defer tr.Close()

	ch, err := tr.Register("op-1", "VIN123", 5*time.Second)
	require.NoError(t, err)

	tr.Resolve("op-1", event.StatusError, "vehicle.offline")
	res := <-ch
	assert.Equal(t, ResultFailure, res.Status)
	assert.Equal(t, "vehicle.offline", res.ErrorCode)
}

func TestCompletedWarningResolvesSuccess(t *testing.T) {
	tr := newTestTracker()
	defer tr.Close()

	ch, err := tr.Register("op-1", "VIN123", 5*time.Second)
	require.NoError(t, err)

	tr.Resolve("op-1", event.StatusCompletedWarning, "")
	res := <-ch
	assert.Equal(t, ResultSuccess, res.Status)
}

func TestDuplicateOperationID(t *testing.T) {
	tr := newTestTracker()
	defer tr.Close()

	_, err := tr.Register("op-1", "VIN123", 5*time.Second)
	require.NoError(t, err)
	_, err = tr.Register("op-1", "VIN123", 5*time.Second)
	assert.ErrorIs(t, err, ErrDuplicateOperationID)
}

func TestResolveUnknownIDIsNoOp(t *testing.T) {
	tr := newTestTracker()
	defer tr.Close()

	// Must not panic or block.
	tr.Resolve("never-registered", event.StatusCompletedSuccess, "")
	assert.Equal(t, 0, tr.Pending())
}

func TestDuplicateTerminalEventIsNoOp(t *testing.T) {
	tr := newTestTracker()
	defer tr.Close()

	ch, err := tr.Register("op-1", "VIN123", 5*time.Second)
	require.NoError(t, err)

	tr.Resolve("op-1", event.StatusCompletedSuccess, "")
	tr.Resolve("op-1", event.StatusCompletedFailure, "late")
	// A late IN_PROGRESS for a resolved id is ignored as well.
	tr.Resolve("op-1", event.StatusInProgress, "")

	res := <-ch
	assert.Equal(t, ResultSuccess, res.Status)
	select {
	case res := <-ch:
		t.Fatalf("second resolution delivered: %+v", res)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSweepTimesOutExpiredOperations(t *testing.T) {
	tr := newTestTracker()
	defer tr.Close()

	ch, err := tr.Register("op-1", "VIN123", 30*time.Millisecond)
	require.NoError(t, err)
	keep, err := tr.Register("op-2", "VIN123", time.Minute)
	require.NoError(t, err)

	tr.sweep(time.Now().Add(time.Second))

	res := <-ch
	assert.Equal(t, ResultTimedOut, res.Status)
	assert.Equal(t, 1, tr.Pending())
	select {
	case res := <-keep:
		t.Fatalf("unexpired operation resolved: %+v", res)
	default:
	}
}

func TestJanitorTimesOutWithoutManualSweep(t *testing.T) {
	tr := &Tracker{
		pending: make(map[string]*pendingOp),
		stop:    make(chan struct{}),
		log:     logger.NopLogger{},
	}
	go tr.janitor(10 * time.Millisecond)
	defer tr.Close()

	ch, err := tr.Register("op-1", "VIN123", 20*time.Millisecond)
	require.NoError(t, err)
	select {
	case res := <-ch:
		assert.Equal(t, ResultTimedOut, res.Status)
	case <-time.After(time.Second):
		t.Fatal("janitor did not time the operation out")
	}
}

func TestCloseCancelsPending(t *testing.T) {
	tr := newTestTracker()

	ch1, err := tr.Register("op-1", "VIN123", time.Minute)
	require.NoError(t, err)
	ch2, err := tr.Register("op-2", "VIN456", time.Minute)
	require.NoError(t, err)

	tr.Close()

	assert.Equal(t, ResultCancelled, (<-ch1).Status)
	assert.Equal(t, ResultCancelled, (<-ch2).Status)

	_, err = tr.Register("op-3", "VIN123", time.Minute)
	assert.ErrorIs(t, err, ErrClosed)

	// Idempotent.
	tr.Close()
}
