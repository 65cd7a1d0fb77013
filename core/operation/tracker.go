package operation

import (
	"errors"
	"sync"
	"time"

	"github.com/kmathy/carlink/core/event"
	"github.com/kmathy/carlink/core/logger"
)

// DefaultTimeout bounds how long an operation is tracked when the caller does
// not provide its own timeout. The backend keeps operations alive for up to
// five minutes.
const DefaultTimeout = 300 * time.Second

var (
	// ErrDuplicateOperationID is returned when an operation id is already
	// being tracked.
	ErrDuplicateOperationID = errors.New("operation id already pending")
	// ErrClosed is returned when registering on a closed tracker.
	ErrClosed = errors.New("tracker closed")
)

// ResultStatus is the terminal outcome reported to the awaiting caller.
type ResultStatus string

const (
	ResultSuccess   ResultStatus = "SUCCESS"
	ResultFailure   ResultStatus = "FAILURE"
	ResultTimedOut  ResultStatus = "TIMED_OUT"
	ResultCancelled ResultStatus = "CANCELLED"
)

// Result is delivered exactly once per registered operation.
type Result struct {
	OperationID string
	VIN         string
	Status      ResultStatus
	ErrorCode   string
	Elapsed     time.Duration
}

type pendingOp struct {
	vin      string
	issuedAt time.Time
	deadline time.Time
	lastSeen time.Time
	// result has capacity one and is written exactly once, by Resolve,
	// the timeout sweep or Close.
	result chan Result
}

// Tracker correlates issued commands with the operation events that
// eventually report their outcome on the bus.
type Tracker struct {
	mu      sync.Mutex
	pending map[string]*pendingOp
	closed  bool
	stop    chan struct{}
	log     logger.Logger
}

// NewTracker creates a Tracker and starts its timeout sweep.
func NewTracker(log logger.Logger) *Tracker {
	t := &Tracker{
		pending: make(map[string]*pendingOp),
		stop:    make(chan struct{}),
		log:     log,
	}
	go t.janitor(time.Second)
	return t
}

// Register starts tracking operationID and returns the channel on which its
// single Result will be delivered. A zero or negative timeout falls back to
// DefaultTimeout.
func (t *Tracker) Register(operationID, vin string, timeout time.Duration) (<-chan Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	if _, ok := t.pending[operationID]; ok {
		return nil, ErrDuplicateOperationID
	}
	op := &pendingOp{
		vin:      vin,
		issuedAt: now,
		deadline: now.Add(timeout),
		result:   make(chan Result, 1),
	}
	t.pending[operationID] = op
	t.log.Debugf("tracking operation %s for %s (timeout %s)", operationID, vin, timeout)
	return op.result, nil
}

// Resolve feeds an operation event into the tracker. Terminal statuses
// complete and remove the matching entry; IN_PROGRESS only refreshes the
// last-seen timestamp. Events for unknown ids are ignored: they may belong
// to an already resolved operation or to another client session.
func (t *Tracker) Resolve(operationID string, status event.OperationStatus, errorCode string) {
	t.mu.Lock()
	op, ok := t.pending[operationID]
	if !ok {
		t.mu.Unlock()
		t.log.Debugf("operation event for untracked id %s (%s), ignoring", operationID, status)
		return
	}
	if !status.Terminal() {
		op.lastSeen = time.Now()
		t.mu.Unlock()
		t.log.Debugf("operation %s in progress", operationID)
		return
	}
	delete(t.pending, operationID)
	t.mu.Unlock()

	res := Result{
		OperationID: operationID,
		VIN:         op.vin,
		Status:      resultStatus(status),
		ErrorCode:   errorCode,
		Elapsed:     time.Since(op.issuedAt),
	}
	if status == event.StatusCompletedWarning {
		t.log.Warnf("operation %s completed with warnings", operationID)
	}
	if res.Status == ResultFailure {
		t.log.Warnf("operation %s failed: %s", operationID, errorCode)
	}
	op.result <- res
}

// Pending returns the number of operations still awaiting resolution.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Close resolves every pending operation with a CANCELLED result and stops
// the sweep. Further Register calls fail with ErrClosed.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.stop)
	cancelled := t.pending
	t.pending = make(map[string]*pendingOp)
	t.mu.Unlock()

	for id, op := range cancelled {
		op.result <- Result{
			OperationID: id,
			VIN:         op.vin,
			Status:      ResultCancelled,
			Elapsed:     time.Since(op.issuedAt),
		}
	}
}

func (t *Tracker) janitor(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			t.sweep(now)
		case <-t.stop:
			return
		}
	}
}

// sweep times out every pending operation whose deadline has elapsed. The
// physical operation may still succeed on the vehicle; the client only stops
// waiting.
func (t *Tracker) sweep(now time.Time) {
	t.mu.Lock()
	var expired []struct {
		id string
		op *pendingOp
	}
	for id, op := range t.pending {
		if now.After(op.deadline) {
			expired = append(expired, struct {
				id string
				op *pendingOp
			}{id, op})
			delete(t.pending, id)
		}
	}
	t.mu.Unlock()

	for _, e := range expired {
		t.log.Warnf("operation %s timed out after %s", e.id, now.Sub(e.op.issuedAt))
		e.op.result <- Result{
			OperationID: e.id,
			VIN:         e.op.vin,
			Status:      ResultTimedOut,
			Elapsed:     now.Sub(e.op.issuedAt),
		}
	}
}

func resultStatus(s event.OperationStatus) ResultStatus {
	switch s {
	case event.StatusCompletedSuccess, event.StatusCompletedWarning:
		return ResultSuccess
	default:
		return ResultFailure
	}
}
