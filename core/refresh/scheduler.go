package refresh

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/kmathy/carlink/core/logger"
	"github.com/kmathy/carlink/core/model"
)

// DefaultWindow is the debounce window applied when none is configured.
const DefaultWindow = 10 * time.Second

// Key identifies one debounced refresh stream.
type Key struct {
	VIN    string
	Domain model.Domain
}

// Fetcher retrieves fresh data for one vehicle domain. Implemented by the
// REST client; retry policy belongs to that layer.
type Fetcher interface {
	Fetch(ctx context.Context, vin string, domain model.Domain) (json.RawMessage, error)
}

// Outcome reports one finished retrieval, successful or not.
type Outcome struct {
	Key     Key
	Data    json.RawMessage
	Err     error
	Elapsed time.Duration
}

type state struct {
	lastTriggered time.Time
	inFlight      bool
	trailing      bool
	timer         *time.Timer
}

// Scheduler coalesces refresh requests per (vin, domain) key.
//
// The first request on an idle key starts a retrieval immediately. Requests
// arriving while a retrieval is in flight, or inside the debounce window,
// collapse into at most one trailing retrieval scheduled one window after
// the previous start. The fetch collaborator is therefore called at most
// once per window per key.
type Scheduler struct {
	mu     sync.Mutex
	states map[Key]*state
	window time.Duration

	fetcher Fetcher
	onDone  func(Outcome)
	log     logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// NewScheduler creates a Scheduler. onDone is invoked once per finished
// retrieval, from the retrieval's goroutine. A zero window falls back to
// DefaultWindow.
func NewScheduler(fetcher Fetcher, window time.Duration, onDone func(Outcome), log logger.Logger) *Scheduler {
	if window <= 0 {
		window = DefaultWindow
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		states:  make(map[Key]*state),
		window:  window,
		fetcher: fetcher,
		onDone:  onDone,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Request asks for fresh data for key. It never blocks; completion is
// observed through the onDone callback.
func (s *Scheduler) Request(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	st, ok := s.states[key]
	if !ok {
		st = &state{}
		s.states[key] = st
	}
	if st.inFlight {
		st.trailing = true
		return
	}
	if !st.lastTriggered.IsZero() {
		if wait := s.window - time.Since(st.lastTriggered); wait > 0 {
			s.scheduleTrailing(st, key, wait)
			return
		}
	}
	s.start(st, key)
}

// InFlight reports whether a retrieval is currently running for key.
func (s *Scheduler) InFlight(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[key]
	return ok && st.inFlight
}

// Close stops accepting requests, cancels pending trailing calls and waits
// for in-flight retrievals to drain.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, st := range s.states {
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
		st.trailing = false
	}
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// start launches a retrieval. Callers must hold s.mu.
func (s *Scheduler) start(st *state, key Key) {
	st.inFlight = true
	st.lastTriggered = time.Now()
	st.timer = nil
	s.wg.Add(1)
	go s.run(key)
}

// scheduleTrailing arms at most one timer per key. Callers must hold s.mu.
func (s *Scheduler) scheduleTrailing(st *state, key Key, wait time.Duration) {
	if st.timer != nil {
		return
	}
	st.timer = time.AfterFunc(wait, func() { s.fireTrailing(key) })
}

func (s *Scheduler) fireTrailing(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[key]
	if !ok || s.closed {
		return
	}
	st.timer = nil
	if st.inFlight {
		// A retrieval started in the meantime covers this window.
		st.trailing = true
		return
	}
	s.start(st, key)
}

func (s *Scheduler) run(key Key) {
	defer s.wg.Done()
	started := time.Now()
	data, err := s.fetcher.Fetch(s.ctx, key.VIN, key.Domain)
	out := Outcome{Key: key, Data: data, Err: err, Elapsed: time.Since(started)}
	if err != nil {
		s.log.Warnf("refresh %s/%s failed: %v", key.VIN, key.Domain, err)
	}
	if s.onDone != nil {
		s.onDone(out)
	}
	s.finish(key)
}

// finish clears the in-flight flag and promotes a queued trailing call.
func (s *Scheduler) finish(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[key]
	if !ok {
		return
	}
	st.inFlight = false
	if s.closed || !st.trailing {
		return
	}
	st.trailing = false
	if wait := s.window - time.Since(st.lastTriggered); wait > 0 {
		s.scheduleTrailing(st, key, wait)
		return
	}
	s.start(st, key)
}
