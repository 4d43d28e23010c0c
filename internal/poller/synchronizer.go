// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package poller

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/mia-platform/devboard/internal/logger"
)

const (
	loggerName = "devboard:poller"

	dropReasonInFlight = "in_flight"
	dropReasonDebounce = "debounce"
	dropReasonStopped  = "stopped"
)

// FetchFunc returns the whole remote collection; every call replaces the previous data.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

type subscriber[T any] struct {
	id uint64
	fn func(State[T])
}

// Synchronizer periodically fetches a remote collection and publishes its State.
// Subscribers are invoked synchronously after every transition and must not call Start
// or Stop from inside the callback. State, Subscribe and RefreshNow are safe to call there.
type Synchronizer[T any] struct {
	name  string
	fetch FetchFunc[T]
	options

	// notifyLock serializes transitions and their notifications, it is always taken before lock
	notifyLock sync.Mutex
	lock       sync.Mutex

	state       State[T]
	seq         uint64
	running     bool
	inFlight    bool
	completed   bool
	lastManual  time.Time
	fetchCtx    context.Context //nolint:containedctx
	cancelLoop  context.CancelFunc
	loopDone    chan struct{}
	log         logger.Logger
	subscribers []subscriber[T]
	nextSubID   uint64
}

// New returns an idle Synchronizer for the named source.
func New[T any](name string, fetch FetchFunc[T], opts ...Option) *Synchronizer[T] {
	o := options{
		clock:    clock.RealClock{},
		debounce: DefaultDebounce,
		recorder: noopRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Synchronizer[T]{
		name:    name,
		fetch:   fetch,
		options: o,
		state:   State[T]{Phase: PhaseIdle},
		log:     logger.FromContext(context.Background()),
	}
}

// Name returns the source name.
func (s *Synchronizer[T]) Name() string {
	return s.name
}

// Start fetches immediately and then every interval until Stop is called or ctx is done.
// The first fetch is claimed before Start returns, so it always precedes any tick.
// Calling Start on a running synchronizer does nothing.
func (s *Synchronizer[T]) Start(ctx context.Context, interval time.Duration) error {
	if s.fetch == nil {
		return &ConfigError{Field: "fetch", Message: "must be set"}
	}

	if interval <= 0 {
		return &ConfigError{Field: "interval", Message: fmt.Sprintf("must be greater than zero, got %s", interval)}
	}

	s.lock.Lock()
	if s.running {
		s.lock.Unlock()
		s.log.Debug("synchronizer already running")
		return nil
	}

	log := logger.FromContext(ctx).WithName(loggerName).With("source", s.name)
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.running = true
	s.inFlight = false
	s.completed = false
	s.lastManual = time.Time{}
	s.state = State[T]{Phase: PhaseIdle}
	s.fetchCtx = ctx
	s.cancelLoop = cancel
	s.loopDone = done
	s.log = log

	ticker := s.clock.NewTicker(interval)
	seq, phase := s.claimLocked()
	s.lock.Unlock()

	log.Debug("synchronizer started", "interval", interval.String())
	go s.run(ctx, seq, phase)
	go s.loop(loopCtx, ticker, done)
	return nil
}

// RefreshNow requests an out of band fetch. It returns false when the request is dropped
// because a fetch is already in flight, the debounce window is still open or the
// synchronizer is not running.
func (s *Synchronizer[T]) RefreshNow() bool {
	return s.trigger(true)
}

// Stop cancels the ticker. A fetch still in flight completes but its result is discarded
// and no subscriber is notified once Stop returns.
func (s *Synchronizer[T]) Stop() {
	s.notifyLock.Lock()
	s.lock.Lock()
	if !s.running {
		s.lock.Unlock()
		s.notifyLock.Unlock()
		return
	}

	s.running = false
	s.inFlight = false
	s.seq++ // orphan the fetch in flight, if any
	cancel := s.cancelLoop
	done := s.loopDone
	log := s.log
	s.lock.Unlock()
	s.notifyLock.Unlock()

	cancel()
	<-done
	log.Debug("synchronizer stopped")
}

// Running reports whether the synchronizer has been started and not stopped.
func (s *Synchronizer[T]) Running() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.running
}

// State returns a copy of the current state.
func (s *Synchronizer[T]) State() State[T] {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state.clone()
}

// Subscribe registers fn for every future transition and returns the function removing it.
func (s *Synchronizer[T]) Subscribe(fn func(State[T])) func() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.subscribers = append(s.subscribers, subscriber[T]{id: id, fn: fn})

	return func() {
		s.lock.Lock()
		defer s.lock.Unlock()
		s.subscribers = slices.DeleteFunc(s.subscribers, func(sub subscriber[T]) bool {
			return sub.id == id
		})
	}
}

func (s *Synchronizer[T]) loop(ctx context.Context, ticker clock.Ticker, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.trigger(false)
		}
	}
}

// trigger claims the fetch slot and starts a fetch, or drops the request.
func (s *Synchronizer[T]) trigger(manual bool) bool {
	s.lock.Lock()
	var reason string
	switch {
	case !s.running:
		reason = dropReasonStopped
	case s.inFlight:
		reason = dropReasonInFlight
	case manual && s.debounce > 0 && !s.lastManual.IsZero() && s.clock.Since(s.lastManual) < s.debounce:
		reason = dropReasonDebounce
	}

	if reason != "" {
		ctx := s.fetchCtx
		log := s.log
		s.lock.Unlock()

		if ctx == nil {
			ctx = context.Background()
		}
		log.Trace("fetch request dropped", "reason", reason, "manual", manual)
		s.recorder.RecordDropped(ctx, s.name, reason)
		return false
	}

	if manual {
		s.lastManual = s.clock.Now()
	}
	seq, phase := s.claimLocked()
	ctx := s.fetchCtx
	s.lock.Unlock()

	go s.run(ctx, seq, phase)
	return true
}

// claimLocked marks a fetch in flight and returns its sequence number and starting phase.
func (s *Synchronizer[T]) claimLocked() (uint64, Phase) {
	s.inFlight = true
	s.seq++

	phase := PhaseRefreshing
	if !s.completed {
		phase = PhaseLoading
	}
	return s.seq, phase
}

func (s *Synchronizer[T]) run(ctx context.Context, seq uint64, phase Phase) {
	if !s.apply(seq, false, func(state *State[T]) {
		state.Phase = phase
	}) {
		return
	}

	start := s.clock.Now()
	items, err := s.fetch(ctx)
	s.recorder.RecordFetch(ctx, s.name, s.clock.Since(start), err)

	applied := s.apply(seq, true, func(state *State[T]) {
		state.LastAttempt = s.clock.Now()
		if err != nil {
			state.Phase = PhaseFailed
			state.Error = errorInfo(err)
			return
		}

		state.Phase = PhaseReady
		state.Error = nil
		state.Data = items
		state.LastUpdated = state.LastAttempt
	})

	s.lock.Lock()
	log := s.log
	s.lock.Unlock()

	switch {
	case !applied:
		log.Debug("discarding stale fetch result", "seq", seq)
	case err != nil:
		log.Warn("fetch failed", "seq", seq, "error", err.Error())
	default:
		log.Trace("fetch completed", "seq", seq, "items", len(items))
	}
}

// apply mutates the state and notifies subscribers if seq is still the latest claimed
// fetch of a running synchronizer. final releases the in flight slot.
func (s *Synchronizer[T]) apply(seq uint64, final bool, mutate func(*State[T])) bool {
	s.notifyLock.Lock()
	defer s.notifyLock.Unlock()

	s.lock.Lock()
	if !s.running || seq != s.seq {
		s.lock.Unlock()
		return false
	}

	if final {
		s.inFlight = false
		s.completed = true
	}
	mutate(&s.state)
	snapshot := s.state.clone()
	subscribers := slices.Clone(s.subscribers)
	s.lock.Unlock()

	for _, sub := range subscribers {
		sub.fn(snapshot.clone())
	}
	return true
}
