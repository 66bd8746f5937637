package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/banditlabs/stratcore/internal/alloc"
	"github.com/banditlabs/stratcore/internal/bandit"
	"github.com/banditlabs/stratcore/internal/learner"
)

// Payload is one coherent capture of all three engine states, taken under
// the engine lock and written to disk off it.
type Payload struct {
	Learner   learner.State
	Bandit    bandit.State
	Allocator alloc.State
}

// SaveObserver is notified after each disk write attempt, for metrics.
type SaveObserver func(err error)

// Saver is the fire-and-forget snapshot writer. The hot path calls Request
// with a state capture and returns immediately; a background goroutine
// coalesces bursts behind a rate limiter so a flurry of trades costs at most
// one write per limiter period.
type Saver struct {
	store    *Store
	limiter  *rate.Limiter
	observer SaveObserver

	mu      sync.Mutex
	pending *Payload
	wake    chan struct{}
	done    chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewSaver creates a saver writing through store, paced at one write per
// minInterval. A nil observer is allowed.
func NewSaver(store *Store, minInterval time.Duration, observer SaveObserver) *Saver {
	if minInterval <= 0 {
		minInterval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Saver{
		store:    store,
		limiter:  rate.NewLimiter(rate.Every(minInterval), 1),
		observer: observer,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		cancel:   cancel,
	}
	s.wg.Add(1)
	go s.run(ctx)
	return s
}

// Request queues a payload for writing, replacing any not-yet-written one.
// Never blocks.
func (s *Saver) Request(p Payload) {
	s.mu.Lock()
	s.pending = &p
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Stop flushes any pending payload synchronously and shuts the saver down.
func (s *Saver) Stop() {
	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if pending != nil {
		s.write(*pending)
	}
	close(s.done)
}

// Done is closed once Stop has completed, for tests.
func (s *Saver) Done() <-chan struct{} { return s.done }

func (s *Saver) run(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return
		}

		s.mu.Lock()
		pending := s.pending
		s.pending = nil
		s.mu.Unlock()

		if pending != nil {
			s.write(*pending)
		}
	}
}

// write persists all three snapshots. Failures are logged and reported to
// the observer but never propagate; the engine keeps running from memory.
func (s *Saver) write(p Payload) {
	var firstErr error
	if err := s.store.SaveLearner(p.Learner); err != nil {
		firstErr = err
	}
	if err := s.store.SaveBandit(p.Bandit); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.store.SaveAllocator(p.Allocator); err != nil && firstErr == nil {
		firstErr = err
	}

	if firstErr != nil {
		log.Warn().Err(firstErr).Str("dir", s.store.Dir()).Msg("snapshot save failed, continuing in memory")
	}
	if s.observer != nil {
		s.observer(firstErr)
	}
}
