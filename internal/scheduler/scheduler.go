package scheduler

/*
Scheduler is the admission throttle between the router and the network.

Guarantees:
- At any instant, in-flight requests to host h never exceed the host limit
- The global in-flight count never exceeds the global slot count
- Acquire blocks until both a global and a host slot are free, then sleeps
  a uniform jitter
- Release frees both slots, always, exactly once per successful Acquire

Adaptive clamp: once a host's combined error+captcha count reaches the
threshold, its limit drops to one for the rest of the run. The shrink only
affects future acquisitions; holders already past acquisition finish and
release normally.

Acquisition order across hosts is not guaranteed; starvation avoidance is
not required at this scale.
*/

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/chernistry/tavily/internal/metadata"
	"github.com/chernistry/tavily/pkg/timeutil"
)

// Scheduler is the domain-aware concurrency limiter shared by both stages.
type Scheduler interface {
	Acquire(ctx context.Context, host string) error
	Release(host string)
	RecordError(host string)
	RecordCaptcha(host string)
	InFlight(host string) int
}

type DomainScheduler struct {
	metadataSink metadata.MetadataSink
	global       *semaphore.Weighted
	globalSlots  int

	mu    sync.Mutex
	hosts map[string]*hostState
	param Param

	rngMu sync.Mutex
	rng   *rand.Rand

	sleeper timeutil.Sleeper
}

func NewDomainScheduler(metadataSink metadata.MetadataSink, param Param) *DomainScheduler {
	globalSlots := ClampGlobalSlots(param.GlobalSlots)
	if param.HostSlots < 1 {
		param.HostSlots = DefaultHostSlots
	}
	if param.ClampThreshold < 1 {
		param.ClampThreshold = DefaultClampThreshold
	}
	seed := param.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sleeper := timeutil.NewRealSleeper()
	return &DomainScheduler{
		metadataSink: metadataSink,
		global:       semaphore.NewWeighted(int64(globalSlots)),
		globalSlots:  globalSlots,
		hosts:        make(map[string]*hostState),
		param:        param,
		rng:          rand.New(rand.NewSource(seed)),
		sleeper:      &sleeper,
	}
}

// SetSleeper injects a fake sleeper for tests.
func (s *DomainScheduler) SetSleeper(sleeper timeutil.Sleeper) {
	s.sleeper = sleeper
}

// Acquire blocks until a global slot and a host slot are both free, then
// applies jitter. On context cancellation no slots remain held.
func (s *DomainScheduler) Acquire(ctx context.Context, host string) error {
	if err := s.global.Acquire(ctx, 1); err != nil {
		return err
	}

	hs := s.hostStateFor(host)

	// Wake the cond wait if the context dies while we queue for a host slot
	acquired := make(chan struct{})
	defer close(acquired)
	go func() {
		select {
		case <-ctx.Done():
			hs.mu.Lock()
			hs.cond.Broadcast()
			hs.mu.Unlock()
		case <-acquired:
		}
	}()

	hs.mu.Lock()
	for hs.inflight >= hs.limit && ctx.Err() == nil {
		hs.cond.Wait()
	}
	if ctx.Err() != nil {
		hs.mu.Unlock()
		s.global.Release(1)
		return ctx.Err()
	}
	hs.inflight++
	hs.mu.Unlock()

	s.applyJitter()
	return nil
}

// Release frees the host slot and the global slot taken by Acquire.
func (s *DomainScheduler) Release(host string) {
	hs := s.hostStateFor(host)

	hs.mu.Lock()
	if hs.inflight > 0 {
		hs.inflight--
	}
	hs.cond.Broadcast()
	hs.mu.Unlock()

	s.global.Release(1)
}

// RecordError counts a transport-level failure against host and clamps when
// the threshold is reached.
func (s *DomainScheduler) RecordError(host string) {
	hs := s.hostStateFor(host)
	hs.mu.Lock()
	hs.errors++
	s.maybeClampLocked(host, hs)
	hs.mu.Unlock()
}

// RecordCaptcha counts a challenge verdict against host and clamps when the
// threshold is reached.
func (s *DomainScheduler) RecordCaptcha(host string) {
	hs := s.hostStateFor(host)
	hs.mu.Lock()
	hs.captchas++
	s.maybeClampLocked(host, hs)
	hs.mu.Unlock()
}

// InFlight returns the current in-flight count for host.
func (s *DomainScheduler) InFlight(host string) int {
	hs := s.hostStateFor(host)
	hs.mu.Lock()
	defer hs.mu.Unlock()
	return hs.inflight
}

// HostLimit returns the current slot limit for host.
func (s *DomainScheduler) HostLimit(host string) int {
	hs := s.hostStateFor(host)
	hs.mu.Lock()
	defer hs.mu.Unlock()
	return hs.limit
}

// GlobalSlots returns the current global slot count.
func (s *DomainScheduler) GlobalSlots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.globalSlots
}

// ShrinkGlobal permanently retires n global slots. Retirement waits for
// in-flight holders instead of revoking them, so nobody past acquisition is
// affected; future acquisitions simply see a smaller pool.
func (s *DomainScheduler) ShrinkGlobal(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	if n >= s.globalSlots {
		n = s.globalSlots - 1
	}
	s.globalSlots -= n
	s.mu.Unlock()
	if n > 0 {
		go func() {
			_ = s.global.Acquire(context.Background(), int64(n))
		}()
	}
}

// maybeClampLocked shrinks the host to one slot once the combined trouble
// count reaches the threshold. Caller holds hs.mu.
func (s *DomainScheduler) maybeClampLocked(host string, hs *hostState) {
	if hs.clamped {
		return
	}
	if hs.errors+hs.captchas < s.param.ClampThreshold {
		return
	}
	hs.clamped = true
	hs.limit = 1
	s.metadataSink.RecordWarning(
		"scheduler",
		"host clamped to one slot",
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrHost, host),
		},
	)
}

func (s *DomainScheduler) hostStateFor(host string) *hostState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hs, ok := s.hosts[host]; ok {
		return hs
	}
	limit := s.param.HostSlots
	if override, ok := s.param.HostOverrides[host]; ok && override > 0 {
		limit = override
	}
	hs := newHostState(limit)
	s.hosts[host] = hs
	return hs
}

func (s *DomainScheduler) applyJitter() {
	if s.param.JitterHi <= 0 {
		return
	}
	s.rngMu.Lock()
	delay := timeutil.UniformBetween(s.param.JitterLo, s.param.JitterHi, s.rng)
	s.rngMu.Unlock()
	if delay > 0 {
		s.sleeper.Sleep(delay)
	}
}
