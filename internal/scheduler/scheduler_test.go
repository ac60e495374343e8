package scheduler_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chernistry/tavily/internal/metadata"
	"github.com/chernistry/tavily/internal/scheduler"
)

// noSleep removes jitter waits from tests.
type noSleep struct{}

func (n *noSleep) Sleep(d time.Duration) {}

func newSchedulerForTest(param scheduler.Param) *scheduler.DomainScheduler {
	s := scheduler.NewDomainScheduler(&metadata.NoopSink{}, param)
	s.SetSleeper(&noSleep{})
	return s
}

func TestClampGlobalSlots(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{in: 1, want: 8},
		{in: 8, want: 8},
		{in: 32, want: 32},
		{in: 64, want: 64},
		{in: 500, want: 64},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scheduler.ClampGlobalSlots(tt.in))
	}
}

func TestAcquireRelease_Basic(t *testing.T) {
	s := newSchedulerForTest(scheduler.Param{GlobalSlots: 8, HostSlots: 2, RandomSeed: 1})

	require.NoError(t, s.Acquire(context.Background(), "a.test"))
	assert.Equal(t, 1, s.InFlight("a.test"))

	s.Release("a.test")
	assert.Equal(t, 0, s.InFlight("a.test"))
}

func TestAcquire_HostCapNeverExceeded(t *testing.T) {
	const hostLimit = 3
	const workers = 40

	s := newSchedulerForTest(scheduler.Param{GlobalSlots: 64, HostSlots: hostLimit, RandomSeed: 1})

	var inFlight atomic.Int32
	var peak atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, s.Acquire(context.Background(), "busy.test"))

			current := inFlight.Add(1)
			for {
				observed := peak.Load()
				if current <= observed || peak.CompareAndSwap(observed, current) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inFlight.Add(-1)
			s.Release("busy.test")
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(hostLimit), "host cap violated")
	assert.Equal(t, 0, s.InFlight("busy.test"))
}

func TestAcquire_GlobalCapNeverExceeded(t *testing.T) {
	s := newSchedulerForTest(scheduler.Param{GlobalSlots: 8, HostSlots: 8, RandomSeed: 1})

	var inFlight atomic.Int32
	var peak atomic.Int32
	var wg sync.WaitGroup

	hosts := []string{"a.test", "b.test", "c.test", "d.test"}
	for i := 0; i < 48; i++ {
		host := hosts[i%len(hosts)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, s.Acquire(context.Background(), host))

			current := inFlight.Add(1)
			for {
				observed := peak.Load()
				if current <= observed || peak.CompareAndSwap(observed, current) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inFlight.Add(-1)
			s.Release(host)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(8), "global cap violated")
}

func TestHostOverride(t *testing.T) {
	s := newSchedulerForTest(scheduler.Param{
		GlobalSlots:   16,
		HostSlots:     4,
		HostOverrides: map[string]int{"www.google.com": 1},
		RandomSeed:    1,
	})

	assert.Equal(t, 1, s.HostLimit("www.google.com"))
	assert.Equal(t, 4, s.HostLimit("other.test"))
}

func TestAdaptiveClamp_ReducesHostToOneSlot(t *testing.T) {
	s := newSchedulerForTest(scheduler.Param{
		GlobalSlots:    16,
		HostSlots:      4,
		ClampThreshold: 5,
		RandomSeed:     1,
	})

	for i := 0; i < 3; i++ {
		s.RecordError("flaky.test")
	}
	assert.Equal(t, 4, s.HostLimit("flaky.test"), "below threshold must not clamp")

	s.RecordCaptcha("flaky.test")
	s.RecordCaptcha("flaky.test")
	assert.Equal(t, 1, s.HostLimit("flaky.test"), "combined count at threshold must clamp")

	// other hosts are unaffected
	assert.Equal(t, 4, s.HostLimit("calm.test"))
}

func TestAdaptiveClamp_HoldersPastAcquisitionStillRelease(t *testing.T) {
	s := newSchedulerForTest(scheduler.Param{
		GlobalSlots:    16,
		HostSlots:      4,
		ClampThreshold: 1,
		RandomSeed:     1,
	})

	// take three slots, then clamp to one while they are held
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Acquire(context.Background(), "h.test"))
	}
	s.RecordError("h.test")
	assert.Equal(t, 1, s.HostLimit("h.test"))
	assert.Equal(t, 3, s.InFlight("h.test"))

	// releases must not deadlock or panic
	for i := 0; i < 3; i++ {
		s.Release("h.test")
	}
	assert.Equal(t, 0, s.InFlight("h.test"))

	// the clamped limit now gates new acquisitions
	require.NoError(t, s.Acquire(context.Background(), "h.test"))
	blocked := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		blocked <- s.Acquire(ctx, "h.test")
	}()
	assert.Error(t, <-blocked, "second acquisition must block at limit 1")
	s.Release("h.test")
}

func TestAcquire_ContextCancellationReleasesGlobalSlot(t *testing.T) {
	s := newSchedulerForTest(scheduler.Param{GlobalSlots: 8, HostSlots: 1, RandomSeed: 1})

	require.NoError(t, s.Acquire(context.Background(), "h.test"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.Acquire(ctx, "h.test")
	assert.Error(t, err)

	// the failed acquisition must not have leaked slots: the original
	// holder can release and a new acquisition succeeds
	s.Release("h.test")
	require.NoError(t, s.Acquire(context.Background(), "h.test"))
	s.Release("h.test")
}

func TestShrinkGlobal(t *testing.T) {
	s := newSchedulerForTest(scheduler.Param{GlobalSlots: 16, HostSlots: 16, RandomSeed: 1})
	assert.Equal(t, 16, s.GlobalSlots())

	s.ShrinkGlobal(8)
	assert.Equal(t, 8, s.GlobalSlots())

	// shrinking below one slot is refused
	s.ShrinkGlobal(100)
	assert.Equal(t, 1, s.GlobalSlots())
}
