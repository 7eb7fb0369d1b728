package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/user/ytcatalog-go/internal/config"
	"github.com/user/ytcatalog-go/internal/model"
	"github.com/user/ytcatalog-go/internal/store/storetest"
	syncer "github.com/user/ytcatalog-go/internal/sync"
)

// slowStore wraps the in-memory store and delays ListChannels, which every
// maintenance run begins with. It tracks how many runs started and how many
// were in flight at once.
type slowStore struct {
	*storetest.Store
	delay         time.Duration
	runCount      int32
	concurrent    int32
	maxConcurrent int32
}

func newSlowStore(delay time.Duration) *slowStore {
	return &slowStore{Store: storetest.New(), delay: delay}
}

func (s *slowStore) ListChannels(ctx context.Context) ([]*model.Channel, error) {
	current := atomic.AddInt32(&s.concurrent, 1)
	defer atomic.AddInt32(&s.concurrent, -1)

	for {
		max := atomic.LoadInt32(&s.maxConcurrent)
		if current <= max || atomic.CompareAndSwapInt32(&s.maxConcurrent, max, current) {
			break
		}
	}

	atomic.AddInt32(&s.runCount, 1)
	time.Sleep(s.delay)
	return s.Store.ListChannels(ctx)
}

func (s *slowStore) GetRunCount() int32 {
	return atomic.LoadInt32(&s.runCount)
}

func (s *slowStore) GetMaxConcurrent() int32 {
	return atomic.LoadInt32(&s.maxConcurrent)
}

func newPropertyScheduler(st *slowStore) *Scheduler {
	cfg := &config.SyncConfig{
		Enabled:     true,
		Interval:    time.Hour, // Long interval to prevent auto-triggers
		MaxAttempts: 5,
		RetryDelay:  time.Millisecond,
		SweepLimit:  500,
	}
	sy := syncer.NewSyncer(&flakyClient{}, false)
	return NewScheduler(st, sy, &fakeProber{}, cfg)
}

// For any concurrent scheduler triggers, at most one maintenance run is
// executing at any time.
func TestProperty_SchedulerMutualExclusion(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	// Generator for number of concurrent triggers
	concurrentTriggersGen := gen.IntRange(2, 10)

	// Generator for run delay in milliseconds
	runDelayGen := gen.IntRange(10, 50)

	// Property: At most one maintenance run executes at any time
	properties.Property("at most one maintenance run executes concurrently", prop.ForAll(
		func(numTriggers int, runDelayMs int) bool {
			st := newSlowStore(time.Duration(runDelayMs) * time.Millisecond)
			scheduler := newPropertyScheduler(st)

			// Launch multiple concurrent triggers
			var wg sync.WaitGroup
			ctx := context.Background()

			for i := 0; i < numTriggers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					scheduler.TryRun(ctx, false)
				}()
			}

			wg.Wait()

			return st.GetMaxConcurrent() <= 1
		},
		concurrentTriggersGen,
		runDelayGen,
	))

	// Property: TryRun returns false when a run is already in progress
	properties.Property("TryRun returns false when already running", prop.ForAll(
		func(runDelayMs int) bool {
			st := newSlowStore(time.Duration(runDelayMs) * time.Millisecond)
			scheduler := newPropertyScheduler(st)

			ctx := context.Background()

			// Start first run in background
			started := make(chan bool)
			done := make(chan bool)
			go func() {
				started <- true
				scheduler.TryRun(ctx, false)
				done <- true
			}()

			<-started
			// Give the first run time to acquire the lock
			time.Sleep(5 * time.Millisecond)

			// Try to run while the first is still going
			secondResult := scheduler.TryRun(ctx, false)

			<-done

			// Second attempt should return false (skipped)
			return !secondResult
		},
		gen.IntRange(50, 100), // Longer delay to ensure overlap
	))

	// Property: IsRunning reflects actual running state
	properties.Property("IsRunning reflects actual state", prop.ForAll(
		func(runDelayMs int) bool {
			st := newSlowStore(time.Duration(runDelayMs) * time.Millisecond)
			scheduler := newPropertyScheduler(st)

			// Initially not running
			if scheduler.IsRunning() {
				return false
			}

			ctx := context.Background()

			started := make(chan bool)
			done := make(chan bool)
			go func() {
				started <- true
				scheduler.TryRun(ctx, false)
				done <- true
			}()

			<-started
			time.Sleep(5 * time.Millisecond)

			// Should be running now
			runningDuring := scheduler.IsRunning()

			<-done
			time.Sleep(5 * time.Millisecond)

			// Should not be running after completion
			runningAfter := scheduler.IsRunning()

			return runningDuring && !runningAfter
		},
		gen.IntRange(50, 100),
	))

	// Property: All triggers eventually complete (no deadlock)
	properties.Property("all triggers complete without deadlock", prop.ForAll(
		func(numTriggers int, runDelayMs int) bool {
			st := newSlowStore(time.Duration(runDelayMs) * time.Millisecond)
			scheduler := newPropertyScheduler(st)

			var wg sync.WaitGroup
			ctx := context.Background()

			for i := 0; i < numTriggers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					scheduler.TryRun(ctx, false)
				}()
			}

			done := make(chan bool)
			go func() {
				wg.Wait()
				done <- true
			}()

			select {
			case <-done:
				return true
			case <-time.After(5 * time.Second):
				return false // Deadlock detected
			}
		},
		concurrentTriggersGen,
		runDelayGen,
	))

	// Property: Exactly one maintenance run per successful TryRun
	properties.Property("exactly one run per successful TryRun", prop.ForAll(
		func(numTriggers int, runDelayMs int) bool {
			st := newSlowStore(time.Duration(runDelayMs) * time.Millisecond)
			scheduler := newPropertyScheduler(st)

			var wg sync.WaitGroup
			ctx := context.Background()
			successCount := int32(0)

			for i := 0; i < numTriggers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if scheduler.TryRun(ctx, false) {
						atomic.AddInt32(&successCount, 1)
					}
				}()
			}

			wg.Wait()

			return st.GetRunCount() == successCount
		},
		concurrentTriggersGen,
		runDelayGen,
	))

	properties.TestingRun(t)
}
