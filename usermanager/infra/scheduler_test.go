package infra

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"user-manager/usermanager/domain"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

func TestScheduler_RunsInOrderWithSpacing(t *testing.T) {
	const interval = 20 * time.Millisecond
	s := NewScheduler(10, interval, WithSchedulerLogger(quietLogger()))

	var (
		mu     sync.Mutex
		order  []int
		starts []time.Time
		wg     sync.WaitGroup
	)
	for i := 0; i < 3; i++ {
		i := i
		wg.Add(1)
		ok := s.Submit(domain.Task{Name: "t", Run: func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			starts = append(starts, time.Now())
			mu.Unlock()
		}})
		require.True(t, ok)
	}
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2}, order)
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		assert.True(t, gap >= interval, "task %d started too early (%s)", i, gap)
	}
}

func TestScheduler_NeverOverlaps(t *testing.T) {
	s := NewScheduler(10, time.Millisecond, WithSchedulerLogger(quietLogger()))

	var inFlight, maxInFlight int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		s.Submit(domain.Task{Run: func() {
			defer wg.Done()
			n := atomic.AddInt32(&inFlight, 1)
			for {
				m := atomic.LoadInt32(&maxInFlight)
				if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		}})
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
}

func TestScheduler_RejectsWhenFull(t *testing.T) {
	s := NewScheduler(2, time.Hour, WithSchedulerLogger(quietLogger()))

	assert.True(t, s.Submit(domain.Task{}))
	assert.True(t, s.Submit(domain.Task{}))
	assert.False(t, s.Submit(domain.Task{}))
	assert.Equal(t, 2, s.Len())
}

func TestScheduler_ClearDiscardsPending(t *testing.T) {
	s := NewScheduler(5, time.Hour, WithSchedulerLogger(quietLogger()))

	var discarded []error
	for i := 0; i < 3; i++ {
		s.Submit(domain.Task{
			Run:     func() { t.Errorf("cleared task must not run") },
			Discard: func(err error) { discarded = append(discarded, err) },
		})
	}
	s.Clear()

	require.Len(t, discarded, 3)
	for _, err := range discarded {
		assert.ErrorIs(t, err, domain.ErrTasksCleared)
	}
	assert.Equal(t, 0, s.Len())
}

func TestScheduler_ClearLetsRunningTaskFinish(t *testing.T) {
	s := NewScheduler(5, time.Millisecond, WithSchedulerLogger(quietLogger()))

	started := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan struct{})
	runningDiscarded := make(chan struct{}, 1)

	s.Submit(domain.Task{
		Run: func() {
			close(started)
			<-release
			close(finished)
		},
		Discard: func(error) { runningDiscarded <- struct{}{} },
	})
	<-started

	pendingDiscarded := make(chan error, 1)
	s.Submit(domain.Task{
		Run:     func() { t.Errorf("cleared task must not run") },
		Discard: func(err error) { pendingDiscarded <- err },
	})

	s.Clear()
	assert.ErrorIs(t, <-pendingDiscarded, domain.ErrTasksCleared)

	close(release)
	<-finished
	select {
	case <-runningDiscarded:
		t.Fatalf("running task must not be discarded")
	default:
	}

	// depois do clear o scheduler continua aceitando e executando
	ran := make(chan struct{})
	require.True(t, s.Submit(domain.Task{Run: func() { close(ran) }}))
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatalf("expected task submitted after clear to run")
	}
}

func TestScheduler_SubmitAfterClearWaitsForRunningTask(t *testing.T) {
	const interval = 5 * time.Millisecond
	s := NewScheduler(5, interval, WithSchedulerLogger(quietLogger()))

	var inFlight, maxInFlight int32
	enter := func() {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
	}

	started := make(chan struct{})
	release := make(chan struct{})
	var oldDone time.Time
	s.Submit(domain.Task{Run: func() {
		enter()
		close(started)
		<-release
		oldDone = time.Now()
		atomic.AddInt32(&inFlight, -1)
	}})
	<-started

	s.Clear()

	ran := make(chan time.Time, 1)
	require.True(t, s.Submit(domain.Task{Run: func() {
		enter()
		ran <- time.Now()
		atomic.AddInt32(&inFlight, -1)
	}}))

	// vários intervalos com a tarefa antiga ainda presa
	select {
	case <-ran:
		t.Fatalf("task submitted after clear started while the previous one was running")
	case <-time.After(10 * interval):
	}

	close(release)
	select {
	case at := <-ran:
		assert.True(t, at.Sub(oldDone) >= interval, "started %s after the previous task", at.Sub(oldDone))
	case <-time.After(time.Second):
		t.Fatalf("expected task submitted after clear to run once the previous one finished")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
}
