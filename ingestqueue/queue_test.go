package ingestqueue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu      sync.Mutex
	running int32
	maxSeen int32
	runs    []Job
}

func (f *fakeRunner) Run(ctx context.Context, job Job) (int, int, int, error) {
	n := atomic.AddInt32(&f.running, 1)
	defer atomic.AddInt32(&f.running, -1)
	f.mu.Lock()
	if n > f.maxSeen {
		f.maxSeen = n
	}
	f.runs = append(f.runs, job)
	f.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	return 0, 0, 1, nil
}

type alwaysFree struct{}

func (alwaysFree) IsIngesting(ctx context.Context) bool { return false }

func TestQueueDrainsAllJobsSerially(t *testing.T) {
	runner := &fakeRunner{}
	q := New(runner, alwaysFree{})

	ctx := context.Background()
	q.Add(ctx, NewJob("u1", "/live/a"))
	q.Add(ctx, NewJob("u2", "/live/a"))
	q.Add(ctx, NewJob("u3", "/live/a"))

	deadline := time.After(time.Second)
	for {
		runner.mu.Lock()
		n := len(runner.runs)
		runner.mu.Unlock()
		if n == 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for jobs to drain")
		case <-time.After(time.Millisecond):
		}
	}

	assert.EqualValues(t, 1, runner.maxSeen, "at most one job should run concurrently")
}

type busyThenFree struct {
	busyUntil time.Time
}

func (b *busyThenFree) IsIngesting(ctx context.Context) bool {
	return time.Now().Before(b.busyUntil)
}

func TestQueueWaitsWhileBusy(t *testing.T) {
	runner := &fakeRunner{}
	status := &busyThenFree{busyUntil: time.Now().Add(20 * time.Millisecond)}
	q := New(runner, status)

	ctx := context.Background()
	q.Add(ctx, NewJob("u1", "/live/a"))

	time.Sleep(5 * time.Millisecond)
	runner.mu.Lock()
	n := len(runner.runs)
	runner.mu.Unlock()
	assert.Equal(t, 0, n, "job should not run while busy")
}

func TestQueueEmptyDrainExitsWithoutBlocking(t *testing.T) {
	runner := &fakeRunner{}
	q := New(runner, alwaysFree{})

	done := make(chan struct{})
	go func() {
		q.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Wait should return immediately with no jobs added")
	}
}

func TestQueueResultCallback(t *testing.T) {
	runner := &fakeRunner{}
	q := New(runner, alwaysFree{})

	var gotMu sync.Mutex
	var got []Result
	q.OnResult = func(r Result) {
		gotMu.Lock()
		got = append(got, r)
		gotMu.Unlock()
	}

	ctx := context.Background()
	q.Add(ctx, NewJob("u1", "/live/a"))

	require.Eventually(t, func() bool {
		gotMu.Lock()
		defer gotMu.Unlock()
		return len(got) == 1
	}, time.Second, time.Millisecond)
}
