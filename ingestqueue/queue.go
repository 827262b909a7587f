/*
DESCRIPTION
  queue.go implements the Ingest Queue: a single-consumer FIFO that drains
  into the Stream Pipeline Supervisor, gated by the Ingest-Status
  Client's busy signal.

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  It is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

// Package ingestqueue is a single-consumer FIFO that serializes captures:
// producers append jobs, one drain goroutine pops and executes them,
// gated by the Ingest-Status Client so only one capture runs at a time.
package ingestqueue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ausocean/streamwatch/notify"
)

// busyPollInterval is how long the drain sleeps before re-checking the
// ingest-status signal while it reports busy, and after a job fails.
const busyPollInterval = 30 * time.Second

// Job is a video URL plus an RTMP sink path, handed to the Stream
// Pipeline Supervisor.
type Job struct {
	ID       uuid.UUID
	VideoURL string
	RTMPPath string
}

// Result is the outcome of running a Job through the pipeline.
type Result struct {
	Job           Job
	ExtractorExit int
	RemuxerExit   int
	Attempts      int
	Err           error
}

// Runner executes a job through the Stream Pipeline Supervisor.
type Runner interface {
	Run(ctx context.Context, job Job) (extractorExit, remuxerExit, attempts int, err error)
}

// StatusChecker reports whether a capture is already in progress
// elsewhere in the system.
type StatusChecker interface {
	IsIngesting(ctx context.Context) bool
}

// Logger is the narrow logging interface the queue needs.
type Logger interface {
	Printf(format string, args ...interface{})
}

// Queue is a single-consumer FIFO with busy-signal backpressure. At most
// one drain goroutine is live at a time; Add launches one on demand if
// none is running, closing the race a naive "launch on every add" would
// leave between a drain observing an empty queue and a concurrent Add.
type Queue struct {
	Runner   Runner
	Status   StatusChecker
	Log      Logger
	OnResult func(Result) // Optional; called after each job completes, for audit logging.

	// Channel identifies which channel this queue serves, used only to
	// key throttled notifications below.
	Channel int64
	// Notifier, if set, raises a throttled notify.KindPipeline
	// notification whenever a job exhausts its retries.
	Notifier *notify.Notifier

	jobs         chan Job
	drainRunning atomic.Bool
	wg           sync.WaitGroup
}

// New returns a Queue with a job channel buffered to 256 entries, so Add
// does not block the caller (the orchestrator's tick loop) unless 256
// jobs are already pending.
func New(runner Runner, status StatusChecker) *Queue {
	return &Queue{
		Runner: runner,
		Status: status,
		jobs:   make(chan Job, 256),
	}
}

func (q *Queue) logf(format string, args ...interface{}) {
	if q.Log != nil {
		q.Log.Printf(format, args...)
	}
}

// Add appends job to the queue and ensures a drain goroutine is running.
func (q *Queue) Add(ctx context.Context, job Job) {
	q.jobs <- job
	if q.drainRunning.CompareAndSwap(false, true) {
		q.wg.Add(1)
		go q.drain(ctx)
	}
}

// Wait blocks until the current drain (if any) has exited. Used by tests
// and graceful shutdown to observe the queue settling.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// drain pops jobs and runs them serially until the queue is empty, then
// exits. A subsequent Add restarts it via the CompareAndSwap above.
func (q *Queue) drain(ctx context.Context) {
	defer q.wg.Done()
	for {
		// Step 1: consult ingest status; back off while busy.
		for q.Status != nil && q.Status.IsIngesting(ctx) {
			select {
			case <-ctx.Done():
				q.drainRunning.Store(false)
				return
			case <-time.After(busyPollInterval):
			}
		}

		select {
		case job := <-q.jobs:
			res := q.runJob(ctx, job)
			if q.OnResult != nil {
				q.OnResult(res)
			}
		default:
			// Queue empty: only now release the running flag, and
			// re-check for a job that may have landed in the interim
			// before actually exiting, closing the restart race. The
			// job is left on the channel until the flag is re-acquired,
			// so whichever drain holds the flag runs it.
			q.drainRunning.Store(false)
			if len(q.jobs) == 0 || !q.drainRunning.CompareAndSwap(false, true) {
				// Nothing pending, or another Add already relaunched a
				// drain that will pick the job up.
				return
			}
		}
	}
}

func (q *Queue) runJob(ctx context.Context, job Job) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			q.logf("ingestqueue: job %s panicked: %v", job.ID, r)
			res = Result{Job: job, Err: fmt.Errorf("job %s panicked: %v", job.ID, r)}
		}
		if res.Err != nil {
			// A failed or panicked job pauses the drain before it
			// goes on to the next job.
			select {
			case <-ctx.Done():
			case <-time.After(busyPollInterval):
			}
		}
	}()

	extractorExit, remuxerExit, attempts, err := q.Runner.Run(ctx, job)
	if err != nil {
		q.logf("ingestqueue: job %s failed after %d attempt(s): %v", job.ID, attempts, err)
		q.notifyPipelineFailure(ctx, job, attempts, err)
	} else {
		q.logf("ingestqueue: job %s succeeded after %d attempt(s)", job.ID, attempts)
	}
	return Result{
		Job:           job,
		ExtractorExit: extractorExit,
		RemuxerExit:   remuxerExit,
		Attempts:      attempts,
		Err:           err,
	}
}

// notifyPipelineFailure raises a best-effort, throttled retry-exhaustion
// notification. Any error from Send itself is swallowed: a failing
// notifier must never mask the original pipeline error.
func (q *Queue) notifyPipelineFailure(ctx context.Context, job Job, attempts int, cause error) {
	if q.Notifier == nil {
		return
	}
	msg := fmt.Sprintf("job %s (channel %d) exhausted retries after %d attempt(s): %v", job.ID, q.Channel, attempts, cause)
	_ = q.Notifier.Send(ctx, q.Channel, notify.KindPipeline, msg)
}

// NewJob builds a Job with a fresh correlation ID.
func NewJob(videoURL, rtmpPath string) Job {
	return Job{ID: uuid.New(), VideoURL: videoURL, RTMPPath: rtmpPath}
}
