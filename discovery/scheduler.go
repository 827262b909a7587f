/*
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

package discovery

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Logger is the narrow logging interface the scheduler needs, satisfied
// by *log.Logger and by cmd/streamwatch's printfLogger adapter around
// github.com/ausocean/utils/logging.Logger.
type Logger interface {
	Printf(format string, args ...interface{})
}

// Scheduler fans a tick's channel URLs out to a Prober in chunks, with a
// concurrency cap within each chunk. Per-probe failures are isolated and
// never abort the tick.
type Scheduler struct {
	Prober          Prober
	ChunkSize       int           // Default 3.
	Concurrency     int64         // Default 5.
	InterChunkPause time.Duration // Default 500ms.
	Log             Logger        // Optional.
}

func (s Scheduler) chunkSize() int {
	if s.ChunkSize <= 0 {
		return 3
	}
	return s.ChunkSize
}

func (s Scheduler) concurrency() int64 {
	if s.Concurrency <= 0 {
		return 5
	}
	return s.Concurrency
}

func (s Scheduler) pause() time.Duration {
	if s.InterChunkPause <= 0 {
		return 500 * time.Millisecond
	}
	return s.InterChunkPause
}

func (s Scheduler) logf(format string, args ...interface{}) {
	if s.Log != nil {
		s.Log.Printf(format, args...)
	}
}

// Run probes every URL in urls and returns the union of all per-probe ID
// sets. Chunks are processed sequentially with a pause between them;
// within a chunk, probes run concurrently under a semaphore.
func (s Scheduler) Run(ctx context.Context, urls []string) map[string]bool {
	union := map[string]bool{}
	sem := semaphore.NewWeighted(s.concurrency())
	chunkSize := s.chunkSize()

	for i := 0; i < len(urls); i += chunkSize {
		end := i + chunkSize
		if end > len(urls) {
			end = len(urls)
		}
		chunk := urls[i:end]

		var mu sync.Mutex
		var wg sync.WaitGroup
		for _, u := range chunk {
			u := u
			if err := sem.Acquire(ctx, 1); err != nil {
				s.logf("discovery: could not acquire probe slot for %s: %v", u, err)
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				ids, err := s.Prober.Probe(ctx, u)
				if err != nil {
					s.logf("discovery: probe of %s failed: %v", u, err)
					return
				}
				mu.Lock()
				for id := range ids {
					union[id] = true
				}
				mu.Unlock()
			}()
		}
		wg.Wait()

		if end < len(urls) {
			select {
			case <-ctx.Done():
				return union
			case <-time.After(s.pause()):
			}
		}
	}

	return union
}
