/*
DESCRIPTION
  service.go implements the Monitor Service: the orchestrator that owns
  the polling tick, wires the discovery, classification, store, and queue
  components, and handles seed iteration and per-tick deltas.

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

// Package monitor owns the polling tick loop and wires together
// discovery, classification, the seen/notified store, and the ingest
// queue into the channel monitor described by this system. The same
// Service type serves both persistent and manual modes; only the
// seenstore.Store binding differs.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/ausocean/streamwatch/classify"
	"github.com/ausocean/streamwatch/config"
	"github.com/ausocean/streamwatch/discovery"
	"github.com/ausocean/streamwatch/ingestqueue"
	"github.com/ausocean/streamwatch/metadata"
	"github.com/ausocean/streamwatch/notify"
	"github.com/ausocean/streamwatch/seenstore"
)

// Logger is the narrow logging interface the service needs.
type Logger interface {
	Printf(format string, args ...interface{})
}

// Clock abstracts time.Now so tests can control it; production code
// uses RealClock.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Service is the channel monitor orchestrator: one instance per
// channel, owning that channel's store, queue, and scheduler.
type Service struct {
	Channel   config.ChannelRef
	Scheduler discovery.Scheduler
	Resolver  metadata.Resolver
	Store     seenstore.Store
	Queue     *ingestqueue.Queue
	Config    config.Config
	Log       Logger
	Notifier  *notify.Notifier
	Clock     Clock

	seen      map[string]bool
	notified  map[string]int64
	firstTick bool
}

// NewService constructs a Service, loading the channel's Seen/Notified
// state and marking the next tick as the seed tick.
func NewService(ctx context.Context, channel config.ChannelRef, scheduler discovery.Scheduler, resolver metadata.Resolver, store seenstore.Store, queue *ingestqueue.Queue, cfg config.Config, log Logger, notifier *notify.Notifier) (*Service, error) {
	seen, err := store.LoadSeen(ctx, channel.ID)
	if err != nil {
		NotifyStoreFailure(ctx, notifier, channel.ID, fmt.Errorf("could not load seen set: %w", err))
		return nil, fmt.Errorf("could not load seen set for channel %d: %w", channel.ID, err)
	}
	notified, err := store.LoadNotified(ctx, channel.ID)
	if err != nil {
		NotifyStoreFailure(ctx, notifier, channel.ID, fmt.Errorf("could not load notified set: %w", err))
		return nil, fmt.Errorf("could not load notified set for channel %d: %w", channel.ID, err)
	}

	return &Service{
		Channel:   channel,
		Scheduler: scheduler,
		Resolver:  resolver,
		Store:     store,
		Queue:     queue,
		Config:    cfg,
		Log:       log,
		Notifier:  notifier,
		Clock:     RealClock{},
		seen:      seen,
		notified:  notified,
		firstTick: true,
	}, nil
}

func (s *Service) logf(format string, args ...interface{}) {
	if s.Log != nil {
		s.Log.Printf(format, args...)
	}
}

// Run drives the tick loop at Config.PollInterval until ctx is
// cancelled. Every step's failure is logged and does not abort the
// tick; only store-open failure (handled in NewService) is fatal.
func (s *Service) Run(ctx context.Context) error {
	interval := s.Config.PollInterval
	if interval <= 0 {
		interval = 300 * time.Second
	}

	for {
		s.tick(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// tick runs one full probe/diff/dispatch/persist cycle.
func (s *Service) tick(ctx context.Context) {
	idsNow := s.Scheduler.Run(ctx, s.Channel.URLs)

	if s.firstTick {
		if err := s.Store.AddSeen(ctx, s.Channel.ID, idsNow); err != nil {
			s.logf("monitor: channel %d: could not persist seed seen set: %v", s.Channel.ID, err)
		}
		for id := range idsNow {
			s.seen[id] = true
		}
		s.firstTick = false
		return
	}

	newIDs := map[string]bool{}
	for id := range idsNow {
		if !s.seen[id] {
			newIDs[id] = true
		}
	}
	if len(newIDs) == 0 {
		return
	}

	pendingNotified := map[string]int64{}
	now := s.Clock.Now().Unix()
	for id := range newIDs {
		s.dispatch(ctx, id, now, pendingNotified)
	}

	for id := range newIDs {
		s.seen[id] = true
	}
	if err := s.Store.AddSeen(ctx, s.Channel.ID, newIDs); err != nil {
		s.logf("monitor: channel %d: could not persist seen delta: %v", s.Channel.ID, err)
	}
	if len(pendingNotified) > 0 {
		for id, ts := range pendingNotified {
			s.notified[id] = ts
		}
		if err := s.Store.AddNotified(ctx, s.Channel.ID, pendingNotified); err != nil {
			s.logf("monitor: channel %d: could not persist notified delta: %v", s.Channel.ID, err)
		}
	}
}

// dispatch resolves metadata + state for a single new video ID and acts
// per the dispatch-by-state table, recording a notified timestamp into
// pendingNotified on every enqueue.
func (s *Service) dispatch(ctx context.Context, videoID string, now int64, pendingNotified map[string]int64) {
	rec, err := s.Resolver.Resolve(ctx, videoID)
	if err != nil {
		s.logf("monitor: channel %d: could not resolve metadata for %s: %v", s.Channel.ID, videoID, err)
		return
	}

	state := classify.Classify(rec, now)

	switch state {
	case classify.StateUpcomingScheduled:
		if rec.ReleaseTimestamp > now {
			s.logf("monitor: channel %d: %s scheduled for %d, not yet enqueuing", s.Channel.ID, videoID, rec.ReleaseTimestamp)
			return
		}
		s.logf("monitor: channel %d: %s scheduled release already elapsed, enqueuing late", s.Channel.ID, videoID)
		s.enqueue(ctx, videoID, now, pendingNotified)

	case classify.StateUpcomingLaunched, classify.StateUpcomingPreLaunch, classify.StateLive, classify.StateLiveVOD, classify.StateVOD:
		s.enqueue(ctx, videoID, now, pendingNotified)

	default:
		s.logf("monitor: channel %d: %s classified into unhandled state %q", s.Channel.ID, videoID, state)
	}
}

func (s *Service) enqueue(ctx context.Context, videoID string, now int64, pendingNotified map[string]int64) {
	url := fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
	s.Queue.Add(ctx, ingestqueue.NewJob(url, s.Config.RTMPPath))
	pendingNotified[videoID] = now
}

// Snapshot dumps the channel's current Seen/Notified contents, for the
// --list CLI surface.
func (s *Service) Snapshot(ctx context.Context) (seenstore.Snapshot, error) {
	return s.Store.List(ctx, s.Channel.ID)
}

// NotifyStoreFailure raises a best-effort, throttled notify.KindStore
// notification. Exported so cmd/streamwatch can raise the same kind of
// notification for store-open failures that occur before a Service
// exists to load from it. Any error from Send itself is swallowed: a
// failing notifier must never mask the original store error.
func NotifyStoreFailure(ctx context.Context, notifier *notify.Notifier, channel int64, cause error) {
	if notifier == nil {
		return
	}
	_ = notifier.Send(ctx, channel, notify.KindStore, fmt.Sprintf("store failure for channel %d: %v", channel, cause))
}

// NotifyFatal raises a best-effort, throttled notify.KindFatal
// notification for startup conditions that prevent a channel's monitor
// from starting at all (malformed configuration, for example), matching
// the "fatal startup errors" case in the design notes. Exported for the
// same reason as NotifyStoreFailure.
func NotifyFatal(ctx context.Context, notifier *notify.Notifier, channel int64, msg string) {
	if notifier == nil {
		return
	}
	_ = notifier.Send(ctx, channel, notify.KindFatal, msg)
}
