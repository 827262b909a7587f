/*
DESCRIPTION
  seenstore.go defines the Store contract for the per-channel Seen and
  Notified sets: load/add/list, persisted crash-safely across restarts.

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

// Package seenstore persists, per channel, the set of previously-observed
// video IDs (Seen) and the set committed for capture (Notified). Two
// implementations exist: DatastoreStore, crash-safe and persistent across
// restarts, and MemoryStore, for manual mode.
package seenstore

import "context"

// Snapshot is the full Seen/Notified contents for one channel, used by
// the --list CLI surface.
type Snapshot struct {
	Seen     map[string]bool
	Notified map[string]int64
}

// Store is the Seen/Notified persistence contract. add_seen and
// add_notified are idempotent unions/upserts: calling them twice with the
// same input is equivalent to calling them once.
type Store interface {
	LoadSeen(ctx context.Context, channel int64) (map[string]bool, error)
	LoadNotified(ctx context.Context, channel int64) (map[string]int64, error)
	AddSeen(ctx context.Context, channel int64, ids map[string]bool) error
	AddNotified(ctx context.Context, channel int64, notified map[string]int64) error
	List(ctx context.Context, channel int64) (Snapshot, error)
}
