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

package seenstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ausocean/openfish/datastore"
)

const (
	typeSeenVideo     = "SeenVideo"
	typeNotifiedVideo = "NotifiedVideo"
)

// seenVideo records that a video ID has been observed at least once for
// a channel. Encode/Decode follow the tab-separated convention used
// throughout this store's entities.
type seenVideo struct {
	Channel int64
	VideoID string
}

func (v *seenVideo) Encode() []byte {
	return []byte(fmt.Sprintf("%d\t%s", v.Channel, v.VideoID))
}

func (v *seenVideo) Decode(b []byte) error {
	p := strings.SplitN(string(b), "\t", 2)
	if len(p) != 2 {
		return datastore.ErrDecoding
	}
	var err error
	v.Channel, err = strconv.ParseInt(p[0], 10, 64)
	if err != nil {
		return datastore.ErrDecoding
	}
	v.VideoID = p[1]
	return nil
}

func (v *seenVideo) Copy(datastore.Entity) (datastore.Entity, error) {
	return nil, datastore.ErrUnimplemented
}

func (v *seenVideo) GetCache() datastore.Cache { return nil }

// notifiedVideo records the epoch-seconds timestamp at which a video was
// first queued for capture.
type notifiedVideo struct {
	Channel   int64
	VideoID   string
	Timestamp int64
}

func (v *notifiedVideo) Encode() []byte {
	return []byte(fmt.Sprintf("%d\t%s\t%d", v.Channel, v.VideoID, v.Timestamp))
}

func (v *notifiedVideo) Decode(b []byte) error {
	p := strings.SplitN(string(b), "\t", 3)
	if len(p) != 3 {
		return datastore.ErrDecoding
	}
	var err error
	v.Channel, err = strconv.ParseInt(p[0], 10, 64)
	if err != nil {
		return datastore.ErrDecoding
	}
	v.VideoID = p[1]
	v.Timestamp, err = strconv.ParseInt(p[2], 10, 64)
	if err != nil {
		return datastore.ErrDecoding
	}
	return nil
}

func (v *notifiedVideo) Copy(datastore.Entity) (datastore.Entity, error) {
	return nil, datastore.ErrUnimplemented
}

func (v *notifiedVideo) GetCache() datastore.Cache { return nil }

// DatastoreStore implements Store over an openfish/datastore.Store,
// surviving process restarts. A channel with no prior entries returns
// empty Seen/Notified on first load, per the store contract.
type DatastoreStore struct {
	store datastore.Store
}

// NewDatastoreStore wraps store as a Store.
func NewDatastoreStore(store datastore.Store) *DatastoreStore {
	return &DatastoreStore{store: store}
}

func seenKey(store datastore.Store, channel int64, videoID string) *datastore.Key {
	return store.NameKey(typeSeenVideo, strconv.FormatInt(channel, 10)+"."+videoID)
}

func notifiedKey(store datastore.Store, channel int64, videoID string) *datastore.Key {
	return store.NameKey(typeNotifiedVideo, strconv.FormatInt(channel, 10)+"."+videoID)
}

func (s *DatastoreStore) LoadSeen(ctx context.Context, channel int64) (map[string]bool, error) {
	q := s.store.NewQuery(typeSeenVideo, false, "Channel", "VideoID")
	q.Filter("Channel =", channel)
	var vs []seenVideo
	_, err := s.store.GetAll(ctx, q, &vs)
	if err != nil {
		return nil, fmt.Errorf("could not load seen: %w", err)
	}
	out := make(map[string]bool, len(vs))
	for _, v := range vs {
		out[v.VideoID] = true
	}
	return out, nil
}

func (s *DatastoreStore) LoadNotified(ctx context.Context, channel int64) (map[string]int64, error) {
	q := s.store.NewQuery(typeNotifiedVideo, false, "Channel", "VideoID")
	q.Filter("Channel =", channel)
	var vs []notifiedVideo
	_, err := s.store.GetAll(ctx, q, &vs)
	if err != nil {
		return nil, fmt.Errorf("could not load notified: %w", err)
	}
	out := make(map[string]int64, len(vs))
	for _, v := range vs {
		out[v.VideoID] = v.Timestamp
	}
	return out, nil
}

// AddSeen upserts each ID as seen. Each write commits independently, so a
// crash partway through leaves only the unwritten tail missing rather
// than corrupting what was already durably written.
func (s *DatastoreStore) AddSeen(ctx context.Context, channel int64, ids map[string]bool) error {
	for id := range ids {
		v := &seenVideo{Channel: channel, VideoID: id}
		key := seenKey(s.store, channel, id)
		if _, err := s.store.Put(ctx, key, v); err != nil {
			return fmt.Errorf("could not persist seen video %s: %w", id, err)
		}
	}
	return nil
}

func (s *DatastoreStore) AddNotified(ctx context.Context, channel int64, notified map[string]int64) error {
	for id, ts := range notified {
		v := &notifiedVideo{Channel: channel, VideoID: id, Timestamp: ts}
		key := notifiedKey(s.store, channel, id)
		if _, err := s.store.Put(ctx, key, v); err != nil {
			return fmt.Errorf("could not persist notified video %s: %w", id, err)
		}
	}
	return nil
}

func (s *DatastoreStore) List(ctx context.Context, channel int64) (Snapshot, error) {
	seen, err := s.LoadSeen(ctx, channel)
	if err != nil && !errors.Is(err, datastore.ErrNoSuchEntity) {
		return Snapshot{}, err
	}
	notified, err := s.LoadNotified(ctx, channel)
	if err != nil && !errors.Is(err, datastore.ErrNoSuchEntity) {
		return Snapshot{}, err
	}
	return Snapshot{Seen: seen, Notified: notified}, nil
}
