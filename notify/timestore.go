/*
LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean)

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

package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ausocean/openfish/datastore"
)

const typeNotifyTime = "NotifyTime"

// notifyTime is the persisted record of when a notification of a given
// kind was last sent for a channel. Modelled on the tab-separated
// Encode/Decode convention used throughout this codebase's datastore
// entities.
type notifyTime struct {
	Channel int64
	Key     string
	Sent    time.Time
}

func (t *notifyTime) Encode() []byte {
	return []byte(fmt.Sprintf("%d\t%s\t%d", t.Channel, t.Key, t.Sent.Unix()))
}

func (t *notifyTime) Decode(b []byte) error {
	p := strings.SplitN(string(b), "\t", 3)
	if len(p) != 3 {
		return datastore.ErrDecoding
	}
	var err error
	t.Channel, err = strconv.ParseInt(p[0], 10, 64)
	if err != nil {
		return datastore.ErrDecoding
	}
	t.Key = p[1]
	ts, err := strconv.ParseInt(p[2], 10, 64)
	if err != nil {
		return datastore.ErrDecoding
	}
	t.Sent = time.Unix(ts, 0)
	return nil
}

func (t *notifyTime) Copy(datastore.Entity) (datastore.Entity, error) {
	return nil, datastore.ErrUnimplemented
}

func (t *notifyTime) GetCache() datastore.Cache { return nil }

func (s *dsTimeStore) key(channel int64, k string) *datastore.Key {
	return s.store.NameKey(typeNotifyTime, strconv.FormatInt(channel, 10)+"."+k)
}

// Get returns the last time a notification with the given key was sent
// for channel. A zero time with no error is returned if none was ever
// recorded.
func (s *dsTimeStore) Get(channel int64, k string) (time.Time, error) {
	var nt notifyTime
	err := s.store.Get(context.Background(), s.key(channel, k), &nt)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return nt.Sent, nil
}

// Set records t as the last-sent time for key under channel.
func (s *dsTimeStore) Set(channel int64, k string, t time.Time) error {
	nt := &notifyTime{Channel: channel, Key: k, Sent: t}
	_, err := s.store.Put(context.Background(), s.key(channel, k), nt)
	return err
}
