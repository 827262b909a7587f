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

package ingeststatus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// fileCredential is the on-disk shape of a cached credential:
// {"token": "<opaque>", "expiry": <epoch_seconds>}.
type fileCredential struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"`
}

// FileCredentialStore persists a channel's bearer credential to
// <dir>/token_channel_<id>.json, file mode 0600, directory mode 0700, so
// concurrent processes for different channels don't collide.
type FileCredentialStore struct {
	Dir     string
	Channel int64
}

func (s FileCredentialStore) path() string {
	return filepath.Join(s.Dir, fmt.Sprintf("token_channel_%d.json", s.Channel))
}

// Load reads the cached credential. A missing file is not an error; it
// returns an empty token so the caller re-logs in.
func (s FileCredentialStore) Load() (string, int64, error) {
	b, err := os.ReadFile(s.path())
	if os.IsNotExist(err) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("could not read credential file: %w", err)
	}
	var fc fileCredential
	if err := json.Unmarshal(b, &fc); err != nil {
		return "", 0, fmt.Errorf("could not parse credential file: %w", err)
	}
	return fc.Token, fc.Expiry, nil
}

// Save persists the credential, creating the directory if needed.
func (s FileCredentialStore) Save(token string, expiry int64) error {
	if err := os.MkdirAll(s.Dir, 0700); err != nil {
		return fmt.Errorf("could not create credential directory: %w", err)
	}
	b, err := json.Marshal(fileCredential{Token: token, Expiry: expiry})
	if err != nil {
		return fmt.Errorf("could not encode credential: %w", err)
	}
	if err := os.WriteFile(s.path(), b, 0600); err != nil {
		return fmt.Errorf("could not write credential file: %w", err)
	}
	return nil
}
