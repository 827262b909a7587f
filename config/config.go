/*
DESCRIPTION
  config.go defines the explicit configuration struct for the monitor
  service and the channel configuration file loader.

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

// Package config holds the monitor's explicit configuration struct and the
// channel reference JSON loader. Nothing here is a package-level global;
// every value is threaded in from main via a Config value.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ChannelRef is a stable channel key plus the URLs that alias it. Discovery
// unions results across all of a channel's URLs.
type ChannelRef struct {
	ID       int64
	URLs     []string
	Username string // Per-channel ingest-status login override; optional.
	Password string
}

// Config is the monitor service's explicit configuration. It replaces the
// module-level globals the source relies on for paths and options.
type Config struct {
	PollInterval            time.Duration
	ProbeConcurrency        int
	ProbeChunkSize          int
	InterChunkPause         time.Duration
	MaxRetries              int
	StoreDir                string
	ChannelsFile            string
	CredentialStorageDir    string
	IngestAPIBase           string
	IngestUsername          string
	IngestPassword          string
	RTMPPath                string
	SubprocessShutdownGrace time.Duration
	ExtractorBin            string
	RemuxerBin              string

	// YouTubeAPIKey, if set, makes the YouTube Data API v3 the metadata
	// backend in place of the subprocess extractor. Discovery always
	// uses the subprocess extractor, whether or not this is set.
	YouTubeAPIKey string

	// AssumeFreeOnIngestError controls what IsIngesting returns on an
	// upstream error. true (the source's literal behavior) assumes free;
	// false assumes busy, trading a stalled queue for protection against
	// double-ingest. See DESIGN.md's Open Question record.
	AssumeFreeOnIngestError bool
}

// Default returns a Config populated with the defaults named in the
// design notes: 300s poll interval, concurrency 5, chunk size 3, 3
// retries, 5s subprocess shutdown grace, rtmp path "/live/test".
func Default() Config {
	return Config{
		PollInterval:             300 * time.Second,
		ProbeConcurrency:         5,
		ProbeChunkSize:           3,
		InterChunkPause:          500 * time.Millisecond,
		MaxRetries:               3,
		RTMPPath:                 "/live/test",
		SubprocessShutdownGrace:  5 * time.Second,
		ExtractorBin:            "extractor",
		RemuxerBin:              "remuxer",
		AssumeFreeOnIngestError: true,
	}
}

// channelsFile is the on-disk shape of the channel configuration file.
type channelsFile struct {
	Channels []channelEntry `json:"channels"`
}

type channelEntry struct {
	ID       int64           `json:"id"`
	URLs     json.RawMessage `json:"urls"`
	Username string          `json:"username,omitempty"`
	Password string          `json:"password,omitempty"`
}

// LoadChannels reads and parses the channel configuration file at path. A
// channel whose urls field isn't a JSON array is skipped, not treated as
// fatal; onSkip, if non-nil, is called with its id for logging.
func LoadChannels(path string, onSkip func(id int64)) ([]ChannelRef, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read channels file: %w", err)
	}

	var cf channelsFile
	if err := json.Unmarshal(b, &cf); err != nil {
		return nil, fmt.Errorf("could not parse channels file: %w", err)
	}

	refs := make([]ChannelRef, 0, len(cf.Channels))
	for _, c := range cf.Channels {
		var urls []string
		if err := json.Unmarshal(c.URLs, &urls); err != nil {
			if onSkip != nil {
				onSkip(c.ID)
			}
			continue
		}
		refs = append(refs, ChannelRef{
			ID:       c.ID,
			URLs:     urls,
			Username: c.Username,
			Password: c.Password,
		})
	}
	return refs, nil
}
