/*
DESCRIPTION
  probe.go implements the Channel Discovery Probe: extracting the set of
  video IDs currently visible on one channel URL.

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

// Package discovery extracts the current list of video IDs visible on a
// channel URL (the Probe) and fans that out across many channel URLs
// under a bounded concurrency (the Scheduler).
package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
)

var supportedHosts = map[string]bool{
	"youtube.com":    true,
	"www.youtube.com": true,
	"m.youtube.com":  true,
}

// NormalizeChannelURL normalizes raw to scheme + host + path with any
// trailing slash stripped, and rejects hosts that aren't the expected
// video platform.
func NormalizeChannelURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("could not parse channel url: %w", err)
	}
	if !supportedHosts[strings.ToLower(u.Host)] {
		return "", fmt.Errorf("unsupported channel host: %s", u.Host)
	}
	path := strings.TrimSuffix(u.Path, "/")
	return u.Scheme + "://" + u.Host + path, nil
}

// Prober extracts the set of video IDs currently visible on a channel URL.
type Prober interface {
	Probe(ctx context.Context, channelURL string) (map[string]bool, error)
}

// flatPlaylistEntry is one entry of the extractor's flat-playlist dump.
// Entries may themselves carry a nested "entries" list (a channel's tabs),
// so probing recurses through nested lists to find leaf video ids.
type flatPlaylistEntry struct {
	ID      string              `json:"id"`
	Entries []flatPlaylistEntry `json:"entries"`
}

type flatPlaylistResult struct {
	Entries []flatPlaylistEntry `json:"entries"`
}

// ExtractorProber probes a channel by shelling out to the configured
// extractor binary in flat-playlist mode, which returns a shallow JSON
// enumeration without per-video metadata.
type ExtractorProber struct {
	Bin string // Defaults to "extractor" if empty.
}

func (p ExtractorProber) bin() string {
	if p.Bin == "" {
		return "extractor"
	}
	return p.Bin
}

// Probe runs the extractor against channelURL and returns the set of
// video IDs found. Missing/empty/null "entries" and any process or parse
// failure yield the empty set; errors are returned for the caller to log,
// never panicked on.
func (p ExtractorProber) Probe(ctx context.Context, channelURL string) (map[string]bool, error) {
	cmd := exec.CommandContext(ctx, p.bin(), "--flat-playlist", "--dump-single-json", "--no-warnings", channelURL)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return map[string]bool{}, fmt.Errorf("extractor probe failed: %w: %s", err, stderr.String())
	}

	var res flatPlaylistResult
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		return map[string]bool{}, fmt.Errorf("could not parse extractor output: %w", err)
	}

	ids := map[string]bool{}
	collectIDs(res.Entries, ids)
	return ids, nil
}

func collectIDs(entries []flatPlaylistEntry, out map[string]bool) {
	for _, e := range entries {
		if e.ID != "" {
			out[e.ID] = true
		}
		if len(e.Entries) > 0 {
			collectIDs(e.Entries, out)
		}
	}
}

// APIProber probes a channel via the YouTube Data API v3's uploads
// playlist, used when an API key is configured as an alternative to
// shelling out to the extractor.
type APIProber struct {
	Client interface {
		UploadsPlaylistID(ctx context.Context, channelID string) (string, error)
		VideoIDs(ctx context.Context, playlistID string, maxResults int64) ([]string, error)
	}
	ChannelID  string
	MaxResults int64
}

// Probe ignores channelURL (the API prober is keyed by channel ID, set at
// construction) and returns the uploads playlist's current video IDs.
func (p APIProber) Probe(ctx context.Context, channelURL string) (map[string]bool, error) {
	playlistID, err := p.Client.UploadsPlaylistID(ctx, p.ChannelID)
	if err != nil {
		return map[string]bool{}, fmt.Errorf("could not resolve uploads playlist: %w", err)
	}
	max := p.MaxResults
	if max == 0 {
		max = 50
	}
	ids, err := p.Client.VideoIDs(ctx, playlistID, max)
	if err != nil {
		return map[string]bool{}, fmt.Errorf("could not list uploads: %w", err)
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
