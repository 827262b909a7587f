/*
DESCRIPTION
  resolver.go resolves a Video Metadata Record for a single candidate
  video, either by shelling out to the extractor binary or via the
  YouTube Data API v3.

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

// Package metadata fetches a per-video metadata record and projects it
// onto classify.Record, the narrow shape the broadcast-state classifier
// consumes.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ausocean/streamwatch/classify"
)

// Resolver fetches a Video Metadata Record for a single video ID.
type Resolver interface {
	Resolve(ctx context.Context, videoID string) (classify.Record, error)
}

// videoInfo is the subset of the extractor's --dump-single-json output
// the classifier needs. release_timestamp is decoded via json.RawMessage
// because the upstream source sometimes serializes an unset value as the
// literal JSON string "null" rather than JSON null.
type videoInfo struct {
	IsLive           bool            `json:"is_live"`
	WasLive          bool            `json:"was_live"`
	LiveStatus       string          `json:"live_status"`
	ReleaseTimestamp json.RawMessage `json:"release_timestamp"`
	Duration         json.RawMessage `json:"duration"`
	Formats          []struct {
		URL         string `json:"url"`
		ManifestURL string `json:"manifest_url"`
	} `json:"formats"`
}

// ExtractorResolver resolves metadata by shelling out to the extractor
// binary against a single video URL.
type ExtractorResolver struct {
	Bin           string // Defaults to "extractor".
	ChannelURLFmt string // fmt verb producing a video URL from an ID, e.g. "https://www.youtube.com/watch?v=%s".
}

func (r ExtractorResolver) bin() string {
	if r.Bin == "" {
		return "extractor"
	}
	return r.Bin
}

func (r ExtractorResolver) videoURL(videoID string) string {
	format := r.ChannelURLFmt
	if format == "" {
		format = "https://www.youtube.com/watch?v=%s"
	}
	return fmt.Sprintf(format, videoID)
}

// Resolve runs the extractor in single-video metadata mode and projects
// its output onto classify.Record.
func (r ExtractorResolver) Resolve(ctx context.Context, videoID string) (classify.Record, error) {
	cmd := exec.CommandContext(ctx, r.bin(), "--dump-single-json", "--no-playlist", r.videoURL(videoID))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return classify.Record{}, fmt.Errorf("extractor metadata fetch failed: %w: %s", err, stderr.String())
	}

	var info videoInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return classify.Record{}, fmt.Errorf("could not parse extractor metadata: %w", err)
	}

	return projectVideoInfo(info), nil
}

func projectVideoInfo(info videoInfo) classify.Record {
	rec := classify.Record{
		IsLive:     info.IsLive,
		WasLive:    info.WasLive,
		LiveStatus: info.LiveStatus,
	}

	rec.ReleaseTimestamp = classify.CoerceReleaseTimestamp(decodeLoose(info.ReleaseTimestamp))
	rec.HasDuration = classify.CoerceReleaseTimestamp(decodeLoose(info.Duration)) > 0 || hasNumericDuration(info.Duration)

	for _, f := range info.Formats {
		if f.URL != "" {
			rec.FormatURLs = append(rec.FormatURLs, f.URL)
		}
		if f.ManifestURL != "" {
			rec.FormatURLs = append(rec.FormatURLs, f.ManifestURL)
		}
	}
	return rec
}

// decodeLoose unmarshals a raw JSON scalar into a generic any, tolerating
// an absent field (nil raw message) and the bare literal "null".
func decodeLoose(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	s := strings.TrimSpace(string(raw))
	if s == "null" || s == `"null"` {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func hasNumericDuration(raw json.RawMessage) bool {
	v := decodeLoose(raw)
	f, ok := v.(float64)
	return ok && f > 0
}
