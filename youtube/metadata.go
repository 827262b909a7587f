/*
DESCRIPTION
  metadata.go provides an optional YouTube Data API v3 backed resolver
  for per-video metadata, used as an alternative to the subprocess-based
  extractor resolver when an API key is configured.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2025 the Australian Ocean Lab (AusOcean)

  This file is part of Ocean TV. Ocean TV is free software: you can
  redistribute it and/or modify it under the terms of the GNU
  General Public License as published by the Free Software
  Foundation, either version 3 of the License, or (at your option)
  any later version.

  Ocean TV is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see <http://www.gnu.org/licenses/>.
*/

// Package youtube provides helpers for talking to YouTube as a source of
// channel and video information, as opposed to AusOcean's historical use
// of this module for broadcasting to YouTube.
package youtube

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// APIClient wraps the YouTube Data API v3 client for the narrow set of
// calls the monitor needs: listing a channel's uploads and fetching the
// live-broadcast details of individual videos.
type APIClient struct {
	svc *youtube.Service
}

// NewAPIClient constructs an APIClient authorised with a simple API key.
// This is deliberately not an OAuth flow: channel listings and public
// video metadata don't require a signed-in user, only a project API key.
func NewAPIClient(ctx context.Context, apiKey string) (*APIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is empty")
	}
	svc, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("could not create youtube service: %w", err)
	}
	return &APIClient{svc: svc}, nil
}

// UploadsPlaylistID returns the ID of the channel's uploads playlist, which
// lists every public video id published on the channel, most recent first.
func (c *APIClient) UploadsPlaylistID(ctx context.Context, channelID string) (string, error) {
	call := c.svc.Channels.List([]string{"contentDetails"}).Id(channelID).Context(ctx)
	resp, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("could not list channel: %w", err)
	}
	if len(resp.Items) == 0 {
		return "", fmt.Errorf("no such channel: %s", channelID)
	}
	return resp.Items[0].ContentDetails.RelatedPlaylists.Uploads, nil
}

// VideoIDs returns the video IDs currently listed in the given playlist,
// up to maxResults. An empty or missing playlist yields an empty slice.
func (c *APIClient) VideoIDs(ctx context.Context, playlistID string, maxResults int64) ([]string, error) {
	if playlistID == "" {
		return nil, nil
	}
	call := c.svc.PlaylistItems.List([]string{"contentDetails"}).PlaylistId(playlistID).MaxResults(maxResults).Context(ctx)
	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("could not list playlist items: %w", err)
	}
	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ContentDetails == nil || item.ContentDetails.VideoId == "" {
			continue
		}
		ids = append(ids, item.ContentDetails.VideoId)
	}
	return ids, nil
}

// VideoRecord is the projection of the Data API v3's video resource onto
// the fields the broadcast-state classifier needs.
type VideoRecord struct {
	IsLive           bool
	WasLive          bool
	LiveStatus       string
	ReleaseTimestamp int64
	Duration         int64 // seconds; zero means no duration is known.
	FormatURLs       []string
}

// Video fetches snippet, liveStreamingDetails and contentDetails for a
// single video and
// projects the response onto VideoRecord. The Data API doesn't expose a
// "live_status" enum directly the way the subprocess extractor does, so
// one is derived here from liveBroadcastContent and the presence of
// liveStreamingDetails timestamps.
func (c *APIClient) Video(ctx context.Context, videoID string) (*VideoRecord, error) {
	call := c.svc.Videos.List([]string{"snippet", "liveStreamingDetails", "contentDetails"}).Id(videoID).Context(ctx)
	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("could not get video: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("no such video: %s", videoID)
	}
	v := resp.Items[0]

	rec := &VideoRecord{}
	if v.Snippet != nil {
		switch v.Snippet.LiveBroadcastContent {
		case "live":
			rec.IsLive = true
			rec.LiveStatus = "is_live"
		case "upcoming":
			rec.LiveStatus = "is_upcoming"
		default:
			rec.LiveStatus = "not_live"
		}
	}

	if lsd := v.LiveStreamingDetails; lsd != nil {
		switch {
		case lsd.ActualStartTime != "" && lsd.ActualEndTime != "":
			rec.WasLive = true
			rec.LiveStatus = "post_live"
		case lsd.ActualStartTime != "" && lsd.ActualEndTime == "":
			rec.IsLive = true
			rec.LiveStatus = "is_live"
		case lsd.ScheduledStartTime != "":
			rec.LiveStatus = "is_upcoming"
		}

		ts := lsd.ScheduledStartTime
		if lsd.ActualStartTime != "" {
			ts = lsd.ActualStartTime
		}
		if ts != "" {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				rec.ReleaseTimestamp = t.Unix()
			}
		}
	}

	if v.ContentDetails != nil {
		rec.Duration = parseISODurationSeconds(v.ContentDetails.Duration)
	}

	return rec, nil
}

// parseISODurationSeconds parses a subset of ISO-8601 durations (the
// PT#H#M#S form the Data API always returns) into whole seconds. It
// returns 0 for anything it doesn't recognise rather than erroring,
// matching the classifier's treatment of an absent duration.
func parseISODurationSeconds(s string) int64 {
	if len(s) < 2 || s[0] != 'P' {
		return 0
	}
	var hours, mins, secs int64
	var num string
	inTime := false
	for _, r := range s[1:] {
		switch {
		case r == 'T':
			inTime = true
		case r >= '0' && r <= '9':
			num += string(r)
		case r == 'H' && inTime:
			hours, _ = parseInt(num)
			num = ""
		case r == 'M' && inTime:
			mins, _ = parseInt(num)
			num = ""
		case r == 'S' && inTime:
			secs, _ = parseInt(num)
			num = ""
		default:
			num = ""
		}
	}
	return hours*3600 + mins*60 + secs
}

func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
