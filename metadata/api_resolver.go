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

package metadata

import (
	"context"
	"fmt"

	"github.com/ausocean/streamwatch/classify"
	"github.com/ausocean/streamwatch/youtube"
)

// videoAPI is the narrow slice of youtube.APIClient that APIResolver
// needs, kept as an interface so tests don't require live credentials.
type videoAPI interface {
	Video(ctx context.Context, videoID string) (*apiVideoRecord, error)
}

// apiVideoRecord mirrors youtube.VideoRecord's fields; kept separate so
// the videoAPI interface and its test doubles don't name
// youtube.VideoRecord.
type apiVideoRecord struct {
	IsLive           bool
	WasLive          bool
	LiveStatus       string
	ReleaseTimestamp int64
	Duration         int64
	FormatURLs       []string
}

// APIResolver resolves metadata via the YouTube Data API v3, used as an
// alternative to ExtractorResolver when Config.YouTubeAPIKey is set.
type APIResolver struct {
	Client videoAPI
}

// apiClientAdapter adapts *youtube.APIClient to the videoAPI interface.
type apiClientAdapter struct {
	client *youtube.APIClient
}

// NewAPIResolver wraps a youtube.APIClient as a Resolver.
func NewAPIResolver(client *youtube.APIClient) APIResolver {
	return APIResolver{Client: apiClientAdapter{client: client}}
}

func (a apiClientAdapter) Video(ctx context.Context, videoID string) (*apiVideoRecord, error) {
	v, err := a.client.Video(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return &apiVideoRecord{
		IsLive:           v.IsLive,
		WasLive:          v.WasLive,
		LiveStatus:       v.LiveStatus,
		ReleaseTimestamp: v.ReleaseTimestamp,
		Duration:         v.Duration,
		FormatURLs:       v.FormatURLs,
	}, nil
}

// Resolve fetches videoID's metadata through the Data API and projects
// it onto classify.Record.
func (r APIResolver) Resolve(ctx context.Context, videoID string) (classify.Record, error) {
	v, err := r.Client.Video(ctx, videoID)
	if err != nil {
		return classify.Record{}, fmt.Errorf("could not resolve video via api: %w", err)
	}
	return classify.Record{
		IsLive:           v.IsLive,
		WasLive:          v.WasLive,
		LiveStatus:       v.LiveStatus,
		ReleaseTimestamp: v.ReleaseTimestamp,
		HasDuration:      v.Duration > 0,
		FormatURLs:       v.FormatURLs,
	}, nil
}
