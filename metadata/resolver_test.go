package metadata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectVideoInfoNullStringReleaseTimestamp(t *testing.T) {
	info := videoInfo{
		LiveStatus:       "post_live",
		ReleaseTimestamp: []byte(`"null"`),
	}
	rec := projectVideoInfo(info)
	assert.Equal(t, int64(0), rec.ReleaseTimestamp)
}

func TestProjectVideoInfoAbsentReleaseTimestamp(t *testing.T) {
	info := videoInfo{LiveStatus: "not_live"}
	rec := projectVideoInfo(info)
	assert.Equal(t, int64(0), rec.ReleaseTimestamp)
}

func TestProjectVideoInfoNumericReleaseTimestamp(t *testing.T) {
	info := videoInfo{ReleaseTimestamp: []byte(`1700000000`)}
	rec := projectVideoInfo(info)
	assert.Equal(t, int64(1700000000), rec.ReleaseTimestamp)
}

func TestProjectVideoInfoFormats(t *testing.T) {
	info := videoInfo{}
	info.Formats = append(info.Formats, struct {
		URL         string `json:"url"`
		ManifestURL string `json:"manifest_url"`
	}{URL: "https://example.com/a?yt_live_broadcast=1"})
	rec := projectVideoInfo(info)
	require.Len(t, rec.FormatURLs, 1)
	assert.Contains(t, rec.FormatURLs[0], "yt_live_broadcast")
}

type fakeVideoAPI struct {
	rec *apiVideoRecord
	err error
}

func (f fakeVideoAPI) Video(ctx context.Context, videoID string) (*apiVideoRecord, error) {
	return f.rec, f.err
}

func TestAPIResolverProjection(t *testing.T) {
	r := APIResolver{Client: fakeVideoAPI{rec: &apiVideoRecord{
		IsLive:     true,
		LiveStatus: "is_live",
		Duration:   0,
	}}}
	rec, err := r.Resolve(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, rec.IsLive)
	assert.False(t, rec.HasDuration)
}
