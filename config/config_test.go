package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "channels.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadChannels(t *testing.T) {
	path := writeTemp(t, `{"channels":[
		{"id": 1, "urls": ["https://youtube.com/c/one", "https://youtube.com/@one"]},
		{"id": 2, "urls": "not-a-list"},
		{"id": 3, "urls": []}
	]}`)

	var skipped []int64
	refs, err := LoadChannels(path, func(id int64) { skipped = append(skipped, id) })
	require.NoError(t, err)

	require.Len(t, refs, 2)
	assert.Equal(t, int64(1), refs[0].ID)
	assert.Len(t, refs[0].URLs, 2)
	assert.Equal(t, int64(3), refs[1].ID)
	assert.Empty(t, refs[1].URLs)

	assert.Equal(t, []int64{2}, skipped)
}

func TestLoadChannelsMissingFile(t *testing.T) {
	_, err := LoadChannels(filepath.Join(t.TempDir(), "missing.json"), nil)
	require.Error(t, err)
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, 3, c.ProbeChunkSize)
	assert.Equal(t, 5, c.ProbeConcurrency)
	assert.Equal(t, 3, c.MaxRetries)
	assert.Equal(t, "/live/test", c.RTMPPath)
}
