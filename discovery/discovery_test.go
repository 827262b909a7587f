package discovery

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeChannelURL(t *testing.T) {
	got, err := NormalizeChannelURL("https://www.youtube.com/c/example/")
	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/c/example", got)

	_, err = NormalizeChannelURL("https://vimeo.com/example")
	assert.Error(t, err)
}

type fakeProber struct {
	results map[string]map[string]bool
	errs    map[string]error
	calls   atomic.Int32
	delay   time.Duration
}

func (f *fakeProber) Probe(ctx context.Context, channelURL string) (map[string]bool, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err, ok := f.errs[channelURL]; ok {
		return map[string]bool{}, err
	}
	return f.results[channelURL], nil
}

func TestSchedulerUnionsAndIsolatesFailures(t *testing.T) {
	fp := &fakeProber{
		results: map[string]map[string]bool{
			"a": {"id1": true},
			"b": {"id2": true},
			"c": {"id1": true, "id3": true},
		},
		errs: map[string]error{
			"d": fmt.Errorf("boom"),
		},
	}
	s := Scheduler{Prober: fp, ChunkSize: 2, Concurrency: 2, InterChunkPause: time.Millisecond}
	got := s.Run(context.Background(), []string{"a", "b", "c", "d"})

	assert.Equal(t, map[string]bool{"id1": true, "id2": true, "id3": true}, got)
	assert.EqualValues(t, 4, fp.calls.Load())
}

func TestSchedulerEmptyInput(t *testing.T) {
	s := Scheduler{Prober: &fakeProber{}}
	got := s.Run(context.Background(), nil)
	assert.Empty(t, got)
}

func TestSchedulerRespectsContextCancellation(t *testing.T) {
	fp := &fakeProber{results: map[string]map[string]bool{}, delay: 50 * time.Millisecond}
	s := Scheduler{Prober: fp, ChunkSize: 1, Concurrency: 1, InterChunkPause: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	s.Run(ctx, []string{"a", "b", "c"})
	assert.Less(t, time.Since(start), 2*time.Second)
}
