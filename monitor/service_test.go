package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ausocean/streamwatch/classify"
	"github.com/ausocean/streamwatch/config"
	"github.com/ausocean/streamwatch/discovery"
	"github.com/ausocean/streamwatch/ingestqueue"
	"github.com/ausocean/streamwatch/seenstore"
)

type fakeProber struct{ ids map[string]bool }

func (f fakeProber) Probe(ctx context.Context, url string) (map[string]bool, error) {
	return f.ids, nil
}

type fakeResolver struct {
	recs map[string]classify.Record
}

func (f fakeResolver) Resolve(ctx context.Context, videoID string) (classify.Record, error) {
	return f.recs[videoID], nil
}

type fakeRunner struct{ runs []ingestqueue.Job }

func (f *fakeRunner) Run(ctx context.Context, job ingestqueue.Job) (int, int, int, error) {
	f.runs = append(f.runs, job)
	return 0, 0, 1, nil
}

type alwaysFree struct{}

func (alwaysFree) IsIngesting(ctx context.Context) bool { return false }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestService(t *testing.T, ids map[string]bool, recs map[string]classify.Record) (*Service, *ingestqueue.Queue, *fakeRunner, *seenstore.MemoryStore) {
	t.Helper()
	store := seenstore.NewMemoryStore()
	runner := &fakeRunner{}
	q := ingestqueue.New(runner, alwaysFree{})
	ch := config.ChannelRef{ID: 1, URLs: []string{"https://www.youtube.com/c/example"}}
	sched := discovery.Scheduler{Prober: fakeProber{ids: ids}}
	resolver := fakeResolver{recs: recs}

	svc, err := NewService(context.Background(), ch, sched, resolver, store, q, config.Default(), nil, nil)
	require.NoError(t, err)
	svc.Clock = fixedClock{t: time.Unix(1000, 0)}
	return svc, q, runner, store
}

func TestFirstTickSeedsWithoutEnqueuing(t *testing.T) {
	svc, q, runner, store := newTestService(t, map[string]bool{"A": true, "B": true}, nil)

	svc.tick(context.Background())
	q.Wait()

	assert.Empty(t, runner.runs, "first tick must not enqueue anything")
	seen, err := store.LoadSeen(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"A": true, "B": true}, seen)
}

func TestSecondTickEnqueuesOnlyNewIDs(t *testing.T) {
	svc, q, runner, _ := newTestService(t, map[string]bool{"A": true}, nil)
	svc.tick(context.Background()) // Seed.

	svc.Scheduler.Prober = fakeProber{ids: map[string]bool{"A": true, "L": true}}
	svc.Resolver = fakeResolver{recs: map[string]classify.Record{
		"L": {LiveStatus: classify.LiveStatusPostLive, ReleaseTimestamp: 1},
	}}
	svc.tick(context.Background())
	q.Wait()

	require.Len(t, runner.runs, 1)
	assert.Contains(t, runner.runs[0].VideoURL, "L")
}

func TestFutureScheduledNotEnqueued(t *testing.T) {
	svc, q, runner, store := newTestService(t, map[string]bool{}, nil)
	svc.tick(context.Background()) // Seed with empty set.

	svc.Scheduler.Prober = fakeProber{ids: map[string]bool{"U": true}}
	svc.Resolver = fakeResolver{recs: map[string]classify.Record{
		"U": {LiveStatus: classify.LiveStatusIsUpcoming, ReleaseTimestamp: 2000}, // now=1000
	}}
	svc.tick(context.Background())
	q.Wait()

	assert.Empty(t, runner.runs)
	notified, err := store.LoadNotified(context.Background(), 1)
	require.NoError(t, err)
	assert.NotContains(t, notified, "U")

	seen, err := store.LoadSeen(context.Background(), 1)
	require.NoError(t, err)
	assert.Contains(t, seen, "U", "future-scheduled video is still recorded as seen")
}

func TestLateScheduledEnqueuedAndNotified(t *testing.T) {
	svc, q, runner, store := newTestService(t, map[string]bool{}, nil)
	svc.tick(context.Background())

	svc.Scheduler.Prober = fakeProber{ids: map[string]bool{"U": true}}
	svc.Resolver = fakeResolver{recs: map[string]classify.Record{
		"U": {LiveStatus: classify.LiveStatusIsUpcoming, ReleaseTimestamp: 500}, // now=1000, elapsed
	}}
	svc.tick(context.Background())
	q.Wait()

	require.Len(t, runner.runs, 1)
	notified, err := store.LoadNotified(context.Background(), 1)
	require.NoError(t, err)
	assert.Contains(t, notified, "U")
}

func TestSeenNeverShrinksAcrossTicks(t *testing.T) {
	svc, q, _, store := newTestService(t, map[string]bool{"A": true}, nil)
	svc.tick(context.Background())
	firstSeen, _ := store.LoadSeen(context.Background(), 1)

	svc.Scheduler.Prober = fakeProber{ids: map[string]bool{}}
	svc.tick(context.Background())
	q.Wait()
	secondSeen, _ := store.LoadSeen(context.Background(), 1)

	for id := range firstSeen {
		assert.True(t, secondSeen[id])
	}
}

func TestNotifiedIsSubsetOfSeen(t *testing.T) {
	svc, q, _, store := newTestService(t, map[string]bool{}, nil)
	svc.tick(context.Background())

	svc.Scheduler.Prober = fakeProber{ids: map[string]bool{"L": true}}
	svc.Resolver = fakeResolver{recs: map[string]classify.Record{
		"L": {LiveStatus: classify.LiveStatusPostLive, ReleaseTimestamp: 1},
	}}
	svc.tick(context.Background())
	q.Wait()

	seen, _ := store.LoadSeen(context.Background(), 1)
	notified, _ := store.LoadNotified(context.Background(), 1)
	for id := range notified {
		assert.True(t, seen[id])
	}
}
