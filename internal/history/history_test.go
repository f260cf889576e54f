package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.arenberg.net/steen/sitebuilder/internal/site"
)

func sampleReport(id string, started time.Time) *site.Report {
	return &site.Report{
		ID:         id,
		StartedAt:  started,
		FinishedAt: started.Add(120 * time.Millisecond),
		DurationMS: 120,
		Sources:    5,
		Tags:       2,
		Posts:      5,
		Listings:   3,
		Changed:    1,
		Outcome:    site.OutcomeSuccess,
		Stages: map[string]time.Duration{
			"render": 80 * time.Millisecond,
		},
	}
}

func TestRecordAndGet_RoundTrips(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	in := sampleReport("build-1", started)
	require.NoError(t, store.Record(context.Background(), in))

	out, err := store.Get(context.Background(), "build-1")
	require.NoError(t, err)
	require.Equal(t, in.ID, out.ID)
	require.Equal(t, started.Unix(), out.StartedAt.Unix())
	require.Equal(t, in.DurationMS, out.DurationMS)
	require.Equal(t, in.Sources, out.Sources)
	require.Equal(t, in.Posts, out.Posts)
	require.Equal(t, in.Listings, out.Listings)
	require.Equal(t, site.OutcomeSuccess, out.Outcome)
	require.Equal(t, 80*time.Millisecond, out.Stages["render"])
}

func TestGet_UnknownID(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
	require.Contains(t, err.Error(), "nope")
}

func TestRecent_NewestFirst(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"build-a", "build-b", "build-c"} {
		r := sampleReport(id, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.Record(context.Background(), r))
	}

	reports, err := store.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	require.Equal(t, "build-c", reports[0].ID)
	require.Equal(t, "build-b", reports[1].ID)
}

func TestRecord_SameIDReplaces(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	first := sampleReport("build-1", started)
	require.NoError(t, store.Record(context.Background(), first))

	second := sampleReport("build-1", started)
	second.Changed = 4
	require.NoError(t, store.Record(context.Background(), second))

	reports, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, 4, reports[0].Changed)
}

func TestRecord_FailedBuildKeepsError(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	r := sampleReport("build-1", time.Now())
	r.Outcome = site.OutcomeFailed
	r.Error = "content: source slug collides with tag"
	require.NoError(t, store.Record(context.Background(), r))

	out, err := store.Get(context.Background(), "build-1")
	require.NoError(t, err)
	require.Equal(t, site.OutcomeFailed, out.Outcome)
	require.Contains(t, out.Error, "collides")
}

func TestOpen_CreatesFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(context.Background(), sampleReport("build-1", time.Now())))
	require.NoError(t, store.Close())

	// Reopening sees the earlier row.
	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	reports, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, reports, 1)
}
