package scan

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/catalogd/internal/storage"
)

func newJobStore(t *testing.T) *JobStore {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewJobStore(db)
}

func TestJobStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newJobStore(t)

	started := time.Now().UTC()
	require.NoError(t, s.Create(ctx, &Job{
		ID:        "job-1",
		Status:    StatusRunning,
		Schedule:  "nightly",
		Config:    Config{Roots: []string{"/nas"}, BatchSize: 100},
		StartedAt: started,
	}))

	require.NoError(t, s.UpdateProgress(ctx, "job-1", Counts{FilesSeen: 10, Upserts: 8}, "/nas/x", ""))

	got, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, "nightly", got.Schedule)
	assert.Equal(t, int64(10), got.Counts.FilesSeen)
	assert.Equal(t, "/nas/x", got.LastPath)
	assert.Equal(t, []string{"/nas"}, got.Config.Roots)
	assert.Nil(t, got.FinishedAt)

	require.NoError(t, s.Finish(ctx, "job-1", StatusComplete, Counts{FilesSeen: 12, Upserts: 12}, "", "", time.Now()))

	got, err = s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, got.Status)
	assert.Equal(t, int64(12), got.Counts.FilesSeen)
	assert.Equal(t, "/nas/x", got.LastPath, "empty last path keeps the stored one")
	require.NotNil(t, got.FinishedAt)

	// Terminal jobs are never reopened.
	assert.Error(t, s.Finish(ctx, "job-1", StatusStopped, Counts{}, "", "", time.Now()))
	require.NoError(t, s.UpdateProgress(ctx, "job-1", Counts{FilesSeen: 99}, "", ""))
	got, err = s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, got.Status)
	assert.Equal(t, int64(12), got.Counts.FilesSeen)
}

func TestJobStoreFinishRejectsRunning(t *testing.T) {
	s := newJobStore(t)
	err := s.Finish(context.Background(), "x", StatusRunning, Counts{}, "", "", time.Now())
	assert.Error(t, err)
}

func TestJobStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newJobStore(t)

	base := time.Now().UTC()
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, s.Create(ctx, &Job{
			ID:        id,
			Status:    StatusRunning,
			Config:    Config{Roots: []string{"/r"}},
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	jobs, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "new", jobs[0].ID)
	assert.Equal(t, "mid", jobs[1].ID)
}

func TestJobStoreRecoverOrphans(t *testing.T) {
	ctx := context.Background()
	s := newJobStore(t)

	require.NoError(t, s.Create(ctx, &Job{ID: "orphan", Status: StatusRunning, Config: Config{Roots: []string{"/r"}}, StartedAt: time.Now()}))

	n, err := s.RecoverOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.Get(ctx, "orphan")
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, got.Status)
	assert.Equal(t, "interrupted by restart", got.LastError)
}

func TestJobStoreGetMissing(t *testing.T) {
	_, err := newJobStore(t).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrScanNotFound)
}
