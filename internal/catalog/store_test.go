package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mattjoyce/catalogd/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func rec(path string, size int64, mtime int64) Record {
	return NewRecord(path, "txt", size, time.Unix(mtime, 0), "scan-1", time.Now())
}

func TestUpsertBatchInsertsAndUpdates(t *testing.T) {
	ctx := context.Background()
	s := NewStore(openTestDB(t))

	n, err := s.UpsertBatch(ctx, []Record{rec("/nas/a.txt", 10, 100), rec("/nas/b.txt", 20, 100)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	first, err := s.Get(ctx, "/nas/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "/nas", first.Dirname)
	assert.Equal(t, "a.txt", first.Filename)

	time.Sleep(5 * time.Millisecond)
	n, err = s.UpsertBatch(ctx, []Record{rec("/nas/a.txt", 11, 200)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	second, err := s.Get(ctx, "/nas/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(11), second.Size)
	assert.Equal(t, int64(200), second.Mtime)
	assert.True(t, first.IngestedAt.Equal(second.IngestedAt), "ingested_at must not change on update")
}

func TestUpsertBatchPartialFailure(t *testing.T) {
	ctx := context.Background()
	s := NewStore(openTestDB(t))

	n, err := s.UpsertBatch(ctx, []Record{
		rec("/nas/ok1", 1, 1),
		{Path: ""},
		{Path: "relative/path"},
		rec("/nas/ok2", 2, 2),
	})
	assert.Equal(t, 2, n)
	require.Error(t, err)

	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))

	count, cerr := s.Count(ctx)
	require.NoError(t, cerr)
	assert.Equal(t, int64(2), count)
}

func TestUpsertBatchKeepsDigestWhenUnchanged(t *testing.T) {
	ctx := context.Background()
	s := NewStore(openTestDB(t))

	hashed := rec("/nas/movie.mkv", 500, 1000)
	hashed.SHA256 = "abc123"
	_, err := s.UpsertBatch(ctx, []Record{hashed})
	require.NoError(t, err)

	// Rescan without hashing, same size and mtime.
	_, err = s.UpsertBatch(ctx, []Record{rec("/nas/movie.mkv", 500, 1000)})
	require.NoError(t, err)
	got, err := s.Get(ctx, "/nas/movie.mkv")
	require.NoError(t, err)
	assert.Equal(t, "abc123", got.SHA256)

	d, ok, err := s.Digest(ctx, "/nas/movie.mkv", 500, 1000)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc123", d)

	// File changed: stale digest is dropped.
	_, err = s.UpsertBatch(ctx, []Record{rec("/nas/movie.mkv", 501, 1001)})
	require.NoError(t, err)
	got, err = s.Get(ctx, "/nas/movie.mkv")
	require.NoError(t, err)
	assert.Empty(t, got.SHA256)

	_, ok, err = s.Digest(ctx, "/nas/movie.mkv", 501, 1001)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpsertBatchStoresHashError(t *testing.T) {
	ctx := context.Background()
	s := NewStore(openTestDB(t))

	r := rec("/nas/locked.bin", 5, 5)
	r.HashError = "permission denied"
	_, err := s.UpsertBatch(ctx, []Record{r})
	require.NoError(t, err)

	got, err := s.Get(ctx, "/nas/locked.bin")
	require.NoError(t, err)
	assert.Equal(t, "permission denied", got.HashError)
	assert.Empty(t, got.SHA256)
}

func TestUpsertBatchConcurrentOverlapping(t *testing.T) {
	ctx := context.Background()
	s := NewStore(openTestDB(t))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := make([]Record, 0, 50)
			for i := 0; i < 50; i++ {
				batch = append(batch, rec(fmt.Sprintf("/nas/f%03d", i), int64(i), 1))
			}
			_, err := s.UpsertBatch(ctx, batch)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), count)
}

func TestGetNotFound(t *testing.T) {
	_, err := NewStore(openTestDB(t)).Get(context.Background(), "/nope")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestUpsertBatchEmpty(t *testing.T) {
	n, err := NewStore(openTestDB(t)).UpsertBatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
}
