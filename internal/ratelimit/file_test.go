package ratelimit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileStore(t *testing.T, window time.Duration, max int) *FileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger", "contact-rate-limit.json")
	store, err := NewFileStore(path, window, max)
	require.NoError(t, err)
	return store
}

func TestFileStoreQuota(t *testing.T) {
	store := newTestFileStore(t, 600*time.Second, 2)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	limited, err := store.Hit("203.0.113.5", now)
	require.NoError(t, err)
	assert.False(t, limited)

	limited, err = store.Hit("203.0.113.5", now.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, limited)

	limited, err = store.Hit("203.0.113.5", now.Add(2*time.Second))
	require.NoError(t, err)
	assert.True(t, limited)
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contact-rate-limit.json")
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first, err := NewFileStore(path, 600*time.Second, 2)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		limited, err := first.Hit("203.0.113.5", now)
		require.NoError(t, err)
		require.False(t, limited)
	}

	// A fresh store over the same file sees the consumed quota.
	second, err := NewFileStore(path, 600*time.Second, 2)
	require.NoError(t, err)
	limited, err := second.Hit("203.0.113.5", now.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, limited)
}

func TestFileStoreLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contact-rate-limit.json")
	store, err := NewFileStore(path, 600*time.Second, 5)
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	_, err = store.Hit("203.0.113.5", now)
	require.NoError(t, err)
	_, err = store.Hit("203.0.113.5", now.Add(time.Second))
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var data map[string][]int64
	require.NoError(t, json.Unmarshal(raw, &data))
	assert.Equal(t, []int64{now.Unix(), now.Unix() + 1}, data["203.0.113.5"])
}

func TestFileStorePruneDropsStaleEntries(t *testing.T) {
	store := newTestFileStore(t, 60*time.Second, 5)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.Hit("203.0.113.5", now)
	require.NoError(t, err)
	_, err = store.Hit("198.51.100.7", now.Add(90*time.Second))
	require.NoError(t, err)

	remaining, err := store.Prune(now.Add(100 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
}

func TestFileStoreRecoversFromCorruptLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contact-rate-limit.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store, err := NewFileStore(path, 600*time.Second, 2)
	require.NoError(t, err)

	limited, err := store.Hit("203.0.113.5", time.Now())
	require.NoError(t, err)
	assert.False(t, limited)
}
