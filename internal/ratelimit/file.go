package ratelimit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// FileStore persists the ledger as a single JSON object mapping IP
// strings to arrays of epoch-second timestamps. Every access takes an
// exclusive flock around the read-prune-check-append-rewrite cycle,
// so multiple processes can share one ledger file.
type FileStore struct {
	path   string
	window time.Duration
	max    int
}

// NewFileStore creates a file-backed ledger at path, creating the
// parent directory if needed.
func NewFileStore(path string, window time.Duration, max int) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	return &FileStore{path: path, window: window, max: max}, nil
}

func (s *FileStore) Hit(ip string, now time.Time) (bool, error) {
	limited := false
	err := s.withLock(func(data map[string][]int64) (map[string][]int64, error) {
		cutoff := now.Unix() - int64(s.window.Seconds())
		pruneAll(data, cutoff)

		bucket := data[ip]
		if len(bucket) >= s.max {
			limited = true
			return data, nil
		}
		data[ip] = append(bucket, now.Unix())
		return data, nil
	})
	if err != nil {
		return false, err
	}
	return limited, nil
}

func (s *FileStore) Prune(now time.Time) (int, error) {
	remaining := 0
	err := s.withLock(func(data map[string][]int64) (map[string][]int64, error) {
		cutoff := now.Unix() - int64(s.window.Seconds())
		pruneAll(data, cutoff)
		for _, bucket := range data {
			remaining += len(bucket)
		}
		return data, nil
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

func (s *FileStore) Close() error { return nil }

// withLock opens the ledger file, holds an exclusive advisory lock for
// the duration of fn, and rewrites the file with whatever fn returns.
func (s *FileStore) withLock(fn func(map[string][]int64) (map[string][]int64, error)) error {
	handle, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger file: %w", err)
	}
	defer handle.Close()

	if err := syscall.Flock(int(handle.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to lock ledger file: %w", err)
	}
	defer syscall.Flock(int(handle.Fd()), syscall.LOCK_UN)

	raw, err := io.ReadAll(handle)
	if err != nil {
		return fmt.Errorf("failed to read ledger file: %w", err)
	}

	data := make(map[string][]int64)
	if len(raw) > 0 {
		// A corrupt ledger is replaced rather than trusted.
		if err := json.Unmarshal(raw, &data); err != nil {
			data = make(map[string][]int64)
		}
	}

	data, err = fn(data)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	if err := handle.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate ledger file: %w", err)
	}
	if _, err := handle.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind ledger file: %w", err)
	}
	if _, err := handle.Write(encoded); err != nil {
		return fmt.Errorf("failed to write ledger file: %w", err)
	}
	return handle.Sync()
}

func pruneAll(data map[string][]int64, cutoff int64) {
	for ip, bucket := range data {
		bucket = pruneBucket(bucket, cutoff)
		if len(bucket) == 0 {
			delete(data, ip)
			continue
		}
		data[ip] = bucket
	}
}
