package ratelimit

import "time"

// Store is the IP rate-limit ledger: a mapping from client IP to the
// epoch-second timestamps of its submissions inside a sliding window.
//
// Hit performs the read-prune-check-append cycle atomically with
// respect to other calls on the same store: entries older than the
// window are dropped, and unless the bucket is already full the
// current timestamp is appended. The slot is consumed even when a
// later pipeline stage rejects the request. Any error from Hit must
// be treated as "cannot confirm quota" and fail toward rejection.
type Store interface {
	Hit(ip string, now time.Time) (limited bool, err error)
	// Prune drops expired timestamps for all IPs and reports how many
	// remain retained.
	Prune(now time.Time) (remaining int, err error)
	Close() error
}

func pruneBucket(bucket []int64, cutoff int64) []int64 {
	filtered := bucket[:0]
	for _, ts := range bucket {
		if ts >= cutoff {
			filtered = append(filtered, ts)
		}
	}
	return filtered
}
