package ratelimit

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"contact-guard-go/internal/models"
)

// DatabaseStore keeps the ledger in a shared MySQL table so multiple
// instances enforce one quota. The check-and-append runs inside a
// transaction to stay atomic against concurrent hits for the same IP.
type DatabaseStore struct {
	db     *gorm.DB
	window time.Duration
	max    int
}

// NewDatabaseStore creates a database-backed ledger.
func NewDatabaseStore(db *gorm.DB, window time.Duration, max int) *DatabaseStore {
	return &DatabaseStore{db: db, window: window, max: max}
}

func (s *DatabaseStore) Hit(ip string, now time.Time) (bool, error) {
	cutoff := now.Unix() - int64(s.window.Seconds())
	limited := false

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ip = ? AND hit_at < ?", ip, cutoff).
			Delete(&models.RateLimitHit{}).Error; err != nil {
			return fmt.Errorf("failed to prune ledger: %w", err)
		}

		var count int64
		if err := tx.Model(&models.RateLimitHit{}).
			Where("ip = ? AND hit_at >= ?", ip, cutoff).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count ledger entries: %w", err)
		}

		if count >= int64(s.max) {
			limited = true
			return nil
		}

		hit := models.RateLimitHit{IP: ip, HitAt: now.Unix()}
		if err := tx.Create(&hit).Error; err != nil {
			return fmt.Errorf("failed to record ledger entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return limited, nil
}

func (s *DatabaseStore) Prune(now time.Time) (int, error) {
	cutoff := now.Unix() - int64(s.window.Seconds())

	if err := s.db.Where("hit_at < ?", cutoff).
		Delete(&models.RateLimitHit{}).Error; err != nil {
		return 0, fmt.Errorf("failed to prune ledger: %w", err)
	}

	var count int64
	if err := s.db.Model(&models.RateLimitHit{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	return int(count), nil
}

func (s *DatabaseStore) Close() error { return nil }
