package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"orate-server-go/internal/domain/session"
	"orate-server-go/internal/platform/storage"
)

type sqliteStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewSQLite builds a SQLite-backed session store.
func NewSQLite(db *gorm.DB, cfg Config) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite store requires database handle")
	}
	return &sqliteStore{
		db:  db,
		ttl: cfg.TTL,
	}, nil
}

func (s *sqliteStore) Save(ctx context.Context, summary session.Summary) error {
	if summary.SessionID == "" {
		return fmt.Errorf("session id required")
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", summary.SessionID).
			Delete(&storage.SessionRecord{}).Error; err != nil {
			return err
		}
		record := &storage.SessionRecord{
			SessionID:  summary.SessionID,
			ClientID:   summary.ClientID,
			StartedAt:  summary.StartedAt,
			EndedAt:    summary.EndedAt,
			AudioTicks: summary.AudioTicks,
			VideoTicks: summary.VideoTicks,
			Summary:    payload,
		}
		return tx.Create(record).Error
	})
}

func (s *sqliteStore) Get(ctx context.Context, sessionID string) (session.Summary, error) {
	var record storage.SessionRecord
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return session.Summary{}, fmt.Errorf("session not found: %s", sessionID)
		}
		return session.Summary{}, err
	}

	var summary session.Summary
	if err := json.Unmarshal(record.Summary, &summary); err != nil {
		return session.Summary{}, err
	}
	return summary, nil
}

func (s *sqliteStore) Remove(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&storage.SessionRecord{}).
		Error
}

func (s *sqliteStore) List(ctx context.Context) ([]string, error) {
	var records []storage.SessionRecord
	if err := s.db.WithContext(ctx).Select("session_id").Find(&records).Error; err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.SessionID)
	}
	return ids, nil
}

func (s *sqliteStore) CleanupExpired(ctx context.Context) error {
	if s.ttl <= 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Where("ended_at < ?", time.Now().Add(-s.ttl)).
		Delete(&storage.SessionRecord{}).
		Error
}

func (s *sqliteStore) Stats(ctx context.Context) (map[string]any, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&storage.SessionRecord{}).Count(&total).Error; err != nil {
		return nil, err
	}
	return map[string]any{
		"type":  "sqlite",
		"total": total,
		"ttl":   int(s.ttl.Seconds()),
	}, nil
}

func (s *sqliteStore) Close(context.Context) error {
	return nil
}
