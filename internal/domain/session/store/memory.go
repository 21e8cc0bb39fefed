package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"orate-server-go/internal/domain/session"
)

type memoryEntry struct {
	summary session.Summary
	savedAt time.Time
}

type memoryStore struct {
	items       map[string]memoryEntry
	mutex       sync.RWMutex
	ttl         time.Duration
	cleanupFreq time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewMemory builds an in-memory session store.
func NewMemory(cfg Config) Store {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	cleanup := 5 * time.Minute
	if cfg.Memory != nil && cfg.Memory.GCInterval > 0 {
		cleanup = cfg.Memory.GCInterval
	}
	s := &memoryStore{
		items:       make(map[string]memoryEntry),
		ttl:         ttl,
		cleanupFreq: cleanup,
		stop:        make(chan struct{}),
	}
	go s.gcLoop()
	return s
}

func (s *memoryStore) gcLoop() {
	ticker := time.NewTicker(s.cleanupFreq)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = s.CleanupExpired(context.Background())
		case <-s.stop:
			return
		}
	}
}

func (s *memoryStore) Save(_ context.Context, summary session.Summary) error {
	if summary.SessionID == "" {
		return fmt.Errorf("session id required")
	}
	s.mutex.Lock()
	s.items[summary.SessionID] = memoryEntry{summary: summary, savedAt: time.Now()}
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Get(_ context.Context, sessionID string) (session.Summary, error) {
	s.mutex.RLock()
	entry, ok := s.items[sessionID]
	s.mutex.RUnlock()
	if !ok {
		return session.Summary{}, fmt.Errorf("session not found: %s", sessionID)
	}
	if s.expired(entry, time.Now()) {
		return session.Summary{}, fmt.Errorf("session expired: %s", sessionID)
	}
	return entry.summary, nil
}

func (s *memoryStore) Remove(_ context.Context, sessionID string) error {
	s.mutex.Lock()
	delete(s.items, sessionID)
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) List(_ context.Context) ([]string, error) {
	now := time.Now()
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ids := make([]string, 0, len(s.items))
	for id, entry := range s.items {
		if !s.expired(entry, now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memoryStore) CleanupExpired(_ context.Context) error {
	now := time.Now()
	s.mutex.Lock()
	for id, entry := range s.items {
		if s.expired(entry, now) {
			delete(s.items, id)
		}
	}
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Stats(_ context.Context) (map[string]any, error) {
	now := time.Now()
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	total := len(s.items)
	active := 0
	for _, entry := range s.items {
		if !s.expired(entry, now) {
			active++
		}
	}
	return map[string]any{
		"type":        "memory",
		"total":       total,
		"active":      active,
		"ttl_seconds": int(s.ttl.Seconds()),
	}, nil
}

func (s *memoryStore) Close(_ context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	return nil
}

func (s *memoryStore) expired(entry memoryEntry, now time.Time) bool {
	return s.ttl > 0 && now.After(entry.savedAt.Add(s.ttl))
}
