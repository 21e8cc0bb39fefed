package store

import (
	"context"
	"time"

	"orate-server-go/internal/domain/session"
)

// Store persists closed-session summaries for later retrieval.
type Store interface {
	Save(ctx context.Context, summary session.Summary) error
	Get(ctx context.Context, sessionID string) (session.Summary, error)
	List(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, sessionID string) error
	CleanupExpired(ctx context.Context) error
	Stats(ctx context.Context) (map[string]any, error)
	Close(ctx context.Context) error
}

// Config describes the high level store selection parameters.
type Config struct {
	Driver string
	TTL    time.Duration
	Redis  *RedisConfig
	SQLite *SQLiteConfig
	Memory *MemoryConfig
}

// MemoryConfig holds in-memory tuning knobs.
type MemoryConfig struct {
	GCInterval time.Duration
}

// SQLiteConfig provides the database dependency.
type SQLiteConfig struct {
	DSN string
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}
