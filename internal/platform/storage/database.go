package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultDSN is used when the config leaves the sqlite dsn empty.
const DefaultDSN = "data/orate.db"

var db *gorm.DB

// InitDatabase opens the SQLite database and migrates the schema.
// Calling it twice is a no-op.
func InitDatabase(dsn string) error {
	if db != nil {
		return nil
	}

	if dsn == "" {
		dsn = DefaultDSN
	}
	if dir := filepath.Dir(dsn); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	var err error
	db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&AuthClient{}, &SessionRecord{}, &MetricEvent{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// GetDB returns the global database instance.
func GetDB() *gorm.DB {
	if db == nil {
		panic("database not initialized, call InitDatabase() first")
	}
	return db
}

// AuthClient represents an authenticated client credential.
type AuthClient struct {
	ID        uint           `gorm:"primaryKey"`
	ClientID  string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"client_id"`
	Username  string         `gorm:"not null"                               json:"username"`
	Password  string         `gorm:"not null"                               json:"password"`
	IP        string         `                                              json:"ip"`
	DeviceID  string         `                                              json:"device_id"`
	CreatedAt time.Time      `                                              json:"created_at"`
	ExpiresAt *time.Time     `                                              json:"expires_at,omitempty"`
	Metadata  datatypes.JSON `                                              json:"metadata,omitempty"`
}

// SessionRecord stores the summary of a finished practice session.
type SessionRecord struct {
	ID         uint           `gorm:"primaryKey"`
	SessionID  string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"session_id"`
	ClientID   string         `gorm:"index"                                 json:"client_id"`
	StartedAt  time.Time      `                                             json:"started_at"`
	EndedAt    time.Time      `                                             json:"ended_at"`
	AudioTicks int            `                                             json:"audio_ticks"`
	VideoTicks int            `                                             json:"video_ticks"`
	Summary    datatypes.JSON `gorm:"not null"                              json:"summary"`
}

// MetricEvent stores a single published metrics event for later inspection.
type MetricEvent struct {
	ID        uint           `gorm:"primaryKey"`
	EventType string         `gorm:"index;not null"`
	SessionID string         `gorm:"index"`
	Data      datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"index"`
}
