package config

import "time"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Web      WebConfig      `yaml:"web"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Session  SessionConfig  `yaml:"session"`
}

type ServerConfig struct {
	IP   string     `yaml:"ip"`
	Port int        `yaml:"port"`
	Auth AuthConfig `yaml:"auth"`
}

type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Secret  string `yaml:"secret"`
	TTL     time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type WebConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// AnalysisConfig tunes the signal-analysis engines.
type AnalysisConfig struct {
	Audio  AudioAnalysisConfig  `yaml:"audio"`
	Vision VisionAnalysisConfig `yaml:"vision"`
}

type AudioAnalysisConfig struct {
	SampleRate     int `yaml:"sample_rate"`
	TimeDomainSize int `yaml:"time_domain_size"`
}

type VisionAnalysisConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type SessionConfig struct {
	Store StoreConfig `yaml:"store"`
}

type StoreConfig struct {
	Type   string            `yaml:"type"`
	Expiry time.Duration     `yaml:"expiry"`
	Redis  RedisStoreConfig  `yaml:"redis,omitempty"`
	SQLite SQLiteStoreConfig `yaml:"sqlite,omitempty"`
}

type RedisStoreConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

type SQLiteStoreConfig struct {
	DSN string `yaml:"dsn,omitempty"`
}
