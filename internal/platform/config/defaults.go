package config

import "time"

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8000,
			Auth: AuthConfig{
				Enabled: false,
				Secret:  "change_me",
				TTL:     24 * time.Hour,
			},
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8080,
		},
		Analysis: AnalysisConfig{
			Audio: AudioAnalysisConfig{
				SampleRate:     48000,
				TimeDomainSize: 2048,
			},
			Vision: VisionAnalysisConfig{
				Width:  320,
				Height: 240,
			},
		},
		Session: SessionConfig{
			Store: StoreConfig{
				Type:   "sqlite",
				Expiry: 7 * 24 * time.Hour,
			},
		},
	}
}
