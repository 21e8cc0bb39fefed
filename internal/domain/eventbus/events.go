package eventbus

import (
	"time"

	audiointer "orate-server-go/internal/domain/audio/inter"
	visioninter "orate-server-go/internal/domain/vision/inter"
)

// Topics carried on the bus.
const (
	TopicAudioMetrics  = "metrics.audio"
	TopicFacialMetrics = "metrics.facial"
	TopicSessionClosed = "session.closed"
)

// AudioMetricsEvent is published after every audio analysis tick.
type AudioMetricsEvent struct {
	SessionID string
	Metrics   audiointer.AudioMetrics
	At        time.Time
}

// FacialMetricsEvent is published after every facial analysis tick.
type FacialMetricsEvent struct {
	SessionID string
	Metrics   visioninter.FacialMetrics
	At        time.Time
}

// SessionClosedEvent is published once when a practice session ends. The
// summary payload is whatever the session aggregate accumulated; storage
// subscribers serialize it as JSON.
type SessionClosedEvent struct {
	SessionID string
	ClosedAt  time.Time
	Summary   interface{}
}
