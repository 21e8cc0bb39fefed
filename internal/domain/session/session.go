package session

import (
	"sort"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/google/uuid"

	"orate-server-go/internal/domain/audio"
	audiointer "orate-server-go/internal/domain/audio/inter"
	"orate-server-go/internal/domain/audio/stream"
	"orate-server-go/internal/domain/eventbus"
	"orate-server-go/internal/domain/vision"
	visioninter "orate-server-go/internal/domain/vision/inter"
	"orate-server-go/internal/domain/vision/surface"
	"orate-server-go/internal/platform/errors"
	"orate-server-go/internal/platform/logging"
)

// Summary is the accumulated outcome of one practice session.
type Summary struct {
	SessionID        string    `json:"session_id"`
	ClientID         string    `json:"client_id"`
	StartedAt        time.Time `json:"started_at"`
	EndedAt          time.Time `json:"ended_at"`
	AudioTicks       int       `json:"audio_ticks"`
	VideoTicks       int       `json:"video_ticks"`
	AvgClarity       float64   `json:"avg_clarity"`
	AvgVolume        float64   `json:"avg_volume"`
	PeakVolume       int       `json:"peak_volume"`
	AvgWordsPerMin   float64   `json:"avg_words_per_minute"`
	TotalFillerWords int       `json:"total_filler_words"`
	AvgConfidence    float64   `json:"avg_confidence"`
	FaceVisibleRatio float64   `json:"face_visible_ratio"`
	DominantTone     string    `json:"dominant_tone"`
	AvgMotion        float64   `json:"avg_motion"`
}

// Options configures a new practice session.
type Options struct {
	ClientID   string
	SampleRate int
	RingSize   int
	Width      int
	Height     int
	Logger     *logging.Logger
	Bus        evbus.Bus
}

// Session is the per-client aggregate: it owns one engine of each kind plus
// their collaborators and accumulates a running summary across ticks. The
// websocket handler is the only goroutine ticking a given session; the mutex
// guards summary reads from the HTTP side.
type Session struct {
	ID       string
	ClientID string

	graph        *stream.Graph
	audioEngine  *audio.Engine
	visionEngine *vision.Engine

	logger *logging.Logger
	bus    evbus.Bus

	mu           sync.Mutex
	startedAt    time.Time
	audioEnabled bool
	videoEnabled bool
	closed       bool

	audioTicks   int
	videoTicks   int
	visibleTicks int
	sumClarity   float64
	sumVolume    float64
	sumWPM       float64
	sumConf      float64
	sumMotion    float64
	peakVolume   int
	fillerTotal  int
	toneCounts   map[string]int
}

// New builds a session with freshly bound engines.
func New(opts Options) (*Session, error) {
	const op = "session.New"

	graph, err := stream.NewGraph(opts.SampleRate, opts.RingSize)
	if err != nil {
		return nil, errors.Wrap(errors.KindDomain, op, "create capture graph", err)
	}
	audioEngine, err := audio.NewEngine(graph)
	if err != nil {
		return nil, errors.Wrap(errors.KindDomain, op, "create audio engine", err)
	}
	surf, err := surface.New(opts.Width, opts.Height)
	if err != nil {
		_ = audioEngine.Close()
		return nil, errors.Wrap(errors.KindDomain, op, "create drawing surface", err)
	}
	visionEngine, err := vision.NewEngine(surf)
	if err != nil {
		_ = audioEngine.Close()
		return nil, errors.Wrap(errors.KindDomain, op, "create vision engine", err)
	}

	bus := opts.Bus
	if bus == nil {
		bus = eventbus.Get()
	}

	return &Session{
		ID:           uuid.NewString(),
		ClientID:     opts.ClientID,
		graph:        graph,
		audioEngine:  audioEngine,
		visionEngine: visionEngine,
		logger:       opts.Logger,
		bus:          bus,
		startedAt:    time.Now(),
		audioEnabled: true,
		videoEnabled: true,
		toneCounts:   make(map[string]int),
	}, nil
}

// SetAudioEnabled toggles the audio input flag for subsequent ticks.
func (s *Session) SetAudioEnabled(enabled bool) {
	s.mu.Lock()
	s.audioEnabled = enabled
	s.mu.Unlock()
}

// SetVideoEnabled toggles the video input flag for subsequent ticks.
func (s *Session) SetVideoEnabled(enabled bool) {
	s.mu.Lock()
	s.videoEnabled = enabled
	s.mu.Unlock()
}

// TickAudio pushes a PCM window into the capture graph and runs one audio
// analysis tick.
func (s *Session) TickAudio(samples []byte) audiointer.AudioMetrics {
	s.mu.Lock()
	enabled := s.audioEnabled && !s.closed
	s.mu.Unlock()

	s.graph.Push(samples)
	metrics := s.audioEngine.Analyze(enabled)

	if enabled {
		s.mu.Lock()
		s.audioTicks++
		s.sumClarity += float64(metrics.Clarity)
		s.sumVolume += float64(metrics.VolumeLevel)
		s.sumWPM += float64(metrics.WordsPerMinute)
		s.fillerTotal += metrics.FillerWords
		if metrics.VolumeLevel > s.peakVolume {
			s.peakVolume = metrics.VolumeLevel
		}
		s.mu.Unlock()

		s.bus.Publish(eventbus.TopicAudioMetrics, eventbus.AudioMetricsEvent{
			SessionID: s.ID,
			Metrics:   metrics,
			At:        time.Now(),
		})
	}
	return metrics
}

// TickVideo runs one facial analysis tick on an encoded frame.
func (s *Session) TickVideo(frame []byte) visioninter.FacialMetrics {
	s.mu.Lock()
	enabled := s.videoEnabled && !s.closed
	s.mu.Unlock()

	metrics := s.visionEngine.Analyze(frame, enabled)

	if enabled {
		s.mu.Lock()
		s.videoTicks++
		if metrics.FaceVisible {
			s.visibleTicks++
			s.sumConf += float64(metrics.Confidence)
			s.toneCounts[metrics.EmotionalTone]++
		}
		s.sumMotion += s.visionEngine.Motion()
		s.mu.Unlock()

		s.bus.Publish(eventbus.TopicFacialMetrics, eventbus.FacialMetricsEvent{
			SessionID: s.ID,
			Metrics:   metrics,
			At:        time.Now(),
		})
	}
	return metrics
}

// Summary snapshots the accumulated session outcome.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{
		SessionID:        s.ID,
		ClientID:         s.ClientID,
		StartedAt:        s.startedAt,
		AudioTicks:       s.audioTicks,
		VideoTicks:       s.videoTicks,
		PeakVolume:       s.peakVolume,
		TotalFillerWords: s.fillerTotal,
		DominantTone:     dominantTone(s.toneCounts),
	}
	if s.audioTicks > 0 {
		n := float64(s.audioTicks)
		sum.AvgClarity = s.sumClarity / n
		sum.AvgVolume = s.sumVolume / n
		sum.AvgWordsPerMin = s.sumWPM / n
	}
	if s.videoTicks > 0 {
		sum.FaceVisibleRatio = float64(s.visibleTicks) / float64(s.videoTicks)
		sum.AvgMotion = s.sumMotion / float64(s.videoTicks)
	}
	if s.visibleTicks > 0 {
		sum.AvgConfidence = s.sumConf / float64(s.visibleTicks)
	}
	return sum
}

// Close tears down both engines and publishes the closed-session event.
// Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.audioEngine.Close()
	_ = s.visionEngine.Close()

	summary := s.Summary()
	summary.EndedAt = time.Now()

	if s.logger != nil {
		s.logger.InfoTag("Session", "session %s closed: %d audio ticks, %d video ticks",
			s.ID, summary.AudioTicks, summary.VideoTicks)
	}

	s.bus.Publish(eventbus.TopicSessionClosed, eventbus.SessionClosedEvent{
		SessionID: s.ID,
		ClosedAt:  summary.EndedAt,
		Summary:   summary,
	})
	return nil
}

// dominantTone picks the most frequent tone; ties break alphabetically so
// the result is deterministic.
func dominantTone(counts map[string]int) string {
	if len(counts) == 0 {
		return visioninter.ToneUnknown
	}
	tones := make([]string, 0, len(counts))
	for tone := range counts {
		tones = append(tones, tone)
	}
	sort.Strings(tones)

	best := tones[0]
	for _, tone := range tones[1:] {
		if counts[tone] > counts[best] {
			best = tone
		}
	}
	return best
}
