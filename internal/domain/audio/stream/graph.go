package stream

import (
	"math"
	"sync"

	"orate-server-go/internal/domain/audio/inter"
	"orate-server-go/internal/platform/errors"
)

const (
	defaultRingSize = 2048
	defaultFFTSize  = 256

	centerSample = 128

	// Byte-magnitude mapping range for frequency snapshots, in dB.
	minDecibels = -100.0
	maxDecibels = -30.0
)

// Graph is a push-based capture graph. The transport pushes raw unsigned
// 8-bit PCM windows as they arrive; taps snapshot the most recent samples on
// demand. An idle graph reads as silence (all samples at center).
type Graph struct {
	mu   sync.Mutex
	rate int
	ring []byte
}

// NewGraph creates a capture graph for a stream at the given sample rate.
// ringSize bounds how much recent PCM is retained; 0 selects the default.
func NewGraph(sampleRate, ringSize int) (*Graph, error) {
	const op = "stream.NewGraph"

	if sampleRate <= 0 {
		return nil, errors.New(errors.KindAudio, op, "invalid sample rate")
	}
	if ringSize <= 0 {
		ringSize = defaultRingSize
	}

	ring := make([]byte, ringSize)
	for i := range ring {
		ring[i] = centerSample
	}

	return &Graph{rate: sampleRate, ring: ring}, nil
}

// Push feeds a window of u8 PCM samples into the ring, evicting the oldest.
func (g *Graph) Push(samples []byte) {
	if len(samples) == 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if len(samples) >= len(g.ring) {
		copy(g.ring, samples[len(samples)-len(g.ring):])
		return
	}
	keep := len(g.ring) - len(samples)
	copy(g.ring, g.ring[len(samples):])
	copy(g.ring[keep:], samples)
}

// SampleRate implements inter.CaptureGraph.
func (g *Graph) SampleRate() int {
	return g.rate
}

// CreateTap implements inter.CaptureGraph. A tap configured with WindowSize
// snapshots raw time-domain samples; one configured with FFTSize yields
// FFTSize/2 byte magnitudes.
func (g *Graph) CreateTap(cfg inter.TapConfig) (inter.Tap, error) {
	const op = "stream.CreateTap"

	if cfg.WindowSize == 0 && cfg.FFTSize == 0 {
		return nil, errors.New(errors.KindAudio, op, "tap config selects neither window nor fft size")
	}
	if cfg.WindowSize > len(g.ring) {
		return nil, errors.New(errors.KindAudio, op, "window size exceeds ring capacity")
	}
	if cfg.FFTSize != 0 && (!isPowerOfTwo(cfg.FFTSize) || cfg.FFTSize > len(g.ring)) {
		return nil, errors.New(errors.KindAudio, op, "fft size must be a power of two within ring capacity")
	}

	return &tap{graph: g, cfg: cfg}, nil
}

// latest returns a copy of the newest n ring samples, oldest first.
func (g *Graph) latest(n int) []byte {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n > len(g.ring) {
		n = len(g.ring)
	}
	out := make([]byte, n)
	copy(out, g.ring[len(g.ring)-n:])
	return out
}

type tap struct {
	graph  *Graph
	cfg    inter.TapConfig
	closed bool
}

func (t *tap) TimeDomain() []byte {
	if t.closed {
		return nil
	}
	n := t.cfg.WindowSize
	if n == 0 {
		n = defaultRingSize
	}
	return t.graph.latest(n)
}

// FrequencyBins Hann-windows the newest FFTSize samples, transforms them and
// maps normalized magnitudes onto 0-255 through the fixed dB range.
func (t *tap) FrequencyBins() []byte {
	if t.closed {
		return nil
	}
	size := t.cfg.FFTSize
	if size == 0 {
		size = defaultFFTSize
	}

	samples := t.graph.latest(size)
	re := make([]float64, size)
	im := make([]float64, size)
	for i, s := range samples {
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
		re[i] = (float64(s) - centerSample) / centerSample * w
	}
	fft(re, im)

	bins := make([]byte, size/2)
	for k := range bins {
		mag := math.Hypot(re[k], im[k]) / float64(size)
		db := 20 * math.Log10(mag+1e-12)
		v := (db - minDecibels) / (maxDecibels - minDecibels) * 255
		if v < 0 {
			v = 0
		}
		if v > 255 {
			v = 255
		}
		bins[k] = byte(v)
	}
	return bins
}

func (t *tap) Close() error {
	t.closed = true
	return nil
}
