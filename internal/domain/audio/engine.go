package audio

import (
	"hash/fnv"
	"math"

	"orate-server-go/internal/domain/audio/inter"
	"orate-server-go/internal/platform/errors"
	"orate-server-go/internal/util"
)

const (
	timeDomainWindow = 2048
	frequencyFFTSize = 256

	historyCap = 30

	speakingThreshold = 40
	silenceThreshold  = 15

	// Autocorrelation search range, in samples of lag.
	minPitchLag = 10
	maxPitchLag = 1024

	pitchCorrelationGate = 0.9
)

// Frequency-band boundaries (bin indices) used by the spectral quality
// heuristic: low 0-5, mid 5-15, high 15-25.
const (
	lowBandEnd  = 5
	midBandEnd  = 15
	highBandEnd = 25
)

// Engine turns per-tick audio snapshots into behavioral speech metrics.
// It keeps rolling histories of volume and clarity between ticks so the
// stability estimators reflect recent variance. One caller per instance.
type Engine struct {
	timeTap    inter.Tap
	freqTap    inter.Tap
	sampleRate int

	volumeHistory  *util.RollingHistory[float64]
	clarityHistory *util.RollingHistory[float64]
	speaking       bool
	closed         bool
}

// NewEngine binds two analysis taps to the capture graph: a high-resolution
// time-domain tap for volume and pitch, and a coarser frequency tap for the
// spectral quality heuristic.
func NewEngine(graph inter.CaptureGraph) (*Engine, error) {
	const op = "audio.NewEngine"

	if graph == nil {
		return nil, errors.New(errors.KindAudio, op, "capture graph unavailable")
	}

	timeTap, err := graph.CreateTap(inter.TapConfig{WindowSize: timeDomainWindow})
	if err != nil {
		return nil, errors.Wrap(errors.KindAudio, op, "create time-domain tap", err)
	}
	freqTap, err := graph.CreateTap(inter.TapConfig{FFTSize: frequencyFFTSize})
	if err != nil {
		_ = timeTap.Close()
		return nil, errors.Wrap(errors.KindAudio, op, "create frequency tap", err)
	}

	return &Engine{
		timeTap:        timeTap,
		freqTap:        freqTap,
		sampleRate:     graph.SampleRate(),
		volumeHistory:  util.NewRollingHistory[float64](historyCap),
		clarityHistory: util.NewRollingHistory[float64](historyCap),
	}, nil
}

// Analyze runs one analysis tick. When audio is disabled or the engine is
// closed it performs a cold reset: histories are emptied and the zero metrics
// struct is returned, so re-enabling starts stability estimation from scratch.
func (e *Engine) Analyze(audioEnabled bool) inter.AudioMetrics {
	if !audioEnabled || e.closed || e.timeTap == nil || e.freqTap == nil {
		e.reset()
		return inter.AudioMetrics{}
	}

	samples := e.timeTap.TimeDomain()
	bins := e.freqTap.FrequencyBins()

	volume := computeVolume(samples)
	e.speaking = volume > speakingThreshold

	volStability := e.volumeStability()
	clarity := e.computeClarity(volume, volStability, bins)
	pitch := detectPitch(samples, e.sampleRate)

	wpm := 0
	if e.speaking && pitch > 0 {
		wpm = int(math.Round(130 + 40*volStability/100))
	}

	filler := e.fillerWords()

	e.volumeHistory.Push(float64(volume))
	e.clarityHistory.Push(float64(clarity))

	return inter.AudioMetrics{
		Clarity:        clarity,
		FillerWords:    filler,
		WordsPerMinute: wpm,
		VolumeLevel:    volume,
		Pitch:          pitch,
	}
}

// IsSpeaking reports the speech-detected flag from the most recent tick.
func (e *Engine) IsSpeaking() bool {
	return e.speaking
}

// Close releases both taps. Safe to call more than once; Analyze after Close
// returns zero metrics.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if e.timeTap != nil {
		_ = e.timeTap.Close()
		e.timeTap = nil
	}
	if e.freqTap != nil {
		_ = e.freqTap.Close()
		e.freqTap = nil
	}
	return nil
}

func (e *Engine) reset() {
	e.volumeHistory.Reset()
	e.clarityHistory.Reset()
	e.speaking = false
}

// computeVolume maps a u8 sample window to a 0-100 level: normalize each
// sample to [-1,1], take the mean absolute value, then sqrt and scale by 500.
func computeVolume(samples []byte) int {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += math.Abs((float64(s) - 128) / 128)
	}
	mean := sum / float64(len(samples))
	return int(math.Round(util.Clamp(math.Sqrt(mean)*500, 0, 100)))
}

// computeClarity blends spectral quality, volume stability, clarity-history
// stability and the noise floor into a 0-100 score. Silence short-circuits
// to 0, and a non-speaking tick with enough history halves the score.
func (e *Engine) computeClarity(volume int, volStability float64, bins []byte) int {
	if volume < silenceThreshold {
		return 0
	}

	quality := speechFrequencyQuality(bins)
	pitchStab := e.pitchStability()
	noise := e.noiseLevel()

	clarity := 0.4*quality + 0.3*volStability + 0.2*pitchStab + 0.1*(100-noise)
	if !e.speaking && e.volumeHistory.Len() >= 5 {
		clarity /= 2
	}
	return int(math.Round(util.Clamp(clarity, 0, 100)))
}

// speechFrequencyQuality scores how speech-shaped the spectrum is: energy in
// the mid band (plus half the high band) as a share of the total, penalized
// by 0.7 when the mid band does not dominate both neighbors.
func speechFrequencyQuality(bins []byte) float64 {
	if len(bins) == 0 {
		return 50
	}

	low := bandMean(bins, 0, lowBandEnd)
	mid := bandMean(bins, lowBandEnd, midBandEnd)
	high := bandMean(bins, midBandEnd, highBandEnd)

	total := low + mid + high
	if total == 0 {
		return 50
	}

	ratio := (mid + 0.5*high) / total * 100
	if mid > low && mid > high {
		return ratio
	}
	return ratio * 0.7
}

func bandMean(bins []byte, start, end int) float64 {
	if end > len(bins) {
		end = len(bins)
	}
	if start >= end {
		return 0
	}
	var sum float64
	for _, b := range bins[start:end] {
		sum += float64(b)
	}
	return sum / float64(end-start)
}

// volumeStability maps the coefficient of variation of the last 10 volume
// entries to 0-100. Cold-start default is 50 until 3 entries accumulate.
func (e *Engine) volumeStability() float64 {
	if e.volumeHistory.Len() < 3 {
		return 50
	}
	recent := e.volumeHistory.Tail(10)
	mean := util.Mean(recent)
	if mean == 0 {
		return 50
	}
	return math.Max(0, 100-100*util.StdDev(recent)/mean)
}

// pitchStability tracks clarity-history variance against a fixed scale of 50.
// The name is historical; it never looks at detected pitch.
func (e *Engine) pitchStability() float64 {
	if e.clarityHistory.Len() < 3 {
		return 50
	}
	recent := e.clarityHistory.Tail(10)
	return math.Max(0, 100-100*util.StdDev(recent)/50)
}

// noiseLevel estimates the noise floor as 1.5x the quietest of the last 20
// volume entries, capped at 100. Cold-start default is 20.
func (e *Engine) noiseLevel() float64 {
	if e.volumeHistory.Len() < 5 {
		return 20
	}
	recent := e.volumeHistory.Tail(20)
	return math.Min(100, 1.5*util.Min(recent))
}

// detectPitch estimates the fundamental frequency via normalized
// autocorrelation: the first lag in [10,1024) whose correlation with the
// lag-shifted signal exceeds 0.9 wins, reported as (sampleRate/lag)*2.
// Returns 0 when no lag qualifies.
func detectPitch(samples []byte, sampleRate int) float64 {
	n := len(samples)
	for lag := minPitchLag; lag < maxPitchLag && lag < n; lag++ {
		var sumProduct, sumSqA, sumSqB float64
		for i := 0; i+lag < n; i++ {
			a := (float64(samples[i]) - 128) / 128
			b := (float64(samples[i+lag]) - 128) / 128
			sumProduct += a * b
			sumSqA += a * a
			sumSqB += b * b
		}
		corr := sumProduct / math.Sqrt(sumSqA*sumSqB+0.001)
		if corr > pitchCorrelationGate {
			return float64(sampleRate) / float64(lag) * 2
		}
	}
	return 0
}

// fillerWords is a coarse proxy, not word-boundary detection: significant
// variation across the last 5 volume entries (range >20) yields a
// deterministic value in [0,3) derived from the history contents.
func (e *Engine) fillerWords() int {
	recent := e.volumeHistory.Tail(5)
	if len(recent) < 2 {
		return 0
	}
	if util.Max(recent)-util.Min(recent) <= 20 {
		return 0
	}

	h := fnv.New32a()
	for _, v := range recent {
		h.Write([]byte{byte(int(v))})
	}
	return int(h.Sum32() % 3)
}
