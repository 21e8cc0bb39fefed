package inter

// AudioMetrics is the per-tick output of the audio analysis engine. All
// score fields are bounded; Pitch is a fundamental-frequency estimate in Hz
// (0 when no periodicity was detected).
type AudioMetrics struct {
	Clarity        int     `json:"clarity"`
	FillerWords    int     `json:"fillerWords"`
	WordsPerMinute int     `json:"wordsPerMinute"`
	VolumeLevel    int     `json:"volumeLevel"`
	Pitch          float64 `json:"pitch"`
}

// TapConfig selects the resolution of an analysis tap.
type TapConfig struct {
	// WindowSize is the number of unsigned 8-bit time-domain samples a
	// TimeDomain snapshot returns.
	WindowSize int
	// FFTSize is the transform length backing FrequencyBins; a snapshot
	// returns FFTSize/2 unsigned 8-bit magnitudes covering 0..Nyquist.
	FFTSize int
}

// Tap is a spectral tap on a live audio stream. Snapshots reflect the most
// recent samples pushed into the graph; the returned slices are owned by the
// caller for the duration of the call only.
type Tap interface {
	TimeDomain() []byte
	FrequencyBins() []byte
	Close() error
}

// CaptureGraph is the audio-capture collaborator the engine binds to.
type CaptureGraph interface {
	CreateTap(cfg TapConfig) (Tap, error)
	SampleRate() int
}
