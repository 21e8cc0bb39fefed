package vision

import (
	"testing"

	"orate-server-go/internal/domain/vision/inter"
	"orate-server-go/internal/platform/errors"
	ptesting "orate-server-go/internal/platform/testing"
)

type fakeSurface struct {
	buf     inter.PixelBuffer
	drawErr error
	pixErr  error
}

func (s *fakeSurface) Draw(inter.Frame) error { return s.drawErr }

func (s *fakeSurface) Pixels() (inter.PixelBuffer, error) {
	if s.pixErr != nil {
		return inter.PixelBuffer{}, s.pixErr
	}
	return s.buf, nil
}

const (
	frameW = 320
	frameH = 240
)

func uniformFrame(v byte) inter.PixelBuffer {
	data := make([]byte, frameW*frameH*4)
	for i := 0; i < len(data); i += 4 {
		data[i], data[i+1], data[i+2], data[i+3] = v, v, v, 255
	}
	return inter.PixelBuffer{Width: frameW, Height: frameH, Data: data}
}

func setPixel(buf inter.PixelBuffer, x, y int, v byte) {
	i := (y*buf.Width + x) * 4
	buf.Data[i], buf.Data[i+1], buf.Data[i+2] = v, v, v
}

func fillRegion(buf inter.PixelBuffer, r region, v byte) {
	x0, x1 := int(r.x0*float64(buf.Width)), int(r.x1*float64(buf.Width))
	y0, y1 := int(r.y0*float64(buf.Height)), int(r.y1*float64(buf.Height))
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			setPixel(buf, x, y, v)
		}
	}
}

// addTexture draws alternating vertical stripes along the bottom rows so the
// edge detector sees a face-like gradient density.
func addTexture(buf inter.PixelBuffer, bright, dark byte) {
	for y := buf.Height - 40; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			if (x/4)%2 == 0 {
				setPixel(buf, x, y, bright)
			} else {
				setPixel(buf, x, y, dark)
			}
		}
	}
}

// faceFrame builds a bright frame with textured edges and explicit eye and
// mouth region brightness.
func faceFrame(eye, mouth byte) inter.PixelBuffer {
	buf := uniformFrame(210)
	addTexture(buf, 240, 150)
	fillRegion(buf, leftEyeRegion, eye)
	fillRegion(buf, rightEyeRegion, eye)
	fillRegion(buf, mouthRegion, mouth)
	return buf
}

func newTestEngine(t *testing.T, surface *fakeSurface) *Engine {
	t.Helper()
	engine, err := NewEngine(surface)
	ptesting.AssertNoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func TestNewEngine_NilSurface(t *testing.T) {
	_, err := NewEngine(nil)
	ptesting.AssertError(t, err)
	if !errors.IsKind(err, errors.KindVision) {
		t.Errorf("expected vision kind, got %v", err)
	}
}

func TestAnalyze_UniformGrayNotVisible(t *testing.T) {
	// A flat mid-gray frame has zero edge density: no face.
	surface := &fakeSurface{buf: uniformFrame(128)}
	engine := newTestEngine(t, surface)

	m := engine.Analyze(nil, true)
	if m.FaceVisible {
		t.Error("uniform gray frame reported a visible face")
	}
	if m != defaultMetrics() {
		t.Errorf("metrics = %+v, want defaults", m)
	}
}

func TestAnalyze_DarkFrameNotVisible(t *testing.T) {
	surface := &fakeSurface{buf: uniformFrame(20)}
	engine := newTestEngine(t, surface)

	m := engine.Analyze(nil, true)
	if m.FaceVisible {
		t.Error("dark frame reported a visible face")
	}
}

func TestAnalyze_VisibleFace(t *testing.T) {
	surface := &fakeSurface{buf: faceFrame(100, 50)}
	engine := newTestEngine(t, surface)

	m := engine.Analyze(nil, true)
	if !m.FaceVisible {
		t.Fatal("expected visible face")
	}
	if m.Confidence <= 0 || m.Confidence > 100 {
		t.Errorf("confidence %d out of range", m.Confidence)
	}
	if m.Brightness < minFaceBrightness {
		t.Errorf("brightness %d below visibility floor", m.Brightness)
	}
}

func TestAnalyze_TonePrecedence(t *testing.T) {
	tests := []struct {
		name  string
		eye   byte
		mouth byte
		want  string
	}{
		// Bright eye regions mean low darkness, hence low openness:
		// the nervous rule fires even though smile and brightness
		// would otherwise suggest confident.
		{"nervous wins over confident", 225, 50, inter.ToneNervous},
		{"confident", 100, 50, inter.ToneConfident},
		{"engaged", 195, 120, inter.ToneEngaged},
		{"neutral", 195, 210, inter.ToneNeutral},
		{"alert", 140, 210, inter.ToneAlert},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			surface := &fakeSurface{buf: faceFrame(tt.eye, tt.mouth)}
			engine := newTestEngine(t, surface)

			m := engine.Analyze(nil, true)
			if !m.FaceVisible {
				t.Fatal("fixture face not visible")
			}
			ptesting.AssertEqual(t, tt.want, m.EmotionalTone)
		})
	}
}

func TestAnalyze_ToneUncertainOnDimFace(t *testing.T) {
	buf := uniformFrame(70)
	addTexture(buf, 100, 30)
	surface := &fakeSurface{buf: buf}
	engine := newTestEngine(t, surface)

	m := engine.Analyze(nil, true)
	if !m.FaceVisible {
		t.Fatal("fixture face not visible")
	}
	ptesting.AssertEqual(t, inter.ToneUncertain, m.EmotionalTone)
}

func TestAnalyze_ToneDistractedOnTiltedBrightness(t *testing.T) {
	buf := uniformFrame(240)
	fillRegion(buf, region{0.5, 1, 0, 1}, 200)
	addTexture(buf, 240, 150)
	fillRegion(buf, leftEyeRegion, 140)
	fillRegion(buf, rightEyeRegion, 140)
	fillRegion(buf, mouthRegion, 210)
	surface := &fakeSurface{buf: buf}
	engine := newTestEngine(t, surface)

	m := engine.Analyze(nil, true)
	if !m.FaceVisible {
		t.Fatal("fixture face not visible")
	}
	ptesting.AssertEqual(t, inter.ToneDistracted, m.EmotionalTone)
}

func TestAnalyze_DisableResetsHistories(t *testing.T) {
	surface := &fakeSurface{buf: faceFrame(100, 50)}
	engine := newTestEngine(t, surface)

	for i := 0; i < 6; i++ {
		engine.Analyze(nil, true)
	}
	if engine.confidenceHistory.Len() == 0 {
		t.Fatal("expected accumulated history before disable")
	}

	m := engine.Analyze(nil, false)
	if m != defaultMetrics() {
		t.Errorf("disabled tick = %+v, want defaults", m)
	}
	if engine.visibleHistory.Len() != 0 || engine.confidenceHistory.Len() != 0 || engine.smileHistory.Len() != 0 {
		t.Error("histories not emptied on disable")
	}
	if engine.previous.Valid() {
		t.Error("previous frame not discarded on disable")
	}
}

func TestAnalyze_HistoryCaps(t *testing.T) {
	surface := &fakeSurface{buf: faceFrame(100, 50)}
	engine := newTestEngine(t, surface)

	for i := 0; i < visibleHistoryCap+10; i++ {
		engine.Analyze(nil, true)
	}
	if got := engine.visibleHistory.Len(); got != visibleHistoryCap {
		t.Errorf("visible history len = %d, want %d", got, visibleHistoryCap)
	}
	if got := engine.confidenceHistory.Len(); got != confidenceHistoryCap {
		t.Errorf("confidence history len = %d, want %d", got, confidenceHistoryCap)
	}
	if got := engine.smileHistory.Len(); got != smileHistoryCap {
		t.Errorf("smile history len = %d, want %d", got, smileHistoryCap)
	}
}

func TestAnalyze_ConfidenceOnlyAppendedWhenVisible(t *testing.T) {
	surface := &fakeSurface{buf: faceFrame(100, 50)}
	engine := newTestEngine(t, surface)

	engine.Analyze(nil, true)
	ptesting.AssertEqual(t, 1, engine.confidenceHistory.Len())

	surface.buf = uniformFrame(128)
	engine.Analyze(nil, true)
	engine.Analyze(nil, true)

	ptesting.AssertEqual(t, 1, engine.confidenceHistory.Len())
	ptesting.AssertEqual(t, 3, engine.visibleHistory.Len())
}

func TestAnalyze_MotionSamplesOnlyBufferPrefix(t *testing.T) {
	surface := &fakeSurface{buf: faceFrame(100, 50)}
	engine := newTestEngine(t, surface)
	engine.Analyze(nil, true)

	// Changing pixels beyond the sampled prefix leaves motion at zero.
	changed := faceFrame(100, 50)
	for x := 0; x < frameW; x++ {
		setPixel(changed, x, 50, 0)
	}
	surface.buf = changed
	engine.Analyze(nil, true)
	if engine.Motion() != 0 {
		t.Errorf("motion = %v, want 0 for change outside sampled prefix", engine.Motion())
	}

	// Changing the first row registers.
	changed = faceFrame(100, 50)
	for x := 0; x < frameW; x++ {
		setPixel(changed, x, 0, 0)
	}
	surface.buf = changed
	engine.Analyze(nil, true)
	if engine.Motion() <= 0 {
		t.Errorf("motion = %v, want > 0 for change inside sampled prefix", engine.Motion())
	}
}

func TestAnalyze_DrawFailureDegrades(t *testing.T) {
	surface := &fakeSurface{buf: faceFrame(100, 50)}
	engine := newTestEngine(t, surface)
	engine.Analyze(nil, true)

	surface.drawErr = errors.New(errors.KindVision, "test", "draw failed")
	m := engine.Analyze(nil, true)
	if m != defaultMetrics() {
		t.Errorf("draw failure tick = %+v, want defaults", m)
	}
	// Degraded ticks do not disturb accumulated state.
	ptesting.AssertEqual(t, 1, engine.confidenceHistory.Len())
}

func TestEngine_CloseIdempotent(t *testing.T) {
	surface := &fakeSurface{buf: faceFrame(100, 50)}
	engine, err := NewEngine(surface)
	ptesting.AssertNoError(t, err)

	engine.Analyze(nil, true)
	ptesting.AssertNoError(t, engine.Close())
	ptesting.AssertNoError(t, engine.Close())

	m := engine.Analyze(nil, true)
	if m != defaultMetrics() {
		t.Errorf("analyze after close = %+v, want defaults", m)
	}
}
