package vision

import (
	"math"

	"orate-server-go/internal/domain/vision/inter"
	"orate-server-go/internal/platform/errors"
	"orate-server-go/internal/util"
)

const (
	visibleHistoryCap    = 30
	confidenceHistoryCap = 30
	smileHistoryCap      = 20
	stabilityWindow      = 15

	minFaceBrightness = 40.0
	minEdgeCount      = 100

	edgeStride        = 4
	gradientThreshold = 30.0

	poseAngle     = 15.0
	poseTolerance = 10.0

	// Frame-difference sampling is capped at the first 2500 pixels of the
	// buffer rather than the full frame.
	motionSamplePixels = 2500
)

// Face-region boxes as fractions of frame width and height.
var (
	centerRegion   = region{0.2, 0.8, 0.15, 0.85}
	leftEyeRegion  = region{0.3, 0.42, 0.35, 0.48}
	rightEyeRegion = region{0.58, 0.7, 0.35, 0.48}
	mouthRegion    = region{0.35, 0.65, 0.6, 0.75}
)

type region struct {
	x0, x1, y0, y1 float64
}

// Engine turns raw video frames into facial behavioral metrics. Between
// ticks it keeps rolling histories of face visibility, confidence and smile
// plus the previous frame for motion sampling. One caller per instance.
type Engine struct {
	surface inter.Surface

	visibleHistory    *util.RollingHistory[int]
	confidenceHistory *util.RollingHistory[float64]
	smileHistory      *util.RollingHistory[float64]

	previous inter.PixelBuffer
	motion   float64
	closed   bool
}

// NewEngine binds the engine to a drawing surface used to snapshot frames.
func NewEngine(surface inter.Surface) (*Engine, error) {
	const op = "vision.NewEngine"

	if surface == nil {
		return nil, errors.New(errors.KindVision, op, "drawing surface unavailable")
	}

	return &Engine{
		surface:           surface,
		visibleHistory:    util.NewRollingHistory[int](visibleHistoryCap),
		confidenceHistory: util.NewRollingHistory[float64](confidenceHistoryCap),
		smileHistory:      util.NewRollingHistory[float64](smileHistoryCap),
	}, nil
}

func defaultMetrics() inter.FacialMetrics {
	return inter.FacialMetrics{EmotionalTone: inter.ToneUnknown}
}

// Analyze runs one analysis tick on the given frame. When video is disabled
// or the engine is closed it performs a cold reset and returns the default
// metrics. Draw or readback failures degrade to the default metrics without
// touching state.
func (e *Engine) Analyze(frame inter.Frame, videoEnabled bool) inter.FacialMetrics {
	if !videoEnabled || e.closed || e.surface == nil {
		e.reset()
		return defaultMetrics()
	}

	if err := e.surface.Draw(frame); err != nil {
		return defaultMetrics()
	}
	buf, err := e.surface.Pixels()
	if err != nil || !buf.Valid() {
		return defaultMetrics()
	}

	e.motion = e.motionLevel(buf)
	e.storePrevious(buf)

	brightness := regionBrightness(buf, centerRegion)
	edges := edgeCount(buf)

	if brightness < minFaceBrightness || edges <= minEdgeCount {
		e.visibleHistory.Push(0)
		return defaultMetrics()
	}

	eyeOpenness := e.eyeOpenness(buf)
	smile := e.mouthSmile(buf)
	symmetry := symmetryScore(buf)
	yaw, pitch := headPose(buf)
	stability := e.faceStability()
	centered := centeredness(buf, brightness)

	brightnessScore := math.Min(100, brightness/200*100)
	eyeScore := math.Min(100, eyeOpenness/80*100)
	smileScore := math.Min(100, smile/100*80)
	headAlignment := 100 - 2*(math.Abs(yaw)+math.Abs(pitch))

	confidence := int(math.Round(util.Clamp(
		0.15*brightnessScore+
			0.25*eyeScore+
			0.15*smileScore+
			0.15*(symmetry*0.8)+
			0.15*headAlignment+
			0.10*stability+
			0.05*centered, 0, 100)))

	e.visibleHistory.Push(1)
	e.confidenceHistory.Push(float64(confidence))

	return inter.FacialMetrics{
		Confidence:    confidence,
		EmotionalTone: classifyTone(eyeOpenness, brightness, smile, yaw, pitch),
		FaceVisible:   true,
		EyeOpenness:   int(math.Round(eyeOpenness)),
		Brightness:    int(math.Round(brightness)),
	}
}

// Motion reports the frame-difference level sampled on the most recent tick.
func (e *Engine) Motion() float64 {
	return e.motion
}

// Close discards the previous frame and all histories. Safe to call more
// than once; Analyze after Close returns the default metrics.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.surface = nil
	e.reset()
	return nil
}

func (e *Engine) reset() {
	e.visibleHistory.Reset()
	e.confidenceHistory.Reset()
	e.smileHistory.Reset()
	e.previous = inter.PixelBuffer{}
	e.motion = 0
}

func (e *Engine) storePrevious(buf inter.PixelBuffer) {
	data := make([]byte, len(buf.Data))
	copy(data, buf.Data)
	e.previous = inter.PixelBuffer{Width: buf.Width, Height: buf.Height, Data: data}
}

// motionLevel samples the mean absolute brightness difference against the
// previous frame over the capped pixel prefix.
func (e *Engine) motionLevel(buf inter.PixelBuffer) float64 {
	if !e.previous.Valid() || e.previous.Width != buf.Width || e.previous.Height != buf.Height {
		return 0
	}
	n := buf.Width * buf.Height
	if n > motionSamplePixels {
		n = motionSamplePixels
	}
	var sum float64
	for i := 0; i < n; i++ {
		x, y := i%buf.Width, i/buf.Width
		sum += math.Abs(buf.BrightnessAt(x, y) - e.previous.BrightnessAt(x, y))
	}
	return sum / float64(n)
}

// classifyTone applies the tone rules in precedence order; the first match
// wins regardless of what later rules would say.
func classifyTone(eyeOpenness, brightness, smile, yaw, pitch float64) string {
	switch {
	case eyeOpenness < 30:
		return inter.ToneNervous
	case brightness < 80:
		return inter.ToneUncertain
	case smile > 50 && eyeOpenness > 60:
		return inter.ToneConfident
	case smile > 40:
		return inter.ToneEngaged
	case math.Abs(pitch) > 10 || math.Abs(yaw) > 10:
		return inter.ToneDistracted
	case eyeOpenness > 70 && brightness > 130:
		return inter.ToneAlert
	default:
		return inter.ToneNeutral
	}
}

// eyeOpenness averages the darkness of the two eye boxes and maps it to
// 0-100 against a 150 darkness ceiling.
func (e *Engine) eyeOpenness(buf inter.PixelBuffer) float64 {
	left := 255 - regionBrightness(buf, leftEyeRegion)
	right := 255 - regionBrightness(buf, rightEyeRegion)
	darkness := (left + right) / 2
	return math.Min(100, math.Max(0, darkness/150*100))
}

// mouthSmile maps mouth-box darkness to 0-100 and records it in the smile
// history.
func (e *Engine) mouthSmile(buf inter.PixelBuffer) float64 {
	darkness := 255 - regionBrightness(buf, mouthRegion)
	smile := math.Min(100, math.Max(0, darkness/100*80))
	e.smileHistory.Push(smile)
	return smile
}

// symmetryScore samples mirrored column pairs in the upper-middle face
// region and converts the mean brightness difference to a 0-100 score.
func symmetryScore(buf inter.PixelBuffer) float64 {
	x0 := int(0.2 * float64(buf.Width))
	x1 := int(0.5 * float64(buf.Width))
	y0 := int(0.2 * float64(buf.Height))
	y1 := int(0.5 * float64(buf.Height))

	var sum float64
	var count int
	for y := y0; y < y1; y += edgeStride {
		for x := x0; x < x1; x += edgeStride {
			mirror := buf.Width - 1 - x
			sum += math.Abs(buf.BrightnessAt(x, y) - buf.BrightnessAt(mirror, y))
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return math.Max(0, 100-0.5*sum/float64(count))
}

// headPose is a crude orientation proxy: whichever half of the frame is
// clearly brighter tips the corresponding angle to a fixed 15 degrees.
func headPose(buf inter.PixelBuffer) (yaw, pitch float64) {
	left := regionBrightness(buf, region{0, 0.5, 0, 1})
	right := regionBrightness(buf, region{0.5, 1, 0, 1})
	top := regionBrightness(buf, region{0, 1, 0, 0.5})
	bottom := regionBrightness(buf, region{0, 1, 0.5, 1})

	switch {
	case left-right > poseTolerance:
		yaw = -poseAngle
	case right-left > poseTolerance:
		yaw = poseAngle
	}
	switch {
	case top-bottom > poseTolerance:
		pitch = -poseAngle
	case bottom-top > poseTolerance:
		pitch = poseAngle
	}
	return yaw, pitch
}

// faceStability maps the variance of recent confidence entries against a
// fixed scale of 30. Cold-start default is 50 until 3 entries accumulate.
func (e *Engine) faceStability() float64 {
	if e.confidenceHistory.Len() < 3 {
		return 50
	}
	recent := e.confidenceHistory.Tail(stabilityWindow)
	return math.Max(0, 100-100*util.StdDev(recent)/30)
}

// centeredness is a binary score: 100 when the center region outshines the
// side periphery strips, 50 otherwise.
func centeredness(buf inter.PixelBuffer, centerBrightness float64) float64 {
	left := regionBrightness(buf, region{0, 0.2, 0, 1})
	right := regionBrightness(buf, region{0.8, 1, 0, 1})
	if centerBrightness > (left+right)/2 {
		return 100
	}
	return 50
}

// edgeCount counts brightness gradients above the threshold across a
// strided pixel grid.
func edgeCount(buf inter.PixelBuffer) int {
	count := 0
	for y := 0; y < buf.Height; y += edgeStride {
		for x := 0; x+edgeStride < buf.Width; x += edgeStride {
			diff := buf.BrightnessAt(x, y) - buf.BrightnessAt(x+edgeStride, y)
			if math.Abs(diff) > gradientThreshold {
				count++
			}
		}
	}
	return count
}

func regionBrightness(buf inter.PixelBuffer, r region) float64 {
	x0 := int(r.x0 * float64(buf.Width))
	x1 := int(r.x1 * float64(buf.Width))
	y0 := int(r.y0 * float64(buf.Height))
	y1 := int(r.y1 * float64(buf.Height))

	var sum float64
	var count int
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			sum += buf.BrightnessAt(x, y)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
