package inter

// Emotional tone labels, ordered here roughly by the precedence of the
// rules that produce them.
const (
	ToneUnknown    = "Unknown"
	ToneNervous    = "Nervous"
	ToneUncertain  = "Uncertain"
	ToneConfident  = "Confident"
	ToneEngaged    = "Engaged"
	ToneDistracted = "Distracted"
	ToneAlert      = "Alert"
	ToneNeutral    = "Neutral"
)

// FacialMetrics is the per-tick output of the facial analysis engine.
type FacialMetrics struct {
	Confidence    int    `json:"confidence"`
	EmotionalTone string `json:"emotionalTone"`
	FaceVisible   bool   `json:"faceVisible"`
	EyeOpenness   int    `json:"eyeOpenness"`
	Brightness    int    `json:"brightness"`
}

// Frame is an encoded video frame as delivered by the transport.
type Frame []byte

// PixelBuffer is a row-major RGBA frame, 4 bytes per pixel.
type PixelBuffer struct {
	Width  int
	Height int
	Data   []byte
}

// Valid reports whether the buffer dimensions match its payload.
func (b PixelBuffer) Valid() bool {
	return b.Width > 0 && b.Height > 0 && len(b.Data) == b.Width*b.Height*4
}

// BrightnessAt returns the (R+G+B)/3 brightness of the pixel at x,y.
// Bounds are the caller's responsibility.
func (b PixelBuffer) BrightnessAt(x, y int) float64 {
	i := (y*b.Width + x) * 4
	return (float64(b.Data[i]) + float64(b.Data[i+1]) + float64(b.Data[i+2])) / 3
}

// Surface is the drawing collaborator the engine snapshots frames through.
type Surface interface {
	Draw(frame Frame) error
	Pixels() (PixelBuffer, error)
}
