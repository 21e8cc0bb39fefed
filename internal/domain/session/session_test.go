package session

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"orate-server-go/internal/domain/eventbus"
	ptesting "orate-server-go/internal/platform/testing"
)

func testOptions() Options {
	return Options{
		ClientID:   "client-1",
		SampleRate: 48000,
		Width:      320,
		Height:     240,
		Bus:        eventbus.New(),
	}
}

func loudWindow() []byte {
	w := make([]byte, 2048)
	for i := range w {
		if i%2 == 0 {
			w[i] = 180
		} else {
			w[i] = 76
		}
	}
	return w
}

func grayPNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestSession_AudioTicksAccumulate(t *testing.T) {
	s, err := New(testOptions())
	ptesting.AssertNoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	for i := 0; i < 5; i++ {
		m := s.TickAudio(loudWindow())
		if m.VolumeLevel == 0 {
			t.Fatalf("tick %d: expected nonzero volume", i)
		}
	}

	summary := s.Summary()
	ptesting.AssertEqual(t, 5, summary.AudioTicks)
	if summary.AvgVolume <= 0 || summary.PeakVolume <= 0 {
		t.Errorf("summary did not accumulate volume: %+v", summary)
	}
}

func TestSession_VideoTicksAccumulate(t *testing.T) {
	s, err := New(testOptions())
	ptesting.AssertNoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	frame := grayPNG(t)
	for i := 0; i < 3; i++ {
		m := s.TickVideo(frame)
		if m.FaceVisible {
			t.Fatal("uniform gray frame reported a visible face")
		}
	}

	summary := s.Summary()
	ptesting.AssertEqual(t, 3, summary.VideoTicks)
	if summary.FaceVisibleRatio != 0 {
		t.Errorf("face visible ratio = %v, want 0", summary.FaceVisibleRatio)
	}
	ptesting.AssertEqual(t, "Unknown", summary.DominantTone)
}

func TestSession_DisabledTicksNotCounted(t *testing.T) {
	s, err := New(testOptions())
	ptesting.AssertNoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	s.SetAudioEnabled(false)
	m := s.TickAudio(loudWindow())
	if m.VolumeLevel != 0 {
		t.Errorf("disabled tick volume = %d, want 0", m.VolumeLevel)
	}

	s.SetVideoEnabled(false)
	s.TickVideo(grayPNG(t))

	summary := s.Summary()
	ptesting.AssertEqual(t, 0, summary.AudioTicks)
	ptesting.AssertEqual(t, 0, summary.VideoTicks)
}

func TestSession_PublishesMetricEvents(t *testing.T) {
	opts := testOptions()
	s, err := New(opts)
	ptesting.AssertNoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	var audioEvents []eventbus.AudioMetricsEvent
	err = opts.Bus.Subscribe(eventbus.TopicAudioMetrics, func(ev eventbus.AudioMetricsEvent) {
		audioEvents = append(audioEvents, ev)
	})
	ptesting.AssertNoError(t, err)

	s.TickAudio(loudWindow())
	s.TickAudio(loudWindow())

	ptesting.AssertEqual(t, 2, len(audioEvents))
	ptesting.AssertEqual(t, s.ID, audioEvents[0].SessionID)
}

func TestSession_ClosePublishesSummary(t *testing.T) {
	opts := testOptions()
	s, err := New(opts)
	ptesting.AssertNoError(t, err)

	var closedEvents []eventbus.SessionClosedEvent
	err = opts.Bus.Subscribe(eventbus.TopicSessionClosed, func(ev eventbus.SessionClosedEvent) {
		closedEvents = append(closedEvents, ev)
	})
	ptesting.AssertNoError(t, err)

	s.TickAudio(loudWindow())
	ptesting.AssertNoError(t, s.Close())
	ptesting.AssertNoError(t, s.Close())

	ptesting.AssertEqual(t, 1, len(closedEvents))
	summary, ok := closedEvents[0].Summary.(Summary)
	if !ok {
		t.Fatalf("summary payload has type %T", closedEvents[0].Summary)
	}
	ptesting.AssertEqual(t, 1, summary.AudioTicks)
	if summary.EndedAt.IsZero() {
		t.Error("closed summary missing end time")
	}
}
