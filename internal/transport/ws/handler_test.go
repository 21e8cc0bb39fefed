package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"orate-server-go/internal/domain/auth"
	"orate-server-go/internal/domain/eventbus"
	"orate-server-go/internal/platform/config"
	ptesting "orate-server-go/internal/platform/testing"
)

func newTestTransport(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()

	hub := NewHub(nil)
	router := NewRouter(hub, nil, RouterOptions{})
	router.SetHandlerBuilder(NewHandlerBuilder(cfg, nil, auth.NewSessionToken(cfg.Server.Auth.Secret), eventbus.New()))

	srv := httptest.NewServer(http.HandlerFunc(router.Handle))
	t.Cleanup(func() {
		hub.CloseAll(ErrSessionShutdown)
		srv.Close()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readReply(t *testing.T, conn *websocket.Conn) serverMessage {
	t.Helper()

	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	var msg serverMessage
	if err := sonic.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	return msg
}

func sendControl(t *testing.T, conn *websocket.Conn, msg controlMessage) {
	t.Helper()

	payload, err := sonic.Marshal(msg)
	if err != nil {
		t.Fatalf("encode control: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("send control: %v", err)
	}
}

func audioFrame() []byte {
	frame := make([]byte, 1+2048)
	frame[0] = FrameKindAudio
	for i := 1; i < len(frame); i++ {
		if i%2 == 0 {
			frame[i] = 180
		} else {
			frame[i] = 76
		}
	}
	return frame
}

func TestHandler_Hello(t *testing.T) {
	cfg := ptesting.SetupTestConfig(t)
	conn := dial(t, newTestTransport(t, cfg), "")

	sendControl(t, conn, controlMessage{Type: "hello"})
	reply := readReply(t, conn)

	ptesting.AssertEqual(t, "hello", reply.Type)
	ptesting.AssertEqual(t, cfg.Analysis.Audio.SampleRate, reply.SampleRate)
	if reply.SessionID == "" {
		t.Error("hello reply missing session id")
	}
}

func TestHandler_AudioTick(t *testing.T) {
	cfg := ptesting.SetupTestConfig(t)
	conn := dial(t, newTestTransport(t, cfg), "")

	if err := conn.WriteMessage(websocket.BinaryMessage, audioFrame()); err != nil {
		t.Fatalf("send frame: %v", err)
	}
	reply := readReply(t, conn)

	ptesting.AssertEqual(t, "metrics.audio", reply.Type)
	if reply.Audio == nil {
		t.Fatal("reply missing audio metrics")
	}
	if reply.Audio.VolumeLevel == 0 {
		t.Error("expected nonzero volume for loud frame")
	}
}

func TestHandler_ToggleDisablesAudio(t *testing.T) {
	cfg := ptesting.SetupTestConfig(t)
	conn := dial(t, newTestTransport(t, cfg), "")

	off := false
	sendControl(t, conn, controlMessage{Type: "toggle", Audio: &off})
	ptesting.AssertEqual(t, "toggle", readReply(t, conn).Type)

	if err := conn.WriteMessage(websocket.BinaryMessage, audioFrame()); err != nil {
		t.Fatalf("send frame: %v", err)
	}
	reply := readReply(t, conn)
	if reply.Audio == nil || reply.Audio.VolumeLevel != 0 {
		t.Errorf("disabled audio tick = %+v, want zero metrics", reply.Audio)
	}
}

func TestHandler_Summary(t *testing.T) {
	cfg := ptesting.SetupTestConfig(t)
	conn := dial(t, newTestTransport(t, cfg), "")

	if err := conn.WriteMessage(websocket.BinaryMessage, audioFrame()); err != nil {
		t.Fatalf("send frame: %v", err)
	}
	readReply(t, conn)

	sendControl(t, conn, controlMessage{Type: "summary"})
	reply := readReply(t, conn)

	ptesting.AssertEqual(t, "summary", reply.Type)
	if reply.Summary == nil || reply.Summary.AudioTicks != 1 {
		t.Errorf("unexpected summary reply: %+v", reply.Summary)
	}
}

func TestHandler_UnknownControl(t *testing.T) {
	cfg := ptesting.SetupTestConfig(t)
	conn := dial(t, newTestTransport(t, cfg), "")

	sendControl(t, conn, controlMessage{Type: "dance"})
	reply := readReply(t, conn)
	ptesting.AssertEqual(t, "error", reply.Type)
}

func TestHandler_AuthRequired(t *testing.T) {
	cfg := ptesting.SetupTestConfig(t)
	cfg.Server.Auth.Enabled = true
	cfg.Server.Auth.Secret = "test-secret"
	srv := newTestTransport(t, cfg)

	// Without a token the server drops the connection after upgrade.
	conn := dial(t, srv, "")
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected unauthorized connection to be closed")
	}

	token, err := auth.NewSessionToken("test-secret").Generate("client-1")
	ptesting.AssertNoError(t, err)

	authed := dial(t, srv, "?token="+token)
	sendControl(t, authed, controlMessage{Type: "hello"})
	ptesting.AssertEqual(t, "hello", readReply(t, authed).Type)
}
