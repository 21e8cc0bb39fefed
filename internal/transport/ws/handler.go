package ws

import (
	"net/http"
	"sync"

	evbus "github.com/asaskevich/EventBus"
	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	audiointer "orate-server-go/internal/domain/audio/inter"
	"orate-server-go/internal/domain/auth"
	"orate-server-go/internal/domain/session"
	visioninter "orate-server-go/internal/domain/vision/inter"
	"orate-server-go/internal/platform/config"
	"orate-server-go/internal/platform/logging"
)

// Binary frame kinds. Each binary message carries a 1-byte kind prefix and
// represents exactly one analysis tick.
const (
	FrameKindAudio byte = 0x01
	FrameKindVideo byte = 0x02
)

// controlMessage is a client text frame.
type controlMessage struct {
	Type  string `json:"type"`
	Audio *bool  `json:"audio,omitempty"`
	Video *bool  `json:"video,omitempty"`
}

// serverMessage is the reply envelope for all server text frames.
type serverMessage struct {
	Type       string                     `json:"type"`
	SessionID  string                     `json:"session_id,omitempty"`
	SampleRate int                        `json:"sample_rate,omitempty"`
	Audio      *audiointer.AudioMetrics   `json:"audio,omitempty"`
	Facial     *visioninter.FacialMetrics `json:"facial,omitempty"`
	Summary    *session.Summary           `json:"summary,omitempty"`
	Error      string                     `json:"error,omitempty"`
}

// Handler drives one practice session over a websocket connection: every
// binary frame pushed by the client is one analysis tick, answered with the
// resulting metrics.
type Handler struct {
	conn       *Connection
	practice   *session.Session
	logger     *logging.Logger
	sampleRate int
	closeOnce  sync.Once
}

// NewHandlerBuilder returns the builder the router invokes per connection.
// When auth is enabled the handshake must carry a valid token in the
// Authorization header or a token query parameter.
func NewHandlerBuilder(cfg *config.Config, logger *logging.Logger, tokens *auth.SessionToken, bus evbus.Bus) HandlerBuilder {
	return func(conn *Connection, req *http.Request) (SessionHandler, error) {
		if cfg.Server.Auth.Enabled {
			token := req.Header.Get("Authorization")
			if token == "" {
				token = req.URL.Query().Get("token")
			}
			if ok, _, err := tokens.Verify(token); err != nil || !ok {
				return nil, ErrUnauthorized
			}
		}

		practice, err := session.New(session.Options{
			ClientID:   conn.GetID(),
			SampleRate: cfg.Analysis.Audio.SampleRate,
			RingSize:   cfg.Analysis.Audio.TimeDomainSize,
			Width:      cfg.Analysis.Vision.Width,
			Height:     cfg.Analysis.Vision.Height,
			Logger:     logger,
			Bus:        bus,
		})
		if err != nil {
			return nil, err
		}

		return &Handler{
			conn:       conn,
			practice:   practice,
			logger:     logger,
			sampleRate: cfg.Analysis.Audio.SampleRate,
		}, nil
	}
}

// GetSessionID implements SessionHandler.
func (h *Handler) GetSessionID() string {
	return h.practice.ID
}

// Handle reads client frames until the connection drops.
func (h *Handler) Handle() {
	for {
		msgType, payload, err := h.conn.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.TextMessage:
			if done := h.handleControl(payload); done {
				return
			}
		case websocket.BinaryMessage:
			h.handleBinary(payload)
		}
	}
}

// Close tears down the practice session. Safe to call more than once.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		_ = h.practice.Close()
	})
}

func (h *Handler) handleControl(payload []byte) (done bool) {
	var msg controlMessage
	if err := sonic.Unmarshal(payload, &msg); err != nil {
		h.reply(serverMessage{Type: "error", Error: "malformed control frame"})
		return false
	}

	switch msg.Type {
	case "hello":
		h.reply(serverMessage{
			Type:       "hello",
			SessionID:  h.practice.ID,
			SampleRate: h.sampleRate,
		})
	case "toggle":
		if msg.Audio != nil {
			h.practice.SetAudioEnabled(*msg.Audio)
		}
		if msg.Video != nil {
			h.practice.SetVideoEnabled(*msg.Video)
		}
		h.reply(serverMessage{Type: "toggle", SessionID: h.practice.ID})
	case "summary":
		summary := h.practice.Summary()
		h.reply(serverMessage{Type: "summary", SessionID: h.practice.ID, Summary: &summary})
	case "goodbye":
		h.reply(serverMessage{Type: "goodbye", SessionID: h.practice.ID})
		return true
	default:
		h.reply(serverMessage{Type: "error", Error: "unknown control type: " + msg.Type})
	}
	return false
}

func (h *Handler) handleBinary(payload []byte) {
	if len(payload) < 2 {
		h.reply(serverMessage{Type: "error", Error: "empty binary frame"})
		return
	}

	switch payload[0] {
	case FrameKindAudio:
		metrics := h.practice.TickAudio(payload[1:])
		h.reply(serverMessage{Type: "metrics.audio", SessionID: h.practice.ID, Audio: &metrics})
	case FrameKindVideo:
		metrics := h.practice.TickVideo(payload[1:])
		h.reply(serverMessage{Type: "metrics.facial", SessionID: h.practice.ID, Facial: &metrics})
	default:
		h.reply(serverMessage{Type: "error", Error: "unknown frame kind"})
	}
}

func (h *Handler) reply(msg serverMessage) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		if h.logger != nil {
			h.logger.ErrorTag("WebSocket", "encode reply: %v", err)
		}
		return
	}
	if err := h.conn.WriteMessage(websocket.TextMessage, data); err != nil && h.logger != nil {
		h.logger.DebugTag("WebSocket", "write reply: %v", err)
	}
}
