package webapi

import (
	"context"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"orate-server-go/internal/domain/auth"
	"orate-server-go/internal/domain/session/store"
	"orate-server-go/internal/platform/config"
	"orate-server-go/internal/platform/errors"
	"orate-server-go/internal/platform/logging"
	httptransport "orate-server-go/internal/transport/http"
)

// CountsFunc reports live websocket client and session counts.
type CountsFunc func() (clients int, sessions int)

// Service exposes the session summary store and server status over HTTP.
type Service struct {
	config  *config.Config
	logger  *logging.Logger
	store   store.Store
	tokens  *auth.SessionToken
	counts  CountsFunc
	started time.Time
}

// NewService creates the WebAPI transport service.
func NewService(cfg *config.Config, logger *logging.Logger, st store.Store, tokens *auth.SessionToken) (*Service, error) {
	const op = "webapi.new"
	if cfg == nil {
		return nil, errors.New(errors.KindConfig, op, "config is required")
	}
	if st == nil {
		return nil, errors.New(errors.KindConfig, op, "session store is required")
	}
	if tokens == nil {
		return nil, errors.New(errors.KindConfig, op, "token issuer is required")
	}

	return &Service{
		config:  cfg,
		logger:  logger,
		store:   st,
		tokens:  tokens,
		started: time.Now(),
	}, nil
}

// SetCounts wires the live connection counter, usually backed by the
// websocket hub.
func (s *Service) SetCounts(counts CountsFunc) {
	s.counts = counts
}

// Register mounts the WebAPI routes onto the given group.
func (s *Service) Register(ctx context.Context, router *gin.RouterGroup) error {
	router.POST("/sessions", s.handleSessionCreate)
	router.GET("/sessions", s.handleSessionList)
	router.GET("/sessions/:id", s.handleSessionGet)
	router.DELETE("/sessions/:id", s.authMiddleware(), s.handleSessionDelete)

	router.GET("/system", s.handleSystemGet)

	if s.logger != nil {
		s.logger.InfoTag("HTTP", "WebAPI routes registered")
	}
	return nil
}

// sessionTicket is the response body for a newly issued session ticket.
type sessionTicket struct {
	ClientID string `json:"client_id"`
	Token    string `json:"token,omitempty"`
}

// handleSessionCreate issues a client id, plus a signed token when auth is
// enabled, that the caller presents on the websocket handshake.
func (s *Service) handleSessionCreate(c *gin.Context) {
	var body struct {
		ClientID string `json:"client_id"`
	}
	_ = c.ShouldBindJSON(&body)

	clientID := strings.TrimSpace(body.ClientID)
	if clientID == "" {
		clientID = auth.NewClientID()
	}

	ticket := sessionTicket{ClientID: clientID}
	if s.config.Server.Auth.Enabled {
		token, err := s.tokens.Generate(clientID)
		if err != nil {
			httptransport.RespondError(c, http.StatusInternalServerError, "failed to issue token", nil)
			return
		}
		ticket.Token = token
	}

	httptransport.RespondSuccess(c, http.StatusCreated, ticket, "session ticket issued")
}

func (s *Service) handleSessionList(c *gin.Context) {
	ids, err := s.store.List(c.Request.Context())
	if err != nil {
		httptransport.RespondError(c, http.StatusInternalServerError, "failed to list sessions", nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{"sessions": ids, "count": len(ids)}, "")
}

func (s *Service) handleSessionGet(c *gin.Context) {
	summary, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httptransport.RespondError(c, http.StatusNotFound, "session not found", nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, summary, "")
}

func (s *Service) handleSessionDelete(c *gin.Context) {
	if err := s.store.Remove(c.Request.Context(), c.Param("id")); err != nil {
		httptransport.RespondError(c, http.StatusInternalServerError, "failed to remove session", nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, nil, "session removed")
}

// handleSystemGet reports a host resource snapshot and server status.
func (s *Service) handleSystemGet(c *gin.Context) {
	data := gin.H{
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"go_version":     runtime.Version(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		data["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		data["mem_total"] = vm.Total
		data["mem_used"] = vm.Used
		data["mem_percent"] = vm.UsedPercent
	}
	if stats, err := s.store.Stats(c.Request.Context()); err == nil {
		data["store"] = stats
	}
	if s.counts != nil {
		clients, sessions := s.counts()
		data["ws_clients"] = clients
		data["ws_sessions"] = sessions
	}

	httptransport.RespondSuccess(c, http.StatusOK, data, "")
}

// authMiddleware guards mutating routes with the same bearer tokens the
// websocket handshake accepts. When auth is disabled it is a no-op.
func (s *Service) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.config.Server.Auth.Enabled {
			c.Next()
			return
		}

		token := c.GetHeader("Authorization")
		if len(token) > 7 && strings.EqualFold(token[:7], "Bearer ") {
			token = token[7:]
		}
		if ok, _, err := s.tokens.Verify(token); err != nil || !ok {
			httptransport.RespondError(c, http.StatusUnauthorized, "invalid token", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
