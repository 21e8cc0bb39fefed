package webapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"orate-server-go/internal/domain/auth"
	"orate-server-go/internal/domain/session"
	"orate-server-go/internal/domain/session/store"
	"orate-server-go/internal/platform/config"
	ptesting "orate-server-go/internal/platform/testing"
	httptransport "orate-server-go/internal/transport/http"
)

func newTestServer(t *testing.T, cfg *config.Config) (*httptest.Server, store.Store) {
	t.Helper()

	st := store.NewMemory(store.Config{TTL: time.Hour})
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	svc, err := NewService(cfg, nil, st, auth.NewSessionToken(cfg.Server.Auth.Secret))
	ptesting.AssertNoError(t, err)

	router, err := httptransport.Build(httptransport.Options{Config: cfg})
	ptesting.AssertNoError(t, err)
	ptesting.AssertNoError(t, svc.Register(context.Background(), router.API))

	srv := httptest.NewServer(router.Engine)
	t.Cleanup(srv.Close)
	return srv, st
}

func decodeEnvelope(t *testing.T, resp *http.Response) httptransport.APIResponse {
	t.Helper()
	defer resp.Body.Close()

	var envelope httptransport.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return envelope
}

func TestService_SessionCreate(t *testing.T) {
	cfg := ptesting.SetupTestConfig(t)
	cfg.Server.Auth.Enabled = true
	cfg.Server.Auth.Secret = "test-secret"
	srv, _ := newTestServer(t, cfg)

	resp, err := http.Post(srv.URL+"/api/sessions", "application/json", strings.NewReader("{}"))
	ptesting.AssertNoError(t, err)
	ptesting.AssertEqual(t, http.StatusCreated, resp.StatusCode)

	envelope := decodeEnvelope(t, resp)
	data, ok := envelope.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected data payload: %v", envelope.Data)
	}
	if data["client_id"] == "" {
		t.Error("expected generated client id")
	}

	token, _ := data["token"].(string)
	if token == "" {
		t.Fatal("expected token when auth is enabled")
	}
	ok, clientID, err := auth.NewSessionToken("test-secret").Verify(token)
	ptesting.AssertNoError(t, err)
	ptesting.AssertEqual(t, true, ok)
	ptesting.AssertEqual(t, data["client_id"], clientID)
}

func TestService_SessionGet(t *testing.T) {
	cfg := ptesting.SetupTestConfig(t)
	srv, st := newTestServer(t, cfg)

	summary := session.Summary{SessionID: "sess-1", ClientID: "client-1", AudioTicks: 12}
	ptesting.AssertNoError(t, st.Save(context.Background(), summary))

	resp, err := http.Get(srv.URL + "/api/sessions/sess-1")
	ptesting.AssertNoError(t, err)
	ptesting.AssertEqual(t, http.StatusOK, resp.StatusCode)

	envelope := decodeEnvelope(t, resp)
	data, _ := envelope.Data.(map[string]interface{})
	ptesting.AssertEqual(t, "sess-1", data["session_id"])
	ptesting.AssertEqual(t, float64(12), data["audio_ticks"])

	missing, err := http.Get(srv.URL + "/api/sessions/nope")
	ptesting.AssertNoError(t, err)
	missing.Body.Close()
	ptesting.AssertEqual(t, http.StatusNotFound, missing.StatusCode)
}

func TestService_SessionList(t *testing.T) {
	cfg := ptesting.SetupTestConfig(t)
	srv, st := newTestServer(t, cfg)

	for _, id := range []string{"a", "b"} {
		ptesting.AssertNoError(t, st.Save(context.Background(), session.Summary{SessionID: id}))
	}

	resp, err := http.Get(srv.URL + "/api/sessions")
	ptesting.AssertNoError(t, err)
	envelope := decodeEnvelope(t, resp)
	data, _ := envelope.Data.(map[string]interface{})
	ptesting.AssertEqual(t, float64(2), data["count"])
}

func TestService_SessionDeleteRequiresAuth(t *testing.T) {
	cfg := ptesting.SetupTestConfig(t)
	cfg.Server.Auth.Enabled = true
	cfg.Server.Auth.Secret = "test-secret"
	srv, st := newTestServer(t, cfg)

	ptesting.AssertNoError(t, st.Save(context.Background(), session.Summary{SessionID: "sess-1"}))

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/sessions/sess-1", nil)
	resp, err := http.DefaultClient.Do(req)
	ptesting.AssertNoError(t, err)
	resp.Body.Close()
	ptesting.AssertEqual(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := auth.NewSessionToken("test-secret").Generate("client-1")
	ptesting.AssertNoError(t, err)
	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/api/sessions/sess-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	ptesting.AssertNoError(t, err)
	resp.Body.Close()
	ptesting.AssertEqual(t, http.StatusOK, resp.StatusCode)

	if _, err := st.Get(context.Background(), "sess-1"); err == nil {
		t.Error("expected summary to be removed")
	}
}

func TestService_SystemGet(t *testing.T) {
	cfg := ptesting.SetupTestConfig(t)
	srv, _ := newTestServer(t, cfg)

	resp, err := http.Get(srv.URL + "/api/system")
	ptesting.AssertNoError(t, err)
	ptesting.AssertEqual(t, http.StatusOK, resp.StatusCode)

	envelope := decodeEnvelope(t, resp)
	data, _ := envelope.Data.(map[string]interface{})
	if _, ok := data["goroutines"]; !ok {
		t.Error("expected goroutine count in system snapshot")
	}
	if _, ok := data["store"]; !ok {
		t.Error("expected store stats in system snapshot")
	}
}
