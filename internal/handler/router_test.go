package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-companion/backend/internal/config"
	"github.com/zhouzirui/z-companion/backend/internal/logger"
	"github.com/zhouzirui/z-companion/backend/internal/model/chat"
	"github.com/zhouzirui/z-companion/backend/internal/model/persona"
	"github.com/zhouzirui/z-companion/backend/internal/model/user"
	"github.com/zhouzirui/z-companion/backend/internal/service/ai"
	"github.com/zhouzirui/z-companion/backend/internal/service/personality"
	"github.com/zhouzirui/z-companion/backend/internal/service/relay"
	userService "github.com/zhouzirui/z-companion/backend/internal/service/user"
	"github.com/zhouzirui/z-companion/backend/internal/session"
)

type scriptedGenerator struct{}

func (scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "Your response:") {
		return "missed you too", nil
	}
	return "romantic", nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := logger.Nop()

	sessions, err := session.NewManager(config.SessionConfig{Secret: "router-test", TTL: time.Hour})
	require.NoError(t, err)

	users := userService.NewService()
	limiter := ai.NewLimiter(config.RateLimitConfig{
		Requests:     10,
		Window:       time.Minute,
		WaitTimeout:  time.Second,
		PollInterval: 10 * time.Millisecond,
	})
	replies := ai.NewService(scriptedGenerator{}, limiter, config.AIConfig{MaxAttempts: 1, RetryBaseDelay: time.Millisecond}, log)
	detector := personality.NewService(replies.Generator(), limiter, log)

	srv := httptest.NewServer(NewRouter(Dependencies{
		Personas:       persona.NewMemoryStore(persona.Seed()),
		Users:          users,
		Sessions:       sessions,
		Processor:      relay.NewOrchestrator(users, detector, replies, log),
		AIEnabled:      true,
		AllowedOrigins: []string{"http://localhost:5173"},
		Log:            log,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCompanionFlow(t *testing.T) {
	srv := newTestServer(t)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	resp, err := client.Post(srv.URL+"/api/users", "application/json",
		strings.NewReader(`{"characterType":"AI-GF","theme":"dark"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/api/users/theme", strings.NewReader(`{"theme":"light"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err = client.Do(req)
	require.NoError(t, err)
	var updated user.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	resp.Body.Close()
	assert.Equal(t, user.ThemeLight, updated.Theme)

	dialer := websocket.Dialer{Jar: jar, HandshakeTimeout: 5 * time.Second}
	conn, wsResp, err := dialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	if wsResp != nil && wsResp.Body != nil {
		wsResp.Body.Close()
	}
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(chat.Inbound{Content: "I missed you"}))

	var events []chat.Event
	for len(events) < 2 {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var evt chat.Event
		require.NoError(t, conn.ReadJSON(&evt))
		events = append(events, evt)
	}
	assert.Equal(t, chat.EventTyping, events[0].Type)
	assert.Equal(t, chat.EventMessage, events[1].Type)
	data, ok := events[1].Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "missed you too", data["content"])
}

func TestCurrentUserRequiresSession(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/users/current")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/users", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}
