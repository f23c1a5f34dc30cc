package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type streamReply struct {
	Status     int       `json:"status"`
	Prediction int       `json:"prediction"`
	Votes      []float64 `json:"votes"`
	Classes    []int     `json:"classes"`
	Error      string    `json:"error"`
	Field      string    `json:"field"`
	Kind       string    `json:"kind"`
}

func dialStream(t *testing.T, s *Server) (*websocket.Conn, func()) {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + StreamPath

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	resp.Body.Close()

	return conn, func() {
		conn.Close()
		ts.Close()
	}
}

func TestStream_OrderedResults(t *testing.T) {
	s := newTestServer(t)
	conn, cleanup := dialStream(t, s)
	defer cleanup()

	messages := []string{
		heavyUserJSON,
		`{"international_plan":"yes"}`,
		`not json`,
		strings.Replace(heavyUserJSON, `"international_plan": true`, `"international_plan": false`, 1),
	}
	for _, msg := range messages {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var replies []streamReply
	for range messages {
		var r streamReply
		require.NoError(t, conn.ReadJSON(&r))
		replies = append(replies, r)
	}

	assert.Equal(t, 200, replies[0].Status)
	assert.Equal(t, 1, replies[0].Prediction)
	assert.Equal(t, []int{0, 1}, replies[0].Classes)
	assert.Empty(t, replies[0].Error)

	assert.Equal(t, 400, replies[1].Status)
	assert.Equal(t, "voice_mail_plan", replies[1].Field)
	assert.Equal(t, "missing_field", replies[1].Kind)

	assert.Equal(t, 400, replies[2].Status)
	assert.NotEmpty(t, replies[2].Error)
	assert.Empty(t, replies[2].Field)

	assert.Equal(t, 200, replies[3].Status)
	assert.Equal(t, 0, replies[3].Prediction)
	assert.InDeltaSlice(t, []float64{29, 23}, replies[3].Votes, 1e-9)
}

func TestStream_ClosedOnShutdown(t *testing.T) {
	s := newTestServer(t)
	conn, cleanup := dialStream(t, s)
	defer cleanup()

	// Round trip once so the handler has registered the connection
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(heavyUserJSON)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var r streamReply
	require.NoError(t, conn.ReadJSON(&r))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)
}

func TestStream_RateLimitedPerMessage(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	s := New(newTestPredictor(t), cfg, nil)
	conn, cleanup := dialStream(t, s)
	defer cleanup()

	for i := 0; i < 3; i++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(heavyUserJSON)))
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var statuses []int
	for i := 0; i < 3; i++ {
		var r streamReply
		require.NoError(t, conn.ReadJSON(&r))
		statuses = append(statuses, r.Status)
		if r.Status == http.StatusTooManyRequests {
			assert.Equal(t, "rate limit exceeded", r.Error)
		}
	}
	assert.Equal(t, []int{200, 429, 429}, statuses)

	// The stream shares its budget with the JSON API
	rec := do(t, s.Handler(), http.MethodPost, PredictPath, "application/json", heavyUserJSON)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestStream_RefusedAfterShutdown(t *testing.T) {
	s := newTestServer(t)
	s.closeStreams()

	conn, cleanup := dialStream(t, s)
	defer cleanup()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)

	s.streamsMu.Lock()
	defer s.streamsMu.Unlock()
	assert.Empty(t, s.streams)
}
