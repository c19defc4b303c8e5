package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/concierge/internal/catalog"
	"github.com/ent0n29/concierge/internal/config"
	"github.com/ent0n29/concierge/internal/dialogue"
	"github.com/ent0n29/concierge/internal/logger"
	"github.com/ent0n29/concierge/internal/memory"
	"github.com/ent0n29/concierge/internal/observability"
	"github.com/ent0n29/concierge/internal/orders"
	"github.com/ent0n29/concierge/internal/retrieval"
	"github.com/ent0n29/concierge/internal/scheduler"
	"github.com/ent0n29/concierge/internal/session"
)

type testEnv struct {
	srv        *Server
	ts         *httptest.Server
	sessions   *session.Manager
	hub        *scheduler.Hub
	transcript *memory.Transcript
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	static, err := catalog.NewStatic([]catalog.Product{
		{ID: "bag-1", Name: "Leather Tote", Price: 450, CategorySlug: "handbags", CategoryName: "Handbags", Tags: []string{"leather"}},
		{ID: "bag-2", Name: "Evening Clutch", Price: 1250, CategorySlug: "handbags", CategoryName: "Handbags"},
		{ID: "jwl-1", Name: "Pearl Studs", Price: 180, CategorySlug: "jewelry", CategoryName: "Jewelry"},
	})
	require.NoError(t, err)

	log := logger.NewNoOpLogger()
	now := time.Now()
	engine := dialogue.NewEngine(
		retrieval.New(static, log),
		orders.NewStaticLookup(orders.SampleOrders(now)),
		dialogue.Options{},
		log,
	)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetricsWithRegistry("test_httpapi", reg, reg)
	transcript := memory.NewTranscript(100)
	hub := scheduler.NewHub(scheduler.Config{Sleeper: scheduler.ImmediateSleeper}, scheduler.Deps{
		Handler:    engine,
		Composer:   engine.Composer(),
		Transcript: transcript,
		Metrics:    metrics,
		Logger:     log,
	})
	cfg := config.Config{SessionInactivityTimeout: 2 * time.Minute}
	sessions := session.NewManager(cfg.SessionInactivityTimeout)

	srv := New(cfg, sessions, hub, transcript, metrics, log)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		hub.CloseAll()
	})
	return &testEnv{srv: srv, ts: ts, sessions: sessions, hub: hub, transcript: transcript}
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	res, err := http.Post(e.ts.URL+"/v1/chat/session", "application/json", strings.NewReader(`{"user_id":"shopper-1"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var created session.CreateResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&created))
	require.NotEmpty(t, created.SessionID)
	assert.Equal(t, "shopper-1", created.UserID)
	assert.Equal(t, session.StatusActive, created.Status)
	assert.Equal(t, int64(120000), created.InactivityTTLMS)
	return created.SessionID
}

func (e *testEnv) post(t *testing.T, sessionID string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	res, err := http.Post(e.ts.URL+"/v1/chat/session/"+sessionID+"/messages", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestCreateAndEndSession(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	assert.Equal(t, 1, env.hub.Len())

	res, err := http.Post(env.ts.URL+"/v1/chat/session/"+id+"/end", "application/json", nil)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var ended session.Session
	require.NoError(t, json.NewDecoder(res.Body).Decode(&ended))
	assert.Equal(t, session.StatusEnded, ended.Status)
	assert.Equal(t, 0, env.hub.Len())

	res2, err := http.Post(env.ts.URL+"/v1/chat/session/missing/end", "application/json", nil)
	require.NoError(t, err)
	defer res2.Body.Close()
	assert.Equal(t, http.StatusNotFound, res2.StatusCode)
}

func TestPostMessageReturnsProducts(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	res := env.post(t, id, chatRequest{Text: "show me leather bags under $1000"})
	require.Equal(t, http.StatusOK, res.StatusCode)

	var msg dialogue.Message
	require.NoError(t, json.NewDecoder(res.Body).Decode(&msg))
	assert.Equal(t, dialogue.AuthorAssistant, msg.Author)
	assert.Equal(t, dialogue.IntentProducts, msg.Intent)
	require.Len(t, msg.Products, 1)
	assert.Equal(t, "bag-1", msg.Products[0].ID)

	sess, err := env.sessions.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 1, sess.TurnCount)
}

func TestPostMessageBlankInputIsNoContent(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	res := env.post(t, id, chatRequest{Text: "   "})
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Empty(t, env.transcript.Recent(id, 0))
}

func TestPostMessageRejectsOversizedInput(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	res := env.post(t, id, chatRequest{Text: strings.Repeat("a", 1001)})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestPostMessageUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	res := env.post(t, "nope", chatRequest{Text: "hi"})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestQuickReplyLabelDrivesTurn(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	res := env.post(t, id, chatRequest{QuickReply: "📦 Track my order"})
	require.Equal(t, http.StatusOK, res.StatusCode)

	var msg dialogue.Message
	require.NoError(t, json.NewDecoder(res.Body).Decode(&msg))
	assert.Equal(t, dialogue.IntentOrderPrompt, msg.Intent)

	res2 := env.post(t, id, chatRequest{Text: "ORD-10001"})
	require.Equal(t, http.StatusOK, res2.StatusCode)
	var status dialogue.Message
	require.NoError(t, json.NewDecoder(res2.Body).Decode(&status))
	assert.Equal(t, dialogue.IntentOrderStatus, status.Intent)
	assert.Contains(t, status.Text, "ORD-10001")
}

func TestListMessagesReturnsTranscriptInOrder(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	env.post(t, id, chatRequest{Text: "hello"})
	env.post(t, id, chatRequest{Text: "thanks"})

	res, err := http.Get(env.ts.URL + "/v1/chat/session/" + id + "/messages")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body transcriptResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Len(t, body.Messages, 4)
	assert.Equal(t, dialogue.AuthorUser, body.Messages[0].Author)
	assert.Equal(t, "hello", body.Messages[0].Text)
	assert.Equal(t, dialogue.AuthorAssistant, body.Messages[1].Author)
	assert.Equal(t, "thanks", body.Messages[2].Text)

	res2, err := http.Get(env.ts.URL + "/v1/chat/session/" + id + "/messages?limit=2")
	require.NoError(t, err)
	defer res2.Body.Close()
	var tail transcriptResponse
	require.NoError(t, json.NewDecoder(res2.Body).Decode(&tail))
	require.Len(t, tail.Messages, 2)
	assert.Equal(t, "thanks", tail.Messages[0].Text)

	res3, err := http.Get(env.ts.URL + "/v1/chat/session/" + id + "/messages?limit=x")
	require.NoError(t, err)
	defer res3.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res3.StatusCode)
}

func TestHealthReadyAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.srv.SetReadinessCheck(nil)

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/v1/perf/latency"} {
		res, err := http.Get(env.ts.URL + path)
		require.NoError(t, err, path)
		res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode, path)
	}
}

func TestReadinessCheckFailure(t *testing.T) {
	env := newTestEnv(t)
	env.srv.SetReadinessCheck(func(ctx context.Context) error { return errors.New("catalog down") })

	res, err := http.Get(env.ts.URL + "/readyz")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func readEnvelope(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var out map[string]any
	require.NoError(t, conn.ReadJSON(&out))
	return out
}

func TestWebSocketRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/v1/chat/session/ws?session_id=" + id
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	ready := readEnvelope(t, conn)
	assert.Equal(t, "system_event", ready["type"])
	assert.Equal(t, "session_ready", ready["code"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "user_message", "session_id": id, "text": "hi"}))
	reply := readEnvelope(t, conn)
	assert.Equal(t, "assistant_message", reply["type"])
	msg, ok := reply["message"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "assistant", msg["author"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)))
	bad := readEnvelope(t, conn)
	assert.Equal(t, "error_event", bad["type"])
	assert.Equal(t, "invalid_client_message", bad["code"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "user_message", "session_id": "other", "text": "hi"}))
	mismatch := readEnvelope(t, conn)
	assert.Equal(t, "session_mismatch", mismatch["code"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "client_control", "session_id": id, "action": "end_session"}))
	ended := readEnvelope(t, conn)
	assert.Equal(t, "system_event", ended["type"])
	assert.Equal(t, "session_ended", ended["code"])

	sess, err := env.sessions.Get(id)
	require.NoError(t, err)
	assert.Equal(t, session.StatusEnded, sess.Status)
}

func TestWebSocketUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/v1/chat/session/ws?session_id=missing"
	_, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestUpgraderRejectsCrossOrigin(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "http://shop.example/v1/chat/session/ws", nil)
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, env.srv.upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "https://shop.example")
	assert.True(t, env.srv.upgrader.CheckOrigin(req))
}

func TestWriterReportsOverflowWhenSchedulerStillRunning(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name      string
		schedDone bool
		wantType  string
		wantCode  string
	}{
		{"evicted subscriber", false, "error_event", "reply_stream_overflow"},
		{"scheduler closed", true, "system_event", "session_ended"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			replies := make(chan dialogue.Message)
			close(replies)
			done := make(chan struct{})
			if tc.schedDone {
				close(done)
			}

			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				conn, err := env.srv.upgrader.Upgrade(w, r, nil)
				if err != nil {
					return
				}
				defer conn.Close()
				env.srv.writeLoop(context.Background(), conn, "sess-1", replies, done, make(chan any))
			}))
			defer ts.Close()

			conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
			require.NoError(t, err)
			defer conn.Close()

			got := readEnvelope(t, conn)
			assert.Equal(t, tc.wantType, got["type"])
			assert.Equal(t, tc.wantCode, got["code"])
		})
	}
}
