package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autotyper/internal/control"
	"autotyper/internal/engine"
	"autotyper/internal/input"
	"autotyper/internal/protocol"
	"autotyper/internal/queue"
	"autotyper/internal/settings"
	"autotyper/internal/typedlog"
)

const testToken = "secret"

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	store := settings.New()
	require.NoError(t, store.SetProfiles(map[string]settings.Bounds{
		"instant": {},
		"fast":    {Min: time.Millisecond, Max: 2 * time.Millisecond},
		"0.01":    {Max: time.Millisecond},
	}))
	require.NoError(t, store.SetSpeed("instant"))

	q := queue.New()
	typed := typedlog.New()
	eng := engine.New(input.NewDryRun(io.Discard, input.LayoutEnglish), store, q, typed, engine.Options{
		PopTimeout: 20 * time.Millisecond,
	})
	svc := control.New(store, q, typed, eng)

	srv := NewServer(svc, testToken)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = eng.Stop()
		ts.Close()
		srv.wsMgr.stop()
	})
	return srv, ts
}

func do(t *testing.T, ts *httptest.Server, method, path, body string) (int, map[string]interface{}) {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestHealthSkipsAuth(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/words", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestWordsStartAndTyped(t *testing.T) {
	srv, ts := newTestServer(t)

	code, body := do(t, ts, http.MethodPost, "/api/words", `{"words":["hello","","world"]}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(3), body["queue_len"])

	code, body = do(t, ts, http.MethodPost, "/api/start", "")
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["run_id"])

	require.Eventually(t, func() bool { return !srv.svc.Engine.Running() }, 2*time.Second, 5*time.Millisecond)

	code, body = do(t, ts, http.MethodGet, "/api/typed", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []interface{}{"hello", "<ENTER>", "world"}, body["typed_words"])

	_, body = do(t, ts, http.MethodGet, "/typed?tail=1", "")
	assert.Equal(t, []interface{}{"world"}, body["typed_words"])
}

func TestWordsMalformed(t *testing.T) {
	_, ts := newTestServer(t)

	for _, payload := range []string{`{"words":"abc"}`, `{}`, `{"words":[1,2]}`, `not json`} {
		code, body := do(t, ts, http.MethodPost, "/words", payload)
		assert.Equal(t, http.StatusBadRequest, code, payload)
		assert.Equal(t, "error", body["status"])
	}
}

func TestLifecycleConflictsReturn409(t *testing.T) {
	srv, ts := newTestServer(t)

	code, _ := do(t, ts, http.MethodPost, "/api/stop", "")
	assert.Equal(t, http.StatusConflict, code)

	srv.svc.Settings.SetContinueMode(true)
	code, _ = do(t, ts, http.MethodPost, "/api/start", "")
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, ts, http.MethodPost, "/api/start", "")
	assert.Equal(t, http.StatusConflict, code)

	code, _ = do(t, ts, http.MethodPost, "/api/stop", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestSetSpeed(t *testing.T) {
	srv, ts := newTestServer(t)

	code, _ := do(t, ts, http.MethodPost, "/api/speed", `{"value":"fast"}`)
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, ts, http.MethodPost, "/set_speed", `{"value":0.01}`)
	require.Equal(t, http.StatusOK, code)
	name, _ := srv.svc.Settings.Speed()
	assert.Equal(t, "0.01", name)

	code, body := do(t, ts, http.MethodPost, "/api/speed", `{"value":"fst"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["message"], `did you mean "fast"`)
	name, _ = srv.svc.Settings.Speed()
	assert.Equal(t, "0.01", name)
}

func TestNumericSettings(t *testing.T) {
	srv, ts := newTestServer(t)

	code, _ := do(t, ts, http.MethodPost, "/api/error-chance", `{"value":"5"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 5.0, srv.svc.Settings.ErrorChance())

	code, _ = do(t, ts, http.MethodPost, "/api/error-chance", `{"value":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, ts, http.MethodPost, "/set_error_chance", `{"value":150}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, ts, http.MethodPost, "/api/error-chance", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 5.0, srv.svc.Settings.ErrorChance())

	code, _ = do(t, ts, http.MethodPost, "/api/custom-delay", `{"value":0.2}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 200*time.Millisecond, srv.svc.Settings.CustomDelay())

	code, _ = do(t, ts, http.MethodPost, "/set_custom_delay", `{"value":"6"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 200*time.Millisecond, srv.svc.Settings.CustomDelay())
}

func TestToggles(t *testing.T) {
	_, ts := newTestServer(t)

	code, body := do(t, ts, http.MethodPost, "/api/toggle/continue", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["continue_mode"])

	_, body = do(t, ts, http.MethodPost, "/toggle_parsing", "")
	assert.Equal(t, false, body["parsing_enabled"])

	_, body = do(t, ts, http.MethodPost, "/api/toggle/errors", "")
	assert.Equal(t, true, body["errors_enabled"])

	code, _ = do(t, ts, http.MethodPost, "/api/toggle/turbo", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestForceParseAndParsingStatus(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.svc.EnqueueWords([]string{"a", "b"})

	code, _ := do(t, ts, http.MethodPost, "/force_parse", "")
	require.Equal(t, http.StatusOK, code)
	assert.Zero(t, srv.svc.Queue.Len())

	_, body := do(t, ts, http.MethodGet, "/parsing_status", "")
	assert.Equal(t, map[string]interface{}{"enabled": true, "force": true, "memory_enabled": false}, body)

	_, body = do(t, ts, http.MethodGet, "/api/parsing-status", "")
	assert.Equal(t, false, body["force"])
}

func TestClearQueueAndStatus(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.svc.EnqueueWords([]string{"a", "b", "c"})

	code, body := do(t, ts, http.MethodDelete, "/api/queue", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(3), body["dropped"])

	_, body = do(t, ts, http.MethodGet, "/api/status", "")
	assert.Equal(t, "idle", body["state"])
	assert.Equal(t, float64(0), body["queue_len"])
	assert.Equal(t, "instant", body["speed"])
	assert.Equal(t, true, body["parsing_enabled"])
}

func TestWebSocketStreamsEvents(t *testing.T) {
	srv, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + testToken
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() protocol.Message {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg protocol.Message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	greeting := read()
	assert.Equal(t, protocol.TypeStatus, greeting.Type)

	require.Eventually(t, func() bool { return srv.wsMgr.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	srv.svc.EnqueueWords([]string{"hi"})
	_, err = srv.svc.Start()
	require.NoError(t, err)

	var events []string
	for len(events) == 0 || events[len(events)-1] != "run_finished" {
		msg := read()
		if msg.Type != protocol.TypeEvent {
			continue
		}
		var ev protocol.EventPayload
		require.NoError(t, protocol.DecodePayload(msg, &ev))
		events = append(events, ev.Type)
	}
	assert.Equal(t, []string{"run_started", "word_typed", "run_finished"}, events)
}

func TestStatusAfterRunFinishedIsIdle(t *testing.T) {
	srv, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + testToken
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() protocol.Message {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg protocol.Message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	read() // greeting
	require.Eventually(t, func() bool { return srv.wsMgr.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	// the status must already be idle when run_finished listeners run
	statusAtFinish := make(chan control.Status, 1)
	srv.svc.Engine.AddEventSink(func(ev engine.Event) {
		if ev.Type == engine.EventRunFinished {
			statusAtFinish <- srv.svc.Status()
		}
	})

	// a few milliseconds of typing so the status pushed by Start arrives first
	require.NoError(t, srv.svc.Settings.SetSpeed("fast"))
	srv.svc.EnqueueWords([]string{"hello"})
	_, err = srv.svc.Start()
	require.NoError(t, err)

	finished := false
	for {
		msg := read()
		if msg.Type == protocol.TypeEvent {
			var ev protocol.EventPayload
			require.NoError(t, protocol.DecodePayload(msg, &ev))
			finished = finished || ev.Type == string(engine.EventRunFinished)
			continue
		}
		if msg.Type != protocol.TypeStatus || !finished {
			continue
		}
		var st control.Status
		require.NoError(t, protocol.DecodePayload(msg, &st))
		assert.False(t, st.Running)
		assert.Equal(t, "idle", st.State)
		assert.Empty(t, st.RunID)
		break
	}

	select {
	case st := <-statusAtFinish:
		assert.False(t, st.Running)
	case <-time.After(2 * time.Second):
		t.Fatal("run_finished never reached the sink")
	}
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	_, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=wrong"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
