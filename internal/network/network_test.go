package network

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autotyper/internal/api"
	"autotyper/internal/control"
	"autotyper/internal/engine"
	"autotyper/internal/input"
	"autotyper/internal/protocol"
	"autotyper/internal/queue"
	"autotyper/internal/settings"
	"autotyper/internal/typedlog"
)

func newService(t *testing.T) (*control.Service, *httptest.Server) {
	t.Helper()

	store := settings.New()
	require.NoError(t, store.SetProfiles(map[string]settings.Bounds{"instant": {}, "slow": {Max: time.Millisecond}}))
	require.NoError(t, store.SetSpeed("instant"))
	q := queue.New()
	typed := typedlog.New()
	eng := engine.New(input.NewDryRun(io.Discard, input.LayoutEnglish), store, q, typed, engine.Options{
		PopTimeout: 20 * time.Millisecond,
	})
	svc := control.New(store, q, typed, eng)

	srv := api.NewServer(svc, "tok")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = eng.Stop()
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})
	return svc, ts
}

func TestClientRoundTrip(t *testing.T) {
	svc, ts := newService(t)
	c := NewClient(ts.URL, "tok")
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	n, err := c.EnqueueWords(ctx, []string{"one", "two"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	id, err := c.Start(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.Eventually(t, func() bool { return !svc.Engine.Running() }, 2*time.Second, 5*time.Millisecond)

	words, err := c.Typed(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, words)

	words, err = c.Typed(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"two"}, words)

	require.NoError(t, c.SetSpeed(ctx, "slow"))
	require.NoError(t, c.SetErrorChance(ctx, "7.5"))
	require.NoError(t, c.SetCustomDelay(ctx, "0.1"))

	on, err := c.Toggle(ctx, "memory")
	require.NoError(t, err)
	assert.True(t, on)

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "slow", st.Speed)
	assert.Equal(t, 7.5, st.ErrorChance)
	assert.InDelta(t, 0.1, st.CustomDelay, 1e-9)
	assert.True(t, st.MemoryEnabled)
	assert.Equal(t, 2, st.TypedCount)

	require.NoError(t, c.ForceParse(ctx))
	ps, err := c.ParsingStatus(ctx)
	require.NoError(t, err)
	assert.True(t, ps.Force)
	assert.True(t, ps.MemoryEnabled)

	_, err = c.EnqueueWords(ctx, []string{"x"})
	require.NoError(t, err)
	dropped, err := c.ClearQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
}

func TestClientErrors(t *testing.T) {
	_, ts := newService(t)
	ctx := context.Background()

	err := NewClient(ts.URL, "wrong").Health(ctx)
	require.NoError(t, err, "health is not authenticated")

	_, err = NewClient(ts.URL, "wrong").Status(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	c := NewClient(ts.URL, "tok")
	err = c.Stop(ctx)
	require.Error(t, err)
	assert.True(t, IsConflict(err))

	err = c.SetErrorChance(ctx, "lots")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "not a number")
	assert.False(t, IsConflict(err))

	_, err = c.Toggle(ctx, "nope")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestNewClientAddsScheme(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:5000", NewClient("127.0.0.1:5000/", "").BaseURL())
	assert.Equal(t, "https://example.com", NewClient("https://example.com", "").BaseURL())
}

func TestNewWSClientURL(t *testing.T) {
	assert.Equal(t, "ws://127.0.0.1:5000/ws", NewWSClient("http://127.0.0.1:5000/", "").wsURL)
	assert.Equal(t, "wss://example.com/ws", NewWSClient("https://example.com", "").wsURL)
	assert.Equal(t, "ws://localhost:1/ws", NewWSClient("localhost:1", "").wsURL)
}

func TestWSClientReceivesEvents(t *testing.T) {
	svc, ts := newService(t)

	ws := NewWSClient(ts.URL, "tok")
	var mu sync.Mutex
	var events []protocol.EventPayload
	var statuses int
	ws.OnEvent = func(ev protocol.EventPayload) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}
	ws.OnStatus = func(control.Status) {
		mu.Lock()
		defer mu.Unlock()
		statuses++
	}
	ws.Start()
	defer ws.Close()

	// the greeting status proves the subscription is live
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return statuses > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, ws.IsConnected())

	svc.EnqueueWords([]string{"hey"})
	_, err := svc.Start()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) > 0 && events[len(events)-1].Type == string(engine.EventRunFinished)
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, string(engine.EventRunStarted), events[0].Type)
	assert.Equal(t, "hey", events[1].Word)
	assert.Equal(t, engine.ReasonQueueEmpty, events[2].Reason)
}
