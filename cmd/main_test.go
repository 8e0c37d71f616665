package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autotyper/internal/api"
	"autotyper/internal/config"
	"autotyper/internal/control"
	"autotyper/internal/engine"
	"autotyper/internal/hotkey"
	"autotyper/internal/input"
	"autotyper/internal/queue"
	"autotyper/internal/settings"
	"autotyper/internal/typedlog"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func newTestService(t *testing.T) (*control.Service, string) {
	t.Helper()
	store := settings.New()
	require.NoError(t, store.SetProfiles(map[string]settings.Bounds{"instant": {}}))
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
	return svc, ts.URL
}

func TestSplitText(t *testing.T) {
	words, err := splitText(strings.NewReader("hello  world\n\nпривет мир\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world", "", "", "привет", "мир"}, words)

	words, err = splitText(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, words)
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "autotyper version "+version+"\n", out)
}

func TestConfigCmds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	out, err := execute(t, "", "--config", path, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)

	_, err = execute(t, "", "--config", path, "config", "init")
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err)

	_, err = execute(t, "", "--config", path, "config", "init")
	assert.Error(t, err, "init refuses to overwrite")
	_, err = execute(t, "", "--config", path, "config", "init", "--force")
	assert.NoError(t, err)

	t.Setenv(config.EnvBotToken, "secret-bot-token")
	out, err = execute(t, "", "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "[typing]")
	assert.Contains(t, out, "REDACTED")
	assert.NotContains(t, out, "secret-bot-token")
}

func TestRemoteCmds(t *testing.T) {
	svc, url := newTestService(t)
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	remote := func(stdin string, args ...string) (string, error) {
		return execute(t, stdin, append([]string{"--config", cfgPath, "--api", url, "--token", "tok"}, args...)...)
	}

	out, err := remote("", "enqueue", "one", "two")
	require.NoError(t, err)
	assert.Contains(t, out, "queued 2 words")

	out, err = remote("three\nfour", "enqueue", "--file", "-", "--start")
	require.NoError(t, err)
	assert.Contains(t, out, "queued 3 words")
	assert.Contains(t, out, "started run ")
	require.Eventually(t, func() bool { return !svc.Engine.Running() }, 2*time.Second, 5*time.Millisecond)

	out, err = remote("", "typed", "--tail", "2")
	require.NoError(t, err)
	assert.Equal(t, typedlog.LineBreakMarker+"\nfour\n", out)

	_, err = remote("", "speed", "warp")
	assert.Error(t, err)

	out, err = remote("", "toggle", "memory")
	require.NoError(t, err)
	assert.Equal(t, "memory: true\n", out)

	_, err = remote("", "error-chance", "4")
	require.NoError(t, err)

	out, err = remote("", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "State:         idle")
	assert.Contains(t, out, "Typed:         5")
	assert.Contains(t, out, "chance 4%")

	out, err = remote("", "status", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"memory_enabled": true`)

	_, err = remote("", "stop")
	assert.Error(t, err, "nothing is running")

	_, err = remote("", "enqueue")
	assert.Error(t, err)

	_, err = execute(t, "", "--config", cfgPath, "--api", url, "--token", "wrong", "status")
	assert.Error(t, err)
}

// syncBuffer is written by the websocket goroutine and read by the test
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchCmd(t *testing.T) {
	svc, url := newTestService(t)
	cfgPath := filepath.Join(t.TempDir(), "config.toml")

	cmd := newRootCmd()
	out := &syncBuffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"--config", cfgPath, "--api", url, "--token", "tok", "watch", "--interval", "20ms"})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- cmd.ExecuteContext(ctx) }()

	// greeting plus at least one periodic refresh
	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "status: idle") >= 2
	}, 3*time.Second, 10*time.Millisecond)

	svc.EnqueueWords([]string{"hey"})
	_, err := svc.Start()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "run_finished")
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not exit")
	}

	text := out.String()
	assert.Contains(t, text, `word_typed "hey"`)
	assert.Contains(t, text, "(queue_empty)")
	assert.Less(t, strings.Index(text, "run_started"), strings.Index(text, "run_finished"))
}

func TestNewBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	b, err := newBackend(cfg, true)
	require.NoError(t, err)
	assert.IsType(t, &input.DryRun{}, b)

	cfg.General.Backend = config.BackendNative
	b, err = newBackend(cfg, false)
	if input.Supported() {
		require.NoError(t, err)
		assert.IsType(t, &input.Injector{}, b)
	} else {
		assert.ErrorIs(t, err, input.ErrUnsupportedPlatform)
	}
}

func TestHotkeysDriveService(t *testing.T) {
	svc, _ := newTestService(t)
	svc.Settings.SetContinueMode(true)

	cfg := config.DefaultConfig()
	cfg.Hotkeys.Toggle = "Ctrl+Alt+T"
	hk := hotkey.NewManager()
	registerHotkeys(hk, cfg, svc)

	press := func(keys ...string) {
		for _, k := range keys {
			hk.UpdateState(k, true)
		}
		for _, k := range keys {
			hk.UpdateState(k, false)
		}
	}

	press("CTRL", "ALT", "T")
	require.Eventually(t, svc.Engine.Running, time.Second, 5*time.Millisecond)

	press("CTRL", "ALT", "SHIFT", "ESC")
	require.Eventually(t, func() bool { return !svc.Engine.Running() }, time.Second, 5*time.Millisecond)
}

func TestDebouncer(t *testing.T) {
	d := newDebouncer(time.Hour)
	assert.True(t, d())
	assert.False(t, d())
}
