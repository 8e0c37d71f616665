// Package engine drives the typing run: it drains the work queue and turns
// words into paced keystrokes on an input backend.
package engine

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"autotyper/internal/input"
	"autotyper/internal/queue"
	"autotyper/internal/settings"
	"autotyper/internal/typedlog"
)

var (
	// ErrAlreadyRunning is returned by Start while a run is active
	ErrAlreadyRunning = errors.New("typing already running")

	// ErrNotRunning is returned by Stop when no run is active
	ErrNotRunning = errors.New("typing not running")
)

// State is the lifecycle state of the engine
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Options tunes an Engine. Zero values fall back to the defaults.
type Options struct {
	// PopTimeout bounds how long the run waits on an empty queue before
	// re-checking cancellation and continue mode.
	PopTimeout time.Duration

	// ErrorPause is the fixed pause around a simulated mistake
	ErrorPause time.Duration

	EnglishLayout input.Layout
	RussianLayout input.Layout

	// ShiftedKeys lists characters typed as Shift+key on a given layout
	ShiftedKeys input.ShiftedKeys

	// Rand is the random source for delays and mistakes
	Rand *rand.Rand
}

const (
	DefaultPopTimeout = time.Second
	DefaultErrorPause = 200 * time.Millisecond
)

func (o *Options) setDefaults() {
	if o.PopTimeout <= 0 {
		o.PopTimeout = DefaultPopTimeout
	}
	if o.ErrorPause < 0 {
		o.ErrorPause = 0
	}
	if o.EnglishLayout == "" {
		o.EnglishLayout = input.LayoutEnglish
	}
	if o.RussianLayout == "" {
		o.RussianLayout = input.LayoutRussian
	}
	if o.ShiftedKeys == nil {
		o.ShiftedKeys = input.DefaultShiftedKeys()
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
}

// Engine owns the single typing run. Start and Stop are the only state
// transitions; the run itself talks to the rest of the process through the
// queue, the settings store and the typed log.
type Engine struct {
	backend  input.Backend
	settings *settings.Store
	queue    *queue.Queue
	typed    *typedlog.Log

	optMu sync.RWMutex
	opts  Options

	mu     sync.Mutex
	state  State
	runID  string
	cancel context.CancelFunc
	done   chan struct{}

	sinkMu sync.RWMutex
	sinks  []func(Event)
}

// New creates an idle engine
func New(backend input.Backend, store *settings.Store, q *queue.Queue, typed *typedlog.Log, opts Options) *Engine {
	opts.setDefaults()
	return &Engine{
		backend:  backend,
		settings: store,
		queue:    q,
		typed:    typed,
		opts:     opts,
	}
}

// AddEventSink registers a callback receiving run events. Callbacks run on
// the engine goroutine in registration order and must not block.
func (e *Engine) AddEventSink(fn func(Event)) {
	e.sinkMu.Lock()
	defer e.sinkMu.Unlock()
	e.sinks = append(e.sinks, fn)
}

// SetShiftedKeys replaces the shifted-key table; the next run picks it up
func (e *Engine) SetShiftedKeys(keys input.ShiftedKeys) {
	e.optMu.Lock()
	defer e.optMu.Unlock()
	e.opts.ShiftedKeys = keys.Clone()
}

// Start launches a run. It fails with ErrAlreadyRunning if one is active.
func (e *Engine) Start() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateIdle {
		return "", ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.optMu.RLock()
	r := &run{
		id:      uuid.NewString(),
		engine:  e,
		opts:    e.opts,
		backend: e.backend,
	}
	e.optMu.RUnlock()

	e.state = StateRunning
	e.runID = r.id
	e.cancel = cancel
	e.done = make(chan struct{})

	go r.loop(ctx, e.done)
	return r.id, nil
}

// Stop cancels the active run, waits for it to exit and clears the typed
// log. No backend call happens after Stop returns.
func (e *Engine) Stop() error {
	if !e.cancelAndWait() {
		return ErrNotRunning
	}
	e.typed.Clear()
	return nil
}

// Cancel stops the active run like Stop but keeps the typed log. It
// reports whether a run was cancelled.
func (e *Engine) Cancel() bool {
	return e.cancelAndWait()
}

func (e *Engine) cancelAndWait() bool {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return false
	}
	e.state = StateStopping
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	<-done

	e.mu.Lock()
	e.state = StateIdle
	e.runID = ""
	e.cancel = nil
	e.mu.Unlock()
	return true
}

// finished is called by the run goroutine on exit
func (e *Engine) finished(runID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateRunning && e.runID == runID {
		e.state = StateIdle
		e.runID = ""
		e.cancel = nil
	}
}

// State returns the lifecycle state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Running reports whether a run is active (including one being stopped)
func (e *Engine) Running() bool {
	return e.State() != StateIdle
}

// RunID returns the id of the active run, or "" when idle
func (e *Engine) RunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runID
}

func (e *Engine) emit(ev Event) {
	e.sinkMu.RLock()
	sinks := e.sinks
	e.sinkMu.RUnlock()
	for _, sink := range sinks {
		sink(ev)
	}
}

func (e *Engine) logf(format string, args ...any) {
	log.Printf("Engine: "+format, args...)
}
