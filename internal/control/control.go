// Package control implements the operations every control surface exposes.
// The HTTP API, tray menu, hotkeys and CLI all call into one Service, which
// owns the settings store, work queue, typed log and engine.
package control

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"autotyper/internal/engine"
	"autotyper/internal/queue"
	"autotyper/internal/settings"
	"autotyper/internal/typedlog"
)

// Status is the full state reported by get_status
type Status struct {
	settings.Snapshot
	State      string   `json:"state"`
	Running    bool     `json:"running"`
	RunID      string   `json:"run_id,omitempty"`
	QueueLen   int      `json:"queue_len"`
	TypedCount int      `json:"typed_count"`
	Profiles   []string `json:"profiles"`
}

// ParsingStatus is what the page script polls
type ParsingStatus struct {
	Enabled       bool `json:"enabled"`
	Force         bool `json:"force"`
	MemoryEnabled bool `json:"memory_enabled"`
}

// Service is the single owner of the typing state
type Service struct {
	Settings *settings.Store
	Queue    *queue.Queue
	Typed    *typedlog.Log
	Engine   *engine.Engine

	mu        sync.RWMutex
	listeners []func()
}

// New wires a service around existing components
func New(store *settings.Store, q *queue.Queue, typed *typedlog.Log, eng *engine.Engine) *Service {
	return &Service{
		Settings: store,
		Queue:    q,
		Typed:    typed,
		Engine:   eng,
	}
}

// OnChange registers a callback run after every mutation
func (s *Service) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Service) changed() {
	s.mu.RLock()
	listeners := append([]func(){}, s.listeners...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

// EnqueueWords appends words to the queue in order and returns the new
// queue length
func (s *Service) EnqueueWords(words []string) int {
	s.Queue.Push(words...)
	log.Printf("Control: enqueued %d words", len(words))
	s.changed()
	return s.Queue.Len()
}

func (s *Service) Start() (string, error) {
	id, err := s.Engine.Start()
	if err != nil {
		return "", err
	}
	s.changed()
	return id, nil
}

func (s *Service) Stop() error {
	if err := s.Engine.Stop(); err != nil {
		return err
	}
	s.changed()
	return nil
}

// TypedWords returns the typed log with line breaks rendered as markers
func (s *Service) TypedWords() []string {
	return s.Typed.Words()
}

// TypedTail returns the last n typed entries
func (s *Service) TypedTail(n int) []string {
	return s.Typed.Tail(n)
}

func (s *Service) SetSpeed(name string) error {
	if err := s.Settings.SetSpeed(name); err != nil {
		return err
	}
	log.Printf("Control: speed set to %s", name)
	s.changed()
	return nil
}

func (s *Service) SetErrorChance(pct float64) error {
	if err := s.Settings.SetErrorChance(pct); err != nil {
		return err
	}
	log.Printf("Control: error chance set to %v%%", pct)
	s.changed()
	return nil
}

// SetCustomDelay sets the extra delay in seconds
func (s *Service) SetCustomDelay(seconds float64) error {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return fmt.Errorf("custom delay %v: %w", seconds, settings.ErrOutOfRange)
	}
	if err := s.Settings.SetCustomDelay(time.Duration(seconds * float64(time.Second))); err != nil {
		return err
	}
	log.Printf("Control: custom delay set to %vs", seconds)
	s.changed()
	return nil
}

func (s *Service) ToggleContinue() bool { return s.toggle("continue mode", s.Settings.ToggleContinue) }
func (s *Service) ToggleErrors() bool   { return s.toggle("errors", s.Settings.ToggleErrors) }
func (s *Service) ToggleMemory() bool   { return s.toggle("memory", s.Settings.ToggleMemory) }
func (s *Service) ToggleParsing() bool  { return s.toggle("parsing", s.Settings.ToggleParsing) }

func (s *Service) toggle(name string, fn func() bool) bool {
	v := fn()
	log.Printf("Control: %s %s", name, onOff(v))
	s.changed()
	return v
}

// ForceParse cancels any active run, empties the queue and the typed log and
// raises the one-shot force flag for the page script.
func (s *Service) ForceParse() {
	cancelled := s.Engine.Cancel()
	dropped := s.Queue.Clear()
	s.Typed.Clear()
	s.Settings.RequestForceParse()
	log.Printf("Control: force parse (run cancelled: %v, dropped %d words)", cancelled, dropped)
	s.changed()
}

// ParsingStatus reports the parsing flags and consumes the force flag
func (s *Service) ParsingStatus() ParsingStatus {
	return ParsingStatus{
		Enabled:       s.Settings.ParsingEnabled(),
		Force:         s.Settings.TakeForceParse(),
		MemoryEnabled: s.Settings.MemoryEnabled(),
	}
}

// ClearQueue drops every pending word and returns how many were dropped
func (s *Service) ClearQueue() int {
	n := s.Queue.Clear()
	log.Printf("Control: cleared %d queued words", n)
	s.changed()
	return n
}

func (s *Service) Status() Status {
	return Status{
		Snapshot:   s.Settings.Snapshot(),
		State:      s.Engine.State().String(),
		Running:    s.Engine.Running(),
		RunID:      s.Engine.RunID(),
		QueueLen:   s.Queue.Len(),
		TypedCount: s.Typed.Len(),
		Profiles:   s.Settings.Profiles(),
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
