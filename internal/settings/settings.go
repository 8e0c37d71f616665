// Package settings holds the runtime typing settings shared by the engine
// and every control surface.
package settings

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrUnknownProfile is returned when a speed profile name is not in the table
	ErrUnknownProfile = errors.New("unknown speed profile")

	// ErrOutOfRange is returned when a numeric setting is outside its bounds
	ErrOutOfRange = errors.New("value out of range")
)

const (
	// MaxErrorChance is the upper bound for the error chance percentage
	MaxErrorChance = 100.0

	// MaxCustomDelay is the upper bound for the extra per-character delay
	MaxCustomDelay = 5 * time.Second

	// DefaultSpeed is the profile active when nothing else is configured
	DefaultSpeed = "medium"
)

// Bounds is the range a per-character delay is drawn from
type Bounds struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
}

// DefaultProfiles returns the built-in speed table
func DefaultProfiles() map[string]Bounds {
	return map[string]Bounds{
		"slow":   {Min: 210 * time.Millisecond, Max: 300 * time.Millisecond},
		"medium": {Min: 130 * time.Millisecond, Max: 200 * time.Millisecond},
		"fast":   {Min: 80 * time.Millisecond, Max: 120 * time.Millisecond},
		"0.01":   {Min: 0, Max: 10 * time.Millisecond},
	}
}

// Snapshot is a point-in-time copy of every setting
type Snapshot struct {
	Speed          string  `json:"speed"`
	MinDelay       float64 `json:"min_delay"`
	MaxDelay       float64 `json:"max_delay"`
	CustomDelay    float64 `json:"custom_delay"`
	ErrorChance    float64 `json:"error_chance"`
	ErrorsEnabled  bool    `json:"errors_enabled"`
	ContinueMode   bool    `json:"continue_mode"`
	MemoryEnabled  bool    `json:"memory_enabled"`
	ParsingEnabled bool    `json:"parsing_enabled"`
	ForceParse     bool    `json:"force_parse"`
}

// Store is the goroutine-safe settings holder. Only the speed profile
// (name plus bounds) needs the mutex; every other field is a single atomic.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]Bounds
	speed    string
	bounds   Bounds

	customDelay    atomic.Int64  // time.Duration
	errorChance    atomic.Uint64 // math.Float64bits
	errorsEnabled  atomic.Bool
	continueMode   atomic.Bool
	memoryEnabled  atomic.Bool
	parsingEnabled atomic.Bool
	forceParse     atomic.Bool
}

// New creates a store with the default speed table and defaults
func New() *Store {
	s := &Store{
		profiles: DefaultProfiles(),
		speed:    DefaultSpeed,
	}
	s.bounds = s.profiles[DefaultSpeed]
	s.errorChance.Store(math.Float64bits(1))
	s.parsingEnabled.Store(true)
	return s
}

// SetProfiles replaces the speed table. The active profile keeps its name;
// if the new table has different bounds for it they are taken with it.
// An empty table is rejected.
func (s *Store) SetProfiles(profiles map[string]Bounds) error {
	if len(profiles) == 0 {
		return fmt.Errorf("empty speed table")
	}
	for name, b := range profiles {
		if b.Min < 0 || b.Max < b.Min {
			return fmt.Errorf("speed profile %q: %w", name, ErrOutOfRange)
		}
	}

	table := make(map[string]Bounds, len(profiles))
	for name, b := range profiles {
		table[name] = b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = table
	if b, ok := table[s.speed]; ok {
		s.bounds = b
	}
	return nil
}

// Profiles returns the speed profile names, sorted
func (s *Store) Profiles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetSpeed switches the active profile
func (s *Store) SetSpeed(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.profiles[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	s.speed = name
	s.bounds = b
	return nil
}

// Speed returns the active profile name and its bounds
func (s *Store) Speed() (string, Bounds) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.speed, s.bounds
}

// SetErrorChance sets the per-character mistake chance in percent
func (s *Store) SetErrorChance(pct float64) error {
	if math.IsNaN(pct) || pct < 0 || pct > MaxErrorChance {
		return fmt.Errorf("error chance %v: %w (0..%v)", pct, ErrOutOfRange, MaxErrorChance)
	}
	s.errorChance.Store(math.Float64bits(pct))
	return nil
}

// ErrorChance returns the mistake chance in percent
func (s *Store) ErrorChance() float64 {
	return math.Float64frombits(s.errorChance.Load())
}

// SetCustomDelay sets the extra delay added to every pause
func (s *Store) SetCustomDelay(d time.Duration) error {
	if d < 0 || d > MaxCustomDelay {
		return fmt.Errorf("custom delay %v: %w (0..%v)", d, ErrOutOfRange, MaxCustomDelay)
	}
	s.customDelay.Store(int64(d))
	return nil
}

// CustomDelay returns the extra delay
func (s *Store) CustomDelay() time.Duration {
	return time.Duration(s.customDelay.Load())
}

func (s *Store) ErrorsEnabled() bool  { return s.errorsEnabled.Load() }
func (s *Store) ContinueMode() bool   { return s.continueMode.Load() }
func (s *Store) MemoryEnabled() bool  { return s.memoryEnabled.Load() }
func (s *Store) ParsingEnabled() bool { return s.parsingEnabled.Load() }

func (s *Store) SetErrorsEnabled(v bool)  { s.errorsEnabled.Store(v) }
func (s *Store) SetContinueMode(v bool)   { s.continueMode.Store(v) }
func (s *Store) SetMemoryEnabled(v bool)  { s.memoryEnabled.Store(v) }
func (s *Store) SetParsingEnabled(v bool) { s.parsingEnabled.Store(v) }

func (s *Store) ToggleErrors() bool   { return toggle(&s.errorsEnabled) }
func (s *Store) ToggleContinue() bool { return toggle(&s.continueMode) }
func (s *Store) ToggleMemory() bool   { return toggle(&s.memoryEnabled) }
func (s *Store) ToggleParsing() bool  { return toggle(&s.parsingEnabled) }

// RequestForceParse raises the one-shot force parse flag
func (s *Store) RequestForceParse() {
	s.forceParse.Store(true)
}

// TakeForceParse returns the force parse flag and resets it
func (s *Store) TakeForceParse() bool {
	return s.forceParse.Swap(false)
}

// ForceParsePending reports the flag without consuming it
func (s *Store) ForceParsePending() bool {
	return s.forceParse.Load()
}

// Snapshot returns a copy of all settings
func (s *Store) Snapshot() Snapshot {
	name, b := s.Speed()
	return Snapshot{
		Speed:          name,
		MinDelay:       b.Min.Seconds(),
		MaxDelay:       b.Max.Seconds(),
		CustomDelay:    s.CustomDelay().Seconds(),
		ErrorChance:    s.ErrorChance(),
		ErrorsEnabled:  s.ErrorsEnabled(),
		ContinueMode:   s.ContinueMode(),
		MemoryEnabled:  s.MemoryEnabled(),
		ParsingEnabled: s.ParsingEnabled(),
		ForceParse:     s.ForceParsePending(),
	}
}

func toggle(b *atomic.Bool) bool {
	for {
		old := b.Load()
		if b.CompareAndSwap(old, !old) {
			return !old
		}
	}
}
