package settings

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	s := New()

	name, b := s.Speed()
	assert.Equal(t, "medium", name)
	assert.Equal(t, 130*time.Millisecond, b.Min)
	assert.Equal(t, 200*time.Millisecond, b.Max)
	assert.Equal(t, 1.0, s.ErrorChance())
	assert.Equal(t, time.Duration(0), s.CustomDelay())
	assert.False(t, s.ErrorsEnabled())
	assert.False(t, s.ContinueMode())
	assert.False(t, s.MemoryEnabled())
	assert.True(t, s.ParsingEnabled())
	assert.False(t, s.ForceParsePending())
	assert.Equal(t, []string{"0.01", "fast", "medium", "slow"}, s.Profiles())
}

func TestSetSpeed(t *testing.T) {
	s := New()

	require.NoError(t, s.SetSpeed("fast"))
	name, b := s.Speed()
	assert.Equal(t, "fast", name)
	assert.Equal(t, Bounds{Min: 80 * time.Millisecond, Max: 120 * time.Millisecond}, b)
}

func TestSetSpeedUnknownKeepsPrevious(t *testing.T) {
	s := New()
	require.NoError(t, s.SetSpeed("slow"))

	err := s.SetSpeed("warp")
	require.ErrorIs(t, err, ErrUnknownProfile)

	name, b := s.Speed()
	assert.Equal(t, "slow", name)
	assert.Equal(t, DefaultProfiles()["slow"], b)
}

func TestSpeedNeverTorn(t *testing.T) {
	s := New()
	profiles := DefaultProfiles()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		names := []string{"slow", "medium", "fast", "0.01"}
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			_ = s.SetSpeed(names[i%len(names)])
		}
	}()

	for i := 0; i < 2000; i++ {
		name, b := s.Speed()
		require.Equal(t, profiles[name], b, "bounds do not match profile %s", name)
	}
	close(stop)
	wg.Wait()
}

func TestSetProfiles(t *testing.T) {
	s := New()

	err := s.SetProfiles(map[string]Bounds{
		"medium": {Min: time.Millisecond, Max: 2 * time.Millisecond},
		"turbo":  {Min: 0, Max: time.Millisecond},
	})
	require.NoError(t, err)

	name, b := s.Speed()
	assert.Equal(t, "medium", name)
	assert.Equal(t, 2*time.Millisecond, b.Max)
	assert.Equal(t, []string{"medium", "turbo"}, s.Profiles())

	assert.Error(t, s.SetProfiles(nil))
	assert.ErrorIs(t, s.SetProfiles(map[string]Bounds{"bad": {Min: 2, Max: 1}}), ErrOutOfRange)
	assert.Equal(t, []string{"medium", "turbo"}, s.Profiles())
}

func TestErrorChanceRange(t *testing.T) {
	s := New()

	require.NoError(t, s.SetErrorChance(0))
	require.NoError(t, s.SetErrorChance(100))
	assert.Equal(t, 100.0, s.ErrorChance())

	assert.ErrorIs(t, s.SetErrorChance(-1), ErrOutOfRange)
	assert.ErrorIs(t, s.SetErrorChance(100.5), ErrOutOfRange)
	assert.Equal(t, 100.0, s.ErrorChance())
}

func TestCustomDelayRange(t *testing.T) {
	s := New()

	require.NoError(t, s.SetCustomDelay(5*time.Second))
	require.NoError(t, s.SetCustomDelay(200*time.Millisecond))
	assert.Equal(t, 200*time.Millisecond, s.CustomDelay())

	assert.ErrorIs(t, s.SetCustomDelay(-time.Millisecond), ErrOutOfRange)
	assert.ErrorIs(t, s.SetCustomDelay(6*time.Second), ErrOutOfRange)
	assert.Equal(t, 200*time.Millisecond, s.CustomDelay())
}

func TestToggles(t *testing.T) {
	s := New()

	assert.True(t, s.ToggleContinue())
	assert.True(t, s.ContinueMode())
	assert.False(t, s.ToggleContinue())

	assert.True(t, s.ToggleErrors())
	assert.True(t, s.ToggleMemory())
	assert.False(t, s.ToggleParsing())
	assert.False(t, s.ParsingEnabled())
}

func TestForceParseOneShot(t *testing.T) {
	s := New()
	assert.False(t, s.TakeForceParse())

	s.RequestForceParse()
	assert.True(t, s.ForceParsePending())
	assert.True(t, s.Snapshot().ForceParse)
	assert.True(t, s.TakeForceParse())
	assert.False(t, s.TakeForceParse())
	assert.False(t, s.ForceParsePending())
}

func TestSnapshot(t *testing.T) {
	s := New()
	require.NoError(t, s.SetSpeed("fast"))
	require.NoError(t, s.SetCustomDelay(500*time.Millisecond))
	s.SetErrorsEnabled(true)

	snap := s.Snapshot()
	assert.Equal(t, "fast", snap.Speed)
	assert.InDelta(t, 0.08, snap.MinDelay, 1e-9)
	assert.InDelta(t, 0.12, snap.MaxDelay, 1e-9)
	assert.InDelta(t, 0.5, snap.CustomDelay, 1e-9)
	assert.True(t, snap.ErrorsEnabled)
	assert.True(t, snap.ParsingEnabled)
}
