package osutils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInhibitorIsIdempotent(t *testing.T) {
	var calls []bool
	i := &Inhibitor{set: func(awake bool) error {
		calls = append(calls, awake)
		return nil
	}}

	i.Release()
	assert.Empty(t, calls, "release without hold does nothing")

	i.Hold()
	i.Hold()
	assert.True(t, i.Held())
	i.Release()
	i.Release()
	assert.False(t, i.Held())
	assert.Equal(t, []bool{true, false}, calls)
}

func TestInhibitorFailedHold(t *testing.T) {
	i := &Inhibitor{set: func(bool) error { return errors.New("unavailable") }}
	i.Hold()
	assert.False(t, i.Held())
	i.Release()
	assert.False(t, i.Held())
}
