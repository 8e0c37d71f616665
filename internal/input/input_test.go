package input

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDryRunWritesKeystrokes(t *testing.T) {
	var sb strings.Builder
	d := NewDryRun(&sb, LayoutEnglish)

	require.NoError(t, d.TypeChar('h'))
	require.NoError(t, d.TypeChar('i'))
	require.NoError(t, d.TypeModified(ModShift, 'ю'))
	require.NoError(t, d.TypeBackspace())
	require.NoError(t, d.TypeLineBreak())

	assert.Equal(t, "hi[shift+ю]\b\n", sb.String())
}

func TestDryRunLayout(t *testing.T) {
	d := NewDryRun(&strings.Builder{}, LayoutEnglish)

	l, err := d.CurrentLayout()
	require.NoError(t, err)
	assert.Equal(t, LayoutEnglish, l)

	require.NoError(t, d.SwitchLayout(LayoutRussian))
	l, _ = d.CurrentLayout()
	assert.Equal(t, LayoutRussian, l)

	assert.Error(t, d.SwitchLayout(""))
}

func TestShiftedKeysLookup(t *testing.T) {
	keys := DefaultShiftedKeys()

	key, ok := keys.Lookup(LayoutRussian, '.')
	require.True(t, ok)
	assert.Equal(t, 'ю', key)

	key, ok = keys.Lookup(LayoutRussian, ',')
	require.True(t, ok)
	assert.Equal(t, 'б', key)

	_, ok = keys.Lookup(LayoutRussian, '!')
	assert.False(t, ok)
	_, ok = keys.Lookup(LayoutEnglish, '.')
	assert.False(t, ok)
}

func TestShiftedKeysClone(t *testing.T) {
	keys := DefaultShiftedKeys()
	clone := keys.Clone()
	clone[LayoutRussian]['.'] = 'x'

	key, _ := keys.Lookup(LayoutRussian, '.')
	assert.Equal(t, 'ю', key)
}

func TestModifierString(t *testing.T) {
	assert.Equal(t, "shift", ModShift.String())
	assert.Equal(t, "ctrl", ModCtrl.String())
	assert.Equal(t, "alt", ModAlt.String())
}
