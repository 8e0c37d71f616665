package input

// ShiftedKeys maps, per layout, a character to the key that produces it
// when pressed together with Shift. Characters listed here are typed as
// Shift+key instead of being sent directly.
type ShiftedKeys map[Layout]map[rune]rune

// DefaultShiftedKeys returns the punctuation table for the Russian layout
func DefaultShiftedKeys() ShiftedKeys {
	return ShiftedKeys{
		LayoutRussian: {
			'.': 'ю',
			',': 'б',
		},
	}
}

// Lookup returns the key to press with Shift for r on layout
func (s ShiftedKeys) Lookup(layout Layout, r rune) (rune, bool) {
	keys, ok := s[layout]
	if !ok {
		return 0, false
	}
	key, ok := keys[r]
	return key, ok
}

// Clone returns a deep copy
func (s ShiftedKeys) Clone() ShiftedKeys {
	out := make(ShiftedKeys, len(s))
	for layout, keys := range s {
		m := make(map[rune]rune, len(keys))
		for k, v := range keys {
			m[k] = v
		}
		out[layout] = m
	}
	return out
}
