package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOfChar(t *testing.T) {
	tests := []struct {
		r    rune
		want Language
	}{
		{'a', English},
		{'Z', English},
		{'ж', Russian},
		{'Я', Russian},
		{'ё', Russian},
		{'Ё', Russian},
		{'7', Other},
		{'.', Other},
		{' ', Other},
		{'é', Other},
		{'ß', Other},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, OfChar(tt.r), "char %q", tt.r)
	}
}

func TestOfWord(t *testing.T) {
	tests := []struct {
		word string
		want Language
	}{
		{"hello", English},
		{"Hello,", English},
		{"мир", Russian},
		{"ёлка", Russian},
		{"ЁЖ", Russian},
		{"helloмир", Mixed},
		{"мир-world", Mixed},
		{"123", Other},
		{"?!", Other},
		{"", Other},
		{"x1", English},
	}

	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			assert.Equal(t, tt.want, OfWord(tt.word))
		})
	}
}
