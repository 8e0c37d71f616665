// Package typedlog records the words committed during a typing run.
package typedlog

import "sync"

// LineBreakMarker is how a committed line break is rendered
const LineBreakMarker = "<ENTER>"

// Entry is one committed word or line break
type Entry struct {
	Word      string `json:"word,omitempty"`
	LineBreak bool   `json:"line_break,omitempty"`
}

func (e Entry) String() string {
	if e.LineBreak {
		return LineBreakMarker
	}
	return e.Word
}

// Log is an append-only, goroutine-safe list of entries in commit order
type Log struct {
	mu      sync.RWMutex
	entries []Entry
}

// New creates an empty log
func New() *Log {
	return &Log{}
}

// AppendWord records a fully typed word
func (l *Log) AppendWord(word string) {
	l.append(Entry{Word: word})
}

// AppendLineBreak records a line break
func (l *Log) AppendLineBreak() {
	l.append(Entry{LineBreak: true})
}

func (l *Log) append(e Entry) {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// Entries returns a copy of all entries
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Words returns all entries rendered as strings
func (l *Log) Words() []string {
	return l.Tail(-1)
}

// Tail returns the last n entries rendered as strings. n < 0 means all.
func (l *Log) Tail(n int) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	from := 0
	if n >= 0 && n < len(l.entries) {
		from = len(l.entries) - n
	}
	out := make([]string, 0, len(l.entries)-from)
	for _, e := range l.entries[from:] {
		out = append(out, e.String())
	}
	return out
}

// Len returns the number of entries
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Clear removes every entry
func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}
