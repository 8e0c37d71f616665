package input

import (
	"fmt"
	"io"
	"sync"
)

// DryRun is a Backend that writes what would be typed to a writer and
// keeps the layout in memory. It works on every platform.
type DryRun struct {
	mu     sync.Mutex
	w      io.Writer
	layout Layout
}

var _ Backend = (*DryRun)(nil)

// NewDryRun creates a dry-run backend starting on the given layout
func NewDryRun(w io.Writer, initial Layout) *DryRun {
	return &DryRun{w: w, layout: initial}
}

func (d *DryRun) CurrentLayout() (Layout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.layout, nil
}

func (d *DryRun) SwitchLayout(layout Layout) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if layout == "" {
		return fmt.Errorf("empty layout id")
	}
	d.layout = layout
	return nil
}

func (d *DryRun) TypeChar(r rune) error {
	return d.write(string(r))
}

func (d *DryRun) TypeModified(mod Modifier, key rune) error {
	return d.write(fmt.Sprintf("[%s+%c]", mod, key))
}

func (d *DryRun) TypeBackspace() error {
	return d.write("\b")
}

func (d *DryRun) TypeLineBreak() error {
	return d.write("\n")
}

func (d *DryRun) write(s string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := io.WriteString(d.w, s)
	return err
}
