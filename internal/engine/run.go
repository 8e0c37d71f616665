package engine

import (
	"context"
	"time"

	"autotyper/internal/input"
	"autotyper/internal/lang"
)

// wrongChars is the pool a simulated mistake is drawn from
var wrongChars = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ1234567890!@#$%^&*()_+-=,./;:'\"[]{}|?абвгдеёжзийклмнопрстуфхцчшщъыьэюя")

// run is the state of one typing run. Everything here is owned by the run
// goroutine.
type run struct {
	id      string
	engine  *Engine
	opts    Options
	backend input.Backend
}

func (r *run) loop(ctx context.Context, done chan struct{}) {
	e := r.engine
	defer close(done)
	defer e.finished(r.id)

	entry, err := r.backend.CurrentLayout()
	if err != nil {
		e.logf("run %s: could not read initial layout: %v", r.id, err)
		entry = ""
	}

	e.logf("run %s started", r.id)
	e.emit(Event{Type: EventRunStarted, RunID: r.id, Time: time.Now()})

	reason := r.drain(ctx)

	if entry != "" {
		if err := r.backend.SwitchLayout(entry); err != nil {
			e.logf("run %s: restoring layout %s failed: %v", r.id, entry, err)
		}
	}

	// Listeners reacting to run_finished must already see the engine idle.
	e.finished(r.id)
	e.logf("run %s finished (%s)", r.id, reason)
	e.emit(Event{Type: EventRunFinished, RunID: r.id, Reason: reason, Time: time.Now()})
}

// drain pops and types words until the run is cancelled or, with continue
// mode off, the queue is empty. It returns the finish reason.
func (r *run) drain(ctx context.Context) string {
	e := r.engine
	for {
		if ctx.Err() != nil {
			return ReasonStopped
		}
		if e.queue.Len() == 0 && !e.settings.ContinueMode() {
			return ReasonQueueEmpty
		}

		word, ok := r.next(ctx)
		if !ok {
			continue
		}

		if word == "" {
			r.lineBreak(ctx)
			continue
		}
		r.typeWord(ctx, word)
	}
}

// next pops the next queued item. An item popped after the run was
// cancelled is dropped so nothing more reaches the backend.
func (r *run) next(ctx context.Context) (string, bool) {
	word, ok := r.engine.queue.Pop(ctx, r.opts.PopTimeout)
	if !ok || ctx.Err() != nil {
		return "", false
	}
	return word, true
}

func (r *run) lineBreak(ctx context.Context) {
	e := r.engine
	if err := r.backend.TypeLineBreak(); err != nil {
		e.logf("run %s: line break failed: %v", r.id, err)
	}
	e.typed.AppendLineBreak()
	e.emit(Event{Type: EventLineBreak, RunID: r.id, Time: time.Now()})
	r.sleep(ctx, r.delay())
}

func (r *run) typeWord(ctx context.Context, word string) {
	e := r.engine

	tag := lang.OfWord(word)
	if tag == lang.English || tag == lang.Russian {
		r.switchTo(tag)
	}

	degraded := false
	for _, ch := range word {
		if ctx.Err() != nil {
			break
		}
		if tag == lang.Mixed {
			if chTag := lang.OfChar(ch); chTag != lang.Other {
				r.switchTo(chTag)
			}
		}

		if err := r.typeChar(ch); err != nil {
			e.logf("run %s: typing %q in %q failed: %v", r.id, ch, word, err)
			degraded = true
		}
		if !r.sleep(ctx, r.delay()) {
			break
		}

		if e.settings.ErrorsEnabled() && r.rollMistake() {
			if err := r.mistake(ctx); err != nil {
				e.logf("run %s: simulated mistake in %q failed: %v", r.id, word, err)
				degraded = true
			}
		}
	}

	if ctx.Err() != nil {
		return
	}

	if err := r.backend.TypeChar(' '); err != nil {
		e.logf("run %s: trailing space after %q failed: %v", r.id, word, err)
		degraded = true
	}
	e.typed.AppendWord(word)
	if degraded {
		e.logf("run %s: %q typed with errors", r.id, word)
	}
	e.emit(Event{Type: EventWordTyped, RunID: r.id, Word: word, Degraded: degraded, Time: time.Now()})
	r.sleep(ctx, r.delay())
}

// switchTo changes the layout for a language
func (r *run) switchTo(tag lang.Language) {
	var target input.Layout
	switch tag {
	case lang.English:
		target = r.opts.EnglishLayout
	case lang.Russian:
		target = r.opts.RussianLayout
	default:
		return
	}
	if err := r.backend.SwitchLayout(target); err != nil {
		r.engine.logf("run %s: switching to %s layout failed: %v", r.id, tag, err)
	}
}

// typeChar emits one character, holding Shift for characters the current
// layout only produces that way.
func (r *run) typeChar(ch rune) error {
	layout, err := r.backend.CurrentLayout()
	if err == nil {
		if key, ok := r.opts.ShiftedKeys.Lookup(layout, ch); ok {
			return r.backend.TypeModified(input.ModShift, key)
		}
	}
	return r.backend.TypeChar(ch)
}

func (r *run) rollMistake() bool {
	roll := float64(r.opts.Rand.IntN(100) + 1)
	return roll <= r.engine.settings.ErrorChance()
}

// mistake types one wrong character and erases it
func (r *run) mistake(ctx context.Context) error {
	wrong := wrongChars[r.opts.Rand.IntN(len(wrongChars))]
	if err := r.backend.TypeChar(wrong); err != nil {
		return err
	}
	if !r.sleep(ctx, r.opts.ErrorPause+r.delay()) {
		// Leave nothing behind even when cancelled mid-mistake.
		return r.backend.TypeBackspace()
	}
	if err := r.backend.TypeBackspace(); err != nil {
		return err
	}
	r.sleep(ctx, r.opts.ErrorPause+r.delay())
	return nil
}

// delay draws a per-character pause from the active speed profile plus the
// custom delay
func (r *run) delay() time.Duration {
	_, b := r.engine.settings.Speed()
	d := b.Min
	if span := b.Max - b.Min; span > 0 {
		d += time.Duration(r.opts.Rand.Int64N(int64(span) + 1))
	}
	return d + r.engine.settings.CustomDelay()
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func (r *run) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
