// Package tray shows the typing controls in the system tray using
// getlantern/systray.
package tray

import (
	"log"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"autotyper/internal/control"
)

// refreshInterval catches state changes no control call reports, such as a
// run finishing on an empty queue
const refreshInterval = 2 * time.Second

// Controller is the part of the control service the menu drives
type Controller interface {
	Start() (string, error)
	Stop() error
	ForceParse()
	ToggleContinue() bool
	ToggleErrors() bool
	Status() control.Status
}

// MenuItem is one entry of the tray menu. Its state is kept here so it can
// be set before the tray is running.
type MenuItem struct {
	Title     string
	Checkable bool
	Callback  func()

	mu       sync.Mutex
	checked  bool
	disabled bool
	item     *systray.MenuItem
}

// Checked reports the check mark state
func (mi *MenuItem) Checked() bool {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	return mi.checked
}

// Disabled reports whether the item is greyed out
func (mi *MenuItem) Disabled() bool {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	return mi.disabled
}

// CurrentTitle returns the displayed title
func (mi *MenuItem) CurrentTitle() string {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	return mi.Title
}

func (mi *MenuItem) setTitle(title string) {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	if mi.Title == title {
		return
	}
	mi.Title = title
	if mi.item != nil {
		mi.item.SetTitle(title)
	}
}

func (mi *MenuItem) setChecked(checked bool) {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	mi.checked = checked
	if mi.item == nil {
		return
	}
	if checked {
		mi.item.Check()
	} else {
		mi.item.Uncheck()
	}
}

func (mi *MenuItem) setDisabled(disabled bool) {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	mi.disabled = disabled
	if mi.item == nil {
		return
	}
	if disabled {
		mi.item.Disable()
	} else {
		mi.item.Enable()
	}
}

// Tray manages the system tray icon and menu
type Tray struct {
	ctrl   Controller
	onQuit func()

	items  []*MenuItem
	quitCh chan struct{}

	status       *MenuItem
	startItem    *MenuItem
	stopItem     *MenuItem
	forceItem    *MenuItem
	continueItem *MenuItem
	errorsItem   *MenuItem
}

// New builds the menu. onQuit runs when the user picks Quit.
func New(ctrl Controller, onQuit func()) *Tray {
	t := &Tray{
		ctrl:   ctrl,
		onQuit: onQuit,
		quitCh: make(chan struct{}),
	}

	t.status = t.addItem(&MenuItem{Title: "Idle"})
	t.status.disabled = true
	t.addSeparator()
	t.startItem = t.addItem(&MenuItem{Title: "Start typing", Callback: t.startTyping})
	t.stopItem = t.addItem(&MenuItem{Title: "Stop typing", Callback: t.stopTyping})
	t.forceItem = t.addItem(&MenuItem{Title: "Force parse", Callback: t.forceParse})
	t.addSeparator()
	t.continueItem = t.addItem(&MenuItem{Title: "Continue mode", Checkable: true, Callback: t.toggleContinue})
	t.errorsItem = t.addItem(&MenuItem{Title: "Typing errors", Checkable: true, Callback: t.toggleErrors})
	t.addSeparator()
	t.addItem(&MenuItem{Title: "Quit", Callback: t.quit})

	t.Refresh()
	return t
}

func (t *Tray) addItem(mi *MenuItem) *MenuItem {
	t.items = append(t.items, mi)
	return mi
}

// addSeparator adds a separator to the menu
func (t *Tray) addSeparator() {
	t.items = append(t.items, nil)
}

// Refresh syncs titles, check marks and enabled state with the service
func (t *Tray) Refresh() {
	st := t.ctrl.Status()

	title := "Idle"
	switch {
	case st.Running:
		title = "Typing (" + st.Speed + ")"
	case st.QueueLen > 0:
		title = "Idle, words queued"
	}
	t.status.setTitle(title)

	t.startItem.setDisabled(st.Running)
	t.stopItem.setDisabled(!st.Running)
	t.continueItem.setChecked(st.ContinueMode)
	t.errorsItem.setChecked(st.ErrorsEnabled)
}

func (t *Tray) startTyping() {
	if _, err := t.ctrl.Start(); err != nil {
		log.Printf("Tray: Start failed: %v", err)
	}
	t.Refresh()
}

func (t *Tray) stopTyping() {
	if err := t.ctrl.Stop(); err != nil {
		log.Printf("Tray: Stop failed: %v", err)
	}
	t.Refresh()
}

func (t *Tray) forceParse() {
	t.ctrl.ForceParse()
	t.Refresh()
}

func (t *Tray) toggleContinue() {
	t.continueItem.setChecked(t.ctrl.ToggleContinue())
}

func (t *Tray) toggleErrors() {
	t.errorsItem.setChecked(t.ctrl.ToggleErrors())
}

func (t *Tray) quit() {
	if t.onQuit != nil {
		t.onQuit()
	}
	systray.Quit()
}

// Run starts the tray event loop (blocks until Quit or Stop)
func (t *Tray) Run() {
	systray.Run(t.setupMenu, func() { close(t.quitCh) })
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	systray.SetTitle("autotyper")
	systray.SetTooltip("autotyper typing engine")
	systray.SetIcon(iconICO())

	for _, mi := range t.items {
		if mi == nil {
			systray.AddSeparator()
			continue
		}

		mi.mu.Lock()
		if mi.Checkable {
			mi.item = systray.AddMenuItemCheckbox(mi.Title, "", mi.checked)
		} else {
			mi.item = systray.AddMenuItem(mi.Title, "")
		}
		if mi.disabled {
			mi.item.Disable()
		}
		mi.mu.Unlock()

		if mi.Callback != nil {
			go t.handleClicks(mi)
		}
	}

	go t.refreshLoop()
}

func (t *Tray) handleClicks(mi *MenuItem) {
	for {
		select {
		case <-mi.item.ClickedCh:
			mi.Callback()
		case <-t.quitCh:
			return
		}
	}
}

func (t *Tray) refreshLoop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.Refresh()
		case <-t.quitCh:
			return
		}
	}
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}
