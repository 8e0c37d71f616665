//go:build windows

package input

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Windows implementation of the backend using SendInput and the keyboard
// layout API.

var (
	user32                       = windows.NewLazySystemDLL("user32.dll")
	procSendInput                = user32.NewProc("SendInput")
	procGetKeyboardLayout        = user32.NewProc("GetKeyboardLayout")
	procLoadKeyboardLayoutW      = user32.NewProc("LoadKeyboardLayoutW")
	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procPostMessageW             = user32.NewProc("PostMessageW")
	procVkKeyScanExW             = user32.NewProc("VkKeyScanExW")
)

const (
	INPUT_KEYBOARD = 1

	KEYEVENTF_KEYUP   = 0x0002
	KEYEVENTF_UNICODE = 0x0004

	VK_BACK    = 0x08
	VK_RETURN  = 0x0D
	VK_SHIFT   = 0x10
	VK_CONTROL = 0x11
	VK_MENU    = 0x12

	KLF_ACTIVATE              = 0x00000001
	WM_INPUTLANGCHANGEREQUEST = 0x0050

	// layoutSettle gives the foreground window time to apply a posted
	// layout change before the next keystroke.
	layoutSettle = 30 * time.Millisecond
)

type KEYBDINPUT struct {
	WVk         uint16
	WScan       uint16
	DwFlags     uint32
	Time        uint32
	DwExtraInfo uintptr
}

type INPUT struct {
	Type uint32
	Ki   KEYBDINPUT
	_    [8]byte // Padding to match the size of the C union
}

// Injector is the native Windows backend
type Injector struct {
	mu sync.Mutex
}

var _ Backend = (*Injector)(nil)

// NewInjector creates the native backend
func NewInjector() *Injector {
	return &Injector{}
}

// Supported reports whether the native backend works on this platform
func Supported() bool { return true }

// CurrentLayout returns the layout of the foreground window's thread
func (i *Injector) CurrentLayout() (Layout, error) {
	hkl, err := foregroundLayout()
	if err != nil {
		return "", err
	}
	return Layout(fmt.Sprintf("%08X", hkl&0xFFFF)), nil
}

// SwitchLayout asks the foreground window to change its input language
func (i *Injector) SwitchLayout(layout Layout) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	klid, err := windows.UTF16PtrFromString(string(layout))
	if err != nil {
		return fmt.Errorf("invalid layout id %q: %w", layout, err)
	}
	hkl, _, callErr := procLoadKeyboardLayoutW.Call(uintptr(unsafe.Pointer(klid)), KLF_ACTIVATE)
	if hkl == 0 {
		return fmt.Errorf("LoadKeyboardLayout %s: %v", layout, callErr)
	}

	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return fmt.Errorf("no foreground window to switch layout on")
	}
	ok, _, callErr := procPostMessageW.Call(hwnd, WM_INPUTLANGCHANGEREQUEST, 0, hkl)
	if ok == 0 {
		return fmt.Errorf("PostMessage WM_INPUTLANGCHANGEREQUEST: %v", callErr)
	}
	time.Sleep(layoutSettle)
	return nil
}

// TypeChar sends a character as Unicode key events
func (i *Injector) TypeChar(r rune) error {
	if r == '\n' {
		return i.TypeLineBreak()
	}

	var inputs []INPUT
	for _, unit := range utf16.Encode([]rune{r}) {
		inputs = append(inputs,
			unicodeInput(unit, 0),
			unicodeInput(unit, KEYEVENTF_KEYUP),
		)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	return sendInputs(inputs)
}

// TypeModified presses key on the current layout while holding mod
func (i *Injector) TypeModified(mod Modifier, key rune) error {
	modVk, err := modifierVk(mod)
	if err != nil {
		return err
	}
	hkl, err := foregroundLayout()
	if err != nil {
		return err
	}
	scan, _, _ := procVkKeyScanExW.Call(uintptr(key), hkl)
	if int16(scan) == -1 {
		return fmt.Errorf("no key for %q on layout %08X", key, hkl&0xFFFF)
	}
	vk := uint16(scan & 0xFF)

	i.mu.Lock()
	defer i.mu.Unlock()
	return sendInputs([]INPUT{
		vkInput(modVk, 0),
		vkInput(vk, 0),
		vkInput(vk, KEYEVENTF_KEYUP),
		vkInput(modVk, KEYEVENTF_KEYUP),
	})
}

func (i *Injector) TypeBackspace() error {
	return i.tap(VK_BACK)
}

func (i *Injector) TypeLineBreak() error {
	return i.tap(VK_RETURN)
}

func (i *Injector) tap(vk uint16) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return sendInputs([]INPUT{vkInput(vk, 0), vkInput(vk, KEYEVENTF_KEYUP)})
}

func foregroundLayout() (uintptr, error) {
	var tid uintptr
	if hwnd, _, _ := procGetForegroundWindow.Call(); hwnd != 0 {
		tid, _, _ = procGetWindowThreadProcessId.Call(hwnd, 0)
	}
	hkl, _, _ := procGetKeyboardLayout.Call(tid)
	if hkl == 0 {
		return 0, fmt.Errorf("GetKeyboardLayout returned no layout")
	}
	return hkl, nil
}

func modifierVk(mod Modifier) (uint16, error) {
	switch mod {
	case ModShift:
		return VK_SHIFT, nil
	case ModCtrl:
		return VK_CONTROL, nil
	case ModAlt:
		return VK_MENU, nil
	default:
		return 0, fmt.Errorf("unknown modifier %d", mod)
	}
}

func unicodeInput(unit uint16, flags uint32) INPUT {
	var in INPUT
	in.Type = INPUT_KEYBOARD
	in.Ki.WScan = unit
	in.Ki.DwFlags = KEYEVENTF_UNICODE | flags
	return in
}

func vkInput(vk uint16, flags uint32) INPUT {
	var in INPUT
	in.Type = INPUT_KEYBOARD
	in.Ki.WVk = vk
	in.Ki.DwFlags = flags
	return in
}

func sendInputs(inputs []INPUT) error {
	if len(inputs) == 0 {
		return nil
	}
	n, _, err := procSendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if int(n) != len(inputs) {
		return fmt.Errorf("SendInput sent %d of %d events: %v", n, len(inputs), err)
	}
	return nil
}
