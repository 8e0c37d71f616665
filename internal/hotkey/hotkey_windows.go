//go:build windows

package hotkey

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procGetMessage          = user32.NewProc("GetMessageW")
	procPostThreadMessage   = user32.NewProc("PostThreadMessageW")
	kernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procGetModuleHandle     = kernel32.NewProc("GetModuleHandleW")
)

const (
	whKeyboardLL = 13
	wmQuit       = 0x0012
	wmKeyDown    = 0x0100
	wmSysKeyDown = 0x0104

	// llkhfInjected marks events produced by SendInput, including our own typing
	llkhfInjected = 0x10
)

type kbdllHookStruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type platformState struct {
	threadID uint32
}

// The hook callback has no user data, so one manager owns the hook
var (
	hookMu       sync.Mutex
	hookManager  *Manager
	keyboardHook uintptr
)

// Supported reports whether global hooks work on this platform
func Supported() bool { return true }

func (m *Manager) startPlatform() error {
	hookMu.Lock()
	if hookManager != nil {
		hookMu.Unlock()
		return errors.New("hotkey: a keyboard hook is already installed")
	}
	hookManager = m
	hookMu.Unlock()

	started := make(chan error, 1)

	// The hook must live on the thread that pumps messages
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		hMod, _, _ := procGetModuleHandle.Call(0)
		h, _, err := procSetWindowsHookEx.Call(whKeyboardLL, syscall.NewCallback(keyboardProc), hMod, 0)
		if h == 0 {
			hookMu.Lock()
			hookManager = nil
			hookMu.Unlock()
			started <- fmt.Errorf("hotkey: SetWindowsHookEx: %w", err)
			return
		}
		keyboardHook = h

		m.mu.Lock()
		m.platform.threadID = windows.GetCurrentThreadId()
		m.mu.Unlock()
		started <- nil
		log.Println("Hotkey: Windows keyboard hook installed")

		var msg struct {
			Hwnd    syscall.Handle
			Message uint32
			Wparam  uintptr
			Lparam  uintptr
			Time    uint32
			Pt      struct{ X, Y int32 }
		}
		for {
			ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
			if int32(ret) <= 0 {
				break
			}
		}

		procUnhookWindowsHookEx.Call(keyboardHook)
		hookMu.Lock()
		hookManager = nil
		keyboardHook = 0
		hookMu.Unlock()
		log.Println("Hotkey: Windows keyboard hook removed")
	}()

	return <-started
}

func (m *Manager) stopPlatform() {
	m.mu.Lock()
	tid := m.platform.threadID
	m.platform.threadID = 0
	m.mu.Unlock()
	if tid != 0 {
		procPostThreadMessage.Call(uintptr(tid), wmQuit, 0, 0)
	}
}

func keyboardProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode == 0 {
		kbd := (*kbdllHookStruct)(unsafe.Pointer(lParam))
		if kbd.Flags&llkhfInjected != 0 {
			ret, _, _ := procCallNextHookEx.Call(keyboardHook, uintptr(nCode), wParam, lParam)
			return ret
		}
		if name := vkCodeToName(kbd.VkCode); name != "" {
			hookMu.Lock()
			m := hookManager
			hookMu.Unlock()
			if m != nil {
				m.UpdateState(name, wParam == wmKeyDown || wParam == wmSysKeyDown)
			}
		}
	}
	ret, _, _ := procCallNextHookEx.Call(keyboardHook, uintptr(nCode), wParam, lParam)
	return ret
}

func vkCodeToName(vk uint32) string {
	switch vk {
	case 0x11, 0xA2, 0xA3:
		return "CTRL"
	case 0x12, 0xA4, 0xA5:
		return "ALT"
	case 0x10, 0xA0, 0xA1:
		return "SHIFT"
	case 0x5B, 0x5C:
		return "CMD"
	case 0x20:
		return "SPACE"
	case 0x0D:
		return "ENTER"
	case 0x1B:
		return "ESC"
	case 0x08:
		return "BACKSPACE"
	case 0x09:
		return "TAB"
	case 0x14:
		return "CAPSLOCK"
	case 0x21:
		return "PAGEUP"
	case 0x22:
		return "PAGEDOWN"
	case 0x23:
		return "END"
	case 0x24:
		return "HOME"
	case 0x25:
		return "LEFT"
	case 0x26:
		return "UP"
	case 0x27:
		return "RIGHT"
	case 0x28:
		return "DOWN"
	case 0x2C:
		return "PRINTSCREEN"
	case 0x2D:
		return "INSERT"
	case 0x2E:
		return "DELETE"
	case 0x13:
		return "PAUSE"
	case 0x91:
		return "SCROLLLOCK"
	}

	// Letters A-Z
	if vk >= 0x41 && vk <= 0x5A {
		return string(rune(vk))
	}

	// Numbers 0-9
	if vk >= 0x30 && vk <= 0x39 {
		return string(rune(vk))
	}

	// F1-F12
	if vk >= 0x70 && vk <= 0x7B {
		return fmt.Sprintf("F%d", vk-0x6F)
	}

	return ""
}
