// Package autostart registers autotyper to start on login: a LaunchAgent on
// macOS, an XDG autostart entry on Linux and a Run registry value on Windows.
package autostart

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"

	"github.com/adrg/xdg"
)

const (
	label     = "com.autotyper.agent"
	entryName = "autotyper"
)

// ErrUnsupported is returned on platforms without a login mechanism
var ErrUnsupported = errors.New("autostart: unsupported platform")

var funcs = template.FuncMap{
	"xml": func(s string) string {
		var b strings.Builder
		_ = xml.EscapeText(&b, []byte(s))
		return b.String()
	},
	"exec": quoteExec,
}

var plistTemplate = template.Must(template.New("plist").Funcs(funcs).Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
{{- range .Command}}
        <string>{{xml .}}</string>
{{- end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`))

var desktopTemplate = template.Must(template.New("desktop").Funcs(funcs).Parse(`[Desktop Entry]
Type=Application
Name=autotyper
Comment=Typing automation service
Exec={{exec .Command}}
X-GNOME-Autostart-enabled=true
`))

type entry struct {
	Label   string
	Command []string
}

// Enable starts the current executable with args on login
func Enable(args ...string) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	command := append([]string{execPath}, args...)

	switch runtime.GOOS {
	case "darwin":
		path, err := launchAgentPath()
		if err != nil {
			return err
		}
		return writeEntry(path, plistTemplate, command)
	case "linux":
		path, err := desktopEntryPath()
		if err != nil {
			return err
		}
		return writeEntry(path, desktopTemplate, command)
	case "windows":
		return enableRegistry(command)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, runtime.GOOS)
	}
}

// Disable removes the login entry; it is not an error if none exists
func Disable() error {
	switch runtime.GOOS {
	case "darwin":
		path, err := launchAgentPath()
		if err != nil {
			return err
		}
		return removeEntry(path)
	case "linux":
		path, err := desktopEntryPath()
		if err != nil {
			return err
		}
		return removeEntry(path)
	case "windows":
		return disableRegistry()
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, runtime.GOOS)
	}
}

// IsEnabled reports whether a login entry exists
func IsEnabled() bool {
	switch runtime.GOOS {
	case "darwin":
		path, err := launchAgentPath()
		return err == nil && exists(path)
	case "linux":
		path, err := desktopEntryPath()
		return err == nil && exists(path)
	case "windows":
		return isEnabledRegistry()
	default:
		return false
	}
}

func launchAgentPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "LaunchAgents", label+".plist"), nil
}

func desktopEntryPath() (string, error) {
	return filepath.Join(xdg.ConfigHome, "autostart", entryName+".desktop"), nil
}

func render(tmpl *template.Template, command []string) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, entry{Label: label, Command: command}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeEntry(path string, tmpl *template.Template, command []string) error {
	data, err := render(tmpl, command)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func removeEntry(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// quoteExec joins a command line for a desktop entry Exec key
func quoteExec(command []string) string {
	parts := make([]string, len(command))
	for i, arg := range command {
		if arg != "" && !strings.ContainsAny(arg, " \t\"\\") {
			parts[i] = arg
			continue
		}
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
		parts[i] = `"` + r.Replace(arg) + `"`
	}
	return strings.Join(parts, " ")
}
