//go:build !windows

package input

// Injector is the native backend. Only Windows is implemented; elsewhere
// every call fails with ErrUnsupportedPlatform.
type Injector struct{}

var _ Backend = (*Injector)(nil)

// NewInjector creates the native backend
func NewInjector() *Injector {
	return &Injector{}
}

func (i *Injector) CurrentLayout() (Layout, error)    { return "", ErrUnsupportedPlatform }
func (i *Injector) SwitchLayout(Layout) error         { return ErrUnsupportedPlatform }
func (i *Injector) TypeChar(rune) error               { return ErrUnsupportedPlatform }
func (i *Injector) TypeModified(Modifier, rune) error { return ErrUnsupportedPlatform }
func (i *Injector) TypeBackspace() error              { return ErrUnsupportedPlatform }
func (i *Injector) TypeLineBreak() error              { return ErrUnsupportedPlatform }

// Supported reports whether the native backend works on this platform
func Supported() bool { return false }
