// Package fbdev implements a display backend on top of the Linux
// framebuffer device (fbdev).
//
// Each /dev/fbN node is exposed as one connector with the single mode the
// device is configured for. Double buffering uses a doubled virtual
// y-resolution: both render buffers live in the device's video memory and
// flipping pans the display between the two halves, so presentation is a
// pointer exchange rather than a copy.
//
// Device nodes can be opened through a session controller (see the logind
// package) so that sleep/wake becomes a real seat handoff.
package fbdev

import (
	"errors"
	"os"
)

// Errors
var (
	ErrNotSupported = errors.New("fbdev: not supported on this platform")
	ErrNoDevices    = errors.New("fbdev: no framebuffer devices")
	ErrBadMode      = errors.New("fbdev: mode does not match device configuration")
	ErrNotAcquired  = errors.New("fbdev: devices not acquired")
)

// DeviceOpener opens and closes display device nodes. The default opener
// uses os.OpenFile directly; a session controller can be plugged in to
// route access through systemd-logind.
type DeviceOpener interface {
	OpenDevice(path string) (*os.File, error)
	CloseDevice(path string) error
}

type directOpener struct{}

func (directOpener) OpenDevice(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDWR, os.ModeDevice)
}

func (directOpener) CloseDevice(string) error { return nil }

// Config is the backend configuration.
type Config struct {
	// Glob matching the device nodes to manage. Defaults to /dev/fb[0-9]*.
	Glob string

	// Opener used for device nodes. Defaults to plain open(2).
	Opener DeviceOpener
}

// DefaultConfig is used when New is passed a nil config.
var DefaultConfig = Config{
	Glob: "/dev/fb[0-9]*",
}

func (c *Config) opener() DeviceOpener {
	if c.Opener == nil {
		return directOpener{}
	}
	return c.Opener
}
