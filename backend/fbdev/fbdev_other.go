//go:build !linux

package fbdev

import "github.com/BeatGlow/compositor"

// Backend is unavailable on platforms without fbdev support.
type Backend struct{}

func New(*Config) (*Backend, error) { return nil, ErrNotSupported }

func (*Backend) Acquire() error { return ErrNotSupported }
func (*Backend) Release() error { return ErrNotSupported }

func (*Backend) Connectors() ([]compositor.Connector, error) {
	return nil, ErrNotSupported
}

func (*Backend) Allocate(string, int, int) (compositor.Buffer, compositor.Buffer, error) {
	return nil, nil, ErrNotSupported
}

func (*Backend) Free(compositor.Buffer) error { return ErrNotSupported }

func (*Backend) Flip(string, compositor.Buffer) error { return ErrNotSupported }
