// Package virtual implements an in-memory display backend with scriptable
// connector topology. It backs the compositor test suite and allows running
// the diagnostic tool without display hardware.
package virtual

import (
	"errors"
	"fmt"
	"image"

	"github.com/BeatGlow/compositor"
	"github.com/BeatGlow/compositor/backend/soft"
)

// Errors
var (
	ErrNotAcquired = errors.New("virtual: hardware not acquired")
	ErrNoConnector = errors.New("virtual: no such connector")
)

// PresentFunc observes every presented frame.
type PresentFunc func(connector string, frame *image.RGBA)

// Backend is an in-memory display backend.
type Backend struct {
	connectors []compositor.Connector
	presented  map[string]compositor.Buffer
	acquired   bool
	acquireErr error
	allocs     int
	onPresent  PresentFunc
}

// New returns an empty backend; use Plug to add connectors.
func New() *Backend {
	return &Backend{
		presented: make(map[string]compositor.Buffer),
	}
}

// OnPresent registers a hook observing presented frames.
func (b *Backend) OnPresent(f PresentFunc) { b.onPresent = f }

// FailAcquire makes the next Acquire calls fail with err; nil restores
// normal operation. Used to simulate another process holding the hardware.
func (b *Backend) FailAcquire(err error) { b.acquireErr = err }

// Plug adds a connector with the given modes, or replaces its mode list if
// the identity already exists. The preferred index selects the default mode.
func (b *Backend) Plug(id string, preferred int, modes ...compositor.ModeInfo) {
	for i := range modes {
		if modes[i].Name == "" {
			modes[i].Name = fmt.Sprintf("%dx%d", modes[i].Width, modes[i].Height)
		}
		if modes[i].Native == nil {
			modes[i].Native = id + "/" + modes[i].Name
		}
	}
	conn := compositor.Connector{ID: id, Modes: modes, Preferred: preferred}
	for i := range b.connectors {
		if b.connectors[i].ID == id {
			b.connectors[i] = conn
			return
		}
	}
	b.connectors = append(b.connectors, conn)
}

// Unplug removes a connector.
func (b *Backend) Unplug(id string) {
	for i := range b.connectors {
		if b.connectors[i].ID == id {
			b.connectors = append(b.connectors[:i], b.connectors[i+1:]...)
			delete(b.presented, id)
			return
		}
	}
}

// Acquire claims the virtual hardware.
func (b *Backend) Acquire() error {
	if b.acquireErr != nil {
		return b.acquireErr
	}
	b.acquired = true
	return nil
}

// Release hands the virtual hardware back.
func (b *Backend) Release() error {
	b.acquired = false
	return nil
}

// Acquired reports whether the backend is currently claimed.
func (b *Backend) Acquired() bool { return b.acquired }

// Connectors returns the current topology.
func (b *Backend) Connectors() ([]compositor.Connector, error) {
	if !b.acquired {
		return nil, ErrNotAcquired
	}
	out := make([]compositor.Connector, len(b.connectors))
	copy(out, b.connectors)
	return out, nil
}

// Allocate returns a pair of in-memory surfaces.
func (b *Backend) Allocate(connector string, width, height int) (compositor.Buffer, compositor.Buffer, error) {
	if !b.acquired {
		return nil, nil, ErrNotAcquired
	}
	b.allocs += 2
	return soft.NewImage(width, height), soft.NewImage(width, height), nil
}

// Free releases a surface.
func (b *Backend) Free(buf compositor.Buffer) error {
	if buf != nil {
		b.allocs--
	}
	return nil
}

// Allocated returns the number of live buffers, for leak checks.
func (b *Backend) Allocated() int { return b.allocs }

// Flip presents a buffer on a connector. It fails when the connector has
// been unplugged, mirroring real flip rejection on disconnect.
func (b *Backend) Flip(connector string, buf compositor.Buffer) error {
	if !b.acquired {
		return ErrNotAcquired
	}
	var found bool
	for i := range b.connectors {
		if found = b.connectors[i].ID == connector; found {
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNoConnector, connector)
	}
	b.presented[connector] = buf
	if b.onPresent != nil {
		if s, ok := buf.(soft.Surface); ok {
			b.onPresent(connector, s.RGBA())
		}
	}
	return nil
}

// Presented returns the buffer last presented on a connector, or nil.
func (b *Backend) Presented(connector string) compositor.Buffer {
	return b.presented[connector]
}
