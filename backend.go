// Package compositor manages the physical display outputs of a machine and
// coordinates double-buffered rendering onto them.
//
// A Compositor owns one rendering Context and the list of Outputs, one per
// connected monitor. After creating a compositor it holds a list of all
// available outputs. All outputs are inactive by default. Activating an
// output allocates a framebuffer with two render buffers and drawing starts
// using double-buffering. Any number of outputs may be active at once.
//
// To allow other processes access to the display hardware, a compositor can
// be put asleep and woken up again. While asleep the context and the
// framebuffers stay allocated, but outputs cannot be added, removed or
// modified; mutating calls fail with ErrAsleep.
//
// Waking up rereads the connected outputs. An output that is gone is
// deactivated and unbound from the compositor; holders of a reference should
// unref it. Newly connected outputs are appended to the list. A refresh can
// also be forced while awake, for instance after a hotplug notification.
package compositor

import "github.com/BeatGlow/compositor/m4"

// ModeInfo describes one display mode as reported by a Backend.
type ModeInfo struct {
	// Name is the display string, typically "<width>x<height>".
	Name string

	// Width and Height of the mode in pixels.
	Width  int
	Height int

	// Native is the backend's timing descriptor, passed back verbatim
	// when the mode is activated.
	Native any
}

// Connector describes one physical connector as reported by a Backend.
type Connector struct {
	// ID is the stable connector identity used for hotplug matching.
	ID string

	// Modes supported by the connected monitor, in enumeration order.
	Modes []ModeInfo

	// Preferred is the index into Modes of the hardware-preferred mode.
	Preferred int
}

// Buffer is an opaque render buffer handle owned by a Backend.
type Buffer interface {
	// Size returns the buffer dimensions in pixels.
	Size() (width, height int)
}

// Backend is the display hardware interface.
//
// Acquire and Release transfer ownership of the hardware between this
// process and others; Connectors enumerates the current topology; Allocate
// and Free manage render buffers; Flip presents a buffer on a connector and
// may block until the hardware signals completion.
type Backend interface {
	Acquire() error
	Release() error

	Connectors() ([]Connector, error)

	Allocate(connector string, width, height int) (Buffer, Buffer, error)
	Free(Buffer) error

	Flip(connector string, b Buffer) error
}

// Texture is an opaque texture handle owned by a Renderer.
type Texture interface{}

// Renderer is the native drawing interface used by a Context.
//
// Bind and Unbind control which renderer is current; Target selects the
// destination buffer. Draw submission and texture management follow the
// semantics of Context one-to-one.
type Renderer interface {
	Bind() error
	Unbind()

	Target(Buffer) error
	Viewport(width, height int)
	Clear()

	DrawDef(vertices, colors []float32, num int)
	DrawTex(vertices, texcoords []float32, num int, tex Texture, m *m4.Matrix)

	NewTexture() (Texture, error)
	SetTexture(tex Texture, width, height int, pix []byte) error
	FreeTexture(tex Texture)

	Flush()
	Close() error
}
