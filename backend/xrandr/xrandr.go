// Package xrandr implements a display backend on an X11 server using the
// RandR extension.
//
// Connectors and mode lists come from RandR output enumeration; presented
// frames are copied onto the root window at the position of the output's
// CRTC. This backend is mainly useful for developing and testing a console
// display server inside an existing X session.
package xrandr

import (
	"errors"
	"fmt"
	"image"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/BeatGlow/compositor"
	"github.com/BeatGlow/compositor/backend/soft"
)

// Errors
var (
	ErrNotAcquired = errors.New("xrandr: not connected to the X server")
	ErrNoConnector = errors.New("xrandr: no such connector")
)

// Backend drives outputs of an X11 server through RandR.
type Backend struct {
	display string
	x       *xgb.Conn
	screen  *xproto.ScreenInfo
	gc      xproto.Gcontext
	crtcs   map[string]crtcGeometry
}

type crtcGeometry struct {
	x, y int16
}

type buffer struct {
	img       *soft.Image
	connector string
}

// Size returns the buffer dimensions in pixels.
func (b *buffer) Size() (width, height int) { return b.img.Size() }

// RGBA returns the backing pixel storage.
func (b *buffer) RGBA() *image.RGBA { return b.img.RGBA() }

// New returns a RandR backend for the given display string; an empty
// display selects $DISPLAY.
func New(display string) *Backend {
	return &Backend{display: display}
}

// Acquire connects to the X server and initializes the RandR extension.
func (b *Backend) Acquire() error {
	if b.x != nil {
		return nil
	}
	x, err := xgb.NewConnDisplay(b.display)
	if err != nil {
		return fmt.Errorf("xrandr: connect: %w", err)
	}
	if err := randr.Init(x); err != nil {
		x.Close()
		return fmt.Errorf("xrandr: randr init: %w", err)
	}

	screen := xproto.Setup(x).DefaultScreen(x)

	gc, err := xproto.NewGcontextId(x)
	if err != nil {
		x.Close()
		return fmt.Errorf("xrandr: %w", err)
	}
	if err := xproto.CreateGCChecked(x, gc, xproto.Drawable(screen.Root), 0, nil).Check(); err != nil {
		x.Close()
		return fmt.Errorf("xrandr: create gc: %w", err)
	}

	b.x = x
	b.screen = screen
	b.gc = gc
	b.crtcs = make(map[string]crtcGeometry)
	return nil
}

// Release disconnects from the X server.
func (b *Backend) Release() error {
	if b.x == nil {
		return nil
	}
	b.x.Close()
	b.x = nil
	b.screen = nil
	b.crtcs = nil
	return nil
}

// Connectors enumerates the connected RandR outputs with their mode lists.
// RandR sorts each output's preferred modes first, so the preferred index
// is always zero.
func (b *Backend) Connectors() ([]compositor.Connector, error) {
	if b.x == nil {
		return nil, ErrNotAcquired
	}

	resources, err := randr.GetScreenResources(b.x, b.screen.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("xrandr: screen resources: %w", err)
	}

	modeByID := make(map[randr.Mode]randr.ModeInfo, len(resources.Modes))
	for _, info := range resources.Modes {
		modeByID[randr.Mode(info.Id)] = info
	}

	var conns []compositor.Connector
	for _, output := range resources.Outputs {
		info, err := randr.GetOutputInfo(b.x, output, 0).Reply()
		if err != nil {
			return nil, fmt.Errorf("xrandr: output info: %w", err)
		}
		if info.Connection == randr.ConnectionDisconnected {
			continue
		}

		name := string(info.Name)
		if info.Crtc != 0 {
			crtc, err := randr.GetCrtcInfo(b.x, info.Crtc, 0).Reply()
			if err != nil {
				return nil, fmt.Errorf("xrandr: crtc info: %w", err)
			}
			b.crtcs[name] = crtcGeometry{x: crtc.X, y: crtc.Y}
		}

		modes := make([]compositor.ModeInfo, 0, len(info.Modes))
		for _, id := range info.Modes {
			mi, ok := modeByID[id]
			if !ok {
				continue
			}
			modes = append(modes, compositor.ModeInfo{
				Name:   fmt.Sprintf("%dx%d", mi.Width, mi.Height),
				Width:  int(mi.Width),
				Height: int(mi.Height),
				Native: id,
			})
		}
		conns = append(conns, compositor.Connector{
			ID:        name,
			Modes:     modes,
			Preferred: 0,
		})
	}
	return conns, nil
}

// Allocate returns a pair of client-side surfaces for the connector.
func (b *Backend) Allocate(connector string, width, height int) (compositor.Buffer, compositor.Buffer, error) {
	if b.x == nil {
		return nil, nil, ErrNotAcquired
	}
	return &buffer{img: soft.NewImage(width, height), connector: connector},
		&buffer{img: soft.NewImage(width, height), connector: connector},
		nil
}

// Free releases a surface.
func (b *Backend) Free(compositor.Buffer) error { return nil }

// Flip copies the buffer onto the root window at the output's CRTC origin.
func (b *Backend) Flip(connector string, buf compositor.Buffer) error {
	if b.x == nil {
		return ErrNotAcquired
	}
	fb, ok := buf.(*buffer)
	if !ok || fb.connector != connector {
		return fmt.Errorf("xrandr: foreign buffer on %q", connector)
	}
	geo, ok := b.crtcs[connector]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoConnector, connector)
	}

	img := fb.img.RGBA()
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	// PutImage in row batches, staying under the server's request limit.
	rows := putImageRows(width)
	line := make([]byte, 0, width*4*rows)
	for y := 0; y < height; y += rows {
		n := rows
		if y+n > height {
			n = height - y
		}
		line = line[:0]
		for r := 0; r < n; r++ {
			off := img.PixOffset(0, y+r)
			for x := 0; x < width; x++ {
				p := img.Pix[off+x*4 : off+x*4+4]
				line = append(line, p[2], p[1], p[0], 0) // BGRX
			}
		}
		err := xproto.PutImageChecked(b.x, xproto.ImageFormatZPixmap,
			xproto.Drawable(b.screen.Root), b.gc,
			uint16(width), uint16(n),
			geo.x, geo.y+int16(y), 0, b.screen.RootDepth, line).Check()
		if err != nil {
			return fmt.Errorf("xrandr: put image %s: %w", connector, err)
		}
	}
	return nil
}

// Watch subscribes to RandR topology notifications. Every hotplug collapses
// to an empty send; the consumer reacts by calling Refresh on its
// compositor. Watch must be called while acquired; the channel closes when
// the X connection goes away.
func (b *Backend) Watch() (<-chan struct{}, error) {
	if b.x == nil {
		return nil, ErrNotAcquired
	}
	err := randr.SelectInputChecked(b.x, b.screen.Root,
		randr.NotifyMaskOutputChange|randr.NotifyMaskScreenChange).Check()
	if err != nil {
		return nil, fmt.Errorf("xrandr: select input: %w", err)
	}

	events := make(chan struct{}, 1)
	go func() {
		defer close(events)
		for {
			ev, xerr := b.x.WaitForEvent()
			if ev == nil && xerr == nil {
				return
			}
			if xerr != nil {
				continue
			}
			switch ev.(type) {
			case randr.NotifyEvent, randr.ScreenChangeNotifyEvent:
				select {
				case events <- struct{}{}:
				default:
				}
			}
		}
	}()
	return events, nil
}

// putImageRows returns how many rows fit in one PutImage request.
func putImageRows(width int) int {
	const maxData = 60000 // conservative for a 16k-word request limit
	if rows := maxData / (width * 4); rows > 0 {
		return rows
	}
	return 1
}
