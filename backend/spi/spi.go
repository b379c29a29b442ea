// Package spi implements a display backend for SPI-attached LCD panels
// (ST77xx-class controllers) using periph.io.
//
// Panels do not hotplug: the connector topology is fixed by configuration.
// Each panel advertises the single mode it is manufactured with. Flipping
// streams the presented buffer over the bus as 16-bit RGB565.
package spi

import (
	"errors"
	"fmt"
	"image"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/BeatGlow/compositor"
	"github.com/BeatGlow/compositor/backend/soft"
)

// Panel controller registers (ST77xx command set).
const (
	cmdSWRESET = 0x01
	cmdSLPOUT  = 0x11
	cmdNORON   = 0x13
	cmdINVON   = 0x21
	cmdDISPOFF = 0x28
	cmdDISPON  = 0x29
	cmdCASET   = 0x2A
	cmdRASET   = 0x2B
	cmdRAMWR   = 0x2C
	cmdMADCTL  = 0x36
	cmdCOLMOD  = 0x3A
)

// writeChunk is the largest single SPI transfer; spidev buffers are
// typically 4 KiB.
const writeChunk = 4096

// Errors
var (
	ErrNotAcquired = errors.New("spi: panels not acquired")
	ErrNoPanel     = errors.New("spi: no such panel")
	ErrDCPin       = errors.New("spi: data/command (DC) GPIO pin is invalid")
)

// Panel describes one SPI-attached display panel.
type Panel struct {
	// ID is the connector identity, for instance "panel0".
	ID string

	// Port is the SPI port name as understood by spireg, e.g. "SPI0.0".
	Port string

	// Width and Height of the panel in pixels.
	Width  int
	Height int

	// SpeedHz is the bus speed; defaults to 32 MHz.
	SpeedHz int

	// DC is the data/command select pin name.
	DC string

	// Reset pin name, optional.
	Reset string

	// Backlight pin name, optional.
	Backlight string

	// InvertColors enables panel inversion (common on ST7789 modules).
	InvertColors bool
}

// Backend drives a fixed set of SPI panels.
type Backend struct {
	panels   []Panel
	open     map[string]*panel
	order    []string
	hostInit bool
}

type panel struct {
	cfg   Panel
	port  spi.PortCloser
	conn  spi.Conn
	dc    gpio.PinOut
	reset gpio.PinOut
	bl    gpio.PinOut
	line  []byte
}

type buffer struct {
	img *soft.Image
	id  string
}

// Size returns the buffer dimensions in pixels.
func (b *buffer) Size() (width, height int) { return b.img.Size() }

// RGBA returns the backing pixel storage.
func (b *buffer) RGBA() *image.RGBA { return b.img.RGBA() }

// New returns a backend for the configured panels. No hardware is touched
// until Acquire.
func New(panels ...Panel) *Backend {
	return &Backend{panels: panels}
}

// Acquire initializes the periph host, opens every configured panel and
// runs its init sequence.
func (b *Backend) Acquire() error {
	if b.open != nil {
		return nil
	}
	if !b.hostInit {
		if _, err := host.Init(); err != nil {
			return fmt.Errorf("spi: host init: %w", err)
		}
		b.hostInit = true
	}

	open := make(map[string]*panel, len(b.panels))
	var order []string
	for _, cfg := range b.panels {
		p, err := openPanel(cfg)
		if err != nil {
			for _, id := range order {
				_ = open[id].close()
			}
			return err
		}
		open[cfg.ID] = p
		order = append(order, cfg.ID)
	}
	b.open = open
	b.order = order
	return nil
}

// Release shuts the panels off and closes the SPI ports.
func (b *Backend) Release() error {
	var firstErr error
	for _, id := range b.order {
		if err := b.open[id].close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.open = nil
	b.order = nil
	return firstErr
}

// Connectors returns one connector per configured panel with its single
// manufactured mode.
func (b *Backend) Connectors() ([]compositor.Connector, error) {
	if b.open == nil {
		return nil, ErrNotAcquired
	}
	conns := make([]compositor.Connector, 0, len(b.order))
	for _, id := range b.order {
		cfg := b.open[id].cfg
		conns = append(conns, compositor.Connector{
			ID: id,
			Modes: []compositor.ModeInfo{{
				Name:   fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
				Width:  cfg.Width,
				Height: cfg.Height,
				Native: cfg.Port,
			}},
			Preferred: 0,
		})
	}
	return conns, nil
}

// Allocate returns a pair of in-memory surfaces sized to the panel.
func (b *Backend) Allocate(connector string, width, height int) (compositor.Buffer, compositor.Buffer, error) {
	if b.open == nil {
		return nil, nil, ErrNotAcquired
	}
	if _, ok := b.open[connector]; !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoPanel, connector)
	}
	return &buffer{img: soft.NewImage(width, height), id: connector},
		&buffer{img: soft.NewImage(width, height), id: connector},
		nil
}

// Free releases a surface.
func (b *Backend) Free(compositor.Buffer) error { return nil }

// Flip streams the buffer to the panel as RGB565.
func (b *Backend) Flip(connector string, buf compositor.Buffer) error {
	if b.open == nil {
		return ErrNotAcquired
	}
	p, ok := b.open[connector]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoPanel, connector)
	}
	fb, ok := buf.(*buffer)
	if !ok || fb.id != connector {
		return fmt.Errorf("spi: foreign buffer on %q", connector)
	}
	return p.show(fb.img.RGBA())
}

func openPanel(cfg Panel) (*panel, error) {
	if cfg.SpeedHz == 0 {
		cfg.SpeedHz = 32_000_000
	}

	dc := gpioreg.ByName(cfg.DC)
	if dc == nil {
		return nil, ErrDCPin
	}

	port, err := spireg.Open(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("spi: open %s: %w", cfg.Port, err)
	}
	conn, err := port.Connect(physic.Frequency(cfg.SpeedHz)*physic.Hertz, spi.Mode3, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("spi: connect %s: %w", cfg.Port, err)
	}

	p := &panel{
		cfg:  cfg,
		port: port,
		conn: conn,
		dc:   dc,
		line: make([]byte, 0, writeChunk),
	}
	if cfg.Reset != "" {
		p.reset = gpioreg.ByName(cfg.Reset)
	}
	if cfg.Backlight != "" {
		p.bl = gpioreg.ByName(cfg.Backlight)
	}

	if err := p.init(); err != nil {
		_ = port.Close()
		return nil, err
	}
	return p, nil
}

func (p *panel) init() (err error) {
	if p.reset != nil {
		if err = p.reset.Out(gpio.Low); err != nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
		if err = p.reset.Out(gpio.High); err != nil {
			return
		}
		time.Sleep(150 * time.Millisecond)
	}

	if err = p.command(cmdSWRESET); err != nil {
		return
	}
	time.Sleep(150 * time.Millisecond)
	if err = p.command(cmdSLPOUT); err != nil {
		return
	}
	time.Sleep(10 * time.Millisecond)

	if err = p.command(cmdCOLMOD, 0x55); err != nil { // 16-bit RGB565
		return
	}
	if err = p.command(cmdMADCTL, 0x00); err != nil {
		return
	}
	if p.cfg.InvertColors {
		if err = p.command(cmdINVON); err != nil {
			return
		}
	}
	if err = p.command(cmdNORON); err != nil {
		return
	}
	if err = p.command(cmdDISPON); err != nil {
		return
	}

	if p.bl != nil {
		err = p.bl.Out(gpio.High)
	}
	return
}

func (p *panel) close() error {
	if p.bl != nil {
		_ = p.bl.Out(gpio.Low)
	}
	_ = p.command(cmdDISPOFF)
	return p.port.Close()
}

// command sends a command byte with optional arguments.
func (p *panel) command(cmd byte, args ...byte) error {
	if err := p.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := p.conn.Tx([]byte{cmd}, nil); err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	return p.data(args)
}

// data sends data bytes in bus-sized chunks.
func (p *panel) data(data []byte) error {
	if err := p.dc.Out(gpio.High); err != nil {
		return err
	}
	for len(data) > 0 {
		n := len(data)
		if n > writeChunk {
			n = writeChunk
		}
		if err := p.conn.Tx(data[:n], nil); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// show uploads a full frame: address window, then RGB565 pixel stream.
func (p *panel) show(img *image.RGBA) error {
	w, h := p.cfg.Width, p.cfg.Height
	if err := p.command(cmdCASET, 0, 0, byte((w-1)>>8), byte(w-1)); err != nil {
		return err
	}
	if err := p.command(cmdRASET, 0, 0, byte((h-1)>>8), byte(h-1)); err != nil {
		return err
	}
	if err := p.command(cmdRAMWR); err != nil {
		return err
	}

	if cap(p.line) < w*h*2 {
		p.line = make([]byte, 0, w*h*2)
	}
	buf := p.line[:0]
	for y := 0; y < h; y++ {
		off := img.PixOffset(0, y)
		for x := 0; x < w; x++ {
			px := img.Pix[off+x*4 : off+x*4+4]
			v := rgb565(px[0], px[1], px[2])
			buf = append(buf, byte(v>>8), byte(v))
		}
	}
	return p.data(buf)
}

// rgb565 packs 8-bit RGB into big-endian 5-6-5.
func rgb565(r, g, b byte) uint16 {
	return uint16(r&0xf8)<<8 | uint16(g&0xfc)<<3 | uint16(b)>>3
}
