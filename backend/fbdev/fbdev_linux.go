package fbdev

import (
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/BeatGlow/compositor"
	"github.com/BeatGlow/compositor/internal/ioctl"
)

// From <linux/fb.h>
const (
	fbioGetVScreenInfo = 0x4600
	fbioPutVScreenInfo = 0x4601
	fbioGetFScreenInfo = 0x4602
	fbioPanDisplay     = 0x4606
)

// Backend drives one or more Linux framebuffer devices.
type Backend struct {
	config   Config
	devices  map[string]*device
	order    []string
	acquired bool
}

type device struct {
	path       string
	f          *os.File
	info       fixedScreenInfo
	screenInfo varScreenInfo
	mapped     []byte
	bufs       [2]*buffer
	mapRefs    int
}

type buffer struct {
	dev  *device
	half int
	pix  *image.RGBA
}

// Size returns the buffer dimensions in pixels.
func (b *buffer) Size() (width, height int) {
	return int(b.dev.screenInfo.Xres), int(b.dev.screenInfo.Yres)
}

// RGBA exposes the mapped video memory, making the buffer a direct target
// for the soft renderer.
func (b *buffer) RGBA() *image.RGBA { return b.pix }

// New returns a framebuffer device backend. No devices are touched until
// Acquire.
func New(config *Config) (*Backend, error) {
	if config == nil {
		config = new(Config)
		*config = DefaultConfig
	}
	if config.Glob == "" {
		config.Glob = DefaultConfig.Glob
	}
	return &Backend{
		config:  *config,
		devices: make(map[string]*device),
	}, nil
}

// Acquire opens every matching device node and queries its configuration.
// Devices with an unsupported pixel layout are skipped. A released backend
// reopens its known device nodes into the existing device records, so
// buffers mapped before the release stay bound to their device.
func (b *Backend) Acquire() error {
	if b.acquired {
		return nil
	}

	opener := b.config.opener()
	if len(b.devices) > 0 {
		kept := b.order[:0]
		for _, id := range b.order {
			dev := b.devices[id]
			if err := dev.reopen(opener); err != nil {
				log.Printf("fbdev: dropping %s: %v", dev.path, err)
				delete(b.devices, id)
				continue
			}
			kept = append(kept, id)
		}
		b.order = kept
		if len(b.devices) == 0 {
			return ErrNoDevices
		}
		b.acquired = true
		return nil
	}

	paths, err := filepath.Glob(b.config.Glob)
	if err != nil {
		return fmt.Errorf("fbdev: %w", err)
	}

	for _, path := range paths {
		dev, err := openDevice(opener, path)
		if err != nil {
			log.Printf("fbdev: skipping %s: %v", path, err)
			continue
		}
		id := filepath.Base(path)
		b.devices[id] = dev
		b.order = append(b.order, id)
	}
	if len(b.devices) == 0 {
		return ErrNoDevices
	}
	b.acquired = true
	return nil
}

// Release closes every device node, handing the hardware back. The device
// records and their video memory mappings are kept: a mapping survives the
// close, so framebuffers bound before the release stay usable and the next
// Acquire reattaches the same devices. Mappings are torn down when their
// buffers are freed.
func (b *Backend) Release() error {
	if !b.acquired {
		return nil
	}
	opener := b.config.opener()
	var firstErr error
	for _, id := range b.order {
		dev := b.devices[id]
		if err := dev.suspend(opener); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.acquired = false
	return firstErr
}

// Connectors returns one connector per device, each with the single mode
// the device is configured for.
func (b *Backend) Connectors() ([]compositor.Connector, error) {
	if !b.acquired {
		return nil, ErrNotAcquired
	}
	conns := make([]compositor.Connector, 0, len(b.order))
	for _, id := range b.order {
		dev := b.devices[id]
		name := fmt.Sprintf("%dx%d", dev.screenInfo.Xres, dev.screenInfo.Yres)
		conns = append(conns, compositor.Connector{
			ID: id,
			Modes: []compositor.ModeInfo{{
				Name:   name,
				Width:  int(dev.screenInfo.Xres),
				Height: int(dev.screenInfo.Yres),
				Native: dev.path,
			}},
			Preferred: 0,
		})
	}
	return conns, nil
}

// Allocate maps the device's video memory and splits it into a front/back
// buffer pair. The requested size must match the device configuration;
// fbdev does not modeset.
func (b *Backend) Allocate(connector string, width, height int) (compositor.Buffer, compositor.Buffer, error) {
	if !b.acquired {
		return nil, nil, ErrNotAcquired
	}
	dev, ok := b.devices[connector]
	if !ok {
		return nil, nil, fmt.Errorf("fbdev: unknown connector %q", connector)
	}
	if width != int(dev.screenInfo.Xres) || height != int(dev.screenInfo.Yres) {
		return nil, nil, fmt.Errorf("%w: want %dx%d", ErrBadMode, dev.screenInfo.Xres, dev.screenInfo.Yres)
	}
	if err := dev.mapBuffers(); err != nil {
		return nil, nil, err
	}
	return dev.bufs[0], dev.bufs[1], nil
}

// Free releases one buffer of a pair; the mapping is undone when both are
// gone.
func (b *Backend) Free(buf compositor.Buffer) error {
	fb, ok := buf.(*buffer)
	if !ok || fb.dev == nil {
		return nil
	}
	dev := fb.dev
	fb.dev = nil
	if dev.mapRefs--; dev.mapRefs > 0 {
		return nil
	}
	return dev.unmapBuffers()
}

// Flip pans the display to the half of video memory holding buf. The call
// returns once the kernel has latched the new offset.
func (b *Backend) Flip(connector string, buf compositor.Buffer) error {
	if !b.acquired {
		return ErrNotAcquired
	}
	dev, ok := b.devices[connector]
	if !ok {
		return fmt.Errorf("fbdev: unknown connector %q", connector)
	}
	fb, ok := buf.(*buffer)
	if !ok || fb.dev != dev {
		return fmt.Errorf("fbdev: foreign buffer on %q", connector)
	}

	info := dev.screenInfo
	info.Yoffset = uint32(fb.half) * dev.screenInfo.Yres
	if err := ioctl.Do(dev.f.Fd(), fbioPanDisplay, &info); err != nil {
		return fmt.Errorf("fbdev: pan %s: %w", connector, err)
	}
	return nil
}

func openDevice(opener DeviceOpener, path string) (*device, error) {
	f, err := opener.OpenDevice(path)
	if err != nil {
		return nil, err
	}

	dev := &device{path: path, f: f}
	if err = ioctl.Do(f.Fd(), fbioGetFScreenInfo, &dev.info); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err = ioctl.Do(f.Fd(), fbioGetVScreenInfo, &dev.screenInfo); err != nil {
		_ = f.Close()
		return nil, err
	}
	if dev.screenInfo.BitsPerPixel != 32 {
		_ = f.Close()
		return nil, fmt.Errorf("fbdev: %s: unsupported depth %d bpp", dev.id(), dev.screenInfo.BitsPerPixel)
	}
	return dev, nil
}

// id returns the kernel's identification string, e.g. "simple" or
// "amdgpudrmfb".
func (dev *device) id() string {
	return strings.TrimRight(string(dev.info.ID[:]), "\x00")
}

// mapBuffers doubles the virtual y-resolution and maps both halves of the
// video memory.
func (dev *device) mapBuffers() error {
	if dev.mapped != nil {
		dev.mapRefs = 2
		return nil
	}

	info := dev.screenInfo
	info.YresVirtual = info.Yres * 2
	info.Yoffset = 0
	if err := ioctl.Do(dev.f.Fd(), fbioPutVScreenInfo, &info); err != nil {
		return fmt.Errorf("fbdev: cannot double %s for page flipping: %w", dev.path, err)
	}
	dev.screenInfo = info

	stride := int(dev.info.LineLength)
	size := stride * int(info.Yres) * 2
	if size > int(dev.info.SmemLen) {
		return fmt.Errorf("fbdev: %s has insufficient video memory for double buffering", dev.path)
	}

	mapped, err := syscall.Mmap(int(dev.f.Fd()), 0, size, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("fbdev: mmap %s: %w", dev.path, err)
	}
	dev.mapped = mapped

	half := stride * int(info.Yres)
	for i := 0; i < 2; i++ {
		dev.bufs[i] = &buffer{
			dev:  dev,
			half: i,
			pix: &image.RGBA{
				Pix:    mapped[i*half : (i+1)*half],
				Stride: stride,
				Rect:   image.Rect(0, 0, int(info.Xres), int(info.Yres)),
			},
		}
	}
	dev.mapRefs = 2
	return nil
}

func (dev *device) unmapBuffers() error {
	if dev.mapped == nil {
		return nil
	}
	err := syscall.Munmap(dev.mapped)
	dev.mapped = nil
	dev.bufs = [2]*buffer{}
	return err
}

// suspend closes the device node but keeps the video memory mapping, so
// framebuffers bound before the release stay valid while another process
// owns the display.
func (dev *device) suspend(opener DeviceOpener) error {
	if dev.f == nil {
		return nil
	}
	err := dev.f.Close()
	dev.f = nil
	if cerr := opener.CloseDevice(dev.path); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// reopen reattaches a suspended device to its node. Another process may
// have reconfigured the device in between, so the doubled virtual layout
// is restored for devices with live mappings.
func (dev *device) reopen(opener DeviceOpener) error {
	if dev.f != nil {
		return nil
	}
	f, err := opener.OpenDevice(dev.path)
	if err != nil {
		return err
	}
	if dev.mapped != nil {
		info := dev.screenInfo
		if err := ioctl.Do(f.Fd(), fbioPutVScreenInfo, &info); err != nil {
			_ = f.Close()
			return fmt.Errorf("fbdev: cannot restore %s layout: %w", dev.path, err)
		}
	}
	dev.f = f
	return nil
}

type fixedScreenInfo struct {
	ID         [16]byte
	SmemStart  uintptr
	SmemLen    uint32
	Type       uint32
	TypeAux    uint32
	Visual     uint32
	Xpanstep   uint16
	Ypanstep   uint16
	Ywrapstep  uint16
	LineLength uint32
	MmioStart  uintptr
	MmioLen    uint32
	Accel      uint32
	Reserved   [3]uint16
}

type bitField struct {
	Offset   uint32
	Length   uint32
	MsbRight uint32
}

type varScreenInfo struct {
	Xres         uint32
	Yres         uint32
	XresVirtual  uint32
	YresVirtual  uint32
	Xoffset      uint32
	Yoffset      uint32
	BitsPerPixel uint32
	Grayscale    uint32
	Red          bitField
	Green        bitField
	Blue         bitField
	Alpha        bitField
	Nonstd       uint32
	Activate     uint32
	Height       uint32
	Width        uint32
	AccelFlags   uint32
	Pixclock     uint32
	LeftMargin   uint32
	RightMargin  uint32
	UpperMargin  uint32
	LowerMargin  uint32
	HsyncLen     uint32
	VsyncLen     uint32
	Sync         uint32
	Vmode        uint32
	Rotate       uint32
	Colorspace   uint32
	Reserved     [4]uint32
}
