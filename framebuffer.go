package compositor

import "fmt"

// Framebuffer is a double-buffered render target bound to a Context and
// sized to one display mode. It owns a pair of backend render buffers; one
// is presented on the display while the other is being drawn to, and Swap
// exchanges the two.
type Framebuffer struct {
	ctx       *Context
	backend   Backend
	connector string
	bufs      [2]Buffer
	render    int // index of the buffer being drawn to
}

func newFramebuffer(ctx *Context, backend Backend, connector string, front, back Buffer) (*Framebuffer, error) {
	if ctx == nil || front == nil || back == nil {
		return nil, fmt.Errorf("%w: framebuffer needs a context and two buffers", ErrInit)
	}
	return &Framebuffer{
		ctx:       ctx,
		backend:   backend,
		connector: connector,
		bufs:      [2]Buffer{front, back},
	}, nil
}

// Use makes this framebuffer the render destination on its context.
func (fb *Framebuffer) Use() error {
	if err := fb.ctx.Use(); err != nil {
		return err
	}
	if err := fb.ctx.r.Target(fb.bufs[fb.render]); err != nil {
		return fmt.Errorf("%w: %v", ErrHardware, err)
	}
	fb.ctx.target = fb
	w, h := fb.bufs[fb.render].Size()
	fb.ctx.Viewport(w, h)
	return nil
}

// Swap presents the buffer that was just rendered and makes the previously
// presented buffer the new render target. Swap may block until the hardware
// signals flip completion. A rejected flip is reported as a hardware error
// and the owning output should be treated as disconnected.
func (fb *Framebuffer) Swap() error {
	fb.ctx.Flush()
	if err := fb.backend.Flip(fb.connector, fb.bufs[fb.render]); err != nil {
		return fmt.Errorf("%w: flip %s: %v", ErrHardware, fb.connector, err)
	}
	fb.render = 1 - fb.render
	if fb.ctx.target == fb {
		if err := fb.ctx.r.Target(fb.bufs[fb.render]); err != nil {
			return fmt.Errorf("%w: %v", ErrHardware, err)
		}
	}
	return nil
}

// Size returns the framebuffer dimensions in pixels.
func (fb *Framebuffer) Size() (width, height int) {
	return fb.bufs[fb.render].Size()
}

// destroy releases both render buffers. The framebuffer must not be the
// current render destination.
func (fb *Framebuffer) destroy() {
	if fb.ctx.target == fb {
		fb.ctx.target = nil
	}
	for i, b := range fb.bufs {
		if b != nil {
			_ = fb.backend.Free(b)
			fb.bufs[i] = nil
		}
	}
}
