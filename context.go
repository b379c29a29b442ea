package compositor

import (
	"fmt"

	"github.com/BeatGlow/compositor/m4"
)

// Context is the rendering context shared by all of a compositor's
// framebuffers. It wraps the native Renderer, owns a matrix stack for
// composing transforms and tracks the textures allocated through it.
//
// At most one framebuffer is current on a context at a time; draw and
// texture calls are silent no-ops unless the context is current.
type Context struct {
	r        Renderer
	stack    *m4.Stack
	textures map[Texture]struct{}
	target   *Framebuffer
	active   bool
}

func newContext(r Renderer) (*Context, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: no renderer", ErrInit)
	}
	return &Context{
		r:        r,
		stack:    m4.NewStack(),
		textures: make(map[Texture]struct{}),
	}, nil
}

// Use makes the context current.
func (c *Context) Use() error {
	if c.active {
		return nil
	}
	if err := c.r.Bind(); err != nil {
		return fmt.Errorf("%w: %v", ErrHardware, err)
	}
	c.active = true
	return nil
}

// IsActive reports whether the context is current.
func (c *Context) IsActive() bool {
	return c.active
}

// Stack returns the context's matrix stack.
func (c *Context) Stack() *m4.Stack {
	return c.stack
}

// Viewport sets the rendering viewport. The context must be current.
func (c *Context) Viewport(width, height int) {
	if !c.active {
		return
	}
	c.r.Viewport(width, height)
}

// Clear clears the current render target. The context must be current.
func (c *Context) Clear() {
	if !c.active {
		return
	}
	c.r.Clear()
}

// DrawDef draws num vertices from parallel position and color arrays.
// A no-op when the context is not current.
func (c *Context) DrawDef(vertices, colors []float32, num int) {
	if !c.active {
		return
	}
	c.r.DrawDef(vertices, colors, num)
}

// DrawTex draws num textured vertices from parallel position and texture
// coordinate arrays, transformed by m. A no-op when the context is not
// current.
func (c *Context) DrawTex(vertices, texcoords []float32, num int, tex Texture, m *m4.Matrix) {
	if !c.active {
		return
	}
	c.r.DrawTex(vertices, texcoords, num, tex, m)
}

// NewTex allocates a texture handle.
func (c *Context) NewTex() (Texture, error) {
	tex, err := c.r.NewTexture()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExhausted, err)
	}
	c.textures[tex] = struct{}{}
	return tex, nil
}

// SetTex uploads pixel data of the given dimensions into a texture. The
// pixel data is tightly packed 8-bit RGBA.
func (c *Context) SetTex(tex Texture, width, height int, pix []byte) error {
	if tex == nil {
		return ErrNilHandle
	}
	return c.r.SetTexture(tex, width, height, pix)
}

// FreeTex releases a texture handle.
func (c *Context) FreeTex(tex Texture) {
	if tex == nil {
		return
	}
	delete(c.textures, tex)
	c.r.FreeTexture(tex)
}

// Flush submits all pending drawing commands.
func (c *Context) Flush() {
	c.r.Flush()
}

// destroy releases remaining textures and the native binding. The context
// must not be current.
func (c *Context) destroy() {
	for tex := range c.textures {
		c.r.FreeTexture(tex)
	}
	c.textures = nil
	if c.active {
		c.r.Unbind()
		c.active = false
	}
	_ = c.r.Close()
}
