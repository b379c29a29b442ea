// Package soft implements a software renderer that rasterizes directly
// into backend buffer memory. It is the in-tree Renderer implementation
// used by the memory, framebuffer device and X11 backends, and by tests.
package soft

import (
	"errors"
	"image"
	"image/color"

	"github.com/BeatGlow/compositor"
	"github.com/BeatGlow/compositor/m4"
)

// Errors
var (
	ErrNotBound   = errors.New("soft: renderer is not bound")
	ErrBadSurface = errors.New("soft: buffer does not expose pixel storage")
)

// Surface is a render buffer whose pixel storage is directly accessible.
// Buffers handed to Renderer.Target must implement it.
type Surface interface {
	compositor.Buffer

	// RGBA returns the backing pixel storage.
	RGBA() *image.RGBA
}

// Image is a plain in-memory Surface.
type Image struct {
	pix *image.RGBA
}

// NewImage returns an in-memory surface of the given size.
func NewImage(width, height int) *Image {
	return &Image{pix: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// Size returns the surface dimensions in pixels.
func (i *Image) Size() (width, height int) {
	b := i.pix.Bounds()
	return b.Dx(), b.Dy()
}

// RGBA returns the backing pixel storage.
func (i *Image) RGBA() *image.RGBA { return i.pix }

type texture struct {
	pix    *image.RGBA
	width  int
	height int
}

// Renderer rasterizes draw calls into the target surface on the CPU.
type Renderer struct {
	bound    bool
	target   *image.RGBA
	vpWidth  int
	vpHeight int
	clear    color.RGBA
}

// NewRenderer returns a software renderer. The clear color is opaque black.
func NewRenderer() *Renderer {
	return &Renderer{clear: color.RGBA{A: 0xff}}
}

// SetClearColor changes the color used by Clear.
func (r *Renderer) SetClearColor(c color.RGBA) { r.clear = c }

// Bind makes the renderer current.
func (r *Renderer) Bind() error {
	r.bound = true
	return nil
}

// Unbind releases the renderer.
func (r *Renderer) Unbind() {
	r.bound = false
	r.target = nil
}

// Target selects the destination buffer. The buffer must be a Surface.
func (r *Renderer) Target(b compositor.Buffer) error {
	if !r.bound {
		return ErrNotBound
	}
	s, ok := b.(Surface)
	if !ok {
		return ErrBadSurface
	}
	r.target = s.RGBA()
	w, h := s.Size()
	r.vpWidth, r.vpHeight = w, h
	return nil
}

// Viewport sets the device coordinate mapping.
func (r *Renderer) Viewport(width, height int) {
	r.vpWidth, r.vpHeight = width, height
}

// Clear fills the target with the clear color.
func (r *Renderer) Clear() {
	if r.target == nil {
		return
	}
	pix := r.target.Pix
	for i := 0; i < len(pix); i += 4 {
		pix[i+0] = r.clear.R
		pix[i+1] = r.clear.G
		pix[i+2] = r.clear.B
		pix[i+3] = r.clear.A
	}
}

// DrawDef rasterizes num vertices as triangles with per-vertex colors.
// Vertices are (x, y) pairs in normalized device coordinates, colors are
// RGB triples in [0..1].
func (r *Renderer) DrawDef(vertices, colors []float32, num int) {
	if r.target == nil {
		return
	}
	for i := 0; i+2 < num; i += 3 {
		r.triangle(
			r.vertex2(vertices, i), r.vertex2(vertices, i+1), r.vertex2(vertices, i+2),
			rgb(colors, i), rgb(colors, i+1), rgb(colors, i+2),
			nil, point{}, point{}, point{},
		)
	}
}

// DrawTex rasterizes num textured vertices as triangles, transforming each
// vertex by m. Texture coordinates are (u, v) pairs in [0..1].
func (r *Renderer) DrawTex(vertices, texcoords []float32, num int, tex compositor.Texture, m *m4.Matrix) {
	if r.target == nil {
		return
	}
	t, ok := tex.(*texture)
	if !ok || t.pix == nil {
		return
	}
	for i := 0; i+2 < num; i += 3 {
		r.triangle(
			transform(m, r.vertex2(vertices, i)),
			transform(m, r.vertex2(vertices, i+1)),
			transform(m, r.vertex2(vertices, i+2)),
			[3]float32{1, 1, 1}, [3]float32{1, 1, 1}, [3]float32{1, 1, 1},
			t,
			r.vertex2(texcoords, i), r.vertex2(texcoords, i+1), r.vertex2(texcoords, i+2),
		)
	}
}

// NewTexture allocates an empty texture handle.
func (r *Renderer) NewTexture() (compositor.Texture, error) {
	return &texture{}, nil
}

// SetTexture uploads tightly packed RGBA pixel data into a texture.
func (r *Renderer) SetTexture(tex compositor.Texture, width, height int, pix []byte) error {
	t, ok := tex.(*texture)
	if !ok {
		return ErrBadSurface
	}
	if len(pix) < width*height*4 {
		return errors.New("soft: short pixel data")
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, pix[:width*height*4])
	t.pix, t.width, t.height = img, width, height
	return nil
}

// FreeTexture releases a texture handle.
func (r *Renderer) FreeTexture(tex compositor.Texture) {
	if t, ok := tex.(*texture); ok {
		t.pix = nil
	}
}

// Flush is a no-op; rasterization is immediate.
func (r *Renderer) Flush() {}

// Close releases the renderer.
func (r *Renderer) Close() error {
	r.Unbind()
	return nil
}

type point struct {
	x, y float32
}

// vertex2 reads the i-th (x, y) pair.
func (r *Renderer) vertex2(data []float32, i int) point {
	if j := i * 2; j+1 < len(data) {
		return point{data[j], data[j+1]}
	}
	return point{}
}

func rgb(colors []float32, i int) [3]float32 {
	if j := i * 3; j+2 < len(colors) {
		return [3]float32{colors[j], colors[j+1], colors[j+2]}
	}
	return [3]float32{1, 1, 1}
}

// transform applies the row-major 4x4 matrix to (x, y, 0, 1).
func transform(m *m4.Matrix, p point) point {
	if m == nil {
		return p
	}
	x := m[0]*p.x + m[1]*p.y + m[3]
	y := m[4]*p.x + m[5]*p.y + m[7]
	w := m[12]*p.x + m[13]*p.y + m[15]
	if w != 0 && w != 1 {
		x /= w
		y /= w
	}
	return point{x, y}
}

// device maps normalized device coordinates to pixel coordinates.
func (r *Renderer) device(p point) point {
	return point{
		(p.x + 1) * 0.5 * float32(r.vpWidth),
		(1 - (p.y+1)*0.5) * float32(r.vpHeight),
	}
}

func (r *Renderer) triangle(a, b, c point, c0, c1, c2 [3]float32, tex *texture, t0, t1, t2 point) {
	a, b, c = r.device(a), r.device(b), r.device(c)

	minX := clampInt(int(min3(a.x, b.x, c.x)), 0, r.target.Rect.Dx()-1)
	maxX := clampInt(int(max3(a.x, b.x, c.x))+1, 0, r.target.Rect.Dx()-1)
	minY := clampInt(int(min3(a.y, b.y, c.y)), 0, r.target.Rect.Dy()-1)
	maxY := clampInt(int(max3(a.y, b.y, c.y))+1, 0, r.target.Rect.Dy()-1)

	area := edge(a, b, c)
	if area == 0 {
		return
	}

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			p := point{float32(x) + 0.5, float32(y) + 0.5}
			w0 := edge(b, c, p) / area
			w1 := edge(c, a, p) / area
			w2 := edge(a, b, p) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}

			var red, green, blue float32
			if tex != nil {
				u := w0*t0.x + w1*t1.x + w2*t2.x
				v := w0*t0.y + w1*t1.y + w2*t2.y
				red, green, blue = tex.sample(u, v)
			} else {
				red = w0*c0[0] + w1*c1[0] + w2*c2[0]
				green = w0*c0[1] + w1*c1[1] + w2*c2[1]
				blue = w0*c0[2] + w1*c1[2] + w2*c2[2]
			}
			r.target.SetRGBA(x, y, color.RGBA{
				R: channel(red),
				G: channel(green),
				B: channel(blue),
				A: 0xff,
			})
		}
	}
}

func (t *texture) sample(u, v float32) (cr, cg, cb float32) {
	x := clampInt(int(u*float32(t.width)), 0, t.width-1)
	y := clampInt(int(v*float32(t.height)), 0, t.height-1)
	c := t.pix.RGBAAt(x, y)
	return float32(c.R) / 0xff, float32(c.G) / 0xff, float32(c.B) / 0xff
}

func edge(a, b, p point) float32 {
	return (b.x-a.x)*(p.y-a.y) - (b.y-a.y)*(p.x-a.x)
}

func channel(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 0xff
	default:
		return uint8(v * 0xff)
	}
}

func clampInt(v, lo, hi int) int {
	switch {
	case hi < lo:
		return lo
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}

func min3(a, b, c float32) float32 {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func max3(a, b, c float32) float32 {
	if b > a {
		a = b
	}
	if c > a {
		a = c
	}
	return a
}
