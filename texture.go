package compositor

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// SetTexImage uploads an image into a texture, converting to tightly packed
// 8-bit RGBA. When width and height differ from the image bounds the image
// is scaled with an approximate bi-linear kernel first.
func (c *Context) SetTexImage(tex Texture, img image.Image, width, height int) error {
	if tex == nil || img == nil {
		return ErrNilHandle
	}

	bounds := img.Bounds()
	if width <= 0 {
		width = bounds.Dx()
	}
	if height <= 0 {
		height = bounds.Dy()
	}

	// The fast path requires tightly packed rows; a sub-image keeps its
	// parent's stride even at the origin.
	rgba, ok := img.(*image.RGBA)
	if !ok || bounds.Dx() != width || bounds.Dy() != height ||
		bounds.Min != (image.Point{}) || rgba.Stride != 4*width {
		rgba = image.NewRGBA(image.Rect(0, 0, width, height))
		xdraw.ApproxBiLinear.Scale(rgba, rgba.Bounds(), img, bounds, xdraw.Src, nil)
	}
	return c.SetTex(tex, width, height, rgba.Pix)
}
