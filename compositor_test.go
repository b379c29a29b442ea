package compositor_test

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BeatGlow/compositor"
	"github.com/BeatGlow/compositor/backend/soft"
	"github.com/BeatGlow/compositor/backend/virtual"
)

func newTestCompositor(t *testing.T, hw *virtual.Backend) *compositor.Compositor {
	t.Helper()
	comp, err := compositor.New(hw, soft.NewRenderer())
	require.NoError(t, err)
	t.Cleanup(comp.Unref)
	return comp
}

func plugHDMI1(hw *virtual.Backend) {
	hw.Plug("HDMI-1", 0,
		compositor.ModeInfo{Width: 1920, Height: 1080},
		compositor.ModeInfo{Width: 1280, Height: 720},
	)
}

// findMode walks the mode list for a mode named name.
func findMode(o *compositor.Output, name string) *compositor.Mode {
	for m := o.Modes(); m != nil; m = m.Next() {
		if m.Name() == name {
			return m
		}
	}
	return nil
}

func outputIDs(comp *compositor.Compositor) []string {
	var ids []string
	for o := comp.Outputs(); o != nil; o = o.Next() {
		ids = append(ids, o.ID())
	}
	return ids
}

func TestRefreshPopulatesOutputs(t *testing.T) {
	hw := virtual.New()
	plugHDMI1(hw)
	comp := newTestCompositor(t, hw)

	require.Equal(t, []string{"HDMI-1"}, outputIDs(comp))

	o := comp.Outputs()
	assert.False(t, o.IsActive())
	assert.True(t, o.IsAwake())
	assert.Nil(t, o.CurrentMode())
	require.NotNil(t, o.DefaultMode())
	assert.Equal(t, "1920x1080", o.DefaultMode().Name())
	assert.Equal(t, 1920, o.DefaultMode().Width())
	assert.Equal(t, 1080, o.DefaultMode().Height())
}

func TestModeTraversal(t *testing.T) {
	hw := virtual.New()
	plugHDMI1(hw)
	comp := newTestCompositor(t, hw)
	o := comp.Outputs()

	var names []string
	for m := o.Modes(); m != nil; m = m.Next() {
		names = append(names, m.Name())
	}
	require.Equal(t, []string{"1920x1080", "1280x720"}, names)

	// The traversal is restartable.
	require.Equal(t, "1920x1080", o.Modes().Name())
}

func TestActivate(t *testing.T) {
	hw := virtual.New()
	plugHDMI1(hw)
	comp := newTestCompositor(t, hw)
	o := comp.Outputs()

	mode := findMode(o, "1280x720")
	require.NotNil(t, mode)
	require.NoError(t, o.Activate(mode))

	assert.True(t, o.IsActive())
	require.NotNil(t, o.CurrentMode())
	assert.Equal(t, "1280x720", o.CurrentMode().Name())

	require.NotNil(t, o.Framebuffer())
	w, h := o.Framebuffer().Size()
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)
}

func TestActivateForeignMode(t *testing.T) {
	hw := virtual.New()
	plugHDMI1(hw)
	hw.Plug("DVI-1", 0, compositor.ModeInfo{Width: 1024, Height: 768})
	comp := newTestCompositor(t, hw)

	hdmi := comp.Outputs()
	dvi := hdmi.Next()
	require.NotNil(t, dvi)

	err := hdmi.Activate(dvi.Modes())
	assert.ErrorIs(t, err, compositor.ErrUnknownMode)
	assert.False(t, hdmi.IsActive())

	assert.ErrorIs(t, hdmi.Activate(nil), compositor.ErrNilHandle)
}

func TestActivateDeactivate(t *testing.T) {
	hw := virtual.New()
	plugHDMI1(hw)
	comp := newTestCompositor(t, hw)
	o := comp.Outputs()

	require.NoError(t, o.Activate(o.DefaultMode()))
	assert.True(t, o.IsActive())

	require.NoError(t, o.Deactivate())
	assert.False(t, o.IsActive())
	assert.Nil(t, o.CurrentMode())
	assert.Nil(t, o.Framebuffer())

	// Deactivate is idempotent.
	require.NoError(t, o.Deactivate())
	assert.False(t, o.IsActive())

	// Re-activation with a different mode replaces the framebuffer.
	require.NoError(t, o.Activate(findMode(o, "1280x720")))
	require.NoError(t, o.Activate(findMode(o, "1920x1080")))
	w, h := o.Framebuffer().Size()
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)

	require.NoError(t, o.Use())
	require.NoError(t, o.Deactivate())
	assert.ErrorIs(t, o.Use(), compositor.ErrNotActive)
	assert.ErrorIs(t, o.Swap(), compositor.ErrNotActive)
}

func TestSleepWake(t *testing.T) {
	hw := virtual.New()
	plugHDMI1(hw)
	comp := newTestCompositor(t, hw)
	o := comp.Outputs()

	require.NoError(t, o.Activate(o.DefaultMode()))

	comp.Sleep()
	assert.True(t, comp.IsAsleep())
	assert.False(t, o.IsAwake())
	assert.False(t, hw.Acquired(), "sleep must release the hardware")

	// The framebuffer survives sleep, but every mutation is rejected.
	assert.NotNil(t, o.Framebuffer())
	assert.ErrorIs(t, o.Activate(o.DefaultMode()), compositor.ErrAsleep)
	assert.ErrorIs(t, o.Deactivate(), compositor.ErrAsleep)
	assert.ErrorIs(t, o.Use(), compositor.ErrAsleep)
	assert.ErrorIs(t, o.Swap(), compositor.ErrAsleep)
	assert.ErrorIs(t, comp.Refresh(), compositor.ErrAsleep)

	require.NoError(t, comp.WakeUp())
	assert.False(t, comp.IsAsleep())
	assert.True(t, o.IsAwake())
	require.NoError(t, o.Activate(o.DefaultMode()))
}

func TestWakeUpFailureStaysAsleep(t *testing.T) {
	hw := virtual.New()
	plugHDMI1(hw)
	comp := newTestCompositor(t, hw)

	comp.Sleep()
	hw.FailAcquire(errors.New("busy"))

	err := comp.WakeUp()
	assert.ErrorIs(t, err, compositor.ErrHardware)
	assert.True(t, comp.IsAsleep())

	hw.FailAcquire(nil)
	require.NoError(t, comp.WakeUp())
	assert.False(t, comp.IsAsleep())
}

func TestRefreshIdempotent(t *testing.T) {
	hw := virtual.New()
	plugHDMI1(hw)
	hw.Plug("DVI-1", 0, compositor.ModeInfo{Width: 1024, Height: 768})
	comp := newTestCompositor(t, hw)

	first := comp.Outputs()
	ids := outputIDs(comp)

	require.NoError(t, comp.Refresh())
	assert.Equal(t, ids, outputIDs(comp))
	assert.Same(t, first, comp.Outputs(), "untouched outputs must not be rebuilt")

	require.NoError(t, comp.Refresh())
	assert.Equal(t, ids, outputIDs(comp))
}

func TestReconciliation(t *testing.T) {
	hw := virtual.New()
	hw.Plug("B", 0, compositor.ModeInfo{Width: 800, Height: 600})
	hw.Plug("C", 0, compositor.ModeInfo{Width: 800, Height: 600})
	comp := newTestCompositor(t, hw)

	b := comp.Outputs()
	c := b.Next()
	require.Equal(t, "B", b.ID())
	require.Equal(t, "C", c.ID())
	require.NoError(t, b.Activate(b.DefaultMode()))
	fb := b.Framebuffer()

	// Keep an external reference to C across its disconnect.
	c.Ref()

	hw.Unplug("C")
	hw.Plug("A", 0, compositor.ModeInfo{Width: 640, Height: 480})
	require.NoError(t, comp.Refresh())

	// Owned set is exactly {B, A}: survivors first, discoveries appended.
	assert.Equal(t, []string{"B", "A"}, outputIDs(comp))

	// B is untouched, its framebuffer survives.
	assert.Same(t, b, comp.Outputs())
	assert.True(t, b.IsActive())
	assert.Same(t, fb, b.Framebuffer())

	// C is deactivated, no longer awake and unlinked.
	assert.False(t, c.IsActive())
	assert.False(t, c.IsAwake())
	assert.Nil(t, c.Framebuffer())
	assert.Nil(t, c.Next())

	// The external reference keeps the object alive until dropped.
	assert.NotNil(t, c.Modes())
	c.Unref()
	assert.Nil(t, c.Modes())
}

func TestModeListChangeOnPersistingConnectorIgnored(t *testing.T) {
	hw := virtual.New()
	plugHDMI1(hw)
	comp := newTestCompositor(t, hw)
	o := comp.Outputs()
	modes := o.Modes()

	// The monitor advertises a new mode list without disconnecting; the
	// session keeps the modes it enumerated at discovery.
	hw.Plug("HDMI-1", 0, compositor.ModeInfo{Width: 3840, Height: 2160})
	require.NoError(t, comp.Refresh())

	assert.Same(t, o, comp.Outputs())
	assert.Same(t, modes, o.Modes())
	assert.Nil(t, findMode(o, "3840x2160"))
}

func TestSwapAlternatesBuffers(t *testing.T) {
	hw := virtual.New()
	plugHDMI1(hw)
	comp := newTestCompositor(t, hw)
	o := comp.Outputs()

	require.NoError(t, o.Activate(o.DefaultMode()))
	require.NoError(t, o.Use())
	assert.True(t, comp.GetContext().IsActive())

	require.NoError(t, o.Swap())
	first := hw.Presented("HDMI-1")
	require.NotNil(t, first)

	require.NoError(t, o.Swap())
	second := hw.Presented("HDMI-1")
	require.NotNil(t, second)
	assert.NotSame(t, first, second, "both buffers presented at once")

	require.NoError(t, o.Swap())
	assert.Same(t, first, hw.Presented("HDMI-1"))
}

func TestSetTexImageSubImage(t *testing.T) {
	hw := virtual.New()
	plugHDMI1(hw)
	comp := newTestCompositor(t, hw)
	o := comp.Outputs()
	require.NoError(t, o.Activate(findMode(o, "1280x720")))

	// A green region cut from a wider red parent. The sub-image keeps the
	// parent's row stride, so its pixel data is not tightly packed.
	parent := image.NewRGBA(image.Rect(0, 0, 64, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 64; x++ {
			parent.SetRGBA(x, y, color.RGBA{R: 0xff, A: 0xff})
		}
	}
	sub := parent.SubImage(image.Rect(0, 0, 32, 32)).(*image.RGBA)
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			sub.SetRGBA(x, y, color.RGBA{G: 0xff, A: 0xff})
		}
	}

	ctx := comp.GetContext()
	tex, err := ctx.NewTex()
	require.NoError(t, err)
	defer ctx.FreeTex(tex)
	require.NoError(t, ctx.SetTexImage(tex, sub, 32, 32))

	vertices := []float32{
		-1, -1, 1, -1, 1, 1,
		-1, -1, 1, 1, -1, 1,
	}
	texcoords := []float32{
		0, 0, 1, 0, 1, 1,
		0, 0, 1, 1, 0, 1,
	}

	require.NoError(t, o.Use())
	ctx.Clear()
	ctx.DrawTex(vertices, texcoords, 6, tex, nil)
	require.NoError(t, o.Swap())

	surf, ok := hw.Presented("HDMI-1").(soft.Surface)
	require.True(t, ok)
	frame := surf.RGBA()
	red := 0
	b := frame.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if c := frame.RGBAAt(x, y); c.R > c.G {
				red++
			}
		}
	}
	assert.Zero(t, red, "pixels from outside the sub-image leaked into the texture")
}

func TestSwapRejectedAfterDisconnect(t *testing.T) {
	hw := virtual.New()
	plugHDMI1(hw)
	comp := newTestCompositor(t, hw)
	o := comp.Outputs()

	require.NoError(t, o.Activate(o.DefaultMode()))
	require.NoError(t, o.Use())

	// The connector goes away and the caller has not refreshed yet; the
	// flip is rejected non-fatally.
	hw.Unplug("HDMI-1")
	err := o.Swap()
	assert.ErrorIs(t, err, compositor.ErrHardware)

	// The output is still active until the next refresh reconciles it.
	assert.True(t, o.IsActive())
	require.NoError(t, comp.Refresh())
	assert.False(t, o.IsActive())
}

func TestOutputRefCounting(t *testing.T) {
	hw := virtual.New()
	plugHDMI1(hw)
	comp := newTestCompositor(t, hw)
	o := comp.Outputs()

	const extra = 3
	for i := 0; i < extra; i++ {
		o.Ref()
	}

	// Losing the connector drops the compositor's reference only.
	hw.Unplug("HDMI-1")
	require.NoError(t, comp.Refresh())
	assert.NotNil(t, o.Modes())

	for i := 0; i < extra-1; i++ {
		o.Unref()
		assert.NotNil(t, o.Modes(), "object destroyed with references remaining")
	}
	o.Unref()
	assert.Nil(t, o.Modes())

	// A stray unref of a dead object is a guarded no-op.
	o.Unref()
}

func TestCompositorTeardownReleasesEverything(t *testing.T) {
	hw := virtual.New()
	plugHDMI1(hw)
	hw.Plug("DVI-1", 0, compositor.ModeInfo{Width: 1024, Height: 768})

	comp, err := compositor.New(hw, soft.NewRenderer())
	require.NoError(t, err)

	for o := comp.Outputs(); o != nil; o = o.Next() {
		require.NoError(t, o.Activate(o.DefaultMode()))
	}
	require.NotZero(t, hw.Allocated())

	comp.Ref()
	comp.Unref()
	require.NotZero(t, hw.Allocated(), "compositor destroyed with references remaining")

	comp.Unref()
	assert.Zero(t, hw.Allocated(), "render buffers leaked")
	assert.False(t, hw.Acquired())
}

func TestNewFailsWhenHardwareBusy(t *testing.T) {
	hw := virtual.New()
	hw.FailAcquire(errors.New("busy"))

	comp, err := compositor.New(hw, soft.NewRenderer())
	assert.Nil(t, comp)
	assert.ErrorIs(t, err, compositor.ErrHardware)
}
