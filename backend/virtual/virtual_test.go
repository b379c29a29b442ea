package virtual

import (
	"image"
	"testing"

	"github.com/BeatGlow/compositor"
)

var _ compositor.Backend = (*Backend)(nil)

func TestTopology(t *testing.T) {
	b := New()
	if err := b.Acquire(); err != nil {
		t.Fatal(err)
	}

	b.Plug("HDMI-1", 1,
		compositor.ModeInfo{Width: 1920, Height: 1080},
		compositor.ModeInfo{Width: 1280, Height: 720},
	)
	b.Plug("DVI-1", 0, compositor.ModeInfo{Width: 1024, Height: 768})

	conns, err := b.Connectors()
	if err != nil {
		t.Fatal(err)
	}
	if len(conns) != 2 {
		t.Fatalf("expected 2 connectors, got %d", len(conns))
	}
	if conns[0].ID != "HDMI-1" || conns[1].ID != "DVI-1" {
		t.Errorf("unexpected enumeration order: %q, %q", conns[0].ID, conns[1].ID)
	}
	if conns[0].Preferred != 1 {
		t.Errorf("expected preferred index 1, got %d", conns[0].Preferred)
	}
	if name := conns[0].Modes[1].Name; name != "1280x720" {
		t.Errorf("expected synthesized mode name 1280x720, got %q", name)
	}

	// Replugging an existing identity replaces the mode list in place.
	b.Plug("HDMI-1", 0, compositor.ModeInfo{Width: 3840, Height: 2160})
	conns, _ = b.Connectors()
	if len(conns) != 2 || len(conns[0].Modes) != 1 {
		t.Errorf("expected replug to replace modes, got %+v", conns)
	}

	b.Unplug("DVI-1")
	conns, _ = b.Connectors()
	if len(conns) != 1 {
		t.Errorf("expected 1 connector after unplug, got %d", len(conns))
	}
}

func TestFlip(t *testing.T) {
	b := New()
	if err := b.Acquire(); err != nil {
		t.Fatal(err)
	}
	b.Plug("HDMI-1", 0, compositor.ModeInfo{Width: 64, Height: 64})

	front, back, err := b.Allocate("HDMI-1", 64, 64)
	if err != nil {
		t.Fatal(err)
	}
	if b.Allocated() != 2 {
		t.Errorf("expected 2 live buffers, got %d", b.Allocated())
	}

	var frames int
	b.OnPresent(func(string, *image.RGBA) { frames++ })

	if err := b.Flip("HDMI-1", front); err != nil {
		t.Fatal(err)
	}
	if b.Presented("HDMI-1") != front {
		t.Error("front buffer not presented")
	}
	if frames != 1 {
		t.Errorf("expected 1 presented frame, got %d", frames)
	}

	if err := b.Flip("DVI-1", back); err == nil {
		t.Error("expected flip on unknown connector to fail")
	}

	_ = b.Free(front)
	_ = b.Free(back)
	if b.Allocated() != 0 {
		t.Errorf("expected 0 live buffers, got %d", b.Allocated())
	}
}
