package xrandr

import (
	"testing"

	"github.com/BeatGlow/compositor"
)

var _ compositor.Backend = (*Backend)(nil)

func TestPutImageRows(t *testing.T) {
	testCases := []struct {
		width int
		want  int
	}{
		{320, 46},
		{1920, 7},
		{60000, 1},
	}
	for _, tc := range testCases {
		if got := putImageRows(tc.width); got != tc.want {
			t.Errorf("putImageRows(%d) = %d, want %d", tc.width, got, tc.want)
		}
	}
}

func TestNotAcquired(t *testing.T) {
	b := New(":0")

	if _, err := b.Connectors(); err != ErrNotAcquired {
		t.Errorf("expected ErrNotAcquired, got %v", err)
	}
	if _, err := b.Watch(); err != ErrNotAcquired {
		t.Errorf("expected ErrNotAcquired, got %v", err)
	}
	if err := b.Flip("HDMI-1", nil); err != ErrNotAcquired {
		t.Errorf("expected ErrNotAcquired, got %v", err)
	}
}
