package compositor

import "log"

// Mode is one display timing and resolution supported by an Output.
//
// Modes are immutable once enumerated and reference-counted; they are shared
// between callers and the owning output's mode list. The native timing
// descriptor is released when the last reference drops.
type Mode struct {
	name   string
	width  int
	height int
	native any

	owner *Output
	index int
	refs  int
}

func newMode(info ModeInfo, owner *Output, index int) *Mode {
	return &Mode{
		name:   info.Name,
		width:  info.Width,
		height: info.Height,
		native: info.Native,
		owner:  owner,
		index:  index,
		refs:   1,
	}
}

// Ref takes an additional reference on the mode.
func (m *Mode) Ref() {
	m.refs++
}

// Unref drops a reference. The native descriptor is released when the last
// reference is dropped.
func (m *Mode) Unref() {
	if m.refs <= 0 {
		if debug {
			log.Printf("compositor: unref of dead mode %q", m.name)
		}
		return
	}
	if m.refs--; m.refs > 0 {
		return
	}
	m.native = nil
	m.owner = nil
}

// Name returns the display string of the mode, typically "1920x1080".
func (m *Mode) Name() string { return m.name }

// Width returns the mode width in pixels.
func (m *Mode) Width() int { return m.width }

// Height returns the mode height in pixels.
func (m *Mode) Height() int { return m.height }

// Next returns the following mode in the owning output's mode list, or nil
// at the tail. Together with Output.Modes this allows a restartable
// traversal of all supported modes.
func (m *Mode) Next() *Mode {
	if m.owner == nil {
		return nil
	}
	if i := m.index + 1; i < len(m.owner.modes) {
		return m.owner.modes[i]
	}
	return nil
}
