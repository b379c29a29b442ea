package compositor

import (
	"fmt"
	"log"
)

// Output represents one physical display connector.
//
// An output owns the list of modes the connected monitor supports, the
// currently selected mode and, while active, the framebuffer being rendered
// to. Outputs are reference-counted; the compositor holds one reference for
// as long as the connector is present, and drops it when the connector
// disappears during reconciliation. External holders keep their references
// and must unref once they notice the output is gone.
type Output struct {
	comp    *Compositor
	id      string
	modes   []*Mode
	current *Mode
	def     *Mode
	fb      *Framebuffer
	active  bool
	awake   bool
	refs    int
}

func newOutput(comp *Compositor, conn Connector) *Output {
	o := &Output{
		comp:  comp,
		id:    conn.ID,
		refs:  1,
		awake: true,
	}
	o.modes = make([]*Mode, 0, len(conn.Modes))
	for i, info := range conn.Modes {
		o.modes = append(o.modes, newMode(info, o, i))
	}
	if len(o.modes) > 0 {
		if i := conn.Preferred; i >= 0 && i < len(o.modes) {
			o.def = o.modes[i]
		} else {
			o.def = o.modes[0]
		}
	}
	return o
}

// Ref takes an additional reference on the output.
func (o *Output) Ref() {
	o.refs++
}

// Unref drops a reference. When the last reference is dropped the output's
// framebuffer and mode list are released.
func (o *Output) Unref() {
	if o.refs <= 0 {
		if debug {
			log.Printf("compositor: unref of dead output %q", o.id)
		}
		return
	}
	if o.refs--; o.refs > 0 {
		return
	}
	o.release()
	for _, m := range o.modes {
		m.Unref()
	}
	o.modes = nil
	o.def = nil
	o.comp = nil
}

// release tears down the framebuffer and current mode without touching the
// sleep state. Used by Deactivate, reconciliation and final destruction.
func (o *Output) release() {
	if o.fb != nil {
		o.fb.destroy()
		o.fb = nil
	}
	if o.current != nil {
		o.current.Unref()
		o.current = nil
	}
	o.active = false
}

// ID returns the stable connector identity, for instance "HDMI-1".
func (o *Output) ID() string { return o.id }

// IsActive reports whether a framebuffer is bound to the output.
func (o *Output) IsActive() bool { return o.active }

// IsAwake reports whether the output still belongs to an awake compositor.
// Disconnected outputs are permanently no longer awake.
func (o *Output) IsAwake() bool { return o.awake }

// Modes returns the first supported mode; the rest of the list is reached
// through Mode.Next.
func (o *Output) Modes() *Mode {
	if len(o.modes) == 0 {
		return nil
	}
	return o.modes[0]
}

// CurrentMode returns the active mode, or nil while inactive.
func (o *Output) CurrentMode() *Mode { return o.current }

// DefaultMode returns the hardware-preferred mode.
func (o *Output) DefaultMode() *Mode { return o.def }

// Next returns the following output in the compositor's output list, or nil
// at the tail or when the output is no longer linked.
func (o *Output) Next() *Output {
	if o.comp == nil {
		return nil
	}
	for i, other := range o.comp.outputs {
		if other == o {
			if i+1 < len(o.comp.outputs) {
				return o.comp.outputs[i+1]
			}
			return nil
		}
	}
	return nil
}

// Activate selects mode and binds a fresh double-buffered framebuffer sized
// to it. Any previously bound framebuffer is destroyed first. Construction
// is all-or-nothing: on failure the output stays inactive with no mode
// selected.
func (o *Output) Activate(mode *Mode) error {
	if !o.awake {
		return ErrAsleep
	}
	if mode == nil {
		return ErrNilHandle
	}
	if mode.owner != o {
		return ErrUnknownMode
	}

	o.release()

	front, back, err := o.comp.backend.Allocate(o.id, mode.width, mode.height)
	if err != nil {
		return fmt.Errorf("%w: %s at %s: %v", ErrExhausted, o.id, mode.name, err)
	}
	fb, err := newFramebuffer(o.comp.ctx, o.comp.backend, o.id, front, back)
	if err != nil {
		_ = o.comp.backend.Free(front)
		_ = o.comp.backend.Free(back)
		return err
	}

	o.fb = fb
	o.current = mode
	o.current.Ref()
	o.active = true
	return nil
}

// Deactivate destroys the framebuffer and clears the current mode. It is
// idempotent on an inactive output.
func (o *Output) Deactivate() error {
	if !o.awake {
		return ErrAsleep
	}
	o.release()
	return nil
}

// Use makes the output's framebuffer the render destination on the
// compositor's context.
func (o *Output) Use() error {
	if !o.awake {
		return ErrAsleep
	}
	if !o.active {
		return ErrNotActive
	}
	return o.fb.Use()
}

// Swap flips the output's framebuffer, presenting the rendered frame.
func (o *Output) Swap() error {
	if !o.awake {
		return ErrAsleep
	}
	if !o.active {
		return ErrNotActive
	}
	return o.fb.Swap()
}

// Framebuffer returns the bound framebuffer, or nil while inactive.
func (o *Output) Framebuffer() *Framebuffer { return o.fb }
