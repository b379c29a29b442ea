package compositor

import (
	"fmt"
	"log"
)

// Compositor owns the rendering context and the list of outputs, and
// implements the sleep/wake state machine that hands display hardware to
// other processes and reclaims it later.
type Compositor struct {
	backend Backend
	ctx     *Context
	outputs []*Output
	asleep  bool
	refs    int
}

// New creates a compositor on the given backend and renderer, acquires the
// display hardware and performs an initial refresh to populate the output
// list. Construction is all-or-nothing.
func New(backend Backend, r Renderer) (*Compositor, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: no backend", ErrInit)
	}
	ctx, err := newContext(r)
	if err != nil {
		return nil, err
	}

	if err := backend.Acquire(); err != nil {
		ctx.destroy()
		return nil, fmt.Errorf("%w: acquire: %v", ErrHardware, err)
	}

	comp := &Compositor{
		backend: backend,
		ctx:     ctx,
		refs:    1,
	}
	if err := comp.Refresh(); err != nil {
		_ = backend.Release()
		ctx.destroy()
		return nil, err
	}
	return comp, nil
}

// Ref takes an additional reference on the compositor.
func (c *Compositor) Ref() {
	c.refs++
}

// Unref drops a reference. When the last reference is dropped all outputs
// are unbound, the context is destroyed and the hardware is released.
func (c *Compositor) Unref() {
	if c.refs <= 0 {
		if debug {
			log.Printf("compositor: unref of dead compositor")
		}
		return
	}
	if c.refs--; c.refs > 0 {
		return
	}
	for _, o := range c.outputs {
		o.release()
		o.awake = false
		o.Unref()
	}
	c.outputs = nil
	c.ctx.destroy()
	if !c.asleep {
		_ = c.backend.Release()
	}
}

// IsAsleep reports whether the compositor is asleep.
func (c *Compositor) IsAsleep() bool { return c.asleep }

// GetContext returns the compositor's rendering context.
func (c *Compositor) GetContext() *Context { return c.ctx }

// Use makes the compositor's context current.
func (c *Compositor) Use() error { return c.ctx.Use() }

// Outputs returns the first output in the list; the rest is reached through
// Output.Next. Returns nil when no connector is present.
func (c *Compositor) Outputs() *Output {
	if len(c.outputs) == 0 {
		return nil
	}
	return c.outputs[0]
}

// Sleep releases the display hardware so another process can claim it. The
// context and all framebuffers stay allocated; every mutating output
// operation fails with ErrAsleep until WakeUp.
func (c *Compositor) Sleep() {
	if c.asleep {
		return
	}
	c.asleep = true
	for _, o := range c.outputs {
		o.awake = false
	}
	_ = c.backend.Release()
}

// WakeUp reclaims the display hardware and reconciles the output list
// against the live connector state. On acquisition failure the compositor
// stays asleep.
func (c *Compositor) WakeUp() error {
	if !c.asleep {
		return nil
	}
	if err := c.backend.Acquire(); err != nil {
		return fmt.Errorf("%w: acquire: %v", ErrHardware, err)
	}
	c.asleep = false
	for _, o := range c.outputs {
		o.awake = true
	}
	return c.Refresh()
}

// Refresh reconciles the owned output list against the live connector set,
// for instance after a hotplug notification. The compositor must be awake.
//
// Connectors that disappeared are deactivated, unbound and unreferenced;
// new connectors are appended in enumeration order; connectors that persist
// are left untouched. Running Refresh twice against an unchanged connector
// set is a structural no-op. A mode list change on a persisting connector
// is deliberately ignored until the connector cycles, so that mode
// references held by callers stay valid mid-session.
func (c *Compositor) Refresh() error {
	if c.asleep {
		return ErrAsleep
	}

	live, err := c.backend.Connectors()
	if err != nil {
		return fmt.Errorf("%w: enumerate: %v", ErrHardware, err)
	}

	alive := make(map[string]struct{}, len(live))
	for _, conn := range live {
		alive[conn.ID] = struct{}{}
	}

	// Unbind outputs whose connector is gone.
	kept := c.outputs[:0]
	for _, o := range c.outputs {
		if _, ok := alive[o.id]; ok {
			kept = append(kept, o)
			continue
		}
		o.release()
		o.awake = false
		o.Unref()
	}
	c.outputs = kept

	// Append outputs for connectors we do not own yet.
	owned := make(map[string]struct{}, len(c.outputs))
	for _, o := range c.outputs {
		owned[o.id] = struct{}{}
	}
	for _, conn := range live {
		if _, ok := owned[conn.ID]; ok {
			continue
		}
		c.outputs = append(c.outputs, newOutput(c, conn))
	}
	return nil
}
