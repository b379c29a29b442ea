package logind

import (
	"github.com/BeatGlow/compositor/backend/fbdev"
)

// Session must satisfy the fbdev device opener so sleep/wake is a real
// seat handoff.
var _ fbdev.DeviceOpener = (*Session)(nil)
