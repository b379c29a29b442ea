// Package hotplug watches kernel uevents for display topology changes.
//
// A Watcher listens on a netlink KOBJECT_UEVENT socket and collapses
// change events on the drm and graphics subsystems into empty
// notifications. The notification carries no payload; the consumer reacts
// by calling Refresh on its compositor from its own event loop.
package hotplug

import (
	"errors"
	"strings"
)

// ErrNotSupported is returned by NewWatcher on platforms without netlink
// uevents.
var ErrNotSupported = errors.New("hotplug: not supported on this platform")

// interesting subsystems; drm covers KMS devices, graphics covers fbdev.
var subsystems = map[string]bool{
	"drm":      true,
	"graphics": true,
}

// uevent is one decoded kernel event.
type uevent struct {
	action string
	env    map[string]string
}

// parseUevent decodes a kernel uevent datagram: "ACTION@DEVPATH" followed
// by NUL-separated KEY=VALUE pairs. Returns false for non-kernel messages
// (e.g. udev's libudev-prefixed repeats).
func parseUevent(data []byte) (uevent, bool) {
	fields := strings.Split(string(data), "\x00")
	if len(fields) == 0 {
		return uevent{}, false
	}
	header := fields[0]
	at := strings.IndexByte(header, '@')
	if at < 1 {
		return uevent{}, false
	}

	ev := uevent{
		action: header[:at],
		env:    make(map[string]string, len(fields)-1),
	}
	for _, field := range fields[1:] {
		if eq := strings.IndexByte(field, '='); eq > 0 {
			ev.env[field[:eq]] = field[eq+1:]
		}
	}
	return ev, true
}

// topologyChange reports whether the event indicates a display connector
// change worth a refresh.
func (ev uevent) topologyChange() bool {
	if !subsystems[ev.env["SUBSYSTEM"]] {
		return false
	}
	switch ev.action {
	case "change", "add", "remove":
		return true
	}
	return false
}
