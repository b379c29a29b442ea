package hotplug

import (
	"fmt"
	"log"
	"os"

	"golang.org/x/sys/unix"
)

// Watcher delivers topology-change notifications from kernel uevents.
type Watcher struct {
	fd     int
	events chan struct{}
}

// NewWatcher opens the uevent netlink socket and starts the read loop.
func NewWatcher() (*Watcher, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, fmt.Errorf("hotplug: socket: %w", err)
	}
	addr := &unix.SockaddrNetlink{
		Family: unix.AF_NETLINK,
		Groups: 1, // kernel uevent multicast group
	}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("hotplug: bind: %w", err)
	}

	w := &Watcher{
		fd:     fd,
		events: make(chan struct{}, 1),
	}
	go w.read()
	return w, nil
}

// Events returns the notification channel. Bursts of related uevents
// collapse into a single pending notification; the channel closes when the
// watcher is closed.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Close tears down the socket; the events channel is closed once the read
// loop exits.
func (w *Watcher) Close() error {
	return unix.Close(w.fd)
}

func (w *Watcher) read() {
	defer close(w.events)
	buf := make([]byte, 64<<10)
	for {
		n, _, err := unix.Recvfrom(w.fd, buf, 0)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		ev, ok := parseUevent(buf[:n])
		if !ok {
			continue
		}
		if !ev.topologyChange() {
			continue
		}
		if os.Getenv("COMPOSITOR_DEBUG") != "" {
			log.Printf("hotplug: %s %s", ev.action, ev.env["DEVPATH"])
		}
		select {
		case w.events <- struct{}{}:
		default:
		}
	}
}
