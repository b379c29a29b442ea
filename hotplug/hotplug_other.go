//go:build !linux

package hotplug

// Watcher is unavailable on platforms without netlink uevents.
type Watcher struct{}

func NewWatcher() (*Watcher, error) { return nil, ErrNotSupported }

func (*Watcher) Events() <-chan struct{} { return nil }

func (*Watcher) Close() error { return nil }
