// Package logind integrates with systemd-logind for display device handoff.
//
// A Session takes control of the calling process's logind session and opens
// display device nodes through TakeDevice, so that putting a compositor
// asleep genuinely pauses this process's device access and lets another
// process (for instance a different virtual terminal's compositor) claim
// the hardware. It implements the device opener interface of the fbdev
// backend.
package logind

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"
)

const (
	busName       = "org.freedesktop.login1"
	managerPath   = "/org/freedesktop/login1"
	managerIface  = "org.freedesktop.login1.Manager"
	sessionIface  = "org.freedesktop.login1.Session"
	noFlags dbus.Flags = 0
)

// Errors
var (
	ErrNoSession = errors.New("logind: no session for this process")
	ErrClosed    = errors.New("logind: session is closed")
)

// Session is a logind session holding device control.
type Session struct {
	conn    *dbus.Conn
	session dbus.BusObject

	mu    sync.Mutex
	taken map[string]devKey
	open  bool
}

type devKey struct {
	major uint32
	minor uint32
}

// NewSession connects to the system bus, resolves the session of the
// calling process and takes control of it.
func NewSession() (*Session, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("logind: system bus: %w", err)
	}

	manager := conn.Object(busName, managerPath)

	var sessionPath dbus.ObjectPath
	err = manager.Call(managerIface+".GetSessionByPID", noFlags, uint32(os.Getpid())).Store(&sessionPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}

	session := conn.Object(busName, sessionPath)
	if call := session.Call(sessionIface+".TakeControl", noFlags, false); call.Err != nil {
		return nil, fmt.Errorf("logind: take control: %w", call.Err)
	}

	return &Session{
		conn:    conn,
		session: session,
		taken:   make(map[string]devKey),
		open:    true,
	}, nil
}

// OpenDevice opens a device node through logind TakeDevice, returning a
// file descriptor that logind can later revoke.
func (s *Session) OpenDevice(path string) (*os.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil, ErrClosed
	}

	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return nil, &os.PathError{Op: "stat", Path: path, Err: err}
	}
	key := devKey{
		major: unix.Major(uint64(st.Rdev)),
		minor: unix.Minor(uint64(st.Rdev)),
	}

	var (
		fd       dbus.UnixFD
		inactive bool
	)
	call := s.session.Call(sessionIface+".TakeDevice", noFlags, key.major, key.minor)
	if call.Err != nil {
		return nil, fmt.Errorf("logind: take device %s: %w", path, call.Err)
	}
	if err := call.Store(&fd, &inactive); err != nil {
		return nil, fmt.Errorf("logind: take device %s: %w", path, err)
	}

	// The fd arrives with O_NONBLOCK cleared by logind; make sure anyway.
	_ = syscall.SetNonblock(int(fd), false)

	s.taken[path] = key
	return os.NewFile(uintptr(fd), path), nil
}

// CloseDevice releases a device previously opened with OpenDevice.
func (s *Session) CloseDevice(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.taken[path]
	if !ok {
		return nil
	}
	delete(s.taken, path)
	if !s.open {
		return nil
	}
	if call := s.session.Call(sessionIface+".ReleaseDevice", noFlags, key.major, key.minor); call.Err != nil {
		return fmt.Errorf("logind: release device %s: %w", path, call.Err)
	}
	return nil
}

// Close releases session control and the bus connection. Devices still
// open are released by logind as a side effect of ReleaseControl.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false
	s.taken = make(map[string]devKey)

	if call := s.session.Call(sessionIface+".ReleaseControl", noFlags); call.Err != nil {
		_ = s.conn.Close()
		return fmt.Errorf("logind: release control: %w", call.Err)
	}
	return s.conn.Close()
}
