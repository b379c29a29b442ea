// Package ioctl wraps the ioctl system call for talking to display device
// nodes.
package ioctl

import (
	"fmt"
	"reflect"
	"syscall"
)

// Command is an ioctl request number.
type Command uintptr

func (c Command) String() string {
	return fmt.Sprintf("ioctl 0x%04x", uintptr(c))
}

// Do executes the ioctl with a pointer argument. ptr must be a pointer to
// the request structure, or nil for commands without an argument.
func Do(fd uintptr, command Command, ptr interface{}) error {
	var p uintptr
	if ptr != nil {
		p = reflect.ValueOf(ptr).Pointer()
	}
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, fd, uintptr(command), p)
	if errno != 0 {
		return fmt.Errorf("%s failed: %v", command, errno)
	}
	return nil
}

// Call executes the ioctl with a plain integer argument.
func Call(fd uintptr, command Command, arg uintptr) error {
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, fd, uintptr(command), arg)
	if errno != 0 {
		return fmt.Errorf("%s failed: %v", command, errno)
	}
	return nil
}
