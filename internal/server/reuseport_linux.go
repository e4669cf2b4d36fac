//go:build linux

package server

import "syscall"

// setReusePort sets SO_REUSEPORT, which is Linux-specific (added 3.9).
func setReusePort(fd int) error {
	return syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEPORT, 1)
}
