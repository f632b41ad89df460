package dataconn

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// reuseAddrControl is used as a net.ListenConfig.Control so an active-mode
// listener can rebind the same local port across quick reconnects.
func reuseAddrControl(_, _ string, c syscall.RawConn) error {
	var errSetOpts error

	err := c.Control(func(fd uintptr) {
		errSetOpts = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}

	return errSetOpts
}
