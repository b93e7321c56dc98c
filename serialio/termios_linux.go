//go:build linux

package serialio

import (
	"golang.org/x/sys/unix"
)

// setCharTimeout configures VMIN/VTIME on device so the kernel-level read()
// already returns promptly instead of blocking indefinitely; the shim's own
// bwt/cwt deadline loop (t1/transport.go) is what actually enforces the
// protocol timeouts, this just keeps short reads from wedging the process.
// deciseconds==0 means "return immediately with whatever is available",
// which is what the shim's retry loop expects.
func setCharTimeout(device string, deciseconds int) error {
	fd, err := unix.Open(device, unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	tio, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}
	tio.Cc[unix.VMIN] = 0
	tio.Cc[unix.VTIME] = uint8(deciseconds)
	return unix.IoctlSetTermios(fd, unix.TCSETS, tio)
}

func pulseDTRLow(device string) error {
	return setDTR(device, false)
}

func raiseDTR(device string) error {
	return setDTR(device, true)
}

func setDTR(device string, high bool) error {
	fd, err := unix.Open(device, unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	req := unix.TIOCMBIC
	if high {
		req = unix.TIOCMBIS
	}
	return unix.IoctlSetInt(fd, uint(req), unix.TIOCM_DTR)
}
