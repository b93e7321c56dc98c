package serialio

import (
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/require"
)

// TestPortLoopback exercises the Port's real Read path over an actual
// pseudo-terminal pair (the bytes are written on the pty master side), the
// same technique the teacher uses in kiss.go to test its serial-backed KISS
// TNC without real hardware.
func TestPortLoopback(t *testing.T) {
	ptmx, pts, err := pty.Open()
	require.NoError(t, err)
	defer ptmx.Close()
	defer pts.Close()

	p, err := Open(pts.Name(), 9600)
	require.NoError(t, err)
	defer p.tty.Close()

	tr := Transport(p)

	want := []byte{0x3B, 0x90, 0x11, 0x00}
	done := make(chan error, 1)
	go func() {
		_, err := ptmx.Write(want)
		done <- err
	}()

	buf := make([]byte, len(want))
	got := 0
	deadline := time.Now().Add(time.Second)
	for got < len(buf) && time.Now().Before(deadline) {
		n, err := tr.Read(p, buf[got:])
		require.NoError(t, err)
		got += n
	}
	require.NoError(t, <-done)
	require.Equal(t, want, buf[:got])
}
