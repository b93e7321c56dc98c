// Package serialio adapts a real serial port (UART / contact-reader TTY)
// into a t1.Transport[*Port], the C1 transport shim's concrete backing for
// physical hardware.
package serialio

import (
	"fmt"
	"time"

	"github.com/pkg/term"

	"github.com/kgreader/t1card/t1"
)

// Port wraps an open serial line. It is the handle type (H) instantiated
// into t1.Transport[*Port] / t1.Session[*Port].
type Port struct {
	dev       string
	tty       *term.Term
	resetHold time.Duration
}

// Open opens device at baud in raw mode. It does not perform a cold reset;
// that happens through the Reset callback once a Session is built.
func Open(device string, baud int) (*Port, error) {
	tty, err := term.Open(device, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("serialio: open %s: %w", device, err)
	}
	if err := tty.SetSpeed(baud); err != nil {
		_ = tty.Close()
		return nil, fmt.Errorf("serialio: set speed %d on %s: %w", baud, device, err)
	}
	if err := setCharTimeout(device, 0); err != nil {
		_ = tty.Close()
		return nil, fmt.Errorf("serialio: configure %s: %w", device, err)
	}
	return &Port{dev: device, tty: tty, resetHold: 40 * time.Millisecond}, nil
}

// Transport returns the t1.Transport[*Port] capability set backed by real
// serial I/O, for a Port the caller already opened via Open. RST is
// asserted by toggling the line's DTR, the conventional wiring for simple
// contact readers that don't break RST out separately; readers that drive
// RST from a GPIO pin instead should use (*gpioreset.Line).Reset for the
// Reset field here.
func Transport(p *Port) t1.Transport[*Port] {
	return t1.Transport[*Port]{
		Init:    func() (*Port, error) { return p, nil },
		Release: func(p *Port) error { return p.tty.Close() },
		Reset:   func(p *Port) error { return p.reset() },
		Read:    func(p *Port, buf []byte) (int, error) { return p.tty.Read(buf) },
		Write:   func(p *Port, buf []byte) (int, error) { return p.tty.Write(buf) },
		Sleep:   func(d time.Duration) { time.Sleep(d) },
	}
}

func (p *Port) reset() error {
	if err := pulseDTRLow(p.dev); err != nil {
		return err
	}
	time.Sleep(p.resetHold)
	return raiseDTR(p.dev)
}
