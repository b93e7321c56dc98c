// Package gpioreset drives a card's RST line from a GPIO line cdev, for
// readers (commonly small boards wired directly to a card slot) that don't
// expose RST through a UART control line.
package gpioreset

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// Line owns a requested GPIO output line for the duration of a session.
type Line struct {
	l    *gpiocdev.Line
	hold time.Duration
}

// Open requests offset on chip (e.g. "gpiochip0") as an output, driven high
// (RST inactive) at rest.
func Open(chip string, offset int) (*Line, error) {
	l, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsOutput(1),
		gpiocdev.WithConsumer("t1card-reset"))
	if err != nil {
		return nil, fmt.Errorf("gpioreset: request %s:%d: %w", chip, offset, err)
	}
	return &Line{l: l, hold: 40 * time.Millisecond}, nil
}

// Close releases the GPIO line.
func (g *Line) Close() error {
	return g.l.Close()
}

// Reset pulses RST low for Line.hold then releases it, matching the
// t1.Transport[H].Reset callback signature for a handle type embedding
// *Line (or for H=*Line directly).
func (g *Line) Reset() error {
	if err := g.l.SetValue(0); err != nil {
		return fmt.Errorf("gpioreset: assert RST: %w", err)
	}
	time.Sleep(g.hold)
	if err := g.l.SetValue(1); err != nil {
		return fmt.Errorf("gpioreset: release RST: %w", err)
	}
	return nil
}
