package t1

import (
	"math"
	"time"
)

// Clock holds the clock-rate and rate-conversion parameters needed to turn
// the ATR's CWI/BWI indices into wall-clock durations. Fd/Dd are the clock
// rate conversion factor / baud rate adjustment factor negotiated (or, per
// this module's non-goals, assumed pre-negotiated) before the session is
// built.
type Clock struct {
	FrequencyHz float64 // f, the card's clock frequency
	Fd          float64 // clock rate conversion factor
	Dd          float64 // baud rate adjustment factor
}

// DefaultClock is ISO/IEC 7816-3's default operating point: a 4 MHz clock
// with the default Fi/Di pair (Fd=372, Dd=1).
var DefaultClock = Clock{FrequencyHz: 4_000_000, Fd: 372, Dd: 1}

// etu returns one elementary time unit in seconds.
func (c Clock) etu() float64 {
	return c.Fd / (c.Dd * c.FrequencyHz)
}

// CWT computes the character waiting time for the given CWI (character
// waiting integer), per ISO/IEC 7816-3 §11.4.3: CWT = (2^CWI + 11) * etu.
func (c Clock) CWT(cwi int) time.Duration {
	etus := (math.Exp2(float64(cwi)) + 11) * c.etu()
	return time.Duration(etus * float64(time.Second))
}

// BWT computes the block waiting time for the given BWI (block waiting
// integer), per ISO/IEC 7816-3 §11.4.3:
// BWT = 2^BWI * 960 * Fd/f + 11 * etu.
func (c Clock) BWT(bwi int) time.Duration {
	seconds := math.Exp2(float64(bwi))*960*(c.Fd/c.FrequencyHz) + 11*c.etu()
	return time.Duration(seconds * float64(time.Second))
}

// DefaultCWI and DefaultBWI are the values used when the ATR carries no TB
// for T=1. Combined with DefaultClock they give CWT = (2^13 + 11) etu ≈
// 0.76 s and BWT ≈ 1.43 s; a CWI=0/BWI=0 pair would give only about 1.1 ms
// and 90 ms, which is too tight for a slow card.
const (
	DefaultCWI = 13
	DefaultBWI = 4
)
