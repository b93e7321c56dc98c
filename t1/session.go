package t1

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// Option configures a Session at build time.
type Option[H any] func(*Session[H])

// WithNAD sets the node-address nibbles used on every outgoing block.
// Defaults to SAD=0, DAD=0.
func WithNAD[H any](sad, dad byte) Option[H] {
	return func(s *Session[H]) { s.nad = (dad<<4)&0xF0 | sad&0x0F }
}

// WithIFSD sets the device's (our) advertised maximum INF size, sent once
// via an S(IFS-req) right after ATR when it is not 254. Defaults to 254, in
// which case no S(IFS-req) is sent.
func WithIFSD[H any](ifsd int) Option[H] {
	return func(s *Session[H]) { s.ifsd = ifsd }
}

// WithRetries sets the per-block retry budget. Defaults to 3.
func WithRetries[H any](n int) Option[H] {
	return func(s *Session[H]) { s.retryBudget = n }
}

// WithClock overrides the clock parameters used to turn CWI/BWI into
// durations. Defaults to DefaultClock.
func WithClock[H any](c Clock) Option[H] {
	return func(s *Session[H]) { s.clock = c }
}

// WithLogger attaches a structured logger. Defaults to a discarding logger.
func WithLogger[H any](l *log.Logger) Option[H] {
	return func(s *Session[H]) { s.log = l }
}

// Session is the C5 facade: a builder plus atr()/transmit()/release().
// H is the caller's opaque interface-handle type.
type Session[H any] struct {
	transport Transport[H]
	sh        *shim[H]

	nad         byte
	ifsd        int
	retryBudget int
	clock       Clock
	log         *log.Logger

	atr *ATR

	// protocol state, per spec.md §3 "Session state"
	nSSelf   int
	nSPeer   int
	ifsc     int
	cwt, bwt time.Duration
	edcMode  EDCMode
}

// Build constructs a Session, invokes Init, performs an ATR, and (if ifsd
// differs from the default MaxINF) advertises IFSD via an S(IFS-req). On any failure the transport is released before returning.
func Build[H any](transport Transport[H], opts ...Option[H]) (*Session[H], error) {
	s := &Session[H]{
		transport:   transport,
		ifsd:        MaxINF,
		retryBudget: 3,
		clock:       DefaultClock,
		log:         log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}

	sh, err := newShim(transport)
	if err != nil {
		return nil, err
	}
	s.sh = sh

	if err := s.performATR(); err != nil {
		_ = sh.release()
		return nil, err
	}

	if s.ifsd != MaxINF {
		if err := s.negotiateIFSD(); err != nil {
			_ = sh.release()
			return nil, err
		}
	}

	s.log.Info("session built", "ifsc", s.ifsc, "edc", s.edcMode, "cwt", s.cwt, "bwt", s.bwt)
	return s, nil
}

// ATR returns the raw bytes of the most recent ATR: the one read by Build,
// or a later one read by a cold-reset recovery inside Transmit.
func (s *Session[H]) ATR() []byte {
	return s.atr.Raw
}

// Release closes the underlying transport. The session must not be used
// again afterwards.
func (s *Session[H]) Release() error {
	return s.sh.release()
}

func (s *Session[H]) performATR() error {
	atr, err := parseATR(s.sh, s.cwtOrDefault())
	if err != nil {
		return err
	}
	s.atr = atr
	s.ifsc = atr.IFSC
	s.edcMode = atr.EDC
	cwi, bwi := DefaultCWI, DefaultBWI
	if atr.HasCWBW {
		cwi, bwi = atr.CWI, atr.BWI
	}
	s.cwt = s.clock.CWT(cwi)
	s.bwt = s.clock.BWT(bwi)
	s.nSSelf = 0
	s.nSPeer = 1
	return nil
}

func (s *Session[H]) cwtOrDefault() time.Duration {
	if s.cwt > 0 {
		return s.cwt
	}
	return s.clock.CWT(DefaultCWI)
}

// negotiateIFSD sends a single S(IFS-req) advertising s.ifsd (the card must
// respect this as the max INF size it sends us) and requires the card to
// echo it back in a matching S(IFS-resp); a mismatched echo or a stray
// I/R-block is a protocol error, and a card-initiated S(ABORT-req) is
// acknowledged and surfaced the same way fsm.transmit() handles it. This
// does not touch s.ifsc: that's the card's own receive capacity, learned
// from the ATR, and bounds our outbound fragments independently of what we
// just advertised about ourselves.
func (s *Session[H]) negotiateIFSD() error {
	want := clampIFS(s.ifsd)
	req := SBlock(s.nad, SIFSReq, []byte{want})
	m := &fsm[H]{session: s}
	resp, err := m.exchange(req)
	if err != nil {
		return err
	}
	if resp.Class() == ClassS && resp.SType() == SAbortReq {
		_ = m.send(SBlock(s.nad, SAbortResp, nil))
		return &ProtocolError{Kind: KindAborted}
	}
	if resp.Class() != ClassS || resp.SType() != SIFSResp || len(resp.INF) != 1 || resp.INF[0] != want {
		return &ProtocolError{Kind: KindUnexpectedBlock}
	}
	return nil
}

func clampIFS(n int) byte {
	if n > MaxINF {
		n = MaxINF
	}
	if n < 1 {
		n = 1
	}
	return byte(n)
}

// Transmit sends a C-APDU and returns the assembled R-APDU written into
// rapdu. capdu is fragmented into I-blocks of at most ifsc bytes; the
// response (possibly chained) is reassembled into rapdu.
func (s *Session[H]) Transmit(capdu []byte, rapdu []byte) ([]byte, error) {
	f := &fsm[H]{session: s}
	return f.transmit(capdu, rapdu)
}
