package t1

import "fmt"

// ProtocolKind enumerates the protocol-level failure classes distinct from
// transport/timeout/buffer failures.
type ProtocolKind int

const (
	KindEdcError ProtocolKind = iota
	KindMalformed
	KindUnexpectedBlock
	KindResynced
	KindAborted
)

func (k ProtocolKind) String() string {
	switch k {
	case KindEdcError:
		return "edc_error"
	case KindMalformed:
		return "malformed"
	case KindUnexpectedBlock:
		return "unexpected_block"
	case KindResynced:
		return "resynced"
	case KindAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// ProtocolError reports a protocol-level condition surfaced to the caller.
// Kind == KindResynced means the session recovered via S(RESYNCH) and the
// caller may retry transmit(); every other kind is terminal for this call.
type ProtocolError struct {
	Kind ProtocolKind
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("t1: protocol error: %s", e.Kind)
}

// ErrTimeout is returned when BWT/CWT elapses before the expected bytes arrive.
type ErrTimeout struct{ During string }

func (e *ErrTimeout) Error() string { return fmt.Sprintf("t1: timeout (%s)", e.During) }

// ErrBufferTooSmall is returned when the assembled R-APDU would overflow the
// caller-supplied buffer. The session remains valid.
type ErrBufferTooSmall struct {
	Need, Have int
}

func (e *ErrBufferTooSmall) Error() string {
	return fmt.Sprintf("t1: rapdu buffer too small: need %d, have %d", e.Need, e.Have)
}

// ErrCardMute is returned once the resync escalation ladder is exhausted.
// The session should be considered dead until re-initialised.
var ErrCardMute = fmt.Errorf("t1: card mute, recovery exhausted")

// ErrTransport wraps a failure returned by a caller-supplied callback.
type ErrTransport struct {
	Op  string
	Err error
}

func (e *ErrTransport) Error() string { return fmt.Sprintf("t1: transport %s: %v", e.Op, e.Err) }
func (e *ErrTransport) Unwrap() error { return e.Err }

// AtrSub identifies which stage of ATR parsing failed.
type AtrSub int

const (
	AtrBadTS AtrSub = iota
	AtrBadTCK
	AtrTruncated
)

func (s AtrSub) String() string {
	switch s {
	case AtrBadTS:
		return "bad_ts"
	case AtrBadTCK:
		return "bad_tck"
	case AtrTruncated:
		return "truncated"
	default:
		return "unknown"
	}
}

// ErrAtrInvalid is returned by Build when the ATR byte stream cannot be
// parsed.
type ErrAtrInvalid struct {
	Sub AtrSub
}

func (e *ErrAtrInvalid) Error() string { return fmt.Sprintf("t1: invalid atr: %s", e.Sub) }
