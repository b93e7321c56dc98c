package t1

import (
	"errors"
	"time"
)

// fsm drives one transmit() (or one IFSD-negotiation) call's worth of block
// exchange over an already-built Session. It holds no state across calls:
// everything that must persist between transmit() invocations lives on
// Session itself (n_s_self, n_s_peer, ifsc, ...).
type fsm[H any] struct {
	session *Session[H]
}

// send encodes and writes a single block.
func (f *fsm[H]) send(b Block) error {
	s := f.session
	enc, err := Encode(b, s.edcMode)
	if err != nil {
		return err
	}
	s.log.Debug("tx", "block", b.String())
	return s.sh.writeAll(enc)
}

// receive reads one full block, applying bwt before the first character and
// cwt between every subsequent character, per spec.md §4.2.
func (f *fsm[H]) receive(bwt time.Duration) (Block, error) {
	s := f.session

	header := make([]byte, 3)
	if err := s.sh.readExact(header[0:1], bwt, "bwt"); err != nil {
		return Block{}, err
	}
	for i := 1; i < 3; i++ {
		if err := s.sh.readExact(header[i:i+1], s.cwt, "cwt"); err != nil {
			return Block{}, err
		}
	}

	length := header[2]
	bodyLen := int(length) + s.edcMode.len()
	if length == 255 {
		// still bounded: edcMode.len() alone, no INF to drain.
		bodyLen = s.edcMode.len()
	}
	body := make([]byte, bodyLen)
	for i := range body {
		if err := s.sh.readExact(body[i:i+1], s.cwt, "cwt"); err != nil {
			return Block{}, err
		}
	}

	if length == 255 {
		return Block{}, ErrMalformed
	}

	blk, err := Decode(append(header, body...), s.edcMode)
	if err != nil {
		return Block{}, err
	}
	s.log.Debug("rx", "block", blk.String())
	return blk, nil
}

// escalateAction is what the resync ladder decided to do after a rung ran.
type escalateAction int

const (
	escalateRetryBlock escalateAction = iota // rung handled itself, caller should send the returned block and keep looping
	escalateGiveUp
)

// escalate runs the next unused rung of the recovery ladder (retry already
// exhausted by the caller). Each rung fires at most once per transmit call,
// tracked via resyncTried/resetTried.
func (f *fsm[H]) escalate(resyncTried, resetTried *bool, resend Block) (escalateAction, Block, error) {
	s := f.session
	if !*resyncTried {
		*resyncTried = true
		s.log.Warn("escalating: requesting resynch")
		// The resend is left to the caller (same as every other rung) so
		// there is exactly one send per escalation step, not two.
		return escalateRetryBlock, SBlock(s.nad, SResynchReq, nil), nil
	}
	if !*resetTried {
		*resetTried = true
		s.log.Warn("escalating: cold reset")
		if err := s.performATR(); err != nil {
			return escalateGiveUp, Block{}, ErrCardMute
		}
		return escalateRetryBlock, resend, nil
	}
	return escalateGiveUp, Block{}, ErrCardMute
}

func rErrForReceiveFailure(err error) byte {
	if errors.Is(err, ErrEDC) {
		return RErrEDC
	}
	return RErrOther
}

// Transmit is the C4 public contract: split capdu into ifsc-sized I-block
// fragments, drive the half-duplex exchange, and assemble the (possibly
// chained) R-APDU into rapdu.
func (f *fsm[H]) transmit(capdu []byte, rapdu []byte) ([]byte, error) {
	s := f.session
	chunks := splitChunks(capdu, s.ifsc)

	idx := 0
	rapduLen := 0
	retries := s.retryBudget
	resyncTried, resetTried := false, false
	timeout := s.bwt
	ackedOwnSend := false

	buildFragment := func() Block {
		more := idx < len(chunks)-1
		return IBlock(s.nad, s.nSSelf, more, chunks[idx])
	}

	lastSent := buildFragment()
	// pendingAPDU is the last genuine fragment/ACK the host sent toward
	// actually completing this transmit - as opposed to lastSent, which
	// during escalation may briefly hold S-block ladder traffic
	// (S(RESYNCH-req), the odd read-timeout R(err) probe). Rung 3 of the
	// ladder resends pendingAPDU, never the ladder's own S-block.
	pendingAPDU := lastSent
	if err := f.send(lastSent); err != nil {
		return nil, err
	}

	giveUp := func() (escalateAction, Block, error) {
		resetBefore := resetTried
		act, blk, err := f.escalate(&resyncTried, &resetTried, pendingAPDU)
		if err != nil {
			return act, blk, err
		}
		if act == escalateRetryBlock {
			retries = s.retryBudget
			timeout = s.bwt
			if resetTried && !resetBefore {
				// The cold reset just succeeded: the card re-ATR'd and has
				// forgotten every fragment already sent or assembled, so the
				// chain restarts from scratch rather than resuming wherever
				// idx/rapduLen had gotten to. performATR() may also have
				// refreshed s.ifsc from the new ATR, so re-split capdu
				// against it rather than reusing the pre-reset chunking.
				chunks = splitChunks(capdu, s.ifsc)
				idx = 0
				rapduLen = 0
				ackedOwnSend = false
				lastSent = buildFragment()
				pendingAPDU = lastSent
			} else {
				lastSent = blk
			}
		}
		return act, blk, nil
	}

	// retryOrEscalate is the "wait timed out or reply was unusable" handler
	// shared by every branch below: resend lastSent if the budget allows,
	// otherwise hand off to the escalation ladder and, if it didn't give up,
	// resend whatever it decided on.
	retryOrEscalate := func() error {
		if retries <= 0 {
			act, _, escErr := giveUp()
			if escErr != nil {
				return escErr
			}
			if act == escalateGiveUp {
				return ErrCardMute
			}
			return f.send(lastSent)
		}
		retries--
		return f.send(lastSent)
	}

	for {
		resp, err := f.receive(timeout)
		timeout = s.bwt

		if err != nil {
			if _, ok := err.(*ErrTransport); ok {
				return nil, err
			}
			if retries <= 0 {
				if err := retryOrEscalate(); err != nil {
					return nil, err
				}
				continue
			}
			retries--
			errBlk := RBlock(s.nad, 1-s.nSPeer, rErrForReceiveFailure(err))
			if err := f.send(errBlk); err != nil {
				return nil, err
			}
			lastSent = errBlk
			continue
		}

		unexpected := false

		switch resp.Class() {
		case ClassI:
			expected := 1 - s.nSPeer
			// NS() is a single bit, so expected and s.nSPeer (its complement)
			// exhaust the possibilities: no default/unexpected case here.
			switch resp.NS() {
			case expected:
				s.nSPeer = resp.NS()
				if !ackedOwnSend {
					s.nSSelf = 1 - s.nSSelf
					ackedOwnSend = true
				}
				n, ferr := appendRapdu(rapdu, rapduLen, resp.INF)
				if ferr != nil {
					return nil, ferr
				}
				rapduLen = n
				if !resp.More() {
					return rapdu[:rapduLen], nil
				}
				ack := RBlock(s.nad, 1-resp.NS(), RErrACK)
				if err := f.send(ack); err != nil {
					return nil, err
				}
				lastSent = ack
				pendingAPDU = ack
				retries = s.retryBudget
			case s.nSPeer:
				if err := retryOrEscalate(); err != nil {
					return nil, err
				}
				continue
			}

		case ClassR:
			if resp.RErr() == RErrACK {
				switch resp.NR() {
				case 1 - s.nSSelf:
					s.nSSelf = 1 - s.nSSelf
					idx++
					if idx >= len(chunks) {
						unexpected = true
						break
					}
					lastSent = buildFragment()
					pendingAPDU = lastSent
					if err := f.send(lastSent); err != nil {
						return nil, err
					}
					retries = s.retryBudget
				case s.nSSelf:
					if err := retryOrEscalate(); err != nil {
						return nil, err
					}
					continue
				}
			} else {
				if err := retryOrEscalate(); err != nil {
					return nil, err
				}
				continue
			}

		case ClassS:
			switch resp.SType() {
			case SIFSReq:
				if len(resp.INF) == 1 && resp.INF[0] >= 1 {
					s.ifsc = int(resp.INF[0])
					reply := SBlock(s.nad, SIFSResp, resp.INF)
					if err := f.send(reply); err != nil {
						return nil, err
					}
					lastSent = reply
				} else {
					unexpected = true
				}
			case SWTXReq:
				if len(resp.INF) == 1 {
					mult := time.Duration(resp.INF[0])
					if mult < 1 {
						mult = 1
					}
					timeout = mult * s.bwt
					reply := SBlock(s.nad, SWTXResp, resp.INF)
					if err := f.send(reply); err != nil {
						return nil, err
					}
					lastSent = reply
				} else {
					unexpected = true
				}
			case SAbortReq:
				_ = f.send(SBlock(s.nad, SAbortResp, nil))
				return nil, &ProtocolError{Kind: KindAborted}
			case SResynchResp:
				s.nSSelf, s.nSPeer = 0, 1
				s.ifsc = 32
				return nil, &ProtocolError{Kind: KindResynced}
			default:
				unexpected = true
			}
		}

		if unexpected {
			if err := retryOrEscalate(); err != nil {
				return nil, err
			}
		}
	}
}

// exchange sends a single block and returns the first reply that isn't a
// retriable transport hiccup, applying the same bounded-retry budget as
// transmit but none of its chaining/assembly logic. Used for S(IFS-req)
// negotiation right after ATR.
func (f *fsm[H]) exchange(block Block) (Block, error) {
	s := f.session
	retries := s.retryBudget
	lastSent := block
	if err := f.send(lastSent); err != nil {
		return Block{}, err
	}
	for {
		resp, err := f.receive(s.bwt)
		if err != nil {
			if _, ok := err.(*ErrTransport); ok {
				return Block{}, err
			}
			if retries <= 0 {
				return Block{}, ErrCardMute
			}
			retries--
			errBlk := RBlock(s.nad, 1-s.nSPeer, rErrForReceiveFailure(err))
			if err := f.send(errBlk); err != nil {
				return Block{}, err
			}
			lastSent = errBlk
			continue
		}
		return resp, nil
	}
}

func splitChunks(capdu []byte, ifsc int) [][]byte {
	if ifsc <= 0 {
		ifsc = 1
	}
	if ifsc > MaxINF {
		ifsc = MaxINF
	}
	if len(capdu) == 0 {
		return [][]byte{{}}
	}
	var chunks [][]byte
	for len(capdu) > 0 {
		n := ifsc
		if n > len(capdu) {
			n = len(capdu)
		}
		chunks = append(chunks, capdu[:n])
		capdu = capdu[n:]
	}
	return chunks
}

func appendRapdu(buf []byte, curLen int, inf []byte) (int, error) {
	need := curLen + len(inf)
	if need > len(buf) {
		return 0, &ErrBufferTooSmall{Need: need, Have: len(buf)}
	}
	copy(buf[curLen:need], inf)
	return need, nil
}
