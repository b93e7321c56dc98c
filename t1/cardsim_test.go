package t1

import (
	"sync"
	"time"
)

// fakeCard is an in-process stand-in for a real card: every block the host
// writes is decoded and handed to a scripted reaction function, which
// queues whatever bytes (if any) the "card" sends back. A script that
// queues nothing simulates a mute/unresponsive card for timeout tests.
type fakeCard struct {
	mu      sync.Mutex
	outbuf  []byte
	writes  [][]byte
	resets  int
	react   func(c *fakeCard, written []byte)
	edcMode EDCMode
}

func newFakeCard(edcMode EDCMode, react func(c *fakeCard, written []byte)) *fakeCard {
	return &fakeCard{react: react, edcMode: edcMode}
}

func (c *fakeCard) queue(b Block) {
	enc, err := Encode(b, c.edcMode)
	if err != nil {
		panic(err)
	}
	c.mu.Lock()
	c.outbuf = append(c.outbuf, enc...)
	c.mu.Unlock()
}

func (c *fakeCard) queueRaw(b []byte) {
	c.mu.Lock()
	c.outbuf = append(c.outbuf, b...)
	c.mu.Unlock()
}

func (c *fakeCard) transport() Transport[*fakeCard] {
	return Transport[*fakeCard]{
		Init:    func() (*fakeCard, error) { return c, nil },
		Release: func(*fakeCard) error { return nil },
		Reset: func(*fakeCard) error {
			c.mu.Lock()
			c.resets++
			c.mu.Unlock()
			return nil
		},
		Read: func(_ *fakeCard, buf []byte) (int, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if len(c.outbuf) == 0 {
				return 0, nil
			}
			n := copy(buf, c.outbuf)
			c.outbuf = c.outbuf[n:]
			return n, nil
		},
		Write: func(_ *fakeCard, buf []byte) (int, error) {
			cp := append([]byte(nil), buf...)
			c.mu.Lock()
			c.writes = append(c.writes, cp)
			c.mu.Unlock()
			if c.react != nil {
				c.react(c, cp)
			}
			return len(buf), nil
		},
		Sleep: func(time.Duration) {},
	}
}

// lastWrite returns the most recently written raw block bytes.
func (c *fakeCard) lastWrite() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.writes) == 0 {
		return nil
	}
	return c.writes[len(c.writes)-1]
}

func (c *fakeCard) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}
