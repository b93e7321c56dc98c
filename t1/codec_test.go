package t1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEncodeDecodeRoundTrip_LRC(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nad := rapid.Byte().Draw(t, "nad")
		ns := rapid.IntRange(0, 1).Draw(t, "ns")
		more := rapid.Bool().Draw(t, "more")
		inf := rapid.SliceOfN(rapid.Byte(), 0, MaxINF).Draw(t, "inf")

		b := IBlock(nad, ns, more, inf)
		enc, err := Encode(b, EDCLRC)
		require.NoError(t, err)

		got, err := Decode(enc, EDCLRC)
		require.NoError(t, err)
		assert.Equal(t, b.NAD, got.NAD)
		assert.Equal(t, b.PCB, got.PCB)
		assert.Equal(t, b.INF, got.INF)
	})
}

func TestEncodeDecodeRoundTrip_CRC(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nad := rapid.Byte().Draw(t, "nad")
		nr := rapid.IntRange(0, 1).Draw(t, "nr")
		errCode := rapid.SampledFrom([]byte{RErrACK, RErrEDC, RErrOther}).Draw(t, "errcode")

		b := RBlock(nad, nr, errCode)
		enc, err := Encode(b, EDCCRC)
		require.NoError(t, err)

		got, err := Decode(enc, EDCCRC)
		require.NoError(t, err)
		assert.Equal(t, b.NAD, got.NAD)
		assert.Equal(t, b.PCB, got.PCB)
	})
}

func TestDecodeFlipBitCausesEDCError(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		inf := rapid.SliceOfN(rapid.Byte(), 1, 16).Draw(t, "inf")
		mode := rapid.SampledFrom([]EDCMode{EDCLRC, EDCCRC}).Draw(t, "mode")
		b := IBlock(0, 0, false, inf)
		enc, err := Encode(b, mode)
		require.NoError(t, err)

		bitPos := rapid.IntRange(0, len(enc)*8-1).Draw(t, "bit")
		corrupted := append([]byte(nil), enc...)
		corrupted[bitPos/8] ^= 1 << (bitPos % 8)

		// A flip inside the LEN byte changes the expected frame length, so
		// Decode reports ErrMalformed there; every other position gives ErrEDC.
		_, err = Decode(corrupted, mode)
		if bitPos/8 == 2 {
			assert.ErrorIs(t, err, ErrMalformed)
		} else {
			assert.ErrorIs(t, err, ErrEDC)
		}
	})
}

func TestDecodeMalformed(t *testing.T) {
	t.Run("LEN 255 is malformed", func(t *testing.T) {
		raw := []byte{0x00, 0x00, 0xFF}
		_, err := Decode(raw, EDCLRC)
		assert.ErrorIs(t, err, ErrMalformed)
	})
	t.Run("truncated buffer is malformed", func(t *testing.T) {
		raw := []byte{0x00, 0x00, 0x02, 0x01}
		_, err := Decode(raw, EDCLRC)
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestCRC16X25KnownVector(t *testing.T) {
	// "123456789" -> 0x906E per the standard CRC-16/X-25 check value.
	got := crc16X25([]byte("123456789"))
	assert.Equal(t, uint16(0x906E), got)
}
