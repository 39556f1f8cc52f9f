package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCRC16(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
		crc  uint16
	}{
		{"empty", nil, 0xFFFF},
		{"check string", []byte("123456789"), 0x6F91},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.crc, CRC16(tc.data))
		})
	}
}

func TestCRC16DetectsSingleBitFlips(t *testing.T) {
	data := []byte{0x0B, 0x13, 0x05, 0x01, 0x50, 0x02, 0xAA, 0xBB}
	want := CRC16(data)

	for i := range data {
		for bit := 0; bit < 8; bit++ {
			flipped := append([]byte(nil), data...)
			flipped[i] ^= 1 << bit
			require.NotEqual(t, want, CRC16(flipped), "byte %d bit %d", i, bit)
		}
	}
}
