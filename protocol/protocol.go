// Package protocol implements the framed link between the I2C bridge firmware
// and its host: VLQ-encoded messages inside length-prefixed, CRC-protected,
// sequence-numbered frames.
package protocol

// Version is the bridge protocol version reported in the dictionary.
const Version = "l1hal-0.2.0"

// Frame layout: [len][0x10|seq][payload...][crc hi][crc lo][0x7E]
const (
	HeaderSize  = 2
	TrailerSize = 3
	MinFrameLen = HeaderSize + TrailerSize
	MaxFrameLen = 64

	// MaxPayload is the largest message block a single frame carries.
	MaxPayload = MaxFrameLen - MinFrameLen

	posLen = 0
	posSeq = 1

	SyncByte = 0x7E
	SeqDest  = 0x10
	SeqMask  = 0x0F
)

// nextSeq returns the sequence number following seq.
func nextSeq(seq uint8) uint8 {
	return (seq + 1) & SeqMask
}
