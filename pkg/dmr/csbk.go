package dmr

import (
	"github.com/jafo2128/dmrshark/pkg/coding"
)

// CSBK opcodes.
const (
	CSBKOPreamble = 0x3d
)

const csbkCRCMask = 0xa5a5

// CSBKPreamble is the payload of a preamble CSBK, sent ahead of data
// bursts so receiving radios wake up in time.
type CSBKPreamble struct {
	DataFollows    bool
	DstIsGroup     bool
	BlocksToFollow uint8
}

// CSBK is a single-block control signalling packet. Only the preamble
// variant is constructed on the outbound path.
type CSBK struct {
	LastBlock   bool
	ProtectFlag bool
	CSBKO       uint8
	FID         uint8
	DstID       ID
	SrcID       ID
	Preamble    CSBKPreamble
}

// Bytes returns the 96-bit CSBK PDU: 10 payload octets followed by the
// masked CRC-CCITT.
func (c *CSBK) Bytes() [12]byte {
	var b [12]byte

	b[0] = c.CSBKO & 0x3f
	if c.LastBlock {
		b[0] |= 0x80
	}
	if c.ProtectFlag {
		b[0] |= 0x40
	}
	b[1] = c.FID

	if c.CSBKO == CSBKOPreamble {
		if c.Preamble.DataFollows {
			b[2] |= 0x80
		}
		if c.Preamble.DstIsGroup {
			b[2] |= 0x40
		}
		b[3] = c.Preamble.BlocksToFollow
	}

	b[4] = byte(c.DstID >> 16)
	b[5] = byte(c.DstID >> 8)
	b[6] = byte(c.DstID)
	b[7] = byte(c.SrcID >> 16)
	b[8] = byte(c.SrcID >> 8)
	b[9] = byte(c.SrcID)

	var crc uint16
	for _, by := range b[:10] {
		crc = coding.CRC16Update(crc, by)
	}
	crc = coding.CRC16Finish(crc) ^ csbkCRCMask
	b[10] = byte(crc >> 8)
	b[11] = byte(crc)
	return b
}

// ParseCSBK extracts a CSBK from 12 PDU octets, verifying the CRC.
func ParseCSBK(b []byte) (*CSBK, bool) {
	if len(b) < 12 {
		return nil, false
	}

	var crc uint16
	for _, by := range b[:10] {
		crc = coding.CRC16Update(crc, by)
	}
	crc = coding.CRC16Finish(crc) ^ csbkCRCMask
	if byte(crc>>8) != b[10] || byte(crc) != b[11] {
		return nil, false
	}

	c := &CSBK{
		LastBlock:   b[0]&0x80 != 0,
		ProtectFlag: b[0]&0x40 != 0,
		CSBKO:       b[0] & 0x3f,
		FID:         b[1],
		DstID:       ID(b[4])<<16 | ID(b[5])<<8 | ID(b[6]),
		SrcID:       ID(b[7])<<16 | ID(b[8])<<8 | ID(b[9]),
	}
	if c.CSBKO == CSBKOPreamble {
		c.Preamble = CSBKPreamble{
			DataFollows:    b[2]&0x80 != 0,
			DstIsGroup:     b[2]&0x40 != 0,
			BlocksToFollow: b[3],
		}
	}
	return c, true
}
