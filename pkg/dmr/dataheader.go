package dmr

import (
	"github.com/jafo2128/dmrshark/pkg/coding"
)

// Data packet formats.
const (
	DPFUDT              = 0x00
	DPFResponse         = 0x01
	DPFUnconfirmed      = 0x02
	DPFConfirmed        = 0x03
	DPFShortDataDefined = 0x0d
	DPFShortDataRaw     = 0x0e
)

// Service access points.
const (
	SAPUDT       = 0x00
	SAPIPPacket  = 0x04
	SAPARP       = 0x05
	SAPShortData = 0x0a
)

// Defined data formats.
const (
	DDFormatBinary  = 0x00
	DDFormatBCD     = 0x01
	DDFormat7Bit    = 0x02
	DDFormat8BitISO = 0x03
	DDFormatUTF8    = 0x04
	DDFormatUTF16LE = 0x07
)

const dataHeaderCRCMask = 0xcccc

// DataHeader is a short data defined header as sent ahead of SMS data
// blocks.
type DataHeader struct {
	DstIsGroup        bool
	ResponseRequested bool
	Format            uint8
	SAP               uint8
	DstLLID           ID
	SrcLLID           ID
	AppendedBlocks    uint8
	DDFormat          uint8
	Resync            bool
	FullMessage       bool
	BitPadding        uint8
}

// Bytes returns the 96-bit header PDU: 10 payload octets followed by
// the masked CRC-CCITT.
func (h *DataHeader) Bytes() [12]byte {
	var b [12]byte

	b[0] = h.Format & 0x0f
	if h.DstIsGroup {
		b[0] |= 0x80
	}
	if h.ResponseRequested {
		b[0] |= 0x40
	}
	b[0] |= (h.AppendedBlocks >> 4 & 0x03) << 4
	b[1] = h.SAP<<4 | h.AppendedBlocks&0x0f

	b[2] = byte(h.DstLLID >> 16)
	b[3] = byte(h.DstLLID >> 8)
	b[4] = byte(h.DstLLID)
	b[5] = byte(h.SrcLLID >> 16)
	b[6] = byte(h.SrcLLID >> 8)
	b[7] = byte(h.SrcLLID)

	b[8] = h.DDFormat << 2
	if h.Resync {
		b[8] |= 0x02
	}
	if h.FullMessage {
		b[8] |= 0x01
	}
	b[9] = h.BitPadding

	var crc uint16
	for _, by := range b[:10] {
		crc = coding.CRC16Update(crc, by)
	}
	crc = coding.CRC16Finish(crc) ^ dataHeaderCRCMask
	b[10] = byte(crc >> 8)
	b[11] = byte(crc)
	return b
}

// ParseDataHeader extracts a data header from 12 PDU octets, verifying
// the CRC.
func ParseDataHeader(b []byte) (*DataHeader, bool) {
	if len(b) < 12 {
		return nil, false
	}

	var crc uint16
	for _, by := range b[:10] {
		crc = coding.CRC16Update(crc, by)
	}
	crc = coding.CRC16Finish(crc) ^ dataHeaderCRCMask
	if byte(crc>>8) != b[10] || byte(crc) != b[11] {
		return nil, false
	}

	return &DataHeader{
		DstIsGroup:        b[0]&0x80 != 0,
		ResponseRequested: b[0]&0x40 != 0,
		Format:            b[0] & 0x0f,
		SAP:               b[1] >> 4,
		AppendedBlocks:    (b[0]>>4&0x03)<<4 | b[1]&0x0f,
		DstLLID:           ID(b[2])<<16 | ID(b[3])<<8 | ID(b[4]),
		SrcLLID:           ID(b[5])<<16 | ID(b[6])<<8 | ID(b[7]),
		DDFormat:          b[8] >> 2,
		Resync:            b[8]&0x02 != 0,
		FullMessage:       b[8]&0x01 != 0,
		BitPadding:        b[9],
	}, true
}
