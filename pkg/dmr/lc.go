package dmr

import (
	"github.com/jafo2128/dmrshark/pkg/coding"
)

// LC is the 72-bit full link control carried by voice LC header and
// terminator bursts, and fragmented across voice frames B-E as embedded
// signalling.
type LC struct {
	FLCO  uint8
	DstID ID
	SrcID ID
}

// NewLC builds an LC for the given call tuple.
func NewLC(callType CallType, dstID, srcID ID) LC {
	flco := uint8(FLCOUnitToUnit)
	if callType == CallTypeGroup {
		flco = FLCOGroup
	}
	return LC{FLCO: flco, DstID: dstID, SrcID: srcID}
}

// CallType maps the FLCO back to a call type.
func (lc LC) CallType() CallType {
	if lc.FLCO == FLCOGroup {
		return CallTypeGroup
	}
	return CallTypePrivate
}

// Bytes returns the 9 LC octets: FLCO, feature set ID, service options,
// then the two 24-bit addresses.
func (lc LC) Bytes() [9]byte {
	var b [9]byte
	b[0] = lc.FLCO & 0x3f
	b[3] = byte(lc.DstID >> 16)
	b[4] = byte(lc.DstID >> 8)
	b[5] = byte(lc.DstID)
	b[6] = byte(lc.SrcID >> 16)
	b[7] = byte(lc.SrcID >> 8)
	b[8] = byte(lc.SrcID)
	return b
}

// ParseLC extracts an LC from 9 codeword octets.
func ParseLC(b []byte) LC {
	if len(b) < 9 {
		return LC{}
	}
	return LC{
		FLCO:  b[0] & 0x3f,
		DstID: ID(b[3])<<16 | ID(b[4])<<8 | ID(b[5]),
		SrcID: ID(b[6])<<16 | ID(b[7])<<8 | ID(b[8]),
	}
}

// CRC masks distinguishing the burst type carrying the full LC.
var (
	voiceLCHeaderCRCMask    = [3]byte{0x96, 0x96, 0x96}
	terminatorWithLCCRCMask = [3]byte{0x99, 0x99, 0x99}
)

func (lc LC) codeword(mask [3]byte) [12]byte {
	var cw [12]byte
	b := lc.Bytes()
	copy(cw[:9], b[:])

	parity := coding.RS129Checksum(cw[:9])
	for i := 0; i < 3; i++ {
		cw[9+i] = parity[i] ^ mask[i]
	}
	return cw
}

// VoiceLCHeaderCodeword returns the 96-bit codeword for a voice LC
// header burst: 9 LC octets plus the masked RS (12,9) checksum.
func (lc LC) VoiceLCHeaderCodeword() [12]byte {
	return lc.codeword(voiceLCHeaderCRCMask)
}

// TerminatorWithLCCodeword returns the 96-bit codeword for a terminator
// with LC burst.
func (lc LC) TerminatorWithLCCodeword() [12]byte {
	return lc.codeword(terminatorWithLCCRCMask)
}

// Positions of the 5 checksum bits inside the 77-bit embedded
// signalling sequence.
var embChecksumBitPositions = [5]int{32, 43, 54, 65, 76}

// EmbSignallingLCBits returns the interleaved 77-bit embedded
// signalling sequence: the 72 LC bits with the 5-bit checksum
// distributed over the fixed positions. This is what gets loaded into
// the variable length BPTC (16,11) storage.
func (lc LC) EmbSignallingLCBits() [77]bool {
	b := lc.Bytes()

	sum := 0
	for _, by := range b {
		sum += int(by)
	}
	checksum := uint8(sum % 31)

	var lcBits [72]bool
	for i, by := range b {
		for j := 0; j < 8; j++ {
			lcBits[i*8+j] = by&(0x80>>j) != 0
		}
	}

	var out [77]bool
	csIdx := 0
	lcIdx := 0
	for i := 0; i < 77; i++ {
		if csIdx < 5 && i == embChecksumBitPositions[csIdx] {
			out[i] = checksum&(0x10>>uint(csIdx)) != 0
			csIdx++
			continue
		}
		out[i] = lcBits[lcIdx]
		lcIdx++
	}
	return out
}

// ParseEmbSignallingLCBits inverts EmbSignallingLCBits. It returns
// false when the 5-bit checksum does not match.
func ParseEmbSignallingLCBits(bits []bool) (LC, bool) {
	if len(bits) < 77 {
		return LC{}, false
	}

	var lcBits [72]bool
	var checksum uint8
	csIdx := 0
	lcIdx := 0
	for i := 0; i < 77; i++ {
		if csIdx < 5 && i == embChecksumBitPositions[csIdx] {
			if bits[i] {
				checksum |= 0x10 >> uint(csIdx)
			}
			csIdx++
			continue
		}
		lcBits[lcIdx] = bits[i]
		lcIdx++
	}

	var b [9]byte
	for i := range b {
		for j := 0; j < 8; j++ {
			if lcBits[i*8+j] {
				b[i] |= 0x80 >> j
			}
		}
	}

	sum := 0
	for _, by := range b {
		sum += int(by)
	}
	if uint8(sum%31) != checksum {
		return LC{}, false
	}
	return ParseLC(b[:]), true
}
