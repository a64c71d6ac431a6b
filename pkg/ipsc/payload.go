package ipsc

import (
	"fmt"

	"github.com/jafo2128/dmrshark/pkg/coding"
	"github.com/jafo2128/dmrshark/pkg/dmr"
)

// Burst geometry inside the 34-byte payload: two 98-bit info halves
// around the 20-bit slot type PDU and the 48-bit sync / embedded
// signalling field. The last 8 payload bits are padding.
const (
	burstInfoFirstHalf  = 0
	burstSlotTypeFirst  = 98
	burstSyncStart      = 108
	burstSlotTypeSecond = 156
	burstInfoSecondHalf = 166

	// Voice bursts have no slot type PDU; the voice bits run up to the
	// sync field and continue right after it.
	burstVoiceSecondHalf = 156

	embLCSliceBits = 32
)

// Data type values of the slot type PDU.
const (
	dataTypePI               = 0x00
	dataTypeVoiceLCHeader    = 0x01
	dataTypeTerminatorWithLC = 0x02
	dataTypeCSBK             = 0x03
	dataTypeDataHeader       = 0x06
	dataTypeRate12Data       = 0x07
	dataTypeRate34Data       = 0x08
)

// constructDataBurst lays out a data-class burst: 196 info bits, the
// Golay protected slot type PDU and the data sync pattern.
func constructDataBurst(info []bool, dataType uint8) *Payload {
	var bits PayloadBits

	for i := 0; i < 98; i++ {
		bits[burstInfoFirstHalf+i] = info[i]
		bits[burstInfoSecondHalf+i] = info[98+i]
	}

	st := coding.Golay208Encode(dmr.DefaultColorCode<<4 | dataType&0x0f)
	for i := 0; i < 10; i++ {
		bits[burstSlotTypeFirst+i] = st&(1<<uint(19-i)) != 0
		bits[burstSlotTypeSecond+i] = st&(1<<uint(9-i)) != 0
	}

	sync := dmr.SyncBits(dmr.SyncPatternBSData)
	for i, b := range sync {
		bits[burstSyncStart+i] = b
	}

	p := &Payload{}
	p.packFromBits(&bits)
	return p
}

// ConstructPayloadVoiceLCHeader builds the payload announcing a voice
// session: the full LC with its masked RS (12,9) checksum, BPTC
// (196,96) encoded.
func ConstructPayloadVoiceLCHeader(callType dmr.CallType, dstID, srcID dmr.ID) *Payload {
	cw := dmr.NewLC(callType, dstID, srcID).VoiceLCHeaderCodeword()
	return constructDataBurst(coding.BPTC19696Encode(coding.BytesToBits(cw[:])), dataTypeVoiceLCHeader)
}

// ConstructPayloadTerminatorWithLC builds the voice session terminator
// payload.
func ConstructPayloadTerminatorWithLC(callType dmr.CallType, dstID, srcID dmr.ID) *Payload {
	cw := dmr.NewLC(callType, dstID, srcID).TerminatorWithLCCodeword()
	return constructDataBurst(coding.BPTC19696Encode(coding.BytesToBits(cw[:])), dataTypeTerminatorWithLC)
}

// ConstructPayloadCSBK builds a CSBK payload.
func ConstructPayloadCSBK(csbk *dmr.CSBK) *Payload {
	b := csbk.Bytes()
	return constructDataBurst(coding.BPTC19696Encode(coding.BytesToBits(b[:])), dataTypeCSBK)
}

// ConstructPayloadDataHeader builds a short data defined header
// payload.
func ConstructPayloadDataHeader(header *dmr.DataHeader) *Payload {
	b := header.Bytes()
	return constructDataBurst(coding.BPTC19696Encode(coding.BytesToBits(b[:])), dataTypeDataHeader)
}

// ConstructPayloadDataBlockRate34 builds a rate 3/4 data block payload.
// The block CRC must already be computed.
func ConstructPayloadDataBlockRate34(block *dmr.DataBlock) *Payload {
	bits := block.Bits()
	return constructDataBurst(coding.Trellis34Encode(bits[:]), dataTypeRate34Data)
}

// ConstructPayloadVoiceFrame builds one voice burst payload. Frame A
// carries the voice sync; frames B-E carry a 32-bit slice of the
// embedded signalling LC storage framed by the EMB halves; frame F
// carries a null embedded message.
//
// The storage is addressed by frame letter, 32 bits per frame, so the
// slices come out right regardless of which frame the rotation starts
// on.
func ConstructPayloadVoiceFrame(st SlotType, voiceBits *dmr.VoiceBits, embStorage *coding.VBPTC1611) (*Payload, error) {
	frame := st.VoiceFrameIndex()
	if frame < 0 {
		return nil, fmt.Errorf("slot type %s is not a voice frame", st)
	}

	var bits PayloadBits
	for i := 0; i < 108; i++ {
		bits[i] = voiceBits[i]
		bits[burstVoiceSecondHalf+i] = voiceBits[108+i]
	}

	if st == SlotTypeVoiceDataA {
		sync := dmr.SyncBits(dmr.SyncPatternBSVoice)
		for i, b := range sync {
			bits[burstSyncStart+i] = b
		}
	} else {
		emb := dmr.EMBBits(dmr.DefaultColorCode, false, dmr.LCSSForVoiceFrame(frame))
		for i := 0; i < 8; i++ {
			bits[burstSyncStart+i] = emb[i]
			bits[burstSyncStart+40+i] = emb[8+i]
		}

		if st != SlotTypeVoiceDataF && embStorage != nil {
			slice := embStorage.GetBits((frame-1)*embLCSliceBits, embLCSliceBits)
			for i, b := range slice {
				bits[burstSyncStart+8+i] = b
			}
		}
	}

	p := &Payload{}
	p.packFromBits(&bits)
	return p, nil
}

// ExtractVoiceBits pulls the 216 voice bits out of a parsed voice
// burst.
func ExtractVoiceBits(bits *PayloadBits) *dmr.VoiceBits {
	var vb dmr.VoiceBits
	for i := 0; i < 108; i++ {
		vb[i] = bits[i]
		vb[108+i] = bits[burstVoiceSecondHalf+i]
	}
	return &vb
}

// ExtractEmbLCSlice pulls the 32 embedded signalling bits out of a
// parsed voice burst B-E.
func ExtractEmbLCSlice(bits *PayloadBits) []bool {
	out := make([]bool, embLCSliceBits)
	copy(out, bits[burstSyncStart+8:burstSyncStart+8+embLCSliceBits])
	return out
}
