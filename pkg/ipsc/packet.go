package ipsc

import (
	"fmt"

	"github.com/jafo2128/dmrshark/pkg/dmr"
)

// UDPPort is the IPSC signalling port. Both endpoints of a link send
// from and to it.
const UDPPort = 62006

// SlotType identifies the burst type carried by an IPSC datagram.
type SlotType uint16

const (
	SlotTypeVoiceLCHeader    SlotType = 0x1111
	SlotTypeTerminatorWithLC SlotType = 0x2222
	SlotTypeCSBK             SlotType = 0x3333
	SlotTypeDataHeader       SlotType = 0x4444
	SlotTypeRate12Data       SlotType = 0x5555
	SlotTypeRate34Data       SlotType = 0x6666
	SlotTypeVoiceDataA       SlotType = 0xbbbb
	SlotTypeVoiceDataB       SlotType = 0xcccc
	SlotTypeVoiceDataC       SlotType = 0x7777
	SlotTypeVoiceDataD       SlotType = 0x8888
	SlotTypeVoiceDataE       SlotType = 0x9999
	SlotTypeVoiceDataF       SlotType = 0xaaaa
)

func (st SlotType) String() string {
	switch st {
	case SlotTypeVoiceLCHeader:
		return "voice lc header"
	case SlotTypeTerminatorWithLC:
		return "terminator with lc"
	case SlotTypeCSBK:
		return "csbk"
	case SlotTypeDataHeader:
		return "data header"
	case SlotTypeRate12Data:
		return "rate 1/2 data"
	case SlotTypeRate34Data:
		return "rate 3/4 data"
	case SlotTypeVoiceDataA:
		return "voice data a"
	case SlotTypeVoiceDataB:
		return "voice data b"
	case SlotTypeVoiceDataC:
		return "voice data c"
	case SlotTypeVoiceDataD:
		return "voice data d"
	case SlotTypeVoiceDataE:
		return "voice data e"
	case SlotTypeVoiceDataF:
		return "voice data f"
	default:
		return "unknown"
	}
}

// Valid reports whether the slot type is one of the twelve defined
// values.
func (st SlotType) Valid() bool {
	switch st {
	case SlotTypeVoiceLCHeader, SlotTypeTerminatorWithLC, SlotTypeCSBK,
		SlotTypeDataHeader, SlotTypeRate12Data, SlotTypeRate34Data,
		SlotTypeVoiceDataA, SlotTypeVoiceDataB, SlotTypeVoiceDataC,
		SlotTypeVoiceDataD, SlotTypeVoiceDataE, SlotTypeVoiceDataF:
		return true
	}
	return false
}

// IsVoiceFrame reports whether the slot type is one of the six voice
// burst types.
func (st SlotType) IsVoiceFrame() bool {
	return st.VoiceFrameIndex() >= 0
}

// VoiceFrameIndex maps voice burst types to their frame index
// (A=0 ... F=5). Non-voice types return -1.
func (st SlotType) VoiceFrameIndex() int {
	switch st {
	case SlotTypeVoiceDataA:
		return 0
	case SlotTypeVoiceDataB:
		return 1
	case SlotTypeVoiceDataC:
		return 2
	case SlotTypeVoiceDataD:
		return 3
	case SlotTypeVoiceDataE:
		return 4
	case SlotTypeVoiceDataF:
		return 5
	default:
		return -1
	}
}

// SlotTypeForVoiceFrameNum is the inverse of VoiceFrameIndex.
func SlotTypeForVoiceFrameNum(num int) SlotType {
	switch num {
	case 0:
		return SlotTypeVoiceDataA
	case 1:
		return SlotTypeVoiceDataB
	case 2:
		return SlotTypeVoiceDataC
	case 3:
		return SlotTypeVoiceDataD
	case 4:
		return SlotTypeVoiceDataE
	case 5:
		return SlotTypeVoiceDataF
	default:
		return 0
	}
}

// Fixed layout of a raw IPSC datagram.
const (
	RawPacketLength = 72

	rawOffsetUDPSourcePort = 0
	rawOffsetSeq           = 4
	rawOffsetPacketType    = 8
	rawOffsetTimeslot      = 16
	rawOffsetSlotType      = 18
	rawOffsetDelimiter     = 20
	rawOffsetFrameType     = 22
	rawOffsetPayload       = 26
	rawOffsetCallType      = 62
	rawOffsetDstID         = 64
	rawOffsetSrcID         = 68
)

// Timeslot markers and the fixed delimiter. All palindromic, so byte
// order never shows.
const (
	timeslotMarkerTS1 = 0x1111
	timeslotMarkerTS2 = 0x2222
	rawDelimiter      = 0x1111
)

// PayloadLength is the burst payload size carried by a datagram.
const PayloadLength = 34

// Payload is the 34-byte burst payload.
type Payload [PayloadLength]byte

// PayloadBits is the MSB-first bit expansion of a payload, used by the
// bit-level burst parsers.
type PayloadBits [PayloadLength * 8]bool

// Bits expands the payload.
func (p *Payload) Bits() *PayloadBits {
	var bits PayloadBits
	for i, b := range p {
		for j := 0; j < 8; j++ {
			bits[i*8+j] = b&(0x80>>j) != 0
		}
	}
	return &bits
}

// packFromBits fills the payload from its bit expansion.
func (p *Payload) packFromBits(bits *PayloadBits) {
	for i := range p {
		p[i] = 0
	}
	for i, bit := range bits {
		if bit {
			p[i/8] |= 0x80 >> (i % 8)
		}
	}
}

// Packet is the decoded view of an IPSC datagram.
type Packet struct {
	Seq         uint8
	Timeslot    dmr.Timeslot
	SlotType    SlotType
	CallType    dmr.CallType
	DstID       dmr.ID
	SrcID       dmr.ID
	Payload     Payload
	PayloadBits PayloadBits
	FromUs      bool
}

// ParsePacket decodes the UDP payload of an IPSC datagram. Rejections
// are returned as errors and must be dropped silently by the caller;
// the port sees arbitrary non-IPSC traffic.
//
// A packet sent by us is still decoded but flagged, so the registry can
// suppress side effects.
func ParsePacket(data []byte, fromUs bool) (*Packet, error) {
	if len(data) < RawPacketLength {
		return nil, fmt.Errorf("short datagram: %d bytes", len(data))
	}

	p := &Packet{
		Seq:    data[rawOffsetSeq],
		FromUs: fromUs,
	}

	switch ts := uint16(data[rawOffsetTimeslot])<<8 | uint16(data[rawOffsetTimeslot+1]); ts {
	case timeslotMarkerTS1:
		p.Timeslot = dmr.TS1
	case timeslotMarkerTS2:
		p.Timeslot = dmr.TS2
	default:
		return nil, fmt.Errorf("invalid timeslot marker 0x%04x", ts)
	}

	p.SlotType = SlotType(uint16(data[rawOffsetSlotType])<<8 | uint16(data[rawOffsetSlotType+1]))
	if !p.SlotType.Valid() {
		return nil, fmt.Errorf("unknown slot type 0x%04x", uint16(p.SlotType))
	}

	if delim := uint16(data[rawOffsetDelimiter])<<8 | uint16(data[rawOffsetDelimiter+1]); delim != rawDelimiter {
		return nil, fmt.Errorf("invalid delimiter 0x%04x", delim)
	}

	switch ct := data[rawOffsetCallType]; ct {
	case byte(dmr.CallTypePrivate), byte(dmr.CallTypeGroup):
		p.CallType = dmr.CallType(ct)
	default:
		return nil, fmt.Errorf("invalid call type 0x%02x", data[rawOffsetCallType])
	}

	p.DstID = dmr.ID(data[rawOffsetDstID])<<16 | dmr.ID(data[rawOffsetDstID+1])<<8 | dmr.ID(data[rawOffsetDstID+2])
	p.SrcID = dmr.ID(data[rawOffsetSrcID])<<16 | dmr.ID(data[rawOffsetSrcID+1])<<8 | dmr.ID(data[rawOffsetSrcID+2])

	copy(p.Payload[:], data[rawOffsetPayload:rawOffsetPayload+PayloadLength])
	p.PayloadBits = *p.Payload.Bits()

	return p, nil
}

// packetTypeFor returns the packet type byte written into constructed
// datagrams. The values are opaque on the wire; voice and data bursts
// are marked differently, matching captured reference traffic.
func packetTypeFor(st SlotType) byte {
	if st.IsVoiceFrame() {
		return 0x01
	}
	return 0x02
}

// frameTypeFor returns the frame type word for constructed datagrams:
// bursts carrying a data sync are distinguished from voice bursts.
func frameTypeFor(st SlotType) uint16 {
	if st.IsVoiceFrame() {
		return 0x0000
	}
	return 0x1111
}

// ConstructRaw builds the 72-byte on-wire form of an IPSC datagram.
func ConstructRaw(seq uint8, ts dmr.Timeslot, st SlotType, ct dmr.CallType, dstID, srcID dmr.ID, payload *Payload) []byte {
	raw := make([]byte, RawPacketLength)

	udpPort := uint16(UDPPort)
	raw[rawOffsetUDPSourcePort] = byte(udpPort >> 8)
	raw[rawOffsetUDPSourcePort+1] = byte(udpPort)
	raw[rawOffsetSeq] = seq
	raw[rawOffsetPacketType] = packetTypeFor(st)

	marker := uint16(timeslotMarkerTS1)
	if ts == dmr.TS2 {
		marker = timeslotMarkerTS2
	}
	raw[rawOffsetTimeslot] = byte(marker >> 8)
	raw[rawOffsetTimeslot+1] = byte(marker)

	raw[rawOffsetSlotType] = byte(uint16(st) >> 8)
	raw[rawOffsetSlotType+1] = byte(uint16(st))

	delimiter := uint16(rawDelimiter)
	raw[rawOffsetDelimiter] = byte(delimiter >> 8)
	raw[rawOffsetDelimiter+1] = byte(delimiter)

	ft := frameTypeFor(st)
	raw[rawOffsetFrameType] = byte(ft >> 8)
	raw[rawOffsetFrameType+1] = byte(ft)

	if payload != nil {
		copy(raw[rawOffsetPayload:], payload[:])
	}

	raw[rawOffsetCallType] = byte(ct)

	raw[rawOffsetDstID] = byte(dstID >> 16)
	raw[rawOffsetDstID+1] = byte(dstID >> 8)
	raw[rawOffsetDstID+2] = byte(dstID)
	raw[rawOffsetSrcID] = byte(srcID >> 16)
	raw[rawOffsetSrcID+1] = byte(srcID >> 8)
	raw[rawOffsetSrcID+2] = byte(srcID)

	return raw
}
