package dmr

import (
	"github.com/jafo2128/dmrshark/pkg/coding"
)

// LCSS values of the EMB field, marking which fragment of the embedded
// signalling a voice frame carries.
const (
	LCSSSingleFragment = 0x00
	LCSSFirstFragment  = 0x01
	LCSSLastFragment   = 0x02
	LCSSContinuation   = 0x03
)

// DefaultColorCode is used for constructed bursts. The network side
// does not care, but radios log it.
const DefaultColorCode = 1

// EMBBits returns the 16-bit EMB field: color code, PI flag and LCSS,
// protected with the quadratic residue (16,7,6) code.
func EMBBits(colorCode uint8, pi bool, lcss uint8) [16]bool {
	data := colorCode<<3 | lcss&0x03
	if pi {
		data |= 0x04
	}

	cw := coding.Quadres167Encode(data)
	var bits [16]bool
	for i := 0; i < 16; i++ {
		bits[i] = cw&(0x8000>>uint(i)) != 0
	}
	return bits
}

// LCSSForVoiceFrame returns the LCSS marking for outbound voice frames
// B-F. Frame A carries the voice sync instead of an EMB field.
func LCSSForVoiceFrame(frameNum int) uint8 {
	switch frameNum {
	case 1:
		return LCSSFirstFragment
	case 2, 3:
		return LCSSContinuation
	case 4:
		return LCSSLastFragment
	default:
		return LCSSSingleFragment
	}
}
