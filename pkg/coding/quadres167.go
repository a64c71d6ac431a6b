package coding

// Quadratic residue (16,7,6) code protecting the EMB field of voice
// bursts. Each generator row gives the 9 parity bits contributed by one
// of the 7 data bits.
var quadres167Matrix = [7]uint16{
	0x0134,
	0x009a,
	0x004d,
	0x01a2,
	0x00d1,
	0x01e4,
	0x00f2,
}

// Quadres167Parity computes the 9 parity bits for 7 data bits (passed
// in the low bits of data, MSB first in bit 6).
func Quadres167Parity(data uint8) uint16 {
	var parity uint16
	for i := 0; i < 7; i++ {
		if data&(0x40>>uint(i)) != 0 {
			parity ^= quadres167Matrix[i]
		}
	}
	return parity & 0x01ff
}

// Quadres167Encode returns the 16-bit codeword: 7 data bits followed by
// 9 parity bits.
func Quadres167Encode(data uint8) uint16 {
	return uint16(data&0x7f)<<9 | Quadres167Parity(data)
}
