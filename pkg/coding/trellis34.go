package coding

// Rate 3/4 trellis coder for DMR data bursts. 144 payload bits are
// grouped into 48 tribits, run through the 8-state trellis (plus one
// flushing point), mapped to 4-bit constellation points and dibit
// interleaved over the 196 info bits of the burst.

// trellisEncodeTable maps (state, tribit) to a constellation point. The
// previous tribit is the state.
var trellisEncodeTable = [64]uint8{
	0, 8, 4, 12, 2, 10, 6, 14,
	4, 12, 2, 10, 6, 14, 0, 8,
	1, 9, 5, 13, 3, 11, 7, 15,
	5, 13, 3, 11, 7, 15, 1, 9,
	3, 11, 7, 15, 1, 9, 5, 13,
	7, 15, 1, 9, 5, 13, 3, 11,
	2, 10, 6, 14, 0, 8, 4, 12,
	6, 14, 0, 8, 4, 12, 2, 10,
}

// trellisInterleaveTable gives the on-air position of each of the 98
// dibits.
var trellisInterleaveTable = [98]int{
	0, 1, 8, 9, 16, 17, 24, 25, 32, 33, 40, 41, 48, 49, 56, 57, 64, 65, 72, 73, 80, 81, 88, 89, 96, 97,
	2, 3, 10, 11, 18, 19, 26, 27, 34, 35, 42, 43, 50, 51, 58, 59, 66, 67, 74, 75, 82, 83, 90, 91,
	4, 5, 12, 13, 20, 21, 28, 29, 36, 37, 44, 45, 52, 53, 60, 61, 68, 69, 76, 77, 84, 85, 92, 93,
	6, 7, 14, 15, 22, 23, 30, 31, 38, 39, 46, 47, 54, 55, 62, 63, 70, 71, 78, 79, 86, 87, 94, 95,
}

// Trellis34Encode encodes 144 payload bits into the 196-bit info
// sequence of a rate 3/4 data burst.
func Trellis34Encode(data []bool) []bool {
	// Group into 48 tribits, MSB first.
	var tribits [48]uint8
	for i := 0; i < 48; i++ {
		var t uint8
		for j := 0; j < 3; j++ {
			t <<= 1
			if pos := i*3 + j; pos < len(data) && data[pos] {
				t |= 1
			}
		}
		tribits[i] = t
	}

	// Run the trellis; the 49th point flushes the final state.
	var points [49]uint8
	state := uint8(0)
	for i := 0; i < 48; i++ {
		points[i] = trellisEncodeTable[int(state)*8+int(tribits[i])]
		state = tribits[i]
	}
	points[48] = trellisEncodeTable[int(state)*8]

	// Points to dibits, then dibit interleave.
	var dibits [98]uint8
	for i, p := range points {
		dibits[i*2] = p >> 2 & 0x03
		dibits[i*2+1] = p & 0x03
	}

	var interleaved [98]uint8
	for i, d := range dibits {
		interleaved[trellisInterleaveTable[i]] = d
	}

	bits := make([]bool, 196)
	for i, d := range interleaved {
		bits[i*2] = d&0x02 != 0
		bits[i*2+1] = d&0x01 != 0
	}
	return bits
}

// Trellis34Decode inverts Trellis34Encode, recovering the 144 payload
// bits from a 196-bit info sequence. It returns false when a
// constellation point does not match any transition from the tracked
// state.
func Trellis34Decode(bits []bool) ([]bool, bool) {
	var interleaved [98]uint8
	for i := 0; i < 98; i++ {
		var d uint8
		if pos := i * 2; pos < len(bits) && bits[pos] {
			d |= 0x02
		}
		if pos := i*2 + 1; pos < len(bits) && bits[pos] {
			d |= 0x01
		}
		interleaved[i] = d
	}

	var dibits [98]uint8
	for i := range dibits {
		dibits[i] = interleaved[trellisInterleaveTable[i]]
	}

	var points [49]uint8
	for i := range points {
		points[i] = dibits[i*2]<<2 | dibits[i*2+1]
	}

	data := make([]bool, 144)
	state := uint8(0)
	for i := 0; i < 48; i++ {
		tribit := -1
		for j := 0; j < 8; j++ {
			if trellisEncodeTable[int(state)*8+j] == points[i] {
				tribit = j
				break
			}
		}
		if tribit < 0 {
			return nil, false
		}
		for j := 0; j < 3; j++ {
			data[i*3+j] = tribit&(0x04>>uint(j)) != 0
		}
		state = uint8(tribit)
	}
	return data, true
}
