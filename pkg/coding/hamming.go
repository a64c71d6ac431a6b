package coding

// Hamming codes used by the DMR FEC matrices. Parity equations follow
// ETSI TS 102 361-1 annex B.

// Hamming15113Parity computes the 4 parity bits of Hamming (15,11,3)
// over 11 data bits.
func Hamming15113Parity(d []bool) [4]bool {
	return [4]bool{
		d[0] != d[1] != d[2] != d[3] != d[5] != d[7] != d[8],
		d[1] != d[2] != d[3] != d[4] != d[6] != d[8] != d[9],
		d[2] != d[3] != d[4] != d[5] != d[7] != d[9] != d[10],
		d[0] != d[1] != d[2] != d[4] != d[6] != d[7] != d[10],
	}
}

// Hamming1393Parity computes the 4 parity bits of Hamming (13,9,3) over
// 9 data bits.
func Hamming1393Parity(d []bool) [4]bool {
	return [4]bool{
		d[0] != d[1] != d[3] != d[5] != d[6],
		d[0] != d[1] != d[2] != d[4] != d[6] != d[7],
		d[0] != d[1] != d[2] != d[3] != d[5] != d[7] != d[8],
		d[0] != d[2] != d[4] != d[5] != d[8],
	}
}

// Hamming16114Parity computes the 5 parity bits of Hamming (16,11,4)
// over 11 data bits. The last parity bit is the overall parity of the
// codeword, giving the code its distance of 4.
func Hamming16114Parity(d []bool) [5]bool {
	var p [5]bool
	p[0] = d[0] != d[1] != d[2] != d[3] != d[5] != d[7] != d[8]
	p[1] = d[1] != d[2] != d[3] != d[4] != d[6] != d[8] != d[9]
	p[2] = d[2] != d[3] != d[4] != d[5] != d[7] != d[9] != d[10]
	p[3] = d[0] != d[3] != d[4] != d[5] != d[6] != d[8] != d[10]

	overall := p[0] != p[1] != p[2] != p[3]
	for i := 0; i < 11; i++ {
		overall = overall != d[i]
	}
	p[4] = overall
	return p
}

// Hamming16114Check reports whether a 16-bit row carries consistent
// parity for its first 11 data bits.
func Hamming16114Check(row []bool) bool {
	p := Hamming16114Parity(row[:11])
	for i := 0; i < 5; i++ {
		if row[11+i] != p[i] {
			return false
		}
	}
	return true
}
