package dmr

import (
	"testing"

	"pgregory.net/rapid"
)

func TestVoiceBytesBitsRoundTrip(t *testing.T) {
	var vb VoiceBytes
	for i := range vb {
		vb[i] = byte(i * 7)
	}

	back := vb.Bits().Bytes()
	if *back != vb {
		t.Error("Voice bytes should survive the bit round trip")
	}
}

func TestNewLCCallTypes(t *testing.T) {
	lc := NewLC(CallTypeGroup, 2161005, 2161)
	if lc.FLCO != FLCOGroup {
		t.Errorf("Group call should use FLCO 0x%02x, got 0x%02x", FLCOGroup, lc.FLCO)
	}

	lc = NewLC(CallTypePrivate, 2161005, 2161)
	if lc.FLCO != FLCOUnitToUnit {
		t.Errorf("Private call should use FLCO 0x%02x, got 0x%02x", FLCOUnitToUnit, lc.FLCO)
	}
	if lc.CallType() != CallTypePrivate {
		t.Error("CallType should map FLCO back to private")
	}
}

func TestLCCodewordRoundTrip(t *testing.T) {
	lc := NewLC(CallTypeGroup, 2161005, 2161)

	cw := lc.VoiceLCHeaderCodeword()
	got := ParseLC(cw[:])
	if got != lc {
		t.Errorf("Expected %+v after parse, got %+v", lc, got)
	}

	term := lc.TerminatorWithLCCodeword()
	if term[9] == cw[9] && term[10] == cw[10] && term[11] == cw[11] {
		t.Error("Header and terminator codewords should carry different checksum masks")
	}
}

func TestEmbSignallingLCRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lc := LC{
			FLCO:  uint8(rapid.IntRange(0, 0x3f).Draw(t, "flco")),
			DstID: ID(rapid.Uint32Range(0, 0xffffff).Draw(t, "dst")),
			SrcID: ID(rapid.Uint32Range(0, 0xffffff).Draw(t, "src")),
		}

		bits := lc.EmbSignallingLCBits()
		got, ok := ParseEmbSignallingLCBits(bits[:])
		if !ok {
			t.Fatal("Checksum of a constructed sequence should verify")
		}
		if got != lc {
			t.Fatalf("Expected %+v after parse, got %+v", lc, got)
		}
	})
}

func TestEmbSignallingLCChecksumDetectsCorruption(t *testing.T) {
	lc := NewLC(CallTypeGroup, 9, 100)
	bits := lc.EmbSignallingLCBits()
	bits[5] = !bits[5]

	if _, ok := ParseEmbSignallingLCBits(bits[:]); ok {
		t.Error("Corrupted sequence should fail the checksum")
	}
}

func TestCSBKPreambleRoundTrip(t *testing.T) {
	c := &CSBK{
		LastBlock: true,
		CSBKO:     CSBKOPreamble,
		DstID:     2161005,
		SrcID:     2161,
		Preamble: CSBKPreamble{
			DataFollows:    true,
			DstIsGroup:     true,
			BlocksToFollow: 11,
		},
	}

	b := c.Bytes()
	got, ok := ParseCSBK(b[:])
	if !ok {
		t.Fatal("CRC of a constructed CSBK should verify")
	}
	if got.CSBKO != CSBKOPreamble || !got.LastBlock {
		t.Error("Opcode and last block flag should survive the round trip")
	}
	if got.Preamble != c.Preamble {
		t.Errorf("Expected preamble %+v, got %+v", c.Preamble, got.Preamble)
	}
	if got.DstID != c.DstID || got.SrcID != c.SrcID {
		t.Error("Addresses should survive the round trip")
	}

	b[3]++
	if _, ok := ParseCSBK(b[:]); ok {
		t.Error("Corrupted CSBK should fail the CRC")
	}
}

func TestDataHeaderRoundTrip(t *testing.T) {
	h := &DataHeader{
		DstIsGroup:        false,
		ResponseRequested: true,
		Format:            DPFShortDataDefined,
		SAP:               SAPShortData,
		DstLLID:           2161005,
		SrcLLID:           2161,
		AppendedBlocks:    42,
		DDFormat:          DDFormatUTF16LE,
		Resync:            true,
		FullMessage:       true,
	}

	b := h.Bytes()
	got, ok := ParseDataHeader(b[:])
	if !ok {
		t.Fatal("CRC of a constructed data header should verify")
	}
	if *got != *h {
		t.Errorf("Expected %+v after parse, got %+v", h, got)
	}
}

func TestDataHeaderAppendedBlocksWidth(t *testing.T) {
	// The appended blocks field is split over two octets; all 6 bits
	// must survive.
	for _, blocks := range []uint8{0, 1, 15, 16, 63} {
		h := &DataHeader{Format: DPFShortDataDefined, AppendedBlocks: blocks}
		b := h.Bytes()
		got, ok := ParseDataHeader(b[:])
		if !ok {
			t.Fatalf("CRC should verify for %d blocks", blocks)
		}
		if got.AppendedBlocks != blocks {
			t.Errorf("Expected %d appended blocks, got %d", blocks, got.AppendedBlocks)
		}
	}
}

func TestDataBlockCRCAndBits(t *testing.T) {
	b := &DataBlock{SerialNr: 3}
	copy(b.Data[:], []byte{0x00, 0x00, 'h', 0x00, 'i', 0x00})
	b.ComputeCRC()

	if b.CRC > 0x01ff {
		t.Errorf("Block CRC must fit 9 bits, got 0x%04x", b.CRC)
	}
	if !b.VerifyCRC() {
		t.Error("Computed CRC should verify")
	}

	bits := b.Bits()
	got := ParseDataBlockBits(bits[:])
	if got == nil {
		t.Fatal("ParseDataBlockBits returned nil for a full block")
	}
	if got.SerialNr != b.SerialNr || got.CRC != b.CRC || got.Data != b.Data {
		t.Errorf("Expected %+v after parse, got %+v", b, got)
	}
	if !got.VerifyCRC() {
		t.Error("Parsed block should still verify")
	}
}
