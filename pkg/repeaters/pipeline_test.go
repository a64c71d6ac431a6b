package repeaters

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jafo2128/dmrshark/pkg/coding"
	"github.com/jafo2128/dmrshark/pkg/dmr"
	"github.com/jafo2128/dmrshark/pkg/ipsc"
)

// parseQueue decodes every raw datagram in a slot's TX FIFO.
func parseQueue(t *testing.T, slot *Slot) []*ipsc.Packet {
	t.Helper()
	out := make([]*ipsc.Packet, 0, len(slot.TXQueue))
	for i, raw := range slot.TXQueue {
		p, err := ipsc.ParsePacket(raw, false)
		if err != nil {
			t.Fatalf("Queue entry %d does not parse: %v", i, err)
		}
		out = append(out, p)
	}
	return out
}

// burstInfoBits pulls the 196 info bits out of a data-class burst.
func burstInfoBits(p *ipsc.Packet) []bool {
	info := make([]bool, 196)
	copy(info[:98], p.PayloadBits[0:98])
	copy(info[98:], p.PayloadBits[166:264])
	return info
}

func TestStartVoiceCallEnqueuesHeaders(t *testing.T) {
	reg, _, _, _ := testRegistry(Config{})
	r := reg.Add(addr("10.0.0.1"), time.Now())

	reg.StartVoiceCall(r, dmr.TS1, dmr.CallTypeGroup, 9, 100)

	slot := r.Slots[0]
	if slot.TXEmbSigLCStorage == nil {
		t.Fatal("StartVoiceCall should allocate the TX embedded LC storage")
	}
	if slot.TXVoiceFrameNum != 2 {
		t.Errorf("Frame rotation should start at 2 (frame C), got %d", slot.TXVoiceFrameNum)
	}

	pkts := parseQueue(t, slot)
	if len(pkts) != 4 {
		t.Fatalf("Expected 4 LC header datagrams, got %d", len(pkts))
	}
	for i, p := range pkts {
		if p.SlotType != ipsc.SlotTypeVoiceLCHeader {
			t.Errorf("Datagram %d: expected voice lc header, got %s", i, p.SlotType)
		}
		if p.Seq != uint8(i) {
			t.Errorf("Datagram %d: expected seq %d, got %d", i, i, p.Seq)
		}
		if p.DstID != 9 || p.SrcID != 100 || p.CallType != dmr.CallTypeGroup {
			t.Errorf("Datagram %d: call tuple lost: %+v", i, p)
		}
	}
}

func TestVoiceFrameRotation(t *testing.T) {
	reg, _, _, _ := testRegistry(Config{})
	r := reg.Add(addr("10.0.0.1"), time.Now())

	reg.StartVoiceCall(r, dmr.TS1, dmr.CallTypeGroup, 9, 100)

	var vb dmr.VoiceBytes
	want := []ipsc.SlotType{
		ipsc.SlotTypeVoiceDataC, ipsc.SlotTypeVoiceDataD, ipsc.SlotTypeVoiceDataE,
		ipsc.SlotTypeVoiceDataF, ipsc.SlotTypeVoiceDataA, ipsc.SlotTypeVoiceDataB,
		ipsc.SlotTypeVoiceDataC,
	}
	for i := 0; i < len(want); i++ {
		reg.PlayAmbeData(&vb, r, dmr.TS1, dmr.CallTypeGroup, 9, 100)
		if got := (2 + i + 1) % 6; r.Slots[0].TXVoiceFrameNum != got {
			t.Errorf("After %d frames expected rotation index %d, got %d", i+1, got, r.Slots[0].TXVoiceFrameNum)
		}
	}

	pkts := parseQueue(t, r.Slots[0])[4:]
	if len(pkts) != len(want) {
		t.Fatalf("Expected %d voice datagrams, got %d", len(want), len(pkts))
	}
	for i, p := range pkts {
		if p.SlotType != want[i] {
			t.Errorf("Frame %d: expected %s, got %s", i, want[i], p.SlotType)
		}
	}
}

func TestSequenceMonotonicity(t *testing.T) {
	reg, _, _, _ := testRegistry(Config{})
	r := reg.Add(addr("10.0.0.1"), time.Now())

	reg.StartVoiceCall(r, dmr.TS1, dmr.CallTypeGroup, 9, 100)
	var vb dmr.VoiceBytes
	for i := 0; i < 10; i++ {
		reg.PlayAmbeData(&vb, r, dmr.TS1, dmr.CallTypeGroup, 9, 100)
	}
	reg.EndVoiceCall(r, dmr.TS1, dmr.CallTypeGroup, 9, 100)

	pkts := parseQueue(t, r.Slots[0])
	for i, p := range pkts {
		if p.Seq != uint8(i) {
			t.Fatalf("Datagram %d carries seq %d; sequence must advance by one per enqueue", i, p.Seq)
		}
	}
	if last := pkts[len(pkts)-1]; last.SlotType != ipsc.SlotTypeTerminatorWithLC {
		t.Errorf("Last datagram should be the terminator, got %s", last.SlotType)
	}
	if r.Slots[0].TXEmbSigLCStorage != nil {
		t.Error("EndVoiceCall should release the TX embedded LC storage")
	}
}

func TestSendSMSGroupSingleBlock(t *testing.T) {
	reg, _, _, _ := testRegistry(Config{})
	r := reg.Add(addr("10.0.0.1"), time.Now())

	reg.SendSMS(r, dmr.TS1, dmr.CallTypeGroup, 2161005, 2161, "hi")

	pkts := parseQueue(t, r.Slots[0])
	if len(pkts) != 12 {
		t.Fatalf("Expected 10 preambles + header + 1 block = 12 datagrams, got %d", len(pkts))
	}

	// 10 CSBK preambles with blocks-to-follow counting 11 down to 2.
	for i := 0; i < 10; i++ {
		if pkts[i].SlotType != ipsc.SlotTypeCSBK {
			t.Fatalf("Datagram %d: expected csbk, got %s", i, pkts[i].SlotType)
		}
		cw := coding.BitsToBytes(coding.BPTC19696Decode(burstInfoBits(pkts[i])))
		csbk, ok := dmr.ParseCSBK(cw)
		if !ok {
			t.Fatalf("Preamble %d does not verify", i)
		}
		if want := uint8(11 - i); csbk.Preamble.BlocksToFollow != want {
			t.Errorf("Preamble %d: expected %d blocks to follow, got %d", i, want, csbk.Preamble.BlocksToFollow)
		}
		if !csbk.Preamble.DataFollows || !csbk.Preamble.DstIsGroup {
			t.Errorf("Preamble %d flags wrong: %+v", i, csbk.Preamble)
		}
	}

	// Data header with one appended block.
	if pkts[10].SlotType != ipsc.SlotTypeDataHeader {
		t.Fatalf("Datagram 10: expected data header, got %s", pkts[10].SlotType)
	}
	hw := coding.BitsToBytes(coding.BPTC19696Decode(burstInfoBits(pkts[10])))
	header, ok := dmr.ParseDataHeader(hw)
	if !ok {
		t.Fatal("Data header does not verify")
	}
	if header.AppendedBlocks != 1 {
		t.Errorf("Expected 1 appended block for \"hi\", got %d", header.AppendedBlocks)
	}
	if !header.DstIsGroup || !header.ResponseRequested || header.DDFormat != dmr.DDFormatUTF16LE {
		t.Errorf("Header flags wrong: %+v", header)
	}
	if header.Format != dmr.DPFShortDataDefined || header.SAP != dmr.SAPShortData {
		t.Errorf("Header format/SAP wrong: %+v", header)
	}

	// One rate 3/4 data block carrying the fragment and its CRC.
	if pkts[11].SlotType != ipsc.SlotTypeRate34Data {
		t.Fatalf("Datagram 11: expected rate 3/4 data, got %s", pkts[11].SlotType)
	}
	blockBits, ok := coding.Trellis34Decode(burstInfoBits(pkts[11]))
	if !ok {
		t.Fatal("Block burst does not trellis decode")
	}
	block := dmr.ParseDataBlockBits(blockBits)
	if !block.VerifyCRC() {
		t.Error("Block CRC should verify")
	}

	wantFragment := []byte{0x00, 0x00, 'h', 0x00, 'i', 0x00}
	for i, b := range wantFragment {
		if block.Data[i] != b {
			t.Fatalf("Fragment byte %d: expected 0x%02x, got 0x%02x", i, b, block.Data[i])
		}
	}

	// Last 4 block bytes carry the fragment CRC, LSB at offset 12.
	var crc uint32
	for i := 0; i < len(wantFragment)+6; i += 2 {
		hi, lo := byte(0), byte(0)
		if i+1 < len(wantFragment) {
			hi = wantFragment[i+1]
		}
		if i < len(wantFragment) {
			lo = wantFragment[i]
		}
		crc = coding.CRC32Update(crc, hi)
		crc = coding.CRC32Update(crc, lo)
	}
	crc = coding.CRC32Finish(crc)
	if block.Data[12] != byte(crc) || block.Data[15] != byte(crc>>24) {
		t.Error("Fragment CRC not stored LSB-first from offset 12")
	}
}

func TestBuildSMSFragmentBounds(t *testing.T) {
	f := BuildSMSFragment("hi")
	if len(f) != 6 {
		t.Errorf("Expected 6 fragment bytes for \"hi\", got %d", len(f))
	}

	long := make([]byte, dmr.MaxFragmentSize)
	for i := range long {
		long[i] = 'a'
	}
	f = BuildSMSFragment(string(long))
	if len(f) != dmr.MaxFragmentSize {
		t.Errorf("Fragment should be bounded at %d bytes, got %d", dmr.MaxFragmentSize, len(f))
	}
}

func TestSendSMSMultiBlockCRCRoom(t *testing.T) {
	// 7 characters: fragment 16 bytes fills a block exactly, leaving no
	// CRC room, so a second block must be added.
	reg, _, _, _ := testRegistry(Config{})
	r := reg.Add(addr("10.0.0.1"), time.Now())

	reg.SendSMS(r, dmr.TS1, dmr.CallTypeGroup, 2161005, 2161, "1234567")

	pkts := parseQueue(t, r.Slots[0])
	if len(pkts) != 13 {
		t.Fatalf("Expected 10 preambles + header + 2 blocks = 13 datagrams, got %d", len(pkts))
	}
	hw := coding.BitsToBytes(coding.BPTC19696Decode(burstInfoBits(pkts[10])))
	header, ok := dmr.ParseDataHeader(hw)
	if !ok {
		t.Fatal("Data header does not verify")
	}
	if header.AppendedBlocks != 2 {
		t.Errorf("Expected 2 appended blocks, got %d", header.AppendedBlocks)
	}
}

func TestPlayAmbeFile(t *testing.T) {
	reg, _, _, _ := testRegistry(Config{})
	r := reg.Add(addr("10.0.0.1"), time.Now())

	// Two 27-byte frames plus a short tail that must be ignored.
	data := make([]byte, 27*2+5)
	path := filepath.Join(t.TempDir(), "capture.ambe")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("can't write ambe file: %v", err)
	}

	reg.PlayAmbeFile(path, r, dmr.TS1, dmr.CallTypeGroup, 9, 100)

	pkts := parseQueue(t, r.Slots[0])
	// 4 headers + 2 voice frames + terminator.
	if len(pkts) != 7 {
		t.Fatalf("Expected 7 datagrams, got %d", len(pkts))
	}
	if pkts[4].SlotType != ipsc.SlotTypeVoiceDataC || pkts[5].SlotType != ipsc.SlotTypeVoiceDataD {
		t.Error("Voice frames should start the rotation at C")
	}

	// A missing file must not start a call.
	r2 := reg.Add(addr("10.0.0.2"), time.Now())
	reg.PlayAmbeFile(filepath.Join(t.TempDir(), "missing.ambe"), r2, dmr.TS1, dmr.CallTypeGroup, 9, 100)
	if len(r2.Slots[0].TXQueue) != 0 {
		t.Error("Missing file should enqueue nothing")
	}
}

func TestEchoPlayback(t *testing.T) {
	reg, _, _, _ := testRegistry(Config{DefaultDMRID: 7777})
	r := reg.Add(addr("10.0.0.1"), time.Now())

	// Capture three voice frames through the inbound path shape.
	for i := 0; i < 3; i++ {
		var vb dmr.VoiceBytes
		vb[0] = byte(i + 1)
		payload, err := ipsc.ConstructPayloadVoiceFrame(ipsc.SlotTypeVoiceDataA, vb.Bits(), nil)
		if err != nil {
			t.Fatalf("Voice payload construction failed: %v", err)
		}
		raw := ipsc.ConstructRaw(uint8(i), dmr.TS1, ipsc.SlotTypeVoiceDataA, dmr.CallTypeGroup, 9990, 100, payload)
		pkt, err := ipsc.ParsePacket(raw, false)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		reg.StoreVoiceFrameToEchoBuf(r, pkt)
	}
	if len(r.Slots[0].EchoBuf) != 3 {
		t.Fatalf("Expected 3 captured frames, got %d", len(r.Slots[0].EchoBuf))
	}
	if r.Slots[0].EchoBuf[0][0] != 1 || r.Slots[0].EchoBuf[2][0] != 3 {
		t.Error("Echo buffer should preserve capture order")
	}

	reg.PlayAndFreeEchoBuf(r, dmr.TS1)

	if r.Slots[0].EchoBuf != nil {
		t.Error("Echo buffer should be empty after playback")
	}

	pkts := parseQueue(t, r.Slots[0])
	// 4 headers + 3 voice frames + terminator.
	if len(pkts) != 8 {
		t.Fatalf("Expected 8 datagrams, got %d", len(pkts))
	}
	want := []ipsc.SlotType{
		ipsc.SlotTypeVoiceLCHeader, ipsc.SlotTypeVoiceLCHeader,
		ipsc.SlotTypeVoiceLCHeader, ipsc.SlotTypeVoiceLCHeader,
		ipsc.SlotTypeVoiceDataC, ipsc.SlotTypeVoiceDataD, ipsc.SlotTypeVoiceDataE,
		ipsc.SlotTypeTerminatorWithLC,
	}
	for i, p := range pkts {
		if p.SlotType != want[i] {
			t.Errorf("Datagram %d: expected %s, got %s", i, want[i], p.SlotType)
		}
		if p.DstID != 7777 || p.SrcID != 7777 || p.CallType != dmr.CallTypeGroup {
			t.Errorf("Datagram %d: echo playback should use the default ID group call", i)
		}
	}
}
