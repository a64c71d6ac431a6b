package repeaters

import (
	"fmt"

	"github.com/jafo2128/dmrshark/pkg/coding"
	"github.com/jafo2128/dmrshark/pkg/dmr"
	"github.com/jafo2128/dmrshark/pkg/ipsc"
	"github.com/jafo2128/dmrshark/pkg/logger"
)

// smsPreambleCount is how many CSBK preambles precede the data header.
const smsPreambleCount = 10

// BuildSMSFragment builds the data fragment for a text message: two
// leading zero bytes, then the message in UTF-16LE (each character
// followed by a zero byte), bounded by the maximum fragment size.
func BuildSMSFragment(msg string) []byte {
	n := 2 + len(msg)*2
	if n > dmr.MaxFragmentSize {
		n = dmr.MaxFragmentSize
	}

	fragment := make([]byte, n)
	for i, j := 2, 0; i < n; i, j = i+2, j+1 {
		fragment[i] = msg[j]
	}
	return fragment
}

// SendSMS fragments a text message into rate 3/4 data blocks and
// enqueues the whole transmission (CSBK preambles, data header, data
// blocks) on the slot's TX FIFO.
func (reg *Registry) SendSMS(r *Repeater, ts dmr.Timeslot, callType dmr.CallType, dstID, srcID dmr.ID, msg string) {
	if r == nil || msg == "" {
		return
	}

	reg.log.Info("sending sms",
		logger.String("repeater", r.DisplayString()),
		logger.String("call_type", callType.String()),
		logger.Uint32("dst_id", uint32(dstID)),
		logger.Int("ts", ts.Number()),
		logger.String("msg", msg))

	reg.SendSMSFragment(r, ts, callType, dstID, srcID, BuildSMSFragment(msg), dmr.DDFormatUTF16LE)
}

// SendSMSFragment runs the block engine for an already built data
// fragment.
func (reg *Registry) SendSMSFragment(r *Repeater, ts dmr.Timeslot, callType dmr.CallType, dstID, srcID dmr.ID, fragment []byte, ddFormat uint8) {
	if r == nil || len(fragment) == 0 {
		return
	}

	slot := r.Slot(ts)
	slot.TXSeqNum = 0

	// Confirmed rate 3/4 carries 16 bytes per block; the last block
	// must leave room for the 4-byte fragment CRC.
	blocksNeeded := (len(fragment) + dmr.DataBlockLength - 1) / dmr.DataBlockLength
	if blocksNeeded*dmr.DataBlockLength-len(fragment) < 4 {
		blocksNeeded++
	}
	padOctets := blocksNeeded*dmr.DataBlockLength - 4 - len(fragment)

	// The fragment CRC runs over byte pairs in swapped order, padding
	// included.
	var fragmentCRC uint32
	for i := 0; i < len(fragment)+padOctets; i += 2 {
		if i+1 < len(fragment) {
			fragmentCRC = coding.CRC32Update(fragmentCRC, fragment[i+1])
		} else {
			fragmentCRC = coding.CRC32Update(fragmentCRC, 0)
		}
		if i < len(fragment) {
			fragmentCRC = coding.CRC32Update(fragmentCRC, fragment[i])
		} else {
			fragmentCRC = coding.CRC32Update(fragmentCRC, 0)
		}
	}
	fragmentCRC = coding.CRC32Finish(fragmentCRC)

	if reg.log.RepeatersDebug() {
		reg.log.Repeaters("sms fragment built",
			logger.Int("length", len(fragment)),
			logger.String("crc", fmt.Sprintf("%08x", fragmentCRC)),
			logger.Int("blocks_needed", blocksNeeded),
			logger.Int("pad_octets", padOctets))
	}

	blocks := make([]dmr.DataBlock, blocksNeeded)
	stored := 0
	for i := range blocks {
		blocks[i].SerialNr = uint8(i)

		if i == blocksNeeded-1 {
			blocks[i].Data[dmr.DataBlockLength-1] = byte(fragmentCRC >> 24)
			blocks[i].Data[dmr.DataBlockLength-2] = byte(fragmentCRC >> 16)
			blocks[i].Data[dmr.DataBlockLength-3] = byte(fragmentCRC >> 8)
			blocks[i].Data[dmr.DataBlockLength-4] = byte(fragmentCRC)
		}

		toStore := dmr.DataBlockLength
		if remaining := len(fragment) - stored; remaining < toStore {
			toStore = remaining
		}
		copy(blocks[i].Data[:toStore], fragment[stored:stored+toStore])
		stored += toStore

		blocks[i].ComputeCRC()
	}

	header := &dmr.DataHeader{
		DstIsGroup:        callType == dmr.CallTypeGroup,
		ResponseRequested: true,
		Format:            dmr.DPFShortDataDefined,
		SAP:               dmr.SAPShortData,
		DstLLID:           dstID,
		SrcLLID:           srcID,
		AppendedBlocks:    uint8(blocksNeeded),
		DDFormat:          ddFormat,
		Resync:            true,
		FullMessage:       true,
	}

	csbk := &dmr.CSBK{
		LastBlock: true,
		CSBKO:     dmr.CSBKOPreamble,
		DstID:     dstID,
		SrcID:     srcID,
		Preamble: dmr.CSBKPreamble{
			DataFollows:    true,
			DstIsGroup:     callType == dmr.CallTypeGroup,
			BlocksToFollow: uint8(smsPreambleCount + blocksNeeded + 1),
		},
	}

	for i := 0; i < smsPreambleCount; i++ {
		csbk.Preamble.BlocksToFollow--
		payload := ipsc.ConstructPayloadCSBK(csbk)
		raw := ipsc.ConstructRaw(slot.TXSeqNum, ts, ipsc.SlotTypeCSBK, callType, dstID, srcID, payload)
		slot.TXSeqNum++
		reg.enqueueTX(r, ts, raw)
	}

	payload := ipsc.ConstructPayloadDataHeader(header)
	raw := ipsc.ConstructRaw(slot.TXSeqNum, ts, ipsc.SlotTypeDataHeader, callType, dstID, srcID, payload)
	slot.TXSeqNum++
	reg.enqueueTX(r, ts, raw)

	for i := range blocks {
		payload := ipsc.ConstructPayloadDataBlockRate34(&blocks[i])
		raw := ipsc.ConstructRaw(slot.TXSeqNum, ts, ipsc.SlotTypeRate34Data, callType, dstID, srcID, payload)
		slot.TXSeqNum++
		reg.enqueueTX(r, ts, raw)
	}
}
