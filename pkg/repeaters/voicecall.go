package repeaters

import (
	"io"
	"os"

	"github.com/jafo2128/dmrshark/pkg/coding"
	"github.com/jafo2128/dmrshark/pkg/dmr"
	"github.com/jafo2128/dmrshark/pkg/ipsc"
	"github.com/jafo2128/dmrshark/pkg/logger"
)

// voiceLCHeaderRepeatCount is how many times the voice LC header is
// sent ahead of the voice frames. Receivers routinely miss the first
// burst of a transmission.
const voiceLCHeaderRepeatCount = 4

// StartVoiceCall opens an outbound voice transmission on a slot: the
// sequence counter restarts, the frame rotation is positioned so the
// first voice frame goes out as C, the embedded signalling LC storage
// is built and the LC header bursts are enqueued.
func (reg *Registry) StartVoiceCall(r *Repeater, ts dmr.Timeslot, callType dmr.CallType, dstID, srcID dmr.ID) {
	if r == nil {
		return
	}

	slot := r.Slot(ts)
	slot.TXSeqNum = 0
	slot.TXVoiceFrameNum = 2

	slot.TXEmbSigLCStorage = coding.NewVBPTC1611(embSigLCRows)
	embBits := dmr.NewLC(callType, dstID, srcID).EmbSignallingLCBits()
	slot.TXEmbSigLCStorage.Construct(embBits[:])

	for i := 0; i < voiceLCHeaderRepeatCount; i++ {
		payload := ipsc.ConstructPayloadVoiceLCHeader(callType, dstID, srcID)
		raw := ipsc.ConstructRaw(slot.TXSeqNum, ts, ipsc.SlotTypeVoiceLCHeader, callType, dstID, srcID, payload)
		slot.TXSeqNum++
		reg.enqueueTX(r, ts, raw)
	}
}

// PlayAmbeData enqueues one voice frame, advancing the A-F rotation.
func (reg *Registry) PlayAmbeData(voiceBytes *dmr.VoiceBytes, r *Repeater, ts dmr.Timeslot, callType dmr.CallType, dstID, srcID dmr.ID) {
	if r == nil || voiceBytes == nil {
		return
	}

	slot := r.Slot(ts)
	st := ipsc.SlotTypeForVoiceFrameNum(slot.TXVoiceFrameNum)

	payload, err := ipsc.ConstructPayloadVoiceFrame(st, voiceBytes.Bits(), slot.TXEmbSigLCStorage)
	if err != nil {
		reg.log.Error("can't construct voice frame payload",
			logger.String("repeater", r.DisplayString()),
			logger.Error(err))
		return
	}

	raw := ipsc.ConstructRaw(slot.TXSeqNum, ts, st, callType, dstID, srcID, payload)
	slot.TXSeqNum++
	reg.enqueueTX(r, ts, raw)

	slot.TXVoiceFrameNum++
	if slot.TXVoiceFrameNum > 5 {
		slot.TXVoiceFrameNum = 0
	}
}

// EndVoiceCall enqueues the terminator and releases the embedded LC
// storage allocated by StartVoiceCall.
func (reg *Registry) EndVoiceCall(r *Repeater, ts dmr.Timeslot, callType dmr.CallType, dstID, srcID dmr.ID) {
	if r == nil {
		return
	}

	slot := r.Slot(ts)
	payload := ipsc.ConstructPayloadTerminatorWithLC(callType, dstID, srcID)
	raw := ipsc.ConstructRaw(slot.TXSeqNum, ts, ipsc.SlotTypeTerminatorWithLC, callType, dstID, srcID, payload)
	slot.TXSeqNum++
	reg.enqueueTX(r, ts, raw)

	slot.TXEmbSigLCStorage = nil
}

// PlayAmbeFile streams a raw AMBE capture file as one voice call.
func (reg *Registry) PlayAmbeFile(name string, r *Repeater, ts dmr.Timeslot, callType dmr.CallType, dstID, srcID dmr.ID) {
	if name == "" || r == nil {
		return
	}

	f, err := os.Open(name)
	if err != nil {
		reg.log.Error("can't open ambe file for playing",
			logger.String("repeater", r.DisplayString()),
			logger.String("file", name),
			logger.Error(err))
		return
	}
	defer f.Close()

	reg.log.Info("playing ambe file",
		logger.String("repeater", r.DisplayString()),
		logger.String("file", name))

	reg.StartVoiceCall(r, ts, callType, dstID, srcID)
	var voiceBytes dmr.VoiceBytes
	for {
		_, err := io.ReadFull(f, voiceBytes[:])
		if err != nil {
			break
		}
		reg.PlayAmbeData(&voiceBytes, r, ts, callType, dstID, srcID)
	}
	reg.EndVoiceCall(r, ts, callType, dstID, srcID)
}
