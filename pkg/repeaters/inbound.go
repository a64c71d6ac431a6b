package repeaters

import (
	"time"

	"github.com/jafo2128/dmrshark/pkg/coding"
	"github.com/jafo2128/dmrshark/pkg/dmr"
	"github.com/jafo2128/dmrshark/pkg/ipsc"
	"github.com/jafo2128/dmrshark/pkg/logger"
)

// ProcessReceivedPacket feeds one decoded IPSC datagram into the slot
// state machines. Packets we sent ourselves are only counted as
// repeater activity; all other side effects are suppressed.
func (reg *Registry) ProcessReceivedPacket(r *Repeater, pkt *ipsc.Packet, now time.Time) {
	if r == nil || pkt == nil {
		return
	}

	r.LastActiveAt = now
	if pkt.FromUs {
		return
	}

	slot := r.Slot(pkt.Timeslot)

	switch {
	case pkt.SlotType == ipsc.SlotTypeVoiceLCHeader:
		reg.voiceCallSeen(r, pkt, now)
		slot.LastPacketReceivedAt = now

	case pkt.SlotType.IsVoiceFrame():
		// A call can be entered late, without ever seeing the header.
		reg.voiceCallSeen(r, pkt, now)
		slot.LastPacketReceivedAt = now

		if frame := pkt.SlotType.VoiceFrameIndex(); frame >= 1 && frame <= 4 && slot.EmbSigLCStorage != nil {
			slot.EmbSigLCStorage.AddBurst(ipsc.ExtractEmbLCSlice(&pkt.PayloadBits), (frame-1)*32)
		}

		if pkt.CallType == dmr.CallTypeGroup && pkt.DstID == reg.cfg.EchoID {
			reg.StoreVoiceFrameToEchoBuf(r, pkt)
		}

		if slot.Voicestream != nil {
			slot.Voicestream.WriteVoiceFrame(ipsc.ExtractVoiceBits(&pkt.PayloadBits).Bytes())
		}

	case pkt.SlotType == ipsc.SlotTypeTerminatorWithLC:
		slot.LastPacketReceivedAt = now
		if slot.State == SlotStateCallRunning {
			reg.log.DMR("voice call ended",
				logger.String("repeater", r.DisplayString()),
				logger.Int("ts", pkt.Timeslot.Number()),
				logger.Uint32("src_id", uint32(slot.SrcID)),
				logger.Uint32("dst_id", uint32(slot.DstID)))
			reg.StateChange(r, pkt.Timeslot, SlotStateIdle)
			if reg.deps.Handlers != nil {
				reg.deps.Handlers.VoiceCallEnded(r, pkt.Timeslot)
			}
			if slot.Voicestream != nil {
				slot.Voicestream.CallEnded()
			}
		}
		if pkt.CallType == dmr.CallTypeGroup && pkt.DstID == reg.cfg.EchoID {
			reg.PlayAndFreeEchoBuf(r, pkt.Timeslot)
		}

	case pkt.SlotType == ipsc.SlotTypeDataHeader:
		reg.log.DMR("data header received",
			logger.String("repeater", r.DisplayString()),
			logger.Int("ts", pkt.Timeslot.Number()),
			logger.Uint32("src_id", uint32(pkt.SrcID)),
			logger.Uint32("dst_id", uint32(pkt.DstID)))

		// A response header acknowledges our confirmed data; it carries
		// no appended blocks.
		if header, ok := parseBurstDataHeader(&pkt.PayloadBits); ok && header.Format == dmr.DPFResponse {
			slot.LastPacketReceivedAt = now
			if reg.deps.Handlers != nil {
				reg.deps.Handlers.DataAckReceived(r, pkt.Timeslot, pkt.SrcID)
			}
			return
		}

		if slot.State != SlotStateDataReceiveRunning {
			reg.StateChange(r, pkt.Timeslot, SlotStateDataReceiveRunning)
		}
		slot.SrcID = pkt.SrcID
		slot.DstID = pkt.DstID
		slot.CallType = pkt.CallType
		slot.DataHeaderReceivedAt = now
		slot.LastPacketReceivedAt = now

	case pkt.SlotType == ipsc.SlotTypeRate12Data || pkt.SlotType == ipsc.SlotTypeRate34Data:
		slot.LastPacketReceivedAt = now

	case pkt.SlotType == ipsc.SlotTypeCSBK:
		slot.LastPacketReceivedAt = now
	}
}

// parseBurstDataHeader recovers the data header PDU from a parsed
// burst.
func parseBurstDataHeader(bits *ipsc.PayloadBits) (*dmr.DataHeader, bool) {
	info := make([]bool, 196)
	copy(info[:98], bits[0:98])
	copy(info[98:], bits[166:264])
	return dmr.ParseDataHeader(coding.BitsToBytes(coding.BPTC19696Decode(info)))
}

// voiceCallSeen opens the call state on the first burst of a voice
// transmission and enables automatic RSSI polling for its duration.
func (reg *Registry) voiceCallSeen(r *Repeater, pkt *ipsc.Packet, now time.Time) {
	slot := r.Slot(pkt.Timeslot)
	if slot.State == SlotStateCallRunning {
		return
	}

	reg.log.DMR("voice call started",
		logger.String("repeater", r.DisplayString()),
		logger.Int("ts", pkt.Timeslot.Number()),
		logger.Uint32("src_id", uint32(pkt.SrcID)),
		logger.Uint32("dst_id", uint32(pkt.DstID)),
		logger.String("call_type", pkt.CallType.String()))

	reg.StateChange(r, pkt.Timeslot, SlotStateCallRunning)
	slot.SrcID = pkt.SrcID
	slot.DstID = pkt.DstID
	slot.CallType = pkt.CallType
	slot.EmbSigLCStorage.Clear()

	if !r.SNMPIgnored && reg.cfg.RSSIUpdateDuringCall > 0 {
		r.AutoRSSIUpdateEnabledAt = now
	}

	if reg.deps.Handlers != nil {
		reg.deps.Handlers.VoiceCallStarted(r, pkt.Timeslot)
	}
}
