package repeaters

import (
	"github.com/jafo2128/dmrshark/pkg/dmr"
	"github.com/jafo2128/dmrshark/pkg/ipsc"
	"github.com/jafo2128/dmrshark/pkg/logger"
)

// StoreVoiceFrameToEchoBuf captures the voice payload of a received
// packet for later echo playback.
func (reg *Registry) StoreVoiceFrameToEchoBuf(r *Repeater, pkt *ipsc.Packet) {
	if r == nil || pkt == nil {
		return
	}

	if reg.log.RepeatersDebug() {
		reg.log.Repeaters("storing voice frame to echo buf",
			logger.String("repeater", r.DisplayString()),
			logger.Int("ts", pkt.Timeslot.Number()))
	}

	voiceBytes := ipsc.ExtractVoiceBits(&pkt.PayloadBits).Bytes()
	slot := r.Slot(pkt.Timeslot)
	slot.EchoBuf = append(slot.EchoBuf, *voiceBytes)
}

// FreeEchoBuf drops all captured frames of a slot.
func (reg *Registry) FreeEchoBuf(r *Repeater, ts dmr.Timeslot) {
	r.Slot(ts).EchoBuf = nil
}

// PlayAndFreeEchoBuf plays the captured frames back as one group call
// from the default DMR ID and empties the buffer. The buffer is
// detached first: enqueueing outbound packets runs through the same
// slot and must not observe a half-torn list.
func (reg *Registry) PlayAndFreeEchoBuf(r *Repeater, ts dmr.Timeslot) {
	if r == nil {
		return
	}

	slot := r.Slot(ts)
	if len(slot.EchoBuf) == 0 {
		return
	}

	echoBuf := slot.EchoBuf
	slot.EchoBuf = nil

	id := reg.cfg.DefaultDMRID
	reg.StartVoiceCall(r, ts, dmr.CallTypeGroup, id, id)
	for i := range echoBuf {
		reg.PlayAmbeData(&echoBuf[i], r, ts, dmr.CallTypeGroup, id, id)
	}
	reg.EndVoiceCall(r, ts, dmr.CallTypeGroup, id, id)
}
