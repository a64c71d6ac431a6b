package main

import (
	"time"

	"github.com/jafo2128/dmrshark/pkg/database"
	"github.com/jafo2128/dmrshark/pkg/dmr"
	"github.com/jafo2128/dmrshark/pkg/logger"
	"github.com/jafo2128/dmrshark/pkg/metrics"
	"github.com/jafo2128/dmrshark/pkg/radioid"
	"github.com/jafo2128/dmrshark/pkg/repeaters"
	"github.com/jafo2128/dmrshark/pkg/smstxbuf"
	"github.com/jafo2128/dmrshark/pkg/web"
)

type callKey struct {
	ip string
	ts dmr.Timeslot
}

// eventHandlers wires registry notifications to the log, the metrics
// collector, the websocket hub and the call log database. All methods
// run on the tick goroutine.
type eventHandlers struct {
	log     *logger.Logger
	reg     *repeaters.Registry
	sms     *smstxbuf.Buffer
	metrics *metrics.Collector
	hub     *web.WebSocketHub
	calls   *database.CallLogRepository
	dir     *radioid.Directory

	callStarts map[callKey]time.Time
}

func newEventHandlers(log *logger.Logger, coll *metrics.Collector) *eventHandlers {
	return &eventHandlers{
		log:        log,
		metrics:    coll,
		callStarts: make(map[callKey]time.Time),
	}
}

func (h *eventHandlers) callsignFor(id dmr.ID) string {
	if h.dir == nil {
		return ""
	}
	return h.dir.CallsignFor(uint32(id))
}

func (h *eventHandlers) VoiceCallStarted(r *repeaters.Repeater, ts dmr.Timeslot) {
	h.metrics.VoiceCallStarted()
	h.callStarts[callKey{r.IPAddr.String(), ts}] = time.Now()

	slot := r.Slot(ts)
	if h.hub != nil {
		h.hub.BroadcastVoiceCall("voice_call_started", r.DisplayString(), ts.Number(),
			uint32(slot.SrcID), uint32(slot.DstID), slot.CallType.String())
	}
}

func (h *eventHandlers) VoiceCallEnded(r *repeaters.Repeater, ts dmr.Timeslot) {
	h.finishCall(r, ts, "terminator")
}

func (h *eventHandlers) VoiceCallTimeout(r *repeaters.Repeater, ts dmr.Timeslot) {
	h.log.DMR("voice call timeout",
		logger.String("repeater", r.DisplayString()),
		logger.Int("ts", ts.Number()))

	h.finishCall(r, ts, "timeout")
	h.reg.StateChange(r, ts, repeaters.SlotStateIdle)
	if stream := r.Slot(ts).Voicestream; stream != nil {
		stream.CallEnded()
	}
}

func (h *eventHandlers) DataTimeout(r *repeaters.Repeater, ts dmr.Timeslot) {
	h.log.DMR("data timeout",
		logger.String("repeater", r.DisplayString()),
		logger.Int("ts", ts.Number()))
	h.reg.StateChange(r, ts, repeaters.SlotStateIdle)
}

// DataAckReceived matches a response header against the SMS queue
// head: an ack from the head's destination confirms delivery.
func (h *eventHandlers) DataAckReceived(r *repeaters.Repeater, ts dmr.Timeslot, ackFrom dmr.ID) {
	if h.sms == nil {
		return
	}
	head := h.sms.GetFirst()
	if head == nil || head.CallType != dmr.CallTypePrivate {
		return
	}
	if head.SendTries > 0 && head.DstID == ackFrom {
		h.log.DMR("sms ack received",
			logger.Uint32("from", uint32(ackFrom)),
			logger.String("msg", head.Msg))
		h.sms.FirstSentSuccessfully()
	}
}

func (h *eventHandlers) RepeaterAdded(r *repeaters.Repeater) {
	h.metrics.RepeaterAdded()
	if h.hub != nil {
		h.hub.BroadcastRepeater("repeater_added", r.DisplayString())
	}
}

func (h *eventHandlers) RepeaterRemoved(r *repeaters.Repeater) {
	h.metrics.RepeaterRemoved()
	delete(h.callStarts, callKey{r.IPAddr.String(), dmr.TS1})
	delete(h.callStarts, callKey{r.IPAddr.String(), dmr.TS2})
	if h.hub != nil {
		h.hub.BroadcastRepeater("repeater_removed", r.DisplayString())
	}
}

func (h *eventHandlers) finishCall(r *repeaters.Repeater, ts dmr.Timeslot, terminatedBy string) {
	slot := r.Slot(ts)
	key := callKey{r.IPAddr.String(), ts}

	now := time.Now()
	start, known := h.callStarts[key]
	if !known {
		start = now
	}
	delete(h.callStarts, key)

	if h.hub != nil {
		h.hub.BroadcastVoiceCall("voice_call_ended", r.DisplayString(), ts.Number(),
			uint32(slot.SrcID), uint32(slot.DstID), slot.CallType.String())
	}

	if h.calls != nil {
		record := &database.CallLog{
			RepeaterIP:   r.IPAddr.String(),
			Callsign:     h.callsignFor(slot.SrcID),
			Timeslot:     ts.Number(),
			SrcID:        uint32(slot.SrcID),
			DstID:        uint32(slot.DstID),
			CallType:     slot.CallType.String(),
			StartTime:    start,
			EndTime:      now,
			Duration:     now.Sub(start).Seconds(),
			TerminatedBy: terminatedBy,
		}
		if err := h.calls.Create(record); err != nil {
			h.log.Error("can't store call log", logger.Error(err))
		}
	}
}

// smsOutcome carries the head identity through the retry tracker
// round trip.
type smsOutcome struct {
	dstID dmr.ID
	msg   string
}

// smsTracker is the retry bookkeeping collaborator: it logs final SMS
// outcomes to the database, the metrics and the websocket feed.
type smsTracker struct {
	log     *logger.Logger
	metrics *metrics.Collector
	hub     *web.WebSocketHub
	sms     *database.SMSLogRepository
	buf     *smstxbuf.Buffer
}

func (t *smsTracker) FindEntry(dstID dmr.ID, msg string) smstxbuf.RetryEntry {
	return &smsOutcome{dstID: dstID, msg: msg}
}

func (t *smsTracker) EntrySentSuccessfully(e smstxbuf.RetryEntry) {
	t.finish(e.(*smsOutcome), true)
}

func (t *smsTracker) EntrySendUnsuccessful(e smstxbuf.RetryEntry) {
	t.finish(e.(*smsOutcome), false)
}

func (t *smsTracker) finish(outcome *smsOutcome, delivered bool) {
	if delivered {
		t.metrics.SMSDelivered()
	} else {
		t.metrics.SMSFailed()
	}

	entry := t.buf.GetFirst()
	eventType := "sms_failed"
	if delivered {
		eventType = "sms_delivered"
	}

	var srcID dmr.ID
	callType, smsType, tries := "", "", 0
	if entry != nil {
		srcID = entry.SrcID
		callType = entry.CallType.String()
		smsType = entry.SMSType.String()
		tries = entry.SendTries
	}

	if t.hub != nil {
		t.hub.BroadcastSMS(eventType, uint32(outcome.dstID), uint32(srcID), outcome.msg)
	}

	if t.sms != nil {
		record := &database.SMSLog{
			DstID:     uint32(outcome.dstID),
			SrcID:     uint32(srcID),
			CallType:  callType,
			SMSType:   smsType,
			Msg:       outcome.msg,
			Delivered: delivered,
			SendTries: tries,
		}
		if err := t.sms.Create(record); err != nil {
			t.log.Error("can't store sms log", logger.Error(err))
		}
	}
}
