// Package smstxbuf is the process-wide SMS send queue. It is a FIFO;
// only the head entry is actively sent, retried on an interval until it
// is acknowledged or runs out of tries.
package smstxbuf

import (
	"fmt"
	"io"
	"time"

	"github.com/jafo2128/dmrshark/pkg/dmr"
	"github.com/jafo2128/dmrshark/pkg/logger"
	"github.com/jafo2128/dmrshark/pkg/repeaters"
)

// Entry is one queued SMS. A nil Repeater means broadcast to all known
// repeaters.
type Entry struct {
	Repeater *repeaters.Repeater
	TS       dmr.Timeslot
	CallType dmr.CallType
	DstID    dmr.ID
	SrcID    dmr.ID
	SMSType  dmr.SMSType
	Msg      string

	AddedAt           time.Time
	SendTries         int
	SelectiveAckTries int
}

// DataSender fans an SMS out to repeaters: all known ones on
// broadcast, otherwise the specific one. Sending only enqueues packets
// on the per-slot pipelines; delivery is confirmed asynchronously.
type DataSender interface {
	SendSMS(broadcast bool, r *repeaters.Repeater, ts dmr.Timeslot, callType dmr.CallType, dstID, srcID dmr.ID, msg string)
	SendMotorolaTMSSMS(broadcast bool, r *repeaters.Repeater, ts dmr.Timeslot, callType dmr.CallType, dstID, srcID dmr.ID, msg string)
}

// RetryEntry is an opaque handle into the retry tracker.
type RetryEntry interface{}

// RetryTracker is the external retry bookkeeping store. It is notified
// of the final outcome (ack, failure or exhaustion) of a queue head
// before removal. Group heads leave the queue after their single send
// without a notification.
type RetryTracker interface {
	FindEntry(dstID dmr.ID, msg string) RetryEntry
	EntrySentSuccessfully(e RetryEntry)
	EntrySendUnsuccessful(e RetryEntry)
}

// Scheduler lets the buffer nudge the embedder's poll timeout.
type Scheduler interface {
	SetMaxTimeout(d time.Duration)
}

// Config carries the retry knobs.
type Config struct {
	RetryInterval time.Duration
	MaxRetryCount int
}

// Deps bundles the buffer's collaborators. Nil entries are treated as
// absent.
type Deps struct {
	Sender    DataSender
	Tracker   RetryTracker
	Scheduler Scheduler
}

// Buffer is the SMS TX FIFO. Single tick goroutine only, no locking.
type Buffer struct {
	cfg  Config
	deps Deps
	log  *logger.Logger

	entries       []*Entry
	lastSendTryAt time.Time
}

// New creates an empty buffer.
func New(cfg Config, deps Deps, log *logger.Logger) *Buffer {
	return &Buffer{
		cfg:  cfg,
		deps: deps,
		log:  log,
	}
}

// Len returns the number of queued entries.
func (b *Buffer) Len() int {
	return len(b.entries)
}

// Add appends an SMS to the queue and nudges the scheduler.
func (b *Buffer) Add(r *repeaters.Repeater, ts dmr.Timeslot, callType dmr.CallType, dstID, srcID dmr.ID, smsType dmr.SMSType, msg string, now time.Time) {
	if msg == "" {
		return
	}

	entry := &Entry{
		Repeater: r,
		TS:       ts,
		CallType: callType,
		DstID:    dstID,
		SrcID:    srcID,
		SMSType:  smsType,
		Msg:      msg,
		AddedAt:  now,
	}

	b.log.DMR("adding new sms", b.entryFields(entry)...)
	b.entries = append(b.entries, entry)

	if b.deps.Scheduler != nil {
		b.deps.Scheduler.SetMaxTimeout(0)
	}
}

// All returns the queued entries in FIFO order.
func (b *Buffer) All() []*Entry {
	out := make([]*Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// GetFirst returns the queue head, or nil.
func (b *Buffer) GetFirst() *Entry {
	if len(b.entries) == 0 {
		return nil
	}
	return b.entries[0]
}

func (b *Buffer) removeFirst() {
	if len(b.entries) == 0 {
		return
	}
	if b.log.DMRDebug() {
		b.log.DMR("removing first entry", b.entryFields(b.entries[0])...)
	}
	b.entries = b.entries[1:]
}

func (b *Buffer) notifyTracker(entry *Entry, success bool) {
	if b.deps.Tracker == nil {
		return
	}
	rtEntry := b.deps.Tracker.FindEntry(entry.DstID, entry.Msg)
	if rtEntry == nil {
		return
	}
	if success {
		b.deps.Tracker.EntrySentSuccessfully(rtEntry)
	} else {
		b.deps.Tracker.EntrySendUnsuccessful(rtEntry)
	}
}

// FirstSentSuccessfully finishes the head after an acknowledgement:
// the retry tracker is notified, then the entry is removed.
func (b *Buffer) FirstSentSuccessfully() {
	entry := b.GetFirst()
	if entry == nil {
		return
	}

	b.log.DMR("first entry sent successfully")
	b.notifyTracker(entry, true)
	b.removeFirst()
}

// FirstSendUnsuccessful finishes the head after a terminal failure
// (explicit NACK or retry exhaustion).
func (b *Buffer) FirstSendUnsuccessful() {
	entry := b.GetFirst()
	if entry == nil {
		return
	}

	b.log.DMR("first entry send unsuccessful")
	b.notifyTracker(entry, false)
	b.removeFirst()
}

// Process runs one buffer tick: it sends or retries the head when the
// retry interval elapsed, and finishes entries that ran out of tries.
// After an exhausted head is removed the new head is not attempted
// until the next tick.
func (b *Buffer) Process(now time.Time) {
	entry := b.GetFirst()
	if entry == nil {
		return
	}

	if elapsed := now.Sub(b.lastSendTryAt); elapsed < b.cfg.RetryInterval {
		if b.deps.Scheduler != nil {
			b.deps.Scheduler.SetMaxTimeout(b.cfg.RetryInterval - elapsed)
		}
		return
	}

	if entry.SendTries >= b.cfg.MaxRetryCount {
		b.log.DMR("all tries of sending the first entry have failed", b.entryFields(entry)...)
		b.FirstSendUnsuccessful()
		return
	}

	entry.SelectiveAckTries = 0
	if b.log.DMRDebug() {
		b.log.DMR("sending entry", b.entryFields(entry)...)
	}

	broadcast := entry.Repeater == nil
	if b.deps.Sender != nil {
		switch entry.SMSType {
		case dmr.SMSTypeMotorolaTMS:
			b.deps.Sender.SendMotorolaTMSSMS(broadcast, entry.Repeater, entry.TS, entry.CallType, entry.DstID, entry.SrcID, entry.Msg)
		case dmr.SMSTypeNormal:
			b.deps.Sender.SendSMS(broadcast, entry.Repeater, entry.TS, entry.CallType, entry.DstID, entry.SrcID, entry.Msg)
		}
	}

	// Group messages are unconfirmed, so they go out only once.
	if entry.CallType == dmr.CallTypeGroup {
		b.removeFirst()
	} else {
		entry.SendTries++
	}

	b.lastSendTryAt = now
	if b.deps.Scheduler != nil {
		b.deps.Scheduler.SetMaxTimeout(0)
	}
}

// Print writes the diagnostic queue listing.
func (b *Buffer) Print(w io.Writer) {
	if len(b.entries) == 0 {
		fmt.Fprintln(w, "smstxbuf: empty")
		return
	}

	fmt.Fprintln(w, "smstxbuf:")
	for _, entry := range b.entries {
		repeater := "all"
		if entry.Repeater != nil {
			repeater = fmt.Sprintf("%s ts: %d", entry.Repeater.DisplayString(), entry.TS.Number())
		}
		fmt.Fprintf(w, "  repeater: %s dst id: %d src id: %d type: %s added at: %s send tries: %d type: %s msg: %s\n",
			repeater, entry.DstID, entry.SrcID, entry.CallType,
			entry.AddedAt.Format("2006-01-02 15:04:05"),
			entry.SendTries, entry.SMSType, entry.Msg)
	}
}

// Deinit drains the queue.
func (b *Buffer) Deinit() {
	b.entries = nil
}

func (b *Buffer) entryFields(entry *Entry) []logger.Field {
	repeater := "all"
	if entry.Repeater != nil {
		repeater = entry.Repeater.DisplayString()
	}
	return []logger.Field{
		logger.String("repeater", repeater),
		logger.Int("ts", entry.TS.Number()),
		logger.Uint32("dst_id", uint32(entry.DstID)),
		logger.Uint32("src_id", uint32(entry.SrcID)),
		logger.String("call_type", entry.CallType.String()),
		logger.String("sms_type", entry.SMSType.String()),
		logger.Int("send_tries", entry.SendTries),
		logger.String("msg", entry.Msg),
	}
}
