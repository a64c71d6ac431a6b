package repeaters

import (
	"time"

	"github.com/jafo2128/dmrshark/pkg/dmr"
	"github.com/jafo2128/dmrshark/pkg/logger"
)

// SendInterval is the minimum spacing between two datagrams on the
// same slot. One DMR burst occupies 30 ms of air time per slot, so
// anything at or above 50 ms keeps the repeater's jitter buffer happy.
const SendInterval = 50 * time.Millisecond

// enqueueTX appends a raw datagram to a slot's TX FIFO and nudges the
// scheduler so the next tick fires without delay.
func (reg *Registry) enqueueTX(r *Repeater, ts dmr.Timeslot, packet []byte) {
	if r == nil || packet == nil {
		return
	}

	if reg.log.RepeatersDebug() {
		reg.log.Repeaters("adding entry to tx packet buffer",
			logger.String("repeater", r.DisplayString()),
			logger.Int("ts", ts.Number()))
	}

	slot := r.Slot(ts)
	slot.TXQueue = append(slot.TXQueue, packet)

	if reg.deps.Scheduler != nil {
		reg.deps.Scheduler.SetMaxTimeout(0)
	}
}

// processTXQueue sends at most one datagram per slot per tick, paced
// at SendInterval. A failed send leaves the head in place for the next
// tick.
func (reg *Registry) processTXQueue(r *Repeater, ts dmr.Timeslot, now time.Time) {
	slot := r.Slot(ts)
	if len(slot.TXQueue) == 0 {
		return
	}

	if now.Sub(slot.LastSentAt) >= SendInterval {
		reg.log.Repeaters("sending ipsc packet from tx buffer",
			logger.String("repeater", r.DisplayString()),
			logger.Int("ts", ts.Number()))

		if err := reg.send(r, slot.TXQueue[0]); err == nil {
			slot.TXQueue = slot.TXQueue[1:]
			slot.LastSentAt = now
		} else {
			reg.log.Debug("can't send ipsc packet",
				logger.String("repeater", r.DisplayString()),
				logger.Error(err))
		}
		if len(slot.TXQueue) == 0 {
			reg.log.Repeaters("tx packet buffer got empty", logger.String("repeater", r.DisplayString()))
		}
	}

	if len(slot.TXQueue) > 0 && reg.deps.Scheduler != nil {
		reg.deps.Scheduler.SetMaxTimeout(0)
	}
}

func (reg *Registry) send(r *Repeater, packet []byte) error {
	if reg.deps.Sender == nil {
		return nil
	}
	return reg.deps.Sender.SendIPSCPacket(r.IPAddr, packet)
}
