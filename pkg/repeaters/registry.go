package repeaters

import (
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/jafo2128/dmrshark/pkg/dmr"
	"github.com/jafo2128/dmrshark/pkg/logger"
)

// Config carries the registry timing knobs, read from the daemon
// configuration.
type Config struct {
	InactiveTimeout      time.Duration
	InfoUpdateInterval   time.Duration
	CallTimeout          time.Duration
	DataTimeout          time.Duration
	RSSIUpdateDuringCall time.Duration
	IgnoredSNMPHosts     string
	EchoID               dmr.ID
	DefaultDMRID         dmr.ID
}

// Resolver maps hostnames to addresses.
type Resolver interface {
	HostnameToIP(host string) (net.IP, bool)
}

// SNMP triggers asynchronous repeater info and status reads. The reads
// themselves happen outside the core.
type SNMP interface {
	StartReadRepeaterInfo(ip string)
	StartReadRepeaterStatus(ip string)
}

// Handlers receives call lifecycle notifications.
type Handlers interface {
	VoiceCallStarted(r *Repeater, ts dmr.Timeslot)
	VoiceCallEnded(r *Repeater, ts dmr.Timeslot)
	VoiceCallTimeout(r *Repeater, ts dmr.Timeslot)
	DataTimeout(r *Repeater, ts dmr.Timeslot)
	DataAckReceived(r *Repeater, ts dmr.Timeslot, ackFrom dmr.ID)
	RepeaterAdded(r *Repeater)
	RepeaterRemoved(r *Repeater)
}

// Sender transmits a raw IPSC datagram to a repeater.
type Sender interface {
	SendIPSCPacket(dst net.IP, packet []byte) error
}

// Scheduler lets the core nudge the embedder's poll timeout down when
// new work appears.
type Scheduler interface {
	SetMaxTimeout(d time.Duration)
}

// Streams associates configured voice stream sinks with repeater
// slots.
type Streams interface {
	GetStreamForRepeater(ipaddr net.IP, ts dmr.Timeslot) VoiceStream
}

// Deps bundles the registry's collaborators. Nil entries are allowed
// and treated as absent.
type Deps struct {
	Resolver  Resolver
	SNMP      SNMP
	Handlers  Handlers
	Sender    Sender
	Scheduler Scheduler
	Streams   Streams
}

// Registry tracks all known repeaters. All methods must be called from
// the single tick goroutine; the registry carries no locking.
type Registry struct {
	cfg  Config
	deps Deps
	log  *logger.Logger

	repeaters []*Repeater
}

// New creates an empty registry.
func New(cfg Config, deps Deps, log *logger.Logger) *Registry {
	return &Registry{
		cfg:  cfg,
		deps: deps,
		log:  log,
	}
}

// Count returns the number of known repeaters.
func (reg *Registry) Count() int {
	return len(reg.repeaters)
}

// FindByIP returns the repeater registered for an address, or nil.
func (reg *Registry) FindByIP(ipaddr net.IP) *Repeater {
	if ipaddr == nil {
		return nil
	}
	for _, r := range reg.repeaters {
		if r.IPAddr.Equal(ipaddr) {
			return r
		}
	}
	return nil
}

// FindByHost resolves a hostname and looks up the result.
func (reg *Registry) FindByHost(host string) *Repeater {
	if reg.deps.Resolver == nil {
		return nil
	}
	ipaddr, ok := reg.deps.Resolver.HostnameToIP(host)
	if !ok {
		return nil
	}
	return reg.FindByIP(ipaddr)
}

// FindByCallsign looks up a repeater by callsign, case insensitively.
func (reg *Registry) FindByCallsign(callsign string) *Repeater {
	if callsign == "" {
		return nil
	}
	for _, r := range reg.repeaters {
		if strings.EqualFold(r.Callsign, callsign) {
			return r
		}
	}
	return nil
}

// FindActive returns the first repeater with either slot carrying the
// given call tuple.
func (reg *Registry) FindActive(srcID, dstID dmr.ID, callType dmr.CallType) *Repeater {
	for _, r := range reg.repeaters {
		for _, slot := range r.Slots {
			if slot.State != SlotStateIdle && slot.SrcID == srcID && slot.DstID == dstID && slot.CallType == callType {
				return r
			}
		}
	}
	return nil
}

// All returns the repeater list in registry order.
func (reg *Registry) All() []*Repeater {
	out := make([]*Repeater, len(reg.repeaters))
	copy(out, reg.repeaters)
	return out
}

// Snapshots returns read-only views of all repeaters.
func (reg *Registry) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(reg.repeaters))
	for _, r := range reg.repeaters {
		out = append(out, r.Snapshot())
	}
	return out
}

func (reg *Registry) isSNMPIgnored(ipaddr net.IP) bool {
	if reg.cfg.IgnoredSNMPHosts == "" || reg.deps.Resolver == nil {
		return false
	}
	for _, host := range strings.Split(reg.cfg.IgnoredSNMPHosts, ",") {
		host = strings.TrimSpace(host)
		if host == "" {
			continue
		}
		ignored, ok := reg.deps.Resolver.HostnameToIP(host)
		if !ok {
			reg.log.Repeaters("can't resolve ignored snmp host", logger.String("host", host))
			continue
		}
		if ignored.Equal(ipaddr) {
			return true
		}
	}
	return false
}

// Add registers a repeater for an address. An already known address
// only refreshes its last active time; the same record is returned.
func (reg *Registry) Add(ipaddr net.IP, now time.Time) *Repeater {
	if ipaddr == nil {
		return nil
	}

	r := reg.FindByIP(ipaddr)
	if r == nil {
		r = newRepeater(ipaddr)
		r.SNMPIgnored = reg.isSNMPIgnored(ipaddr)

		if reg.deps.Streams != nil {
			r.Slots[0].Voicestream = reg.deps.Streams.GetStreamForRepeater(ipaddr, dmr.TS1)
			r.Slots[1].Voicestream = reg.deps.Streams.GetStreamForRepeater(ipaddr, dmr.TS2)
		}

		// New repeaters go to the head of the list.
		reg.repeaters = append([]*Repeater{r}, reg.repeaters...)

		streamName := func(s *Slot) string {
			if s.Voicestream == nil {
				return "no stream defined"
			}
			return s.Voicestream.StreamName()
		}
		reg.log.Info("repeater added",
			logger.String("repeater", r.DisplayString()),
			logger.Bool("snmp_ignored", r.SNMPIgnored),
			logger.String("ts1_stream", streamName(r.Slots[0])),
			logger.String("ts2_stream", streamName(r.Slots[1])))

		if reg.deps.Handlers != nil {
			reg.deps.Handlers.RepeaterAdded(r)
		}
	}
	r.LastActiveAt = now
	return r
}

// Remove drops a repeater: buffered datagrams, echo buffers and the
// embedded LC storages go with it.
func (reg *Registry) Remove(r *Repeater) {
	if r == nil {
		return
	}

	reg.log.Info("repeater removed", logger.String("repeater", r.DisplayString()))

	for _, slot := range r.Slots {
		slot.EmbSigLCStorage = nil
		slot.TXEmbSigLCStorage = nil
		slot.EchoBuf = nil
		slot.TXQueue = nil
	}

	for i, cur := range reg.repeaters {
		if cur == r {
			reg.repeaters = append(reg.repeaters[:i], reg.repeaters[i+1:]...)
			break
		}
	}

	if reg.deps.Handlers != nil {
		reg.deps.Handlers.RepeaterRemoved(r)
	}
}

// StateChange moves a slot to a new state. Dropping out of the last
// running call also stops the automatic RSSI polling.
func (reg *Registry) StateChange(r *Repeater, ts dmr.Timeslot, newState SlotState) {
	slot := r.Slot(ts)
	reg.log.Repeaters("slot state change",
		logger.String("repeater", r.DisplayString()),
		logger.Int("ts", ts.Number()),
		logger.String("from", slot.State.String()),
		logger.String("to", newState.String()))
	slot.State = newState

	if !r.AutoRSSIUpdateEnabledAt.IsZero() &&
		r.Slots[0].State != SlotStateCallRunning &&
		r.Slots[1].State != SlotStateCallRunning {
		reg.log.Repeaters("stopping auto repeater status update", logger.String("repeater", r.DisplayString()))
		r.AutoRSSIUpdateEnabledAt = time.Time{}
	}
}

// List writes the diagnostic repeater table.
func (reg *Registry) List(w io.Writer, now time.Time) {
	if len(reg.repeaters) == 0 {
		fmt.Fprintln(w, "no repeaters found yet")
		return
	}

	fmt.Fprintln(w, "repeaters:")
	fmt.Fprintln(w, "      nr              ip     id  callsign  act  lstinf         type        fwver    dlfreq    ulfreq snmp")
	for i, r := range reg.repeaters {
		fmt.Fprintf(w, "  #%4d: %15s %6d %9s %4d %6d %12s %12s %9d %9d    %v\n",
			i+1,
			r.IPAddr.String(),
			r.ID,
			r.Callsign,
			int(now.Sub(r.LastActiveAt).Seconds()),
			int(now.Sub(r.LastRepeaterInfoRequestAt).Seconds()),
			r.Type,
			r.FWVersion,
			r.DLFreq,
			r.ULFreq,
			!r.SNMPIgnored)
	}
}

// Process runs one registry tick: drains the per-slot TX buffers, then
// checks inactivity, SNMP poll schedules and call/data timeouts.
func (reg *Registry) Process(now time.Time) {
	for i := 0; i < len(reg.repeaters); i++ {
		r := reg.repeaters[i]

		reg.processTXQueue(r, dmr.TS1, now)
		reg.processTXQueue(r, dmr.TS2, now)

		if reg.cfg.InactiveTimeout > 0 && now.Sub(r.LastActiveAt) > reg.cfg.InactiveTimeout {
			reg.log.Repeaters("repeater timed out", logger.String("repeater", r.DisplayString()))
			reg.Remove(r)
			i--
			continue
		}

		if !r.SNMPIgnored && reg.deps.SNMP != nil && reg.cfg.InfoUpdateInterval > 0 &&
			now.Sub(r.LastRepeaterInfoRequestAt) > reg.cfg.InfoUpdateInterval {
			reg.log.Repeaters("sending snmp info update request", logger.String("repeater", r.DisplayString()))
			reg.deps.SNMP.StartReadRepeaterInfo(r.IPAddr.String())
			r.LastRepeaterInfoRequestAt = now
		}

		for tsi := range r.Slots {
			ts := dmr.Timeslot(tsi)
			slot := r.Slots[tsi]

			if slot.State == SlotStateCallRunning && reg.cfg.CallTimeout > 0 &&
				now.Sub(slot.LastPacketReceivedAt) > reg.cfg.CallTimeout {
				if reg.deps.Handlers != nil {
					reg.deps.Handlers.VoiceCallTimeout(r, ts)
				}
			}
		}

		for tsi := range r.Slots {
			ts := dmr.Timeslot(tsi)
			slot := r.Slots[tsi]

			if slot.State == SlotStateDataReceiveRunning && reg.cfg.DataTimeout > 0 &&
				now.Sub(slot.DataHeaderReceivedAt) > reg.cfg.DataTimeout {
				if reg.deps.Handlers != nil {
					reg.deps.Handlers.DataTimeout(r, ts)
				}
			}
		}

		if !r.AutoRSSIUpdateEnabledAt.IsZero() && !r.AutoRSSIUpdateEnabledAt.After(now) &&
			reg.cfg.RSSIUpdateDuringCall > 0 && reg.deps.SNMP != nil &&
			now.Sub(r.LastRSSIRequestAt) > reg.cfg.RSSIUpdateDuringCall {
			reg.deps.SNMP.StartReadRepeaterStatus(r.IPAddr.String())
			r.LastRSSIRequestAt = now
		}
	}
}

// Deinit drops all repeaters.
func (reg *Registry) Deinit() {
	reg.log.Info("repeaters: deinit")
	for len(reg.repeaters) > 0 {
		reg.Remove(reg.repeaters[0])
	}
}
