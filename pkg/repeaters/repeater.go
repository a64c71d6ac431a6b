package repeaters

import (
	"net"
	"strings"
	"time"

	"github.com/jafo2128/dmrshark/pkg/coding"
	"github.com/jafo2128/dmrshark/pkg/dmr"
)

// SlotState is the receive state of one repeater timeslot.
type SlotState int

const (
	SlotStateIdle SlotState = iota
	SlotStateCallRunning
	SlotStateDataReceiveRunning
)

func (s SlotState) String() string {
	switch s {
	case SlotStateIdle:
		return "idle"
	case SlotStateCallRunning:
		return "call running"
	case SlotStateDataReceiveRunning:
		return "data receive running"
	default:
		return "unknown"
	}
}

// embSigLCRows is the variable length BPTC storage height for embedded
// signalling LC: 8 rows hold the 77 data bits.
const embSigLCRows = 8

// VoiceStream is the sink for received voice payloads of one slot,
// configured per repeater and timeslot.
type VoiceStream interface {
	StreamName() string
	WriteVoiceFrame(vb *dmr.VoiceBytes)
	CallEnded()
}

// Slot carries the per-timeslot state of a repeater.
type Slot struct {
	State    SlotState
	SrcID    dmr.ID
	DstID    dmr.ID
	CallType dmr.CallType

	LastPacketReceivedAt time.Time
	DataHeaderReceivedAt time.Time

	// Inbound embedded signalling LC reassembly.
	EmbSigLCStorage *coding.VBPTC1611

	// Outbound voice call state. The TX embedded LC storage lives from
	// StartVoiceCall to EndVoiceCall.
	TXSeqNum          uint8
	TXVoiceFrameNum   int
	TXEmbSigLCStorage *coding.VBPTC1611

	// FIFO of ready-to-send raw IPSC datagrams; head is the oldest.
	TXQueue [][]byte

	// Captured voice frames for echo playback.
	EchoBuf []dmr.VoiceBytes

	LastSentAt  time.Time
	Voicestream VoiceStream
}

// Repeater is one registered IPSC peer, keyed by its IPv4 address.
type Repeater struct {
	IPAddr    net.IP
	ID        dmr.ID
	Callsign  string
	Type      string
	FWVersion string
	DLFreq    uint32
	ULFreq    uint32

	SNMPIgnored bool

	LastActiveAt              time.Time
	LastRepeaterInfoRequestAt time.Time
	AutoRSSIUpdateEnabledAt   time.Time
	LastRSSIRequestAt         time.Time

	Slots [2]*Slot
}

func newRepeater(ipaddr net.IP) *Repeater {
	r := &Repeater{
		IPAddr: append(net.IP{}, ipaddr...),
	}
	for i := range r.Slots {
		r.Slots[i] = &Slot{
			EmbSigLCStorage: coding.NewVBPTC1611(embSigLCRows),
		}
	}
	return r
}

// Slot returns the slot record for a timeslot.
func (r *Repeater) Slot(ts dmr.Timeslot) *Slot {
	return r.Slots[ts]
}

// DisplayString identifies the repeater in log lines: the lowercased
// callsign once known, the IP address before that.
func (r *Repeater) DisplayString() string {
	if r.Callsign != "" {
		return strings.ToLower(r.Callsign)
	}
	return r.IPAddr.String()
}

// SlotSnapshot is a read-only view of a slot for the status surfaces.
type SlotSnapshot struct {
	State      string `json:"state"`
	SrcID      dmr.ID `json:"src_id,omitempty"`
	DstID      dmr.ID `json:"dst_id,omitempty"`
	CallType   string `json:"call_type,omitempty"`
	TXQueueLen int    `json:"tx_queue_len"`
	Stream     string `json:"stream,omitempty"`
}

// Snapshot is a read-only view of a repeater for the status surfaces.
type Snapshot struct {
	IPAddr       string          `json:"ip"`
	ID           dmr.ID          `json:"id"`
	Callsign     string          `json:"callsign"`
	Type         string          `json:"type"`
	FWVersion    string          `json:"fw_version"`
	DLFreq       uint32          `json:"dl_freq"`
	ULFreq       uint32          `json:"ul_freq"`
	SNMPIgnored  bool            `json:"snmp_ignored"`
	LastActiveAt time.Time       `json:"last_active_at"`
	Slots        [2]SlotSnapshot `json:"slots"`
}

// Snapshot returns a consistent copy of the repeater's state.
func (r *Repeater) Snapshot() Snapshot {
	snap := Snapshot{
		IPAddr:       r.IPAddr.String(),
		ID:           r.ID,
		Callsign:     r.Callsign,
		Type:         r.Type,
		FWVersion:    r.FWVersion,
		DLFreq:       r.DLFreq,
		ULFreq:       r.ULFreq,
		SNMPIgnored:  r.SNMPIgnored,
		LastActiveAt: r.LastActiveAt,
	}
	for i, slot := range r.Slots {
		snap.Slots[i] = SlotSnapshot{
			State:      slot.State.String(),
			TXQueueLen: len(slot.TXQueue),
		}
		if slot.State != SlotStateIdle {
			snap.Slots[i].SrcID = slot.SrcID
			snap.Slots[i].DstID = slot.DstID
			snap.Slots[i].CallType = slot.CallType.String()
		}
		if slot.Voicestream != nil {
			snap.Slots[i].Stream = slot.Voicestream.StreamName()
		}
	}
	return snap
}
