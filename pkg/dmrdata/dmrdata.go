// Package dmrdata is the high-level SMS dispatcher: it fans a message
// out to repeaters and builds the Motorola TMS envelope where needed.
package dmrdata

import (
	"github.com/jafo2128/dmrshark/pkg/dmr"
	"github.com/jafo2128/dmrshark/pkg/logger"
	"github.com/jafo2128/dmrshark/pkg/repeaters"
)

// Sender dispatches SMS transmissions onto the per-slot pipelines.
type Sender struct {
	reg *repeaters.Registry
	log *logger.Logger
}

// New creates a dispatcher over the registry.
func New(reg *repeaters.Registry, log *logger.Logger) *Sender {
	return &Sender{reg: reg, log: log}
}

// SendSMS enqueues a UTF-16LE short data message, to every known
// repeater on broadcast.
func (s *Sender) SendSMS(broadcast bool, r *repeaters.Repeater, ts dmr.Timeslot, callType dmr.CallType, dstID, srcID dmr.ID, msg string) {
	s.fanOut(broadcast, r, func(target *repeaters.Repeater) {
		s.reg.SendSMS(target, ts, callType, dstID, srcID, msg)
	})
}

// SendMotorolaTMSSMS enqueues a message wrapped in the Motorola TMS
// envelope.
func (s *Sender) SendMotorolaTMSSMS(broadcast bool, r *repeaters.Repeater, ts dmr.Timeslot, callType dmr.CallType, dstID, srcID dmr.ID, msg string) {
	fragment := BuildTMSFragment(msg)
	s.fanOut(broadcast, r, func(target *repeaters.Repeater) {
		s.reg.SendSMSFragment(target, ts, callType, dstID, srcID, fragment, dmr.DDFormatBinary)
	})
}

func (s *Sender) fanOut(broadcast bool, r *repeaters.Repeater, send func(*repeaters.Repeater)) {
	if broadcast {
		targets := s.reg.All()
		if len(targets) == 0 {
			s.log.DMR("no repeaters known, sms broadcast goes nowhere")
			return
		}
		for _, target := range targets {
			send(target)
		}
		return
	}

	if r == nil {
		return
	}
	send(r)
}

// tmsProtocolID and tmsFirstSequence are the fixed TMS PDU marker
// bytes seen in reference captures.
const (
	tmsProtocolID    = 0xa0
	tmsFirstSequence = 0x80
	tmsEncodingUTF16 = 0x04
)

// BuildTMSFragment wraps a message in the Motorola text messaging
// service envelope: a big-endian PDU length, the protocol marker,
// sequencing and encoding bytes, then the text in UTF-16LE.
func BuildTMSFragment(msg string) []byte {
	text := make([]byte, 0, len(msg)*2)
	for i := 0; i < len(msg); i++ {
		text = append(text, msg[i], 0x00)
	}

	pduLen := 3 + len(text)
	out := make([]byte, 0, 2+pduLen)
	out = append(out, byte(pduLen>>8), byte(pduLen))
	out = append(out, tmsProtocolID, tmsFirstSequence, tmsEncodingUTF16)
	out = append(out, text...)

	if len(out) > dmr.MaxFragmentSize {
		out = out[:dmr.MaxFragmentSize]
	}
	return out
}
