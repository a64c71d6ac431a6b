package dmrdata

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/jafo2128/dmrshark/pkg/dmr"
	"github.com/jafo2128/dmrshark/pkg/logger"
	"github.com/jafo2128/dmrshark/pkg/repeaters"
)

func testSetup() (*Sender, *repeaters.Registry) {
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	reg := repeaters.New(repeaters.Config{}, repeaters.Deps{}, log)
	return New(reg, log), reg
}

func TestBroadcastFansOutToAllRepeaters(t *testing.T) {
	s, reg := testSetup()
	now := time.Now()
	r1 := reg.Add(net.ParseIP("10.0.0.1").To4(), now)
	r2 := reg.Add(net.ParseIP("10.0.0.2").To4(), now)

	s.SendSMS(true, nil, dmr.TS1, dmr.CallTypeGroup, 2161005, 2161, "hi")

	if len(r1.Slots[0].TXQueue) == 0 || len(r2.Slots[0].TXQueue) == 0 {
		t.Error("Broadcast should enqueue on every known repeater")
	}
	if len(r1.Slots[0].TXQueue) != len(r2.Slots[0].TXQueue) {
		t.Error("Both repeaters should get the same transmission")
	}
}

func TestDirectedSendTouchesOneRepeater(t *testing.T) {
	s, reg := testSetup()
	now := time.Now()
	r1 := reg.Add(net.ParseIP("10.0.0.1").To4(), now)
	r2 := reg.Add(net.ParseIP("10.0.0.2").To4(), now)

	s.SendSMS(false, r2, dmr.TS2, dmr.CallTypePrivate, 2161005, 2161, "hi")

	if len(r1.Slots[0].TXQueue)+len(r1.Slots[1].TXQueue) != 0 {
		t.Error("Directed send must not touch other repeaters")
	}
	if len(r2.Slots[1].TXQueue) == 0 {
		t.Error("Directed send should enqueue on the target slot")
	}
}

func TestBuildTMSFragment(t *testing.T) {
	f := BuildTMSFragment("hi")

	// 2 length bytes + 3 envelope bytes + 2 UTF-16LE characters.
	if len(f) != 2+3+4 {
		t.Fatalf("Expected 9 bytes, got %d", len(f))
	}
	if pduLen := int(f[0])<<8 | int(f[1]); pduLen != len(f)-2 {
		t.Errorf("PDU length field is %d, want %d", pduLen, len(f)-2)
	}
	if f[2] != tmsProtocolID {
		t.Errorf("Expected protocol marker 0x%02x, got 0x%02x", tmsProtocolID, f[2])
	}
	if f[5] != 'h' || f[6] != 0x00 || f[7] != 'i' || f[8] != 0x00 {
		t.Error("Text should be UTF-16LE encoded")
	}
}
