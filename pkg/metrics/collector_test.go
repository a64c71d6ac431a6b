package metrics

import (
	"sync"
	"testing"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector()

	c.PacketDecoded("csbk")
	c.PacketDecoded("csbk")
	c.PacketDecoded("voice data a")
	c.PacketRejected()
	c.HeartbeatSeen()
	c.DatagramSent()
	c.SMSQueued()
	c.SMSDelivered()
	c.SMSFailed()
	c.RepeaterAdded()
	c.RepeaterRemoved()
	c.VoiceCallStarted()

	s := c.GetSnapshot()
	if s.PacketsDecoded != 3 {
		t.Errorf("Expected 3 decoded packets, got %d", s.PacketsDecoded)
	}
	if s.PacketsByType["csbk"] != 2 {
		t.Errorf("Expected 2 csbk packets, got %d", s.PacketsByType["csbk"])
	}
	if s.PacketsRejected != 1 || s.Heartbeats != 1 || s.DatagramsSent != 1 {
		t.Errorf("Wire counters wrong: %+v", s)
	}
	if s.SMSQueued != 1 || s.SMSDelivered != 1 || s.SMSFailed != 1 {
		t.Errorf("SMS counters wrong: %+v", s)
	}
	if s.RepeatersAdded != 1 || s.RepeatersRemoved != 1 || s.VoiceCallsStarted != 1 {
		t.Errorf("Registry counters wrong: %+v", s)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	c := NewCollector()
	c.PacketDecoded("csbk")

	s := c.GetSnapshot()
	s.PacketsByType["csbk"] = 99

	if c.GetSnapshot().PacketsByType["csbk"] != 1 {
		t.Error("Mutating a snapshot must not affect the collector")
	}
}

func TestCollectorConcurrency(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.PacketDecoded("voice data a")
				c.GetSnapshot()
			}
		}()
	}
	wg.Wait()

	if got := c.GetSnapshot().PacketsDecoded; got != 800 {
		t.Errorf("Expected 800 decoded packets, got %d", got)
	}
}
