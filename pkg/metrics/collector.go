// Package metrics collects in-process counters for the status surface.
package metrics

import (
	"sync"
)

// Collector aggregates monitor statistics. Safe for concurrent use;
// the web surface reads it from its own goroutines.
type Collector struct {
	mu sync.RWMutex

	packetsDecoded  uint64
	packetsRejected uint64
	heartbeats      uint64
	packetsByType   map[string]uint64

	datagramsSent     uint64
	sendFailures      uint64
	smsQueued         uint64
	smsDelivered      uint64
	smsFailed         uint64
	repeatersAdded    uint64
	repeatersRemoved  uint64
	voiceCallsStarted uint64
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		packetsByType: make(map[string]uint64),
	}
}

// PacketDecoded records a successfully decoded IPSC datagram
func (c *Collector) PacketDecoded(slotType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packetsDecoded++
	c.packetsByType[slotType]++
}

// PacketRejected records a datagram the decoder refused
func (c *Collector) PacketRejected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packetsRejected++
}

// HeartbeatSeen records a keepalive datagram
func (c *Collector) HeartbeatSeen() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heartbeats++
}

// DatagramSent records one transmitted datagram
func (c *Collector) DatagramSent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.datagramsSent++
}

// SendFailure records a raw socket send failure
func (c *Collector) SendFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendFailures++
}

// SMSQueued records an SMS added to the TX buffer
func (c *Collector) SMSQueued() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.smsQueued++
}

// SMSDelivered records an acknowledged SMS
func (c *Collector) SMSDelivered() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.smsDelivered++
}

// SMSFailed records an SMS that ran out of tries
func (c *Collector) SMSFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.smsFailed++
}

// RepeaterAdded records a new repeater registration
func (c *Collector) RepeaterAdded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repeatersAdded++
}

// RepeaterRemoved records a repeater eviction
func (c *Collector) RepeaterRemoved() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repeatersRemoved++
}

// VoiceCallStarted records a voice call opening
func (c *Collector) VoiceCallStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.voiceCallsStarted++
}

// Snapshot is a point-in-time copy of all counters
type Snapshot struct {
	PacketsDecoded    uint64            `json:"packets_decoded"`
	PacketsRejected   uint64            `json:"packets_rejected"`
	Heartbeats        uint64            `json:"heartbeats"`
	PacketsByType     map[string]uint64 `json:"packets_by_type"`
	DatagramsSent     uint64            `json:"datagrams_sent"`
	SendFailures      uint64            `json:"send_failures"`
	SMSQueued         uint64            `json:"sms_queued"`
	SMSDelivered      uint64            `json:"sms_delivered"`
	SMSFailed         uint64            `json:"sms_failed"`
	RepeatersAdded    uint64            `json:"repeaters_added"`
	RepeatersRemoved  uint64            `json:"repeaters_removed"`
	VoiceCallsStarted uint64            `json:"voice_calls_started"`
}

// GetSnapshot returns a copy of all counters
func (c *Collector) GetSnapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byType := make(map[string]uint64, len(c.packetsByType))
	for k, v := range c.packetsByType {
		byType[k] = v
	}

	return Snapshot{
		PacketsDecoded:    c.packetsDecoded,
		PacketsRejected:   c.packetsRejected,
		Heartbeats:        c.heartbeats,
		PacketsByType:     byType,
		DatagramsSent:     c.datagramsSent,
		SendFailures:      c.sendFailures,
		SMSQueued:         c.smsQueued,
		SMSDelivered:      c.smsDelivered,
		SMSFailed:         c.smsFailed,
		RepeatersAdded:    c.repeatersAdded,
		RepeatersRemoved:  c.repeatersRemoved,
		VoiceCallsStarted: c.voiceCallsStarted,
	}
}
