// Package voicestreams associates named capture sinks with repeater
// slots. Received voice payloads are appended to per-call raw AMBE
// files; decoding them to audio is someone else's job.
package voicestreams

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/jafo2128/dmrshark/pkg/dmr"
	"github.com/jafo2128/dmrshark/pkg/logger"
)

// StreamConfig defines one stream.
type StreamConfig struct {
	Name         string
	RepeaterHost string
	Timeslot     dmr.Timeslot
	SaveDir      string
}

// Resolver maps the configured repeater host to an address.
type Resolver interface {
	HostnameToIP(host string) (net.IP, bool)
}

// Stream is one configured voice sink. It collects the frames of a
// call into a raw AMBE file named after the call's start second; a call
// that starts within the same second as the previous one is appended to
// that call's file.
type Stream struct {
	cfg  StreamConfig
	log  *logger.Logger
	file *os.File
}

// StreamName returns the configured stream name.
func (s *Stream) StreamName() string {
	return s.cfg.Name
}

// WriteVoiceFrame appends one voice payload to the call capture,
// opening a new file on the first frame.
func (s *Stream) WriteVoiceFrame(vb *dmr.VoiceBytes) {
	if s.file == nil {
		if s.cfg.SaveDir == "" {
			return
		}
		if err := os.MkdirAll(s.cfg.SaveDir, 0755); err != nil {
			s.log.Error("can't create voice stream directory",
				logger.String("stream", s.cfg.Name), logger.Error(err))
			return
		}
		name := filepath.Join(s.cfg.SaveDir,
			fmt.Sprintf("%s-%s.ambe", s.cfg.Name, time.Now().Format("20060102-150405")))
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			s.log.Error("can't open voice stream file",
				logger.String("stream", s.cfg.Name), logger.Error(err))
			return
		}
		s.log.Info("voice stream capture started",
			logger.String("stream", s.cfg.Name), logger.String("file", name))
		s.file = f
	}

	if _, err := s.file.Write(vb[:]); err != nil {
		s.log.Error("can't write voice stream file",
			logger.String("stream", s.cfg.Name), logger.Error(err))
	}
}

// CallEnded closes the current capture file.
func (s *Stream) CallEnded() {
	if s.file == nil {
		return
	}
	s.file.Close()
	s.file = nil
}

// Streams is the stream registry, looked up by repeater address and
// timeslot when a repeater is registered.
type Streams struct {
	streams []*streamEntry
	log     *logger.Logger
}

type streamEntry struct {
	stream *Stream
	ipaddr net.IP
	ts     dmr.Timeslot
}

// New builds the registry from configuration, resolving repeater hosts
// once at startup.
func New(configs []StreamConfig, resolver Resolver, log *logger.Logger) *Streams {
	st := &Streams{log: log}
	for _, cfg := range configs {
		ipaddr, ok := resolver.HostnameToIP(cfg.RepeaterHost)
		if !ok {
			log.Warn("can't resolve voice stream repeater host",
				logger.String("stream", cfg.Name),
				logger.String("host", cfg.RepeaterHost))
			continue
		}
		st.streams = append(st.streams, &streamEntry{
			stream: &Stream{cfg: cfg, log: log},
			ipaddr: ipaddr,
			ts:     cfg.Timeslot,
		})
	}
	return st
}

// GetStreamForRepeater returns the stream configured for a repeater
// slot, or nil.
func (st *Streams) GetStreamForRepeater(ipaddr net.IP, ts dmr.Timeslot) *Stream {
	for _, entry := range st.streams {
		if entry.ts == ts && entry.ipaddr.Equal(ipaddr) {
			return entry.stream
		}
	}
	return nil
}
