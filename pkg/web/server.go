// Package web is the status surface: JSON views of the repeater
// registry, the SMS queue and the counters, plus a websocket feed of
// call and SMS events.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jafo2128/dmrshark/pkg/config"
	"github.com/jafo2128/dmrshark/pkg/logger"
	"github.com/jafo2128/dmrshark/pkg/metrics"
	"github.com/jafo2128/dmrshark/pkg/repeaters"
)

// SMSRequest is an operator request to queue an SMS, handed to the
// tick loop over a channel; the web goroutines never touch the core.
type SMSRequest struct {
	DstID    uint32 `json:"dst_id"`
	SrcID    uint32 `json:"src_id"`
	Timeslot int    `json:"ts"`        // 1 or 2
	CallType string `json:"call_type"` // group or private
	SMSType  string `json:"sms_type"`  // normal or motorola-tms
	Msg      string `json:"msg"`
}

// SMSQueueEntry is the JSON view of one queued SMS.
type SMSQueueEntry struct {
	DstID     uint32    `json:"dst_id"`
	SrcID     uint32    `json:"src_id"`
	CallType  string    `json:"call_type"`
	SMSType   string    `json:"sms_type"`
	Msg       string    `json:"msg"`
	SendTries int       `json:"send_tries"`
	AddedAt   time.Time `json:"added_at"`
}

// Server serves the status API. The tick loop pushes registry and
// queue snapshots into it; HTTP handlers only ever read those copies,
// so the single-threaded core is never touched from here.
type Server struct {
	cfg     config.WebConfig
	log     *logger.Logger
	hub     *WebSocketHub
	metrics *metrics.Collector

	mu        sync.RWMutex
	repeaters []repeaters.Snapshot
	smsQueue  []SMSQueueEntry

	smsRequests chan SMSRequest

	startedAt time.Time
	server    *http.Server
}

// NewServer creates the status server.
func NewServer(cfg config.WebConfig, coll *metrics.Collector, log *logger.Logger) *Server {
	return &Server{
		cfg:         cfg,
		log:         log,
		hub:         NewWebSocketHub(log),
		metrics:     coll,
		smsRequests: make(chan SMSRequest, 16),
		startedAt:   time.Now(),
	}
}

// SMSRequests returns the channel of queued operator SMS requests.
func (s *Server) SMSRequests() <-chan SMSRequest {
	return s.smsRequests
}

// Hub returns the websocket event hub.
func (s *Server) Hub() *WebSocketHub {
	return s.hub
}

// SetRepeaters stores a fresh registry snapshot.
func (s *Server) SetRepeaters(snaps []repeaters.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repeaters = snaps
}

// SetSMSQueue stores a fresh SMS queue snapshot.
func (s *Server) SetSMSQueue(entries []SMSQueueEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.smsQueue = entries
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/repeaters", s.handleRepeaters)
	mux.HandleFunc("/api/v1/smsqueue", s.handleSMSQueue)
	mux.HandleFunc("/api/v1/sms", s.handleSendSMS)
	mux.Handle("/ws", s.hub.Handler())

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler: mux,
	}

	go s.hub.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log.Info("web server listening", logger.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("can't encode api response", logger.Error(err))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	repeaterCount := len(s.repeaters)
	queueLen := len(s.smsQueue)
	s.mu.RUnlock()

	status := map[string]interface{}{
		"uptime_sec":    int(time.Since(s.startedAt).Seconds()),
		"repeaters":     repeaterCount,
		"sms_queue_len": queueLen,
		"ws_clients":    s.hub.GetClientCount(),
	}
	if s.metrics != nil {
		status["counters"] = s.metrics.GetSnapshot()
	}
	s.writeJSON(w, status)
}

func (s *Server) handleRepeaters(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	snaps := s.repeaters
	s.mu.RUnlock()

	if snaps == nil {
		snaps = []repeaters.Snapshot{}
	}
	s.writeJSON(w, snaps)
}

func (s *Server) handleSendSMS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SMSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Msg == "" || req.DstID == 0 || (req.Timeslot != 1 && req.Timeslot != 2) {
		http.Error(w, "msg, dst_id and ts (1 or 2) are required", http.StatusBadRequest)
		return
	}

	select {
	case s.smsRequests <- req:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "queued"}); err != nil {
			s.log.Error("can't encode api response", logger.Error(err))
		}
	default:
		http.Error(w, "sms request queue full", http.StatusServiceUnavailable)
	}
}

func (s *Server) handleSMSQueue(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	queue := s.smsQueue
	s.mu.RUnlock()

	if queue == nil {
		queue = []SMSQueueEntry{}
	}
	s.writeJSON(w, queue)
}
