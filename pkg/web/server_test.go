package web

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jafo2128/dmrshark/pkg/config"
	"github.com/jafo2128/dmrshark/pkg/logger"
	"github.com/jafo2128/dmrshark/pkg/metrics"
	"github.com/jafo2128/dmrshark/pkg/repeaters"
)

func testServer() *Server {
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	return NewServer(config.WebConfig{Host: "127.0.0.1", Port: 0}, metrics.NewCollector(), log)
}

func TestHandleStatus(t *testing.T) {
	s := testServer()
	s.metrics.PacketDecoded("csbk")
	s.SetRepeaters([]repeaters.Snapshot{{IPAddr: "10.0.0.1"}})

	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest("GET", "/api/v1/status", nil))

	var status map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("Status response is not JSON: %v", err)
	}
	if status["repeaters"].(float64) != 1 {
		t.Errorf("Expected 1 repeater, got %v", status["repeaters"])
	}
	if _, ok := status["counters"]; !ok {
		t.Error("Status should include the counters")
	}
}

func TestHandleRepeaters(t *testing.T) {
	s := testServer()

	rec := httptest.NewRecorder()
	s.handleRepeaters(rec, httptest.NewRequest("GET", "/api/v1/repeaters", nil))
	var empty []repeaters.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&empty); err != nil {
		t.Fatalf("Empty response should still be a JSON array: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected empty list, got %v", empty)
	}

	s.SetRepeaters([]repeaters.Snapshot{
		{IPAddr: "10.0.0.1", Callsign: "HG5RUC", LastActiveAt: time.Now()},
	})
	rec = httptest.NewRecorder()
	s.handleRepeaters(rec, httptest.NewRequest("GET", "/api/v1/repeaters", nil))

	var snaps []repeaters.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snaps); err != nil {
		t.Fatalf("Response is not JSON: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Callsign != "HG5RUC" {
		t.Errorf("Snapshot lost: %+v", snaps)
	}
}

func TestHandleSMSQueue(t *testing.T) {
	s := testServer()
	s.SetSMSQueue([]SMSQueueEntry{
		{DstID: 2161005, SrcID: 2161, Msg: "hi", CallType: "private", SMSType: "normal"},
	})

	rec := httptest.NewRecorder()
	s.handleSMSQueue(rec, httptest.NewRequest("GET", "/api/v1/smsqueue", nil))

	var queue []SMSQueueEntry
	if err := json.NewDecoder(rec.Body).Decode(&queue); err != nil {
		t.Fatalf("Response is not JSON: %v", err)
	}
	if len(queue) != 1 || queue[0].Msg != "hi" {
		t.Errorf("Queue entry lost: %+v", queue)
	}
}
