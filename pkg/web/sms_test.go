package web

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandleSendSMS(t *testing.T) {
	s := testServer()

	body := `{"dst_id":2161005,"src_id":2161,"ts":1,"call_type":"private","sms_type":"normal","msg":"hi"}`
	rec := httptest.NewRecorder()
	s.handleSendSMS(rec, httptest.NewRequest("POST", "/api/v1/sms", strings.NewReader(body)))

	if rec.Code != 202 {
		t.Fatalf("Expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	select {
	case req := <-s.SMSRequests():
		if req.DstID != 2161005 || req.Msg != "hi" || req.Timeslot != 1 {
			t.Errorf("Request fields lost: %+v", req)
		}
	default:
		t.Fatal("Request should be on the channel")
	}
}

func TestHandleSendSMSRejections(t *testing.T) {
	s := testServer()

	rec := httptest.NewRecorder()
	s.handleSendSMS(rec, httptest.NewRequest("GET", "/api/v1/sms", nil))
	if rec.Code != 405 {
		t.Errorf("GET should be rejected, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.handleSendSMS(rec, httptest.NewRequest("POST", "/api/v1/sms", strings.NewReader("not json")))
	if rec.Code != 400 {
		t.Errorf("Invalid body should be rejected, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.handleSendSMS(rec, httptest.NewRequest("POST", "/api/v1/sms",
		strings.NewReader(`{"dst_id":1,"ts":3,"msg":"x"}`)))
	if rec.Code != 400 {
		t.Errorf("Timeslot 3 should be rejected, got %d", rec.Code)
	}
}
