package database

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/jafo2128/dmrshark/pkg/logger"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	db, err := NewDB(Config{Path: filepath.Join(t.TempDir(), "test.db")}, log)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCallLogRoundTrip(t *testing.T) {
	db := testDB(t)
	repo := NewCallLogRepository(db.GetDB())

	start := time.Now().Add(-3 * time.Second)
	call := &CallLog{
		RepeaterIP:   "10.0.0.1",
		Callsign:     "HG5RUC",
		Timeslot:     1,
		SrcID:        2161,
		DstID:        9,
		CallType:     "group",
		StartTime:    start,
		EndTime:      start.Add(3 * time.Second),
		Duration:     3,
		TerminatedBy: "terminator",
	}
	if err := repo.Create(call); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	recent, err := repo.GetRecent(10)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("Expected 1 call, got %d", len(recent))
	}
	if recent[0].SrcID != 2161 || recent[0].CallType != "group" {
		t.Errorf("Call record wrong: %+v", recent[0])
	}

	bySrc, err := repo.GetBySrcID(2161, 10)
	if err != nil || len(bySrc) != 1 {
		t.Errorf("GetBySrcID should find the call, got %v (%v)", bySrc, err)
	}
}

func TestPruneBefore(t *testing.T) {
	db := testDB(t)
	calls := NewCallLogRepository(db.GetDB())
	sms := NewSMSLogRepository(db.GetDB())

	old := time.Now().AddDate(0, 0, -120)
	if err := calls.Create(&CallLog{SrcID: 1, DstID: 9, StartTime: old, EndTime: old}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := calls.Create(&CallLog{SrcID: 2, DstID: 9, StartTime: time.Now(), EndTime: time.Now()}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := sms.Create(&SMSLog{DstID: 9, Msg: "old", CreatedAt: old}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := db.PruneBefore(time.Now().AddDate(0, 0, -90)); err != nil {
		t.Fatalf("PruneBefore failed: %v", err)
	}

	recent, err := calls.GetRecent(10)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(recent) != 1 || recent[0].SrcID != 2 {
		t.Errorf("Expected only the recent call to survive, got %+v", recent)
	}

	smsRows, err := sms.GetRecent(10)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(smsRows) != 0 {
		t.Errorf("Old sms row should be pruned, got %+v", smsRows)
	}
}

func TestSMSLogRoundTrip(t *testing.T) {
	db := testDB(t)
	repo := NewSMSLogRepository(db.GetDB())

	if err := repo.Create(&SMSLog{
		DstID:     2161005,
		SrcID:     2161,
		CallType:  "private",
		SMSType:   "normal",
		Msg:       "hi",
		Delivered: true,
		SendTries: 2,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	recent, err := repo.GetRecent(10)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(recent) != 1 || !recent[0].Delivered || recent[0].Msg != "hi" {
		t.Errorf("SMS record wrong: %+v", recent)
	}
}
