package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Debug("debug message")
	log.Info("info message")
	log.Warn("warn message")
	log.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") {
		t.Error("Debug message should be suppressed at warn level")
	}
	if strings.Contains(out, "info message") {
		t.Error("Info message should be suppressed at warn level")
	}
	if !strings.Contains(out, "warn message") {
		t.Error("Warn message should be logged")
	}
	if !strings.Contains(out, "error message") {
		t.Error("Error message should be logged")
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Output: &buf})

	log.Info("sms queued", Uint32("dst_id", 2161005), String("msg", "hi"))

	out := buf.String()
	if !strings.Contains(out, "dst_id=2161005") {
		t.Errorf("Expected dst_id field in output, got: %s", out)
	}
	if !strings.Contains(out, "msg=hi") {
		t.Errorf("Expected msg field in output, got: %s", out)
	}
}

func TestLoggerSubsystemFlags(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Output: &buf})

	log.DMR("dmr chatter")
	log.Repeaters("repeater chatter")
	if buf.Len() != 0 {
		t.Errorf("Subsystem messages should be suppressed without flags, got: %s", buf.String())
	}

	log = New(Config{Level: "info", Flags: Flags{DMR: true}, Output: &buf})
	log.DMR("dmr chatter")
	log.Repeaters("repeater chatter")

	out := buf.String()
	if !strings.Contains(out, "dmr chatter") {
		t.Error("DMR message should be logged with DMR flag set")
	}
	if strings.Contains(out, "repeater chatter") {
		t.Error("Repeaters message should stay suppressed without its flag")
	}
}

func TestLoggerDebugFlagHelpers(t *testing.T) {
	log := New(Config{Level: "debug", Flags: Flags{DMR: true}, Output: &bytes.Buffer{}})
	if !log.DMRDebug() {
		t.Error("DMRDebug should be true with DMR flag and debug level")
	}
	if log.RepeatersDebug() {
		t.Error("RepeatersDebug should be false without the Repeaters flag")
	}

	log = New(Config{Level: "info", Flags: Flags{DMR: true}, Output: &bytes.Buffer{}})
	if log.DMRDebug() {
		t.Error("DMRDebug should be false at info level")
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Output: &buf}).WithComponent("smstxbuf")

	log.Info("first entry sent successfully")
	if !strings.Contains(buf.String(), "[smstxbuf]") {
		t.Errorf("Expected component prefix, got: %s", buf.String())
	}
}
