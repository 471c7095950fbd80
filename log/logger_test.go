package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("feather", Warn, &buf)

	l.Info("hidden")
	l.Warn("shown %d", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected info line to be filtered: %q", out)
	}
	if !strings.Contains(out, "WARN  [feather] shown 1") {
		t.Errorf("Unexpected output %q", out)
	}
}

func TestLogger_NamedWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("feather", Debug, &buf).Named("transfer").With("id", "abc").With("n", 2)

	l.Debug("copied")

	out := buf.String()
	if !strings.Contains(out, "[feather/transfer] copied id=abc n=2") {
		t.Errorf("Unexpected output %q", out)
	}
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("feather", Info, &buf).With("path", "/a")
	l.JSON = true

	l.Error("failed")

	var entry logEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if entry.Level != "ERROR" || entry.Message != "failed" || entry.Fields["path"] != "/a" {
		t.Errorf("Unexpected entry %+v", entry)
	}
}

func TestParseLevel(t *testing.T) {
	if level, err := ParseLevel("debug"); err != nil || level != Debug {
		t.Errorf("Expected Debug, got %v (%v)", level, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Errorf("Expected error for unknown level")
	}

	var level LogLevel
	if err := level.UnmarshalText([]byte("warn")); err != nil || level != Warn {
		t.Errorf("Expected Warn, got %v (%v)", level, err)
	}
}
