package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestInfoWritesLogfmt(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	Info("tip adopted", "height", 42, "hash", "0xabc")

	line := buf.String()
	for _, want := range []string{"lvl=info", "msg=\"tip adopted\"", "height=42", "hash=0xabc"} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line missing %q: %s", want, line)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelWarn)
	defer func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	}()

	Info("should be dropped")
	Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Fatalf("info record was not filtered: %s", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("warn record missing: %s", out)
	}
}
