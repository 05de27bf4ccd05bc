package logx

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestWithDoesNotLeakBetweenChildren(t *testing.T) {
	var buf bytes.Buffer
	base := NewWriter(&buf, "debug").With(String("comp", "broadcast"))
	a := base.With(String("child", "a"))
	b := base.With(String("child", "b"))

	a.Info("one")
	b.Warn("two", Err(nil), Int("n", 2))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	var rec []map[string]any
	for _, l := range lines {
		var m map[string]any
		if err := json.Unmarshal([]byte(l), &m); err != nil {
			t.Fatal(err)
		}
		rec = append(rec, m)
	}
	if rec[0]["child"] != "a" || rec[1]["child"] != "b" || rec[1]["comp"] != "broadcast" {
		t.Fatalf("records = %v", rec)
	}
	if _, ok := rec[1]["err"]; ok {
		t.Fatal("nil error should not be logged")
	}
	if c, _ := rec[0]["caller"].(string); !strings.HasPrefix(c, "logger_test.go:") {
		t.Fatalf("caller = %q", c)
	}
}

func TestZeroLoggerDiscards(t *testing.T) {
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	l.Error("dropped")
	if Nop().IsZero() {
		t.Fatal("Nop is a configured logger")
	}
}

func TestNewWriterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "warn")
	l.Info("hidden")
	l.Error("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("output = %q", buf.String())
	}
}
