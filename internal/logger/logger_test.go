package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestInitAndHelpers(t *testing.T) {
	var buf bytes.Buffer
	Init(&Options{Level: slog.LevelDebug, Writer: &buf})

	Info("corpus loaded", "outcomes", 3)
	if !strings.Contains(buf.String(), "corpus loaded") {
		t.Errorf("Expected info line in output, got %q", buf.String())
	}

	buf.Reset()
	With("bet_mode", "base").Warn("optimization plateaued")
	out := buf.String()
	if !strings.Contains(out, "optimization plateaued") {
		t.Errorf("Expected warn line in output, got %q", out)
	}
	if !strings.Contains(out, "base") {
		t.Errorf("Expected attached bet_mode attribute, got %q", out)
	}

	// Re-initialization must not replace the installed handler.
	var other bytes.Buffer
	Init(&Options{Writer: &other})
	Error("should go to the first writer")
	if other.Len() != 0 {
		t.Errorf("Expected second Init to be a no-op, got %q", other.String())
	}
	if !strings.Contains(buf.String(), "should go to the first writer") {
		t.Error("Expected error line on the original writer")
	}
}
