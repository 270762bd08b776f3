package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestZerologAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	z := NewZerologAdapterWithLogger(zerolog.New(&buf))

	z.Info("head changed",
		String("color", "#ff0000"),
		Int("entries", 2),
		Bool("blink", true),
		Duration("interval", 500*time.Millisecond),
		Err(errors.New("boom")),
	)

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if got["message"] != "head changed" {
		t.Errorf("message = %v", got["message"])
	}
	if got["color"] != "#ff0000" {
		t.Errorf("color = %v", got["color"])
	}
	if got["entries"] != float64(2) {
		t.Errorf("entries = %v", got["entries"])
	}
	if got["error"] != "boom" {
		t.Errorf("error = %v", got["error"])
	}
	if got["level"] != "info" {
		t.Errorf("level = %v", got["level"])
	}
}

func TestZerologAdapter_DisabledLevel(t *testing.T) {
	var buf bytes.Buffer
	z := NewZerologAdapterWithLogger(zerolog.New(&buf).Level(zerolog.WarnLevel))

	z.Debug("tick")
	z.Info("tick")
	if buf.Len() != 0 {
		t.Errorf("disabled levels wrote %q", buf.String())
	}
	z.Warn("slow tick")
	if buf.Len() == 0 {
		t.Error("warn was not written")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"WARN":  zerolog.WarnLevel,
		"":      zerolog.InfoLevel,
		"loud":  zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
