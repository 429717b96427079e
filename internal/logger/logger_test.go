package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer, level Level) *Logger {
	return New(Config{
		Level:  level,
		Pretty: false,
		Output: buf,
	})
}

func TestNew(t *testing.T) {
	if l := New(DefaultConfig()); l == nil {
		t.Fatal("New() returned nil")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != InfoLevel {
		t.Errorf("Level = %v, want InfoLevel", cfg.Level)
	}
	if !cfg.Pretty {
		t.Error("Pretty should be true by default")
	}
	if cfg.Output == nil {
		t.Error("Output should not be nil")
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, InfoLevel).WithComponent("assets")
	l.Info("test message")

	if !strings.Contains(buf.String(), `"component":"assets"`) {
		t.Errorf("output should contain component: %s", buf.String())
	}
}

func TestLogger_WithURL(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, InfoLevel).WithURL("https://example.com/about")
	l.Warn("render failed")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["url"] != "https://example.com/about" {
		t.Errorf("url = %v", entry["url"])
	}
	if entry["level"] != "warn" {
		t.Errorf("level = %v, want warn", entry["level"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, WarnLevel)

	l.Debug("hidden")
	l.Infof("hidden %d", 1)
	if buf.Len() != 0 {
		t.Errorf("expected no output below warn level, got %s", buf.String())
	}

	l.Errorf("visible %s", "error")
	if !strings.Contains(buf.String(), "visible error") {
		t.Errorf("error message missing: %s", buf.String())
	}
}

func TestLogger_ErrorEvent(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, InfoLevel)

	l.ErrorEvent(errors.New("boom"), "https://example.com/a.png", "fetch")

	out := buf.String()
	for _, want := range []string{`"operation":"fetch"`, `"error":"boom"`, `a.png`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestLogger_PageEvent(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, InfoLevel)

	l.PageEvent("https://example.com/about", "about/index.html", 3)

	if !strings.Contains(buf.String(), `"path":"about/index.html"`) {
		t.Errorf("output missing path: %s", buf.String())
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error("should not panic")
	l.PageEvent("u", "p", 0)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"info", InfoLevel, false},
		{"warn", WarnLevel, false},
		{"nope", InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
