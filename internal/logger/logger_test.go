package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

func TestNew_DefaultsToFallbackText(t *testing.T) {
	var buf bytes.Buffer
	log, closer := New(Config{}, &buf)
	defer func() { _ = closer.Close() }()
	log.Info("spawned", "slot", 0)
	log.Debug("hidden")
	out := buf.String()
	if !strings.Contains(out, "msg=spawned") || !strings.Contains(out, "slot=0") {
		t.Fatalf("unexpected output: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug should be filtered at info level")
	}
}

func TestNew_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log, _ := New(Config{Level: "debug", Format: "json"}, &buf)
	log.Debug("fed", "state", "plain")
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("not json: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "fed" || rec["state"] != "plain" {
		t.Fatalf("unexpected record: %#v", rec)
	}
}

func TestNew_FileDestination(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "barmux.log")
	var fallback bytes.Buffer
	log, closer := New(Config{File: FileConfig{Path: path}}, &fallback)
	log.Warn("reload")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if fallback.Len() != 0 {
		t.Fatalf("fallback should be unused when a file is configured")
	}
	b, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(b), "reload") {
		t.Fatalf("log file missing content: %v %q", err, string(b))
	}
}

func TestFileWriter_DefaultsAndOverrides(t *testing.T) {
	if (FileConfig{}).Writer() != nil {
		t.Fatalf("expected nil writer without a path")
	}
	w := FileConfig{Path: "x"}.Writer().(*lj.Logger)
	if w.MaxSize != 10 || w.MaxBackups != 3 || w.MaxAge != 7 {
		t.Fatalf("unexpected defaults: size=%d backups=%d age=%d", w.MaxSize, w.MaxBackups, w.MaxAge)
	}
	w = FileConfig{Path: "y", MaxSizeMB: 1, MaxBackups: 9, MaxAgeDays: 11, Compress: true}.Writer().(*lj.Logger)
	if w.MaxSize != 1 || w.MaxBackups != 9 || w.MaxAge != 11 || !w.Compress {
		t.Fatalf("unexpected overrides: %+v", w)
	}
}

func TestColorTextHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColorTextHandler(&buf, nil, false))
	log.Error("broken pipe")
	out := buf.String()
	// the text handler quotes the control characters in the message
	if !strings.Contains(out, `\x1b[31mERROR`) {
		t.Fatalf("missing color prefix: %q", out)
	}
	if strings.Contains(out, "time=") {
		t.Fatalf("time should be omitted: %q", out)
	}
}

func TestColorTextHandler_DerivedLoggerKeepsColor(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColorTextHandler(&buf, nil, false)).With("slot", 1).WithGroup("proc")
	log.Warn("slow", "pid", 7)
	out := buf.String()
	if !strings.Contains(out, `\x1b[33mWARN`) || !strings.Contains(out, "slot=1") || !strings.Contains(out, "proc.pid=7") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo, "bogus": slog.LevelInfo}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
