package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestInitWritesTextLogToFile(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "beamfleetd.log")

	log, err := Init("debug", "text", logFile, "", false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	log.Info("hello", "node", "w1")

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello") || !strings.Contains(string(data), "w1") {
		t.Fatalf("log file missing expected content: %s", data)
	}
}

func TestInitWithoutLogFileStillWorks(t *testing.T) {
	log, err := Init("info", "json", "", "", false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	log.Info("no file sink configured")
}

func TestAuditAppendsJSONLine(t *testing.T) {
	dir := t.TempDir()
	log, err := Init("info", "text", "", dir, false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	log.Audit(AuditEntry{
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Op:        "start-node",
		Node:      "w1",
		Result:    "ok",
	})

	data, err := os.ReadFile(filepath.Join(dir, "audit.log"))
	if err != nil {
		t.Fatalf("read audit.log: %v", err)
	}
	line := strings.TrimSpace(string(data))
	for _, want := range []string{`"op":"start-node"`, `"node":"w1"`, `"result":"ok"`, `"ts":"2026-01-02T03:04:05Z"`} {
		if !strings.Contains(line, want) {
			t.Errorf("audit line %q missing %q", line, want)
		}
	}
}

func TestAuditWithoutFleetHomeDoesNotPanic(t *testing.T) {
	log, err := Init("info", "text", "", "", false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	log.Audit(AuditEntry{Op: "list-nodes", Result: "ok"})
}
