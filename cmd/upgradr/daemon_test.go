package main

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestWritePidFile(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "upgradr.pid")

	if err := writePidFile(pidFile, 12345); err != nil {
		t.Fatalf("writePidFile: %v", err)
	}

	data, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		t.Fatalf("pid file should hold a bare integer, got %q", data)
	}
	if pid != 12345 {
		t.Fatalf("expected pid 12345, got %d", pid)
	}

	// Overwrite must truncate, not append.
	if err := writePidFile(pidFile, 7); err != nil {
		t.Fatalf("rewrite pid file: %v", err)
	}
	data, _ = os.ReadFile(pidFile)
	if string(data) != "7" {
		t.Fatalf("expected pid file to be truncated to 7, got %q", data)
	}
}

func TestRemovePidFile(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "upgradr.pid")
	if err := writePidFile(pidFile, os.Getpid()); err != nil {
		t.Fatalf("writePidFile: %v", err)
	}

	if err := removePidFile(pidFile); err != nil {
		t.Fatalf("removePidFile: %v", err)
	}
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Fatal("pid file should be gone")
	}

	// Empty path is a no-op.
	if err := removePidFile(""); err != nil {
		t.Fatalf("removePidFile with empty path: %v", err)
	}
}
