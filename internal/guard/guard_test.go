package guard

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires unix")
	}
}

// startSleep starts a short-lived sleep process and returns *exec.Cmd already started
func startSleep(dur string) (*exec.Cmd, error) {
	if runtime.GOOS == "windows" {
		return nil, fmt.Errorf("unsupported on windows")
	}
	// #nosec G204
	cmd := exec.Command("/bin/sh", "-c", "sleep "+dur)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func TestInProgressNoFile(t *testing.T) {
	g := New(filepath.Join(t.TempDir(), "install.pid"))
	busy, _, err := g.InProgress()
	if err != nil {
		t.Fatalf("InProgress: %v", err)
	}
	if busy {
		t.Fatal("missing file should read as no install")
	}
}

func TestAcquireInProgressRelease(t *testing.T) {
	requireUnix(t)
	cmd, err := startSleep("2")
	if err != nil {
		t.Fatalf("start sleep: %v", err)
	}
	defer func() { _ = cmd.Process.Kill() }()
	pid := cmd.Process.Pid
	// Allow the process to appear in proc table
	time.Sleep(20 * time.Millisecond)

	g := New(filepath.Join(t.TempDir(), "install.pid"))
	if err := g.Acquire(pid, "v3.1.4"); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	busy, rec, err := g.InProgress()
	if err != nil {
		t.Fatalf("InProgress: %v", err)
	}
	if !busy {
		t.Fatal("live installer should read as in progress")
	}
	if rec.PID != pid || rec.VersionTag != "v3.1.4" {
		t.Fatalf("record = %+v", rec)
	}
	if rec.LaunchedAt.IsZero() {
		t.Fatal("record should carry launch time")
	}

	if err := g.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	busy, _, err = g.InProgress()
	if err != nil || busy {
		t.Fatalf("after release: busy=%v err=%v", busy, err)
	}
	// Release again is fine.
	if err := g.Release(); err != nil {
		t.Fatalf("second release: %v", err)
	}
}

func TestInProgressDeadPID(t *testing.T) {
	requireUnix(t)
	cmd, err := startSleep("0.05")
	if err != nil {
		t.Fatalf("start sleep: %v", err)
	}
	pid := cmd.Process.Pid

	g := New(filepath.Join(t.TempDir(), "install.pid"))
	if err := g.Acquire(pid, "v1.0.0"); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	_ = cmd.Wait() // reap so the PID is gone, not a zombie
	busy, _, err := g.InProgress()
	if err != nil {
		t.Fatalf("InProgress: %v", err)
	}
	if busy {
		t.Fatal("dead installer should read as not in progress")
	}
}

func TestInProgressStartTimeMismatch(t *testing.T) {
	requireUnix(t)
	cmd, err := startSleep("2")
	if err != nil {
		t.Fatalf("start sleep: %v", err)
	}
	defer func() { _ = cmd.Process.Kill() }()
	pid := cmd.Process.Pid
	time.Sleep(20 * time.Millisecond)
	start := getProcStartUnix(pid)
	if start == 0 {
		t.Skip("process start time unavailable on this platform")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "install.pid")
	// Intentionally wrong start time, as if the PID was reused
	rec, _ := json.Marshal(Record{VersionTag: "v2.0.0", LaunchedAt: time.Now().UTC()})
	meta, _ := json.Marshal(pidMeta{StartUnix: start + 12345})
	content := strings.Join([]string{strconv.Itoa(pid), string(rec), string(meta)}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write pidfile: %v", err)
	}

	busy, _, err := New(path).InProgress()
	if err != nil {
		t.Fatalf("InProgress: %v", err)
	}
	if busy {
		t.Fatal("mismatched start time must read as not in progress")
	}
}

func TestInProgressInvalidPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "install.pid")
	if err := os.WriteFile(path, []byte("not-a-number\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := New(path).InProgress(); err == nil {
		t.Fatal("garbage pid should error")
	}
}

func TestAcquireRequiresPath(t *testing.T) {
	if err := (Guard{}).Acquire(1234, "v1"); err == nil {
		t.Fatal("empty path should error")
	}
}

// Fuzz InProgress with various malformed inputs to ensure robustness
func FuzzInProgress(f *testing.F) {
	f.Add("123\n", true)
	f.Add("not-a-number\n", false)
	f.Add("\n\n{}\n{\"start_unix\":1}\n", false)
	f.Fuzz(func(t *testing.T, content string, addNL bool) {
		dir := t.TempDir()
		path := filepath.Join(dir, "fuzz.pid")
		if addNL {
			content += "\n"
		}
		_ = os.WriteFile(path, []byte(content), 0o600)
		_, _, _ = New(path).InProgress() // Should never panic
	})
}
