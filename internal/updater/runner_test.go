package updater

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/loykin/upgradr/internal/logger"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires unix shell")
	}
}

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil { // #nosec G306 -- test script must be executable
		t.Fatalf("write script: %v", err)
	}
}

func checkSpec(t *testing.T) Spec {
	t.Helper()
	return Spec{BinDir: t.TempDir(), Binary: "updater", DataDir: t.TempDir()}
}

func TestRunCheckNoUpdate(t *testing.T) {
	requireUnix(t)
	spec := checkSpec(t)
	writeScript(t, spec.BinDir, spec.Binary, "exit 0\n")
	res := New(spec, nil).RunCheck(false)
	if res.StartFailed || res.FinishTimedOut {
		t.Fatalf("unexpected flags: %+v", res)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d, want 0", res.ExitCode)
	}
}

func TestRunCheckArgsPassed(t *testing.T) {
	requireUnix(t)
	spec := checkSpec(t)
	// $3 is the data directory in check mode.
	writeScript(t, spec.BinDir, spec.Binary, "printf '%s\\n' \"$@\" > \"$3/args.txt\"\nexit 0\n")
	res := New(spec, nil).RunCheck(true)
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d", res.ExitCode)
	}
	b, err := os.ReadFile(filepath.Join(spec.DataDir, "args.txt"))
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	got := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	want := []string{"--check-only", "--dir", spec.DataDir, "--debug", "--pre-release"}
	if len(got) != len(want) {
		t.Fatalf("args = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("arg[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRunCheckCapturesReport(t *testing.T) {
	requireUnix(t)
	spec := checkSpec(t)
	writeScript(t, spec.BinDir, spec.Binary,
		"printf 'Name: 9.9\\nTag: v9.9\\nDate: 2024-06-30T12:00:00Z\\nBig release.'\nexit 100\n")
	res := New(spec, nil).RunCheck(false)
	if res.ExitCode != 100 {
		t.Fatalf("exit code = %d, want 100", res.ExitCode)
	}
	o := ParseResult(res)
	if o.Kind != UpdateAvailable || o.Update == nil {
		t.Fatalf("outcome = %+v", o)
	}
	if o.Update.VersionTag != "v9.9" || o.Update.ReleaseNotes != "Big release." {
		t.Fatalf("payload = %+v", o.Update)
	}
}

func TestRunCheckCapturesStderr(t *testing.T) {
	requireUnix(t)
	spec := checkSpec(t)
	writeScript(t, spec.BinDir, spec.Binary, "printf 'disk full' >&2\nexit 1\n")
	res := New(spec, nil).RunCheck(false)
	if res.ExitCode != 1 {
		t.Fatalf("exit code = %d, want 1", res.ExitCode)
	}
	if string(res.Stderr) != "disk full" {
		t.Fatalf("stderr = %q", res.Stderr)
	}
}

func TestRunCheckStartFailure(t *testing.T) {
	requireUnix(t)
	spec := checkSpec(t) // no script written
	res := New(spec, nil).RunCheck(false)
	if !res.StartFailed {
		t.Fatalf("expected start failure: %+v", res)
	}
	if res.ExitCode != -1 {
		t.Fatalf("exit code = %d, want -1", res.ExitCode)
	}
	if o := ParseResult(res); o.Kind != UnknownExit {
		t.Fatalf("outcome = %v, want UnknownExit", o.Kind)
	}
}

func TestRunCheckFinishTimeout(t *testing.T) {
	requireUnix(t)
	spec := checkSpec(t)
	spec.FinishTimeout = 200 * time.Millisecond
	writeScript(t, spec.BinDir, spec.Binary, "sleep 5\n")
	start := time.Now()
	res := New(spec, nil).RunCheck(false)
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("check did not return promptly: %v", elapsed)
	}
	if !res.FinishTimedOut || res.ExitCode != -1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRunCheckTranscript(t *testing.T) {
	requireUnix(t)
	spec := checkSpec(t)
	spec.Log = logger.FileConfig{Dir: t.TempDir()}
	writeScript(t, spec.BinDir, spec.Binary, "printf 'hello transcript'\nexit 0\n")
	res := New(spec, nil).RunCheck(false)
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d", res.ExitCode)
	}
	b, err := os.ReadFile(filepath.Join(spec.Log.Dir, "check.stdout.log"))
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if !strings.Contains(string(b), "hello transcript") {
		t.Fatalf("transcript = %q", b)
	}
}

func TestRunCheckSpecEnv(t *testing.T) {
	requireUnix(t)
	spec := checkSpec(t)
	spec.Env = []string{"UPD_MARKER=hello"}
	writeScript(t, spec.BinDir, spec.Binary, "printf '%s' \"$UPD_MARKER\"\nexit 0\n")
	res := New(spec, nil).RunCheck(false)
	if string(res.Stdout) != "hello" {
		t.Fatalf("stdout = %q, want env marker", res.Stdout)
	}
}

func TestRunInstallDetached(t *testing.T) {
	requireUnix(t)
	spec := checkSpec(t)
	// $2 is the data directory in install mode.
	writeScript(t, spec.BinDir, spec.Binary, ": > \"$2/installed\"\n")
	pid, err := New(spec, nil).RunInstall("v1.2.3", false)
	if err != nil {
		t.Fatalf("RunInstall: %v", err)
	}
	if pid <= 0 {
		t.Fatalf("pid = %d", pid)
	}
	marker := filepath.Join(spec.DataDir, "installed")
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(marker); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("install marker never appeared")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
