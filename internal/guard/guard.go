// Package guard remembers a launched installer across coordinator restarts.
// The host process exits right after spawning the installer, so a pidfile is
// the only memory that an install is still running; start-time metadata in
// the file catches PID reuse after reboots.
package guard

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Record describes the installer noted in the guard file.
type Record struct {
	PID        int       `json:"-"`
	VersionTag string    `json:"version_tag"`
	LaunchedAt time.Time `json:"launched_at"`
}

type pidMeta struct {
	StartUnix int64 `json:"start_unix"`
}

// Guard owns one pidfile.
type Guard struct {
	Path string
}

func New(path string) Guard { return Guard{Path: path} }

// Acquire records the freshly spawned installer. File format: first line is
// the PID, second the install record JSON, third the start-time meta JSON.
func (g Guard) Acquire(pid int, versionTag string) error {
	if g.Path == "" {
		return fmt.Errorf("guard path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(g.Path), 0o750); err != nil {
		return fmt.Errorf("create guard directory: %w", err)
	}
	rec, err := json.Marshal(Record{VersionTag: versionTag, LaunchedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	meta, err := json.Marshal(pidMeta{StartUnix: getProcStartUnix(pid)})
	if err != nil {
		return err
	}
	content := fmt.Sprintf("%d\n%s\n%s\n", pid, rec, meta)
	return os.WriteFile(g.Path, []byte(content), 0o600)
}

// InProgress reports whether the recorded installer still runs. A missing
// file, dead PID, or reused PID all read as no install in progress.
func (g Guard) InProgress() (bool, Record, error) {
	data, err := os.ReadFile(g.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, Record{}, nil
		}
		return false, Record{}, err
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	pidStr := strings.TrimSpace(lines[0])
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return false, Record{}, fmt.Errorf("invalid pid in %s: %w", g.Path, err)
	}

	var rec Record
	if len(lines) >= 2 {
		_ = json.Unmarshal([]byte(strings.TrimSpace(lines[1])), &rec)
	}
	rec.PID = pid

	// Try parse meta from 3rd line
	var metaStart int64
	if len(lines) >= 3 {
		var m pidMeta
		if err := json.Unmarshal([]byte(strings.TrimSpace(lines[2])), &m); err == nil {
			metaStart = m.StartUnix
		}
	}

	if metaStart > 0 {
		cur := getProcStartUnix(pid)
		if cur > 0 && cur != metaStart {
			return false, rec, nil // PID reused; not our installer
		}
	}

	return pidAlive(pid), rec, nil
}

// Release removes the guard file. A missing file is not an error.
func (g Guard) Release() error {
	err := os.Remove(g.Path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// Describe returns a human-readable description for logs.
func (g Guard) Describe() string { return "pidfile:" + g.Path }
