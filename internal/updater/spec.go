package updater

import (
	"errors"
	"path/filepath"
	"runtime"
	"time"

	"github.com/loykin/upgradr/internal/logger"
)

// Wait bounds for check-mode invocations. Install mode is detached and
// never waited on.
const (
	DefaultStartTimeout  = 5 * time.Second
	DefaultFinishTimeout = 60 * time.Second
)

// Exit codes of the updater binary. These are an inter-process protocol;
// the values must not change.
const (
	ExitNoUpdate        = 0
	ExitCheckFailed     = 1
	ExitUpdateAvailable = 100
)

// Spec describes the external updater binary and how to invoke it.
// Binary is a base name without platform suffix; on Windows ".exe" is
// appended. The binary is resolved inside BinDir, never via PATH.
type Spec struct {
	BinDir        string            `json:"bin_dir"`
	Binary        string            `json:"binary"`
	DataDir       string            `json:"data_dir"`
	Env           []string          `json:"env"`            // optional extra env
	StartTimeout  time.Duration     `json:"start_timeout"`  // 0 means DefaultStartTimeout
	FinishTimeout time.Duration     `json:"finish_timeout"` // 0 means DefaultFinishTimeout
	Log           logger.FileConfig `json:"log"`            // optional run transcripts
}

// Validate reports configuration errors that would make every invocation fail.
func (s *Spec) Validate() error {
	if s.Binary == "" {
		return errors.New("updater: binary name is required")
	}
	if s.DataDir == "" {
		return errors.New("updater: data dir is required")
	}
	return nil
}

// BinaryPath resolves the platform-qualified updater executable path.
func (s *Spec) BinaryPath() string {
	name := s.Binary
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	if s.BinDir == "" {
		return name
	}
	return filepath.Join(s.BinDir, name)
}

// CheckArgs builds the argument list for a check-only invocation.
func (s *Spec) CheckArgs(allowBeta bool) []string {
	args := []string{"--check-only", "--dir", s.DataDir, "--debug"}
	if allowBeta {
		args = append(args, "--pre-release")
	}
	return args
}

// InstallArgs builds the argument list for an install invocation.
func (s *Spec) InstallArgs(versionTag string, allowBeta bool) []string {
	args := []string{"--dir", s.DataDir, "--install-version", versionTag}
	if allowBeta {
		args = append(args, "--pre-release")
	}
	return args
}

func (s *Spec) startTimeout() time.Duration {
	if s.StartTimeout > 0 {
		return s.StartTimeout
	}
	return DefaultStartTimeout
}

func (s *Spec) finishTimeout() time.Duration {
	if s.FinishTimeout > 0 {
		return s.FinishTimeout
	}
	return DefaultFinishTimeout
}
