// Package settings persists update preferences and check bookkeeping in a
// single TOML file. Every setter flushes synchronously; flush problems are
// logged and never surfaced because losing a preference write must not break
// an update cycle.
package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	keyAllowBeta = "allow_beta"
	keyAutoCheck = "auto_check"
	keyInterval  = "update_interval"
	keyLastCheck = "last_check"

	skipNamespace = "skip"

	// DefaultInterval applies when update_interval is absent or unparsable.
	DefaultInterval = 24 * time.Hour
)

// keyDelim replaces viper's default "."; version tags carry dots and must
// stay single path segments under the skip namespace.
const keyDelim = "::"

// Store is a mutex-guarded preference store. Zero value is not usable; use Open.
type Store struct {
	mu     sync.Mutex
	v      *viper.Viper
	path   string
	logger *slog.Logger
}

// Open loads the settings file at path, creating parent directories as
// needed. A missing or corrupt file yields a store with defaults; settings
// must never fail wholesale over one bad value.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("settings: path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("settings: create directory: %w", err)
	}
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		logger.Warn("settings file unreadable, starting fresh", "path", path, "error", err)
		v = newViper(path)
	}
	return &Store{v: v, path: path, logger: logger}, nil
}

func newViper(path string) *viper.Viper {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelim))
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	return v
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// AutoCheck reports whether scheduled checks are enabled. Defaults to true.
func (s *Store) AutoCheck() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.v.IsSet(keyAutoCheck) {
		return true
	}
	return cast.ToBool(s.v.Get(keyAutoCheck))
}

func (s *Store) SetAutoCheck(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(keyAutoCheck, on)
	s.flush()
}

// BetaAllowed reports whether pre-release versions are eligible. Defaults to false.
func (s *Store) BetaAllowed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cast.ToBool(s.v.Get(keyAllowBeta))
}

func (s *Store) SetBetaAllowed(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(keyAllowBeta, on)
	s.flush()
}

// Interval returns the configured check interval. The value is persisted in
// seconds; anything absent or unparsable falls back to DefaultInterval.
func (s *Store) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.v.IsSet(keyInterval) {
		return DefaultInterval
	}
	secs, err := cast.ToFloat64E(s.v.Get(keyInterval))
	if err != nil {
		return DefaultInterval
	}
	return time.Duration(secs * float64(time.Second))
}

func (s *Store) SetInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(keyInterval, d.Seconds())
	s.flush()
}

// LastCheck returns the recorded completion time of the most recent check.
// ok is false when none was recorded or the stored value does not parse.
func (s *Store) LastCheck() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw := cast.ToString(s.v.Get(keyLastCheck))
	if raw == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// RecordCheckTime stores at as the last completed check, in UTC.
func (s *Store) RecordCheckTime(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(keyLastCheck, at.UTC().Format(time.RFC3339))
	s.flush()
}

// IsSkipped reports whether the given version tag was marked to be skipped.
func (s *Store) IsSkipped(tag string) bool {
	if tag == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return cast.ToBool(s.v.Get(skipKey(tag)))
}

// MarkSkipped flags the version tag so future offers for it are suppressed.
func (s *Store) MarkSkipped(tag string) {
	if tag == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(skipKey(tag), true)
	s.flush()
}

// ClearSkipped removes the skip flag for the version tag.
func (s *Store) ClearSkipped(tag string) {
	if tag == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(skipKey(tag), false)
	s.flush()
}

// Skipped lists all currently skipped version tags, sorted.
func (s *Store) Skipped() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := s.v.GetStringMap(skipNamespace)
	out := make([]string, 0, len(sub))
	for tag, raw := range sub {
		if cast.ToBool(raw) {
			out = append(out, tag)
		}
	}
	sort.Strings(out)
	return out
}

// Snapshot is a point-in-time view of all preferences for status output.
type Snapshot struct {
	AutoCheck       bool     `json:"auto_check"`
	BetaAllowed     bool     `json:"allow_beta"`
	IntervalSeconds float64  `json:"update_interval_seconds"`
	LastCheck       string   `json:"last_check,omitempty"`
	Skipped         []string `json:"skipped,omitempty"`
}

// Snapshot assembles the current preferences. Fields are read sequentially,
// so a concurrent setter may land between reads; callers use this for
// display, not decisions.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		AutoCheck:       s.AutoCheck(),
		BetaAllowed:     s.BetaAllowed(),
		IntervalSeconds: s.Interval().Seconds(),
		Skipped:         s.Skipped(),
	}
	if ts, ok := s.LastCheck(); ok {
		snap.LastCheck = ts.Format(time.RFC3339)
	}
	return snap
}

func skipKey(tag string) string { return skipNamespace + keyDelim + tag }

// flush writes the file synchronously. Callers hold mu.
func (s *Store) flush() {
	if err := s.v.WriteConfigAs(s.path); err != nil {
		s.logger.Warn("settings flush failed", "path", s.path, "error", err)
	}
}
