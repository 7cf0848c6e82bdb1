// Package coordinator drives the update cycle: run a check, classify the
// result, bookkeep, and walk an available update through offer, decision,
// and installer launch. One cycle runs at a time; everything else queues
// behind the next scheduled or manual check.
package coordinator

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/loykin/upgradr/internal/guard"
	"github.com/loykin/upgradr/internal/history"
	"github.com/loykin/upgradr/internal/metrics"
	"github.com/loykin/upgradr/internal/presenter"
	"github.com/loykin/upgradr/internal/schedule"
	"github.com/loykin/upgradr/internal/settings"
	"github.com/loykin/upgradr/internal/updater"
)

// Coordinator states, exposed for status surfaces.
const (
	StateIdle       = "idle"
	StateChecking   = "checking"
	StateOffering   = "offering"
	StateInstalling = "installing"
)

var (
	// ErrCheckInFlight rejects a second check while a cycle is running.
	ErrCheckInFlight = errors.New("update check already in progress")
	// ErrInstallInProgress rejects checks while a launched installer still runs.
	ErrInstallInProgress = errors.New("installer already running")
)

// CheckRunner abstracts the updater subprocess for tests.
type CheckRunner interface {
	RunCheck(allowBeta bool) updater.Result
	RunInstall(versionTag string, allowBeta bool) (int, error)
}

// Config wires a Coordinator. Runner and Settings are required; the rest
// default to headless implementations.
type Config struct {
	Runner    CheckRunner
	Settings  *settings.Store
	Presenter presenter.Presenter
	Recorder  *history.Recorder
	Guard     guard.Guard // empty Path disables the install guard
	Logger    *slog.Logger
	// Shutdown runs after a successful installer launch so the installer can
	// replace the host's files. The default exits the process.
	Shutdown func()
}

type Coordinator struct {
	runner   CheckRunner
	settings *settings.Store
	pres     presenter.Presenter
	rec      *history.Recorder
	guard    guard.Guard
	sched    *schedule.Scheduler
	logger   *slog.Logger
	shutdown func()

	mu    sync.Mutex
	state string
	last  *updater.Outcome
}

func New(cfg Config) (*Coordinator, error) {
	if cfg.Runner == nil {
		return nil, errors.New("coordinator: runner is required")
	}
	if cfg.Settings == nil {
		return nil, errors.New("coordinator: settings store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pres := cfg.Presenter
	if pres == nil {
		pres = presenter.NewLogPresenter(logger)
	}
	rec := cfg.Recorder
	if rec == nil {
		rec = history.NewRecorder(logger)
	}
	shutdown := cfg.Shutdown
	if shutdown == nil {
		shutdown = func() { os.Exit(0) }
	}

	c := &Coordinator{
		runner:   cfg.Runner,
		settings: cfg.Settings,
		pres:     pres,
		rec:      rec,
		guard:    cfg.Guard,
		logger:   logger,
		shutdown: shutdown,
		state:    StateIdle,
	}
	c.sched = schedule.New(c.scheduledCheck, logger)
	return c, nil
}

// RunCheck executes one full update cycle and returns the classified check
// outcome. Launch failures and wait timeouts are outcomes, not errors; the
// error return only reports a rejected cycle (re-entrant call, installer
// still running) or a failed installer launch.
func (c *Coordinator) RunCheck(manual bool) (updater.Outcome, error) {
	if busy, rec, err := c.installBusy(); err == nil && busy {
		return updater.Outcome{}, fmt.Errorf("%w: version %s pid %d", ErrInstallInProgress, rec.VersionTag, rec.PID)
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return updater.Outcome{}, ErrCheckInFlight
	}
	c.setStateLocked(StateChecking)
	c.mu.Unlock()

	source := history.SourceScheduled
	if manual {
		source = history.SourceManual
	}
	metrics.IncCheck(source)
	c.logger.Info("running update check", "manual", manual)

	allowBeta := c.settings.BetaAllowed()
	started := time.Now()
	res := c.runner.RunCheck(allowBeta)
	metrics.ObserveCheckDuration(time.Since(started).Seconds())
	outcome := updater.ParseResult(res)

	// The check completed; record its time exactly once, whatever the
	// outcome, and rearm before any prompt can block the cycle.
	now := time.Now()
	c.settings.RecordCheckTime(now)
	metrics.SetLastCheckTimestamp(float64(now.Unix()))
	metrics.IncOutcome(string(outcome.Kind))
	c.recordCheckEvent(source, outcome)
	c.setLastOutcome(outcome)
	c.Rearm()

	c.pres.Notify(outcome, manual)

	if outcome.Kind != updater.UpdateAvailable || outcome.Update == nil {
		c.toIdle()
		return outcome, nil
	}

	info := *outcome.Update
	if c.settings.IsSkipped(info.VersionTag) {
		c.logger.Info("update available but skipped by preference", "version", info.VersionTag)
		c.toIdle()
		return outcome, nil
	}

	c.setState(StateOffering)
	c.rec.Record(history.Event{Type: history.EventOffer, Source: source, VersionTag: info.VersionTag})
	decision := c.pres.PromptDecision(info)
	c.rec.Record(history.Event{Type: history.EventDecision, VersionTag: info.VersionTag, Decision: string(decision)})
	metrics.IncDecision(string(decision))

	switch decision {
	case presenter.DecisionInstall:
		c.setState(StateInstalling)
		if err := c.launchInstall(info, allowBeta); err != nil {
			c.toIdle()
			return outcome, err
		}
		// Hand the installation directory to the installer. With the
		// default hook this never returns.
		c.shutdown()
		c.toIdle()
	case presenter.DecisionSkip:
		c.settings.MarkSkipped(info.VersionTag)
		c.logger.Info("version marked skipped", "version", info.VersionTag)
		c.toIdle()
	default:
		c.toIdle()
	}
	return outcome, nil
}

// Rearm recomputes the next scheduled check from current preferences.
// Call it after any preference change made outside the coordinator.
func (c *Coordinator) Rearm() {
	lastCheck, _ := c.settings.LastCheck()
	c.sched.Recompute(c.settings.AutoCheck(), c.settings.Interval(), lastCheck)
}

// NextCheck reports when the next scheduled check fires.
func (c *Coordinator) NextCheck() (time.Time, bool) { return c.sched.NextFire() }

// Stop disarms scheduling. Audit sinks are owned by the caller.
func (c *Coordinator) Stop() { c.sched.Stop() }

// State returns the current cycle state.
func (c *Coordinator) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastOutcome returns the most recent classified check outcome.
func (c *Coordinator) LastOutcome() (updater.Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return updater.Outcome{}, false
	}
	return *c.last, true
}

// InstallInProgress reports whether a previously launched installer is
// still running, with what was recorded about it.
func (c *Coordinator) InstallInProgress() (bool, guard.Record) {
	busy, rec, err := c.installBusy()
	if err != nil {
		return false, guard.Record{}
	}
	return busy, rec
}

// Recent returns buffered audit events, newest first.
func (c *Coordinator) Recent(n int) []history.Event { return c.rec.Recent(n) }

func (c *Coordinator) scheduledCheck() {
	if _, err := c.RunCheck(false); err != nil {
		c.logger.Warn("scheduled check not run", "error", err)
	}
}

func (c *Coordinator) launchInstall(info updater.Info, allowBeta bool) error {
	pid, err := c.runner.RunInstall(info.VersionTag, allowBeta)
	if err != nil {
		c.logger.Error("installer launch failed", "version", info.VersionTag, "error", err)
		return err
	}
	metrics.IncInstall()
	if c.guard.Path != "" {
		if err := c.guard.Acquire(pid, info.VersionTag); err != nil {
			c.logger.Warn("install guard write failed", "error", err)
		}
	}
	c.rec.Record(history.Event{Type: history.EventInstall, VersionTag: info.VersionTag, Detail: fmt.Sprintf("pid %d", pid)})
	c.logger.Info("installer launched, handing over", "version", info.VersionTag, "pid", pid)
	return nil
}

// installBusy consults the guard, clearing stale records as a side effect.
func (c *Coordinator) installBusy() (bool, guard.Record, error) {
	if c.guard.Path == "" {
		return false, guard.Record{}, nil
	}
	busy, rec, err := c.guard.InProgress()
	if err != nil {
		c.logger.Warn("install guard unreadable", "error", err)
		return false, rec, err
	}
	if !busy {
		_ = c.guard.Release()
	}
	return busy, rec, nil
}

func (c *Coordinator) recordCheckEvent(source string, o updater.Outcome) {
	e := history.Event{Type: history.EventCheck, Source: source, Outcome: string(o.Kind)}
	switch o.Kind {
	case updater.CheckFailed:
		e.Detail = o.ErrorText
	case updater.UnknownExit:
		e.Detail = fmt.Sprintf("exit code %d", o.ExitCode)
	case updater.UpdateAvailable:
		if o.Update != nil {
			e.VersionTag = o.Update.VersionTag
		}
	}
	c.rec.Record(e)
}

func (c *Coordinator) setLastOutcome(o updater.Outcome) {
	c.mu.Lock()
	c.last = &o
	c.mu.Unlock()
}

func (c *Coordinator) setState(s string) {
	c.mu.Lock()
	c.setStateLocked(s)
	c.mu.Unlock()
}

func (c *Coordinator) setStateLocked(s string) {
	if c.state == s {
		return
	}
	metrics.SetCoordinatorState(c.state, false)
	c.state = s
	metrics.SetCoordinatorState(s, true)
	c.logger.Debug("coordinator state changed", "state", s)
}

// toIdle ends a cycle and rearms so a tiny interval cannot starve the
// schedule while a prompt was open.
func (c *Coordinator) toIdle() {
	c.setState(StateIdle)
	c.Rearm()
}
