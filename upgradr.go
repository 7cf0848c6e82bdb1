package upgradr

import (
	"errors"
	"net/http"
	"time"

	cfg "github.com/loykin/upgradr/internal/config"
	"github.com/loykin/upgradr/internal/coordinator"
	"github.com/loykin/upgradr/internal/guard"
	"github.com/loykin/upgradr/internal/history"
	"github.com/loykin/upgradr/internal/metrics"
	"github.com/loykin/upgradr/internal/presenter"
	iapi "github.com/loykin/upgradr/internal/server"
	"github.com/loykin/upgradr/internal/settings"
	"github.com/loykin/upgradr/internal/updater"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Spec = updater.Spec

type Result = updater.Result

type Outcome = updater.Outcome

type UpdateInfo = updater.Info

type Kind = updater.Kind

type Snapshot = settings.Snapshot

type Event = history.Event

type InstallRecord = guard.Record

type HistoryConfig = cfg.HistoryConfig

// Check outcome kinds.
const (
	NoUpdate        = updater.NoUpdate
	CheckFailed     = updater.CheckFailed
	UpdateAvailable = updater.UpdateAvailable
	UnknownExit     = updater.UnknownExit
)

// Coordinator states reported by State.
const (
	StateIdle       = coordinator.StateIdle
	StateChecking   = coordinator.StateChecking
	StateOffering   = coordinator.StateOffering
	StateInstalling = coordinator.StateInstalling
)

// Decisions accepted by Decide.
const (
	DecisionInstall = "install"
	DecisionSkip    = "skip"
	DecisionDismiss = "dismiss"
)

// ErrNotQueued reports Offer/Decide calls on a coordinator built with New,
// where offers resolve through the log without waiting for a caller.
var ErrNotQueued = errors.New("offers are not queued in this mode")

// Coordinator is a thin facade over internal/coordinator.Coordinator.
// It provides a stable public API for embedding.

type Coordinator struct {
	inner *coordinator.Coordinator
	store *settings.Store
	queue *presenter.QueuePresenter
}

// New builds a coordinator whose offers resolve through the log. After an
// accepted install the host process is expected to exit so the installer can
// replace its files; embedded coordinators leave that to the host, so watch
// State and LastOutcome if you need to react.
func New(spec Spec, settingsPath string) (*Coordinator, error) {
	return newCoordinator(spec, settingsPath, nil)
}

// NewQueued builds a coordinator that parks update offers until the caller
// resolves them via Decide (or the HTTP API). Offers left pending longer than
// decisionTimeout are dismissed.
func NewQueued(spec Spec, settingsPath string, decisionTimeout time.Duration) (*Coordinator, error) {
	q := presenter.NewQueuePresenter(decisionTimeout, nil)
	return newCoordinator(spec, settingsPath, q)
}

func newCoordinator(spec Spec, settingsPath string, q *presenter.QueuePresenter) (*Coordinator, error) {
	store, err := settings.Open(settingsPath, nil)
	if err != nil {
		return nil, err
	}
	c := coordinator.Config{
		Runner:   updater.New(spec, nil),
		Settings: store,
		Shutdown: func() {},
	}
	if q != nil {
		c.Presenter = q
	}
	inner, err := coordinator.New(c)
	if err != nil {
		return nil, err
	}
	return &Coordinator{inner: inner, store: store, queue: q}, nil
}

// Start arms scheduled checking from the persisted preferences. A never
// checked installation fires immediately.
func (c *Coordinator) Start() { c.inner.Rearm() }

// Stop disarms scheduled checking.
func (c *Coordinator) Stop() { c.inner.Stop() }

// Check runs a manual update cycle now.
func (c *Coordinator) Check() (Outcome, error) { return c.inner.RunCheck(true) }

func (c *Coordinator) State() string                            { return c.inner.State() }
func (c *Coordinator) NextCheck() (time.Time, bool)             { return c.inner.NextCheck() }
func (c *Coordinator) LastOutcome() (Outcome, bool)             { return c.inner.LastOutcome() }
func (c *Coordinator) InstallInProgress() (bool, InstallRecord) { return c.inner.InstallInProgress() }
func (c *Coordinator) Recent(n int) []Event                     { return c.inner.Recent(n) }

// Preference passthrough. Changes that affect scheduling rearm the timer.

func (c *Coordinator) Snapshot() Snapshot { return c.store.Snapshot() }
func (c *Coordinator) SetAutoCheck(on bool) {
	c.store.SetAutoCheck(on)
	c.inner.Rearm()
}
func (c *Coordinator) SetBetaAllowed(on bool) { c.store.SetBetaAllowed(on) }
func (c *Coordinator) SetInterval(d time.Duration) {
	c.store.SetInterval(d)
	c.inner.Rearm()
}
func (c *Coordinator) Skip(tag string)   { c.store.MarkSkipped(tag) }
func (c *Coordinator) Unskip(tag string) { c.store.ClearSkipped(tag) }
func (c *Coordinator) Skipped() []string { return c.store.Skipped() }

// Offer returns the pending update offer, if any. Only coordinators built
// with NewQueued ever hold one.
func (c *Coordinator) Offer() (UpdateInfo, bool) {
	if c.queue == nil {
		return UpdateInfo{}, false
	}
	return c.queue.Pending()
}

// Decide resolves the pending offer with "install", "skip" or "dismiss".
func (c *Coordinator) Decide(decision string) error {
	if c.queue == nil {
		return ErrNotQueued
	}
	d, err := presenter.ParseDecision(decision)
	if err != nil {
		return err
	}
	return c.queue.Resolve(d)
}

func LoadConfig(path string) (*cfg.Config, error) {
	return cfg.Load(path)
}

// NewHTTPServer starts an HTTP server exposing the coordinator API.
func NewHTTPServer(addr, basePath string, c *Coordinator) (*http.Server, error) {
	deps := iapi.Deps{Coordinator: c.inner, Settings: c.store, Queue: c.queue}
	return iapi.NewServer(addr, basePath, deps, nil)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// MetricsHandler returns the Prometheus scrape handler for mounting on a
// caller-owned mux.
func MetricsHandler() http.Handler { return metrics.Handler() }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the default registry.
// It returns any immediate listen error; otherwise it runs the server in the caller goroutine.
func ServeMetrics(addr string) error {
	http.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           nil,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
