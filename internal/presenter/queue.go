package presenter

import (
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/upgradr/internal/updater"
)

// DefaultDecisionTimeout bounds how long an offer stays open before it is
// treated as dismissed.
const DefaultDecisionTimeout = 10 * time.Minute

// Notice is the last outcome shown to the user, kept for status queries.
type Notice struct {
	Outcome updater.Outcome `json:"outcome"`
	Manual  bool            `json:"manual"`
	At      time.Time       `json:"at"`
}

type pendingOffer struct {
	info updater.Info
	ch   chan Decision
}

// QueuePresenter parks offers for an out-of-process surface (HTTP API or
// CLI) to pick up. PromptDecision blocks the update cycle until Resolve
// delivers an answer or the timeout dismisses the offer.
type QueuePresenter struct {
	mu      sync.Mutex
	pending *pendingOffer
	last    *Notice
	timeout time.Duration
	logger  *slog.Logger
}

func NewQueuePresenter(timeout time.Duration, logger *slog.Logger) *QueuePresenter {
	if timeout <= 0 {
		timeout = DefaultDecisionTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueuePresenter{timeout: timeout, logger: logger}
}

func (q *QueuePresenter) Notify(outcome updater.Outcome, manual bool) {
	q.mu.Lock()
	q.last = &Notice{Outcome: outcome, Manual: manual, At: time.Now()}
	q.mu.Unlock()

	if outcome.Kind == updater.NoUpdate && !manual {
		q.logger.Debug("no update available", "manual", manual)
		return
	}
	q.logger.Info("check outcome", "outcome", string(outcome.Kind), "manual", manual)
}

// LastNotice returns the most recent notified outcome.
func (q *QueuePresenter) LastNotice() (Notice, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.last == nil {
		return Notice{}, false
	}
	return *q.last, true
}

// PromptDecision publishes the offer and blocks until Resolve or timeout.
func (q *QueuePresenter) PromptDecision(info updater.Info) Decision {
	ch := make(chan Decision, 1)
	q.mu.Lock()
	q.pending = &pendingOffer{info: info, ch: ch}
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.pending = nil
		q.mu.Unlock()
	}()

	q.logger.Info("update offer open", "version", info.VersionTag, "timeout", q.timeout)
	select {
	case d := <-ch:
		return d
	case <-time.After(q.timeout):
		q.logger.Info("update offer timed out, dismissing", "version", info.VersionTag)
		return DecisionDismiss
	}
}

// Pending returns the offer currently waiting for a decision.
func (q *QueuePresenter) Pending() (updater.Info, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil {
		return updater.Info{}, false
	}
	return q.pending.info, true
}

// Resolve delivers d to the open offer. It fails when no offer is open or
// the offer was already answered.
func (q *QueuePresenter) Resolve(d Decision) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil {
		return ErrNoPendingOffer
	}
	select {
	case q.pending.ch <- d:
		q.pending = nil
		return nil
	default:
		return ErrNoPendingOffer
	}
}
