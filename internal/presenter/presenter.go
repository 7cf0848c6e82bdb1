// Package presenter defines how update outcomes reach a user and how offer
// decisions come back. The coordinator calls Notify for every completed
// check and PromptDecision when an eligible update should be offered; what
// a user actually sees (and whether quiet scheduled outcomes surface at
// all) is presentation policy, not coordinator logic.
package presenter

import (
	"errors"
	"fmt"

	"github.com/loykin/upgradr/internal/updater"
)

// Configurable presenter modes.
const (
	ModeLog   = "log"
	ModeQueue = "queue"
)

// Decision is a user's answer to an update offer.
type Decision string

const (
	DecisionInstall Decision = "install"
	DecisionSkip    Decision = "skip"
	DecisionDismiss Decision = "dismiss"
)

// ErrNoPendingOffer is returned when a decision arrives with no offer open.
var ErrNoPendingOffer = errors.New("no pending update offer")

// ParseDecision validates a wire/CLI decision string.
func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionInstall, DecisionSkip, DecisionDismiss:
		return Decision(s), nil
	default:
		return "", fmt.Errorf("unknown decision %q", s)
	}
}

// Presenter is the surface between the coordinator and a user.
// PromptDecision blocks until the user answers or the implementation gives
// up; implementations must be safe for concurrent Notify calls.
type Presenter interface {
	Notify(outcome updater.Outcome, manual bool)
	PromptDecision(info updater.Info) Decision
}
