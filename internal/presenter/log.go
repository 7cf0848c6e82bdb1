package presenter

import (
	"log/slog"

	"github.com/loykin/upgradr/internal/updater"
)

// LogPresenter writes outcomes to the log and never accepts an offer. It is
// the headless default: scheduled no-news outcomes stay at debug so a quiet
// daemon stays quiet, manual checks always log at info.
type LogPresenter struct {
	logger *slog.Logger
}

func NewLogPresenter(logger *slog.Logger) *LogPresenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPresenter{logger: logger}
}

func (p *LogPresenter) Notify(outcome updater.Outcome, manual bool) {
	attrs := []any{"outcome", string(outcome.Kind), "manual", manual}
	switch outcome.Kind {
	case updater.CheckFailed:
		p.logger.Warn("update check failed", append(attrs, "error", outcome.ErrorText)...)
	case updater.UnknownExit:
		p.logger.Warn("update check returned unknown exit", append(attrs, "exit_code", outcome.ExitCode)...)
	case updater.UpdateAvailable:
		if outcome.Update != nil {
			attrs = append(attrs, "version", outcome.Update.VersionTag)
		}
		p.logger.Info("update available", attrs...)
	default:
		if manual {
			p.logger.Info("no update available", attrs...)
		} else {
			p.logger.Debug("no update available", attrs...)
		}
	}
}

// PromptDecision dismisses every offer: without an interactive surface
// nobody can consent to an install.
func (p *LogPresenter) PromptDecision(info updater.Info) Decision {
	p.logger.Info("update offer dismissed (no interactive surface)", "version", info.VersionTag)
	return DecisionDismiss
}
