package updater

import (
	"fmt"
	"time"
)

// Kind classifies what a completed check reported.
type Kind string

const (
	NoUpdate        Kind = "no_update"
	CheckFailed     Kind = "check_failed"
	UpdateAvailable Kind = "update_available"
	UnknownExit     Kind = "unknown_exit"
)

// Info is the decoded payload of an update-available report.
type Info struct {
	VersionName  string    `json:"version_name"`
	VersionTag   string    `json:"version_tag"`
	ReleasedAt   time.Time `json:"released_at"` // zero when the timestamp line was absent or unparsable
	ReleaseNotes string    `json:"release_notes"`
}

// Outcome is the classified result of one check. Update is non-nil only
// for UpdateAvailable; ErrorText only for CheckFailed; ExitCode carries
// the raw code for UnknownExit (-1 when the process never produced one).
type Outcome struct {
	Kind      Kind   `json:"kind"`
	ErrorText string `json:"error_text,omitempty"`
	ExitCode  int    `json:"exit_code,omitempty"`
	Update    *Info  `json:"update,omitempty"`
}

func (o Outcome) String() string {
	switch o.Kind {
	case UpdateAvailable:
		if o.Update != nil {
			return fmt.Sprintf("update available: %s (%s)", o.Update.VersionName, o.Update.VersionTag)
		}
		return "update available"
	case CheckFailed:
		return fmt.Sprintf("check failed: %s", o.ErrorText)
	case UnknownExit:
		return fmt.Sprintf("unknown exit code %d", o.ExitCode)
	default:
		return "no update"
	}
}
