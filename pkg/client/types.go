package client

import "time"

// Status mirrors the daemon's GET /status payload.
type Status struct {
	State             string     `json:"state"`
	AutoCheck         bool       `json:"auto_check"`
	BetaAllowed       bool       `json:"allow_beta"`
	IntervalSeconds   float64    `json:"update_interval_seconds"`
	LastCheck         *time.Time `json:"last_check,omitempty"`
	NextCheck         *time.Time `json:"next_check,omitempty"`
	LastOutcome       *Outcome   `json:"last_outcome,omitempty"`
	InstallInProgress bool       `json:"install_in_progress"`
	InstallVersion    string     `json:"install_version,omitempty"`
}

// Outcome mirrors a classified check outcome.
type Outcome struct {
	Kind      string      `json:"kind"`
	ErrorText string      `json:"error_text,omitempty"`
	ExitCode  int         `json:"exit_code,omitempty"`
	Update    *UpdateInfo `json:"update,omitempty"`
}

// UpdateInfo mirrors an offered update.
type UpdateInfo struct {
	VersionName  string    `json:"version_name"`
	VersionTag   string    `json:"version_tag"`
	ReleasedAt   time.Time `json:"released_at"`
	ReleaseNotes string    `json:"release_notes"`
}

// Settings mirrors the daemon's preference snapshot.
type Settings struct {
	AutoCheck       bool     `json:"auto_check"`
	BetaAllowed     bool     `json:"allow_beta"`
	IntervalSeconds float64  `json:"update_interval_seconds"`
	LastCheck       string   `json:"last_check,omitempty"`
	Skipped         []string `json:"skipped,omitempty"`
}

// SettingsPatch is the partial-update body for PUT /settings. Nil fields
// leave the matching preference untouched.
type SettingsPatch struct {
	AutoCheck       *bool    `json:"auto_check,omitempty"`
	BetaAllowed     *bool    `json:"allow_beta,omitempty"`
	IntervalSeconds *float64 `json:"update_interval_seconds,omitempty"`
}

// Event mirrors one audit history entry.
type Event struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Source     string    `json:"source,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	VersionTag string    `json:"version_tag,omitempty"`
	Decision   string    `json:"decision,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Offer decisions accepted by Decide.
const (
	DecisionInstall = "install"
	DecisionSkip    = "skip"
	DecisionDismiss = "dismiss"
)

// Token mirrors an issued API token.
type Token struct {
	Type      string    `json:"type"`
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginResult mirrors POST /auth/login.
type LoginResult struct {
	Success  bool     `json:"success"`
	Username string   `json:"username,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	Token    *Token   `json:"token,omitempty"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}
