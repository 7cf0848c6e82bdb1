package updater

import (
	"strings"
	"time"
)

// Result captures one check-mode invocation. Stdout/Stderr hold whatever
// the process emitted before exiting (or before the wait gave up).
type Result struct {
	ExitCode       int    `json:"exit_code"`
	Stdout         []byte `json:"stdout"`
	Stderr         []byte `json:"stderr"`
	StartFailed    bool   `json:"start_failed"`
	FinishTimedOut bool   `json:"finish_timed_out"`
}

// Accepted layouts for the release timestamp header. The updater emits
// ISO-8601; entries past the first tolerate reduced precision.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseResult classifies a check result into an Outcome.
// The exit-code mapping is protocol: 0 no update, 1 checker error with the
// message on stderr, 100 update available with the report on stdout.
// Anything else, including a start failure or a timed-out wait, is an
// unknown exit and never an error.
func ParseResult(res Result) Outcome {
	if res.StartFailed || res.FinishTimedOut {
		return Outcome{Kind: UnknownExit, ExitCode: res.ExitCode}
	}
	switch res.ExitCode {
	case ExitNoUpdate:
		return Outcome{Kind: NoUpdate}
	case ExitCheckFailed:
		return Outcome{Kind: CheckFailed, ErrorText: string(res.Stderr)}
	case ExitUpdateAvailable:
		info := parseReport(res.Stdout)
		return Outcome{Kind: UpdateAvailable, ExitCode: ExitUpdateAvailable, Update: &info}
	default:
		return Outcome{Kind: UnknownExit, ExitCode: res.ExitCode}
	}
}

// parseReport decodes the update-available report: three positional header
// lines ("<label>: <value>") followed by free-form release notes. Parsing
// is positional; labels are ignored. Missing headers degrade to empty
// values and a bad timestamp degrades to the zero time.
func parseReport(stdout []byte) Info {
	rest := string(stdout)
	var headers [3]string
	for i := range headers {
		var line string
		line, rest, _ = strings.Cut(rest, "\n")
		headers[i] = headerValue(line)
	}
	info := Info{
		VersionName:  headers[0],
		VersionTag:   headers[1],
		ReleaseNotes: rest,
	}
	info.ReleasedAt = parseTimestamp(headers[2])
	return info
}

// headerValue splits a header line on the first ": " and returns the
// trimmed value. A line without the separator has no value.
func headerValue(line string) string {
	_, v, ok := strings.Cut(line, ": ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
