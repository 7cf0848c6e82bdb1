package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loykin/upgradr"
	"github.com/loykin/upgradr/pkg/client"
)

// defaultAPIURL is where a locally served daemon listens unless configured
// otherwise.
const defaultAPIURL = "http://127.0.0.1:8080"

// reachTimeout bounds the initial reachability probe.
const reachTimeout = 5 * time.Second

type command struct{}

// createAuthenticatedClient creates an API client with session authentication.
// The resolved base URL is returned for error messages.
func (c *command) createAuthenticatedClient(apiURL string, timeout time.Duration) (*client.Client, string, error) {
	// Try to load session first
	sessionManager := NewSessionManager()
	session, err := sessionManager.LoadSession()
	if err != nil {
		return nil, "", fmt.Errorf("failed to load session: %w", err)
	}

	// Use session's server URL if apiURL is empty
	if apiURL == "" {
		if session != nil && session.ServerURL != "" {
			apiURL = session.ServerURL
		} else {
			apiURL = defaultAPIURL
		}
	}

	cfg := client.DefaultConfig()
	cfg.BaseURL = apiURL
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	if session != nil {
		cfg.Token = session.Token
	}
	return client.New(cfg), apiURL, nil
}

// dial builds the client and fails fast when the daemon is not running.
func (c *command) dial(apiURL string, timeout time.Duration) (*client.Client, error) {
	cl, resolved, err := c.createAuthenticatedClient(apiURL, timeout)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), reachTimeout)
	defer cancel()
	if !cl.IsReachable(ctx) {
		return nil, fmt.Errorf("daemon not reachable at %s - please start daemon first with 'upgradr serve'", resolved)
	}
	return cl, nil
}

// Check triggers an update check and optionally waits for the result.
func (c *command) Check(f CheckFlags) error {
	cl, err := c.dial(f.APIUrl, f.APITimeout)
	if err != nil {
		return err
	}
	ctx := context.Background()

	before, err := cl.Status(ctx)
	if err != nil {
		return err
	}
	if err := cl.Check(ctx); err != nil {
		return err
	}
	if f.Wait <= 0 {
		fmt.Println("Check triggered")
		return nil
	}

	st, err := c.waitForCheck(ctx, cl, before.LastCheck, f.Wait)
	if err != nil {
		return err
	}
	printJSON(st.LastOutcome)
	if st.State == upgradr.StateOffering {
		fmt.Println("An update offer is pending: inspect it with 'upgradr offer' and resolve it with 'upgradr decide'")
	}
	return nil
}

// waitForCheck polls status until a check newer than prev has been recorded
// and the daemon has left the checking state.
func (c *command) waitForCheck(ctx context.Context, cl *client.Client, prev *time.Time, wait time.Duration) (*client.Status, error) {
	deadline := time.Now().Add(wait)
	for {
		st, err := cl.Status(ctx)
		if err != nil {
			return nil, err
		}
		if st.LastCheck != nil && st.State != upgradr.StateChecking {
			if prev == nil || st.LastCheck.After(*prev) {
				return st, nil
			}
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("check did not finish within %s", wait)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// Status prints the daemon's coordinator status
func (c *command) Status(f StatusFlags) error {
	cl, err := c.dial(f.APIUrl, f.APITimeout)
	if err != nil {
		return err
	}

	st, err := cl.Status(context.Background())
	if err != nil {
		return err
	}
	printJSON(st)
	return nil
}

// Settings shows preferences, or updates the ones whose flags were given.
func (c *command) Settings(f SettingsFlags) error {
	cl, err := c.dial(f.APIUrl, f.APITimeout)
	if err != nil {
		return err
	}
	ctx := context.Background()

	if !f.SetAutoCheck && !f.SetAllowBeta && !f.SetInterval {
		s, err := cl.GetSettings(ctx)
		if err != nil {
			return err
		}
		printJSON(s)
		return nil
	}

	var patch client.SettingsPatch
	if f.SetAutoCheck {
		patch.AutoCheck = &f.AutoCheck
	}
	if f.SetAllowBeta {
		patch.BetaAllowed = &f.AllowBeta
	}
	if f.SetInterval {
		if f.Interval <= 0 {
			return fmt.Errorf("interval must be positive")
		}
		secs := f.Interval.Seconds()
		patch.IntervalSeconds = &secs
	}

	s, err := cl.UpdateSettings(ctx, patch)
	if err != nil {
		return err
	}
	printJSON(s)
	return nil
}

// Skip marks a version tag so it is never offered again.
func (c *command) Skip(f SkipFlags) error {
	if f.Tag == "" {
		return fmt.Errorf("skip requires --tag")
	}

	cl, err := c.dial(f.APIUrl, f.APITimeout)
	if err != nil {
		return err
	}

	if err := cl.AddSkip(context.Background(), f.Tag); err != nil {
		return err
	}
	fmt.Printf("Skipping version: %s\n", f.Tag)
	return nil
}

// Unskip clears a skip mark so the version can be offered again.
func (c *command) Unskip(f SkipFlags) error {
	if f.Tag == "" {
		return fmt.Errorf("unskip requires --tag")
	}

	cl, err := c.dial(f.APIUrl, f.APITimeout)
	if err != nil {
		return err
	}

	if err := cl.RemoveSkip(context.Background(), f.Tag); err != nil {
		return err
	}
	fmt.Printf("No longer skipping version: %s\n", f.Tag)
	return nil
}

// Skips lists all skipped version tags.
func (c *command) Skips(f SkipFlags) error {
	cl, err := c.dial(f.APIUrl, f.APITimeout)
	if err != nil {
		return err
	}

	tags, err := cl.Skips(context.Background())
	if err != nil {
		return err
	}
	if len(tags) == 0 {
		fmt.Println("No skipped versions")
		return nil
	}
	printJSON(tags)
	return nil
}

// History prints recent audit events.
func (c *command) History(f HistoryFlags) error {
	cl, err := c.dial(f.APIUrl, f.APITimeout)
	if err != nil {
		return err
	}

	events, err := cl.History(context.Background(), f.Limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No events recorded")
		return nil
	}
	printJSON(events)
	return nil
}

// Offer prints the pending update offer, if any.
func (c *command) Offer(f OfferFlags) error {
	cl, err := c.dial(f.APIUrl, f.APITimeout)
	if err != nil {
		return err
	}

	info, err := cl.Offer(context.Background())
	if errors.Is(err, client.ErrNoOffer) {
		fmt.Println("No update offer pending")
		return nil
	}
	if err != nil {
		return err
	}
	printJSON(info)
	return nil
}

// Decide resolves the pending update offer.
func (c *command) Decide(f DecideFlags) error {
	switch f.Decision {
	case client.DecisionInstall, client.DecisionSkip, client.DecisionDismiss:
	default:
		return fmt.Errorf("unsupported decision: %s (supported: install, skip, dismiss)", f.Decision)
	}

	cl, err := c.dial(f.APIUrl, f.APITimeout)
	if err != nil {
		return err
	}

	if err := cl.Decide(context.Background(), f.Decision); err != nil {
		return err
	}
	fmt.Printf("Decision '%s' applied\n", f.Decision)
	return nil
}
