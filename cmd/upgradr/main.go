package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/loykin/upgradr/internal/auth"
	"github.com/loykin/upgradr/internal/config"
	"github.com/loykin/upgradr/internal/coordinator"
	"github.com/loykin/upgradr/internal/guard"
	"github.com/loykin/upgradr/internal/history"
	"github.com/loykin/upgradr/internal/history/factory"
	"github.com/loykin/upgradr/internal/metrics"
	"github.com/loykin/upgradr/internal/presenter"
	"github.com/loykin/upgradr/internal/server"
	"github.com/loykin/upgradr/internal/settings"
	itls "github.com/loykin/upgradr/internal/tls"
	"github.com/loykin/upgradr/internal/updater"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()

	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds minimal global/persistent flags for CLI commands
type GlobalFlags struct {
	ConfigPath string // Only config path for CLI commands
}

// buildRoot creates the root command with all subcommands attached
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	checkFlags := &CheckFlags{}
	statusFlags := &StatusFlags{}
	settingsFlags := &SettingsFlags{}
	skipFlags := &SkipFlags{}
	historyFlags := &HistoryFlags{}
	offerFlags := &OfferFlags{}
	decideFlags := &DecideFlags{}
	templateFlags := &TemplateCreateFlags{}

	upgradrCommand := command{}

	root := createRootCommand(globalFlags)

	// Add subcommands
	root.AddCommand(
		createCheckCommand(upgradrCommand, checkFlags),
		createStatusCommand(upgradrCommand, statusFlags),
		createSettingsCommand(upgradrCommand, settingsFlags),
		createSkipCommand(upgradrCommand, skipFlags),
		createUnskipCommand(upgradrCommand, skipFlags),
		createSkipsCommand(upgradrCommand, skipFlags),
		createHistoryCommand(upgradrCommand, historyFlags),
		createOfferCommand(upgradrCommand, offerFlags),
		createDecideCommand(upgradrCommand, decideFlags),
		createLoginCommand(upgradrCommand),
		createLogoutCommand(upgradrCommand),
		createHashPasswordCommand(upgradrCommand),
		createServeCommand(globalFlags),
		createTemplateCommand(upgradrCommand, templateFlags),
	)

	return root
}

// createRootCommand creates the root command with minimal persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "upgradr",
		Short: "Update coordination daemon and control CLI",
		Long: `Upgradr coordinates software updates for an installed application:
it schedules background checks, runs the bundled updater binary, and walks
available updates through offer, decision, and installer handoff, locally
or via remote daemon connection.

Examples:
  upgradr serve --config=upgradr.toml       # Start daemon
  upgradr check                             # Trigger a check now
  upgradr status
  upgradr status --api-url=http://remote:8080  # Remote status`,
	}

	// Only essential flags for CLI commands
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")

	return root
}

// createCheckCommand creates the check subcommand
func createCheckCommand(upgradrCommand command, checkFlags *CheckFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Trigger an update check",
		Long: `Ask the daemon to run an update check now and wait for the outcome.
With --wait=0 the check is only triggered and the command returns immediately.

Examples:
  upgradr check
  upgradr check --wait=0            # Fire and forget
  upgradr check --api-url=http://remote:8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return upgradrCommand.Check(CheckFlags{
				Wait:       checkFlags.Wait,
				APIUrl:     checkFlags.APIUrl,
				APITimeout: checkFlags.APITimeout,
			})
		},
	}

	cmd.Flags().DurationVar(&checkFlags.Wait, "wait", 60*time.Second, "how long to wait for the check result (0 to only trigger)")

	// Remote daemon connection
	cmd.Flags().StringVar(&checkFlags.APIUrl, "api-url", "", "remote daemon URL (e.g. http://host:8080)")
	cmd.Flags().DurationVar(&checkFlags.APITimeout, "api-timeout", 30*time.Second, "request timeout")

	return cmd
}

// createStatusCommand creates the status subcommand
func createStatusCommand(upgradrCommand command, statusFlags *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show coordinator status",
		Long: `Show the daemon's coordinator state, preferences, next scheduled check,
and the outcome of the most recent check.

Examples:
  upgradr status
  upgradr status --api-url=http://remote:8080  # Remote status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return upgradrCommand.Status(StatusFlags{
				APIUrl:     statusFlags.APIUrl,
				APITimeout: statusFlags.APITimeout,
			})
		},
	}

	cmd.Flags().StringVar(&statusFlags.APIUrl, "api-url", "", "remote daemon URL (e.g. http://host:8080)")
	cmd.Flags().DurationVar(&statusFlags.APITimeout, "api-timeout", 30*time.Second, "request timeout")

	return cmd
}

// createSettingsCommand creates the settings subcommand
func createSettingsCommand(upgradrCommand command, settingsFlags *SettingsFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change update preferences",
		Long: `Without flags the current preferences are printed. Flags that are set
update the matching preference; the rest stay untouched.

Examples:
  upgradr settings                          # Show current preferences
  upgradr settings --auto-check=false      # Disable scheduled checks
  upgradr settings --interval=6h --allow-beta=true`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return upgradrCommand.Settings(SettingsFlags{
				AutoCheck:    settingsFlags.AutoCheck,
				AllowBeta:    settingsFlags.AllowBeta,
				Interval:     settingsFlags.Interval,
				SetAutoCheck: cmd.Flag("auto-check").Changed,
				SetAllowBeta: cmd.Flag("allow-beta").Changed,
				SetInterval:  cmd.Flag("interval").Changed,
				APIUrl:       settingsFlags.APIUrl,
				APITimeout:   settingsFlags.APITimeout,
			})
		},
	}

	cmd.Flags().BoolVar(&settingsFlags.AutoCheck, "auto-check", true, "enable scheduled update checks")
	cmd.Flags().BoolVar(&settingsFlags.AllowBeta, "allow-beta", false, "offer pre-release versions")
	cmd.Flags().DurationVar(&settingsFlags.Interval, "interval", 24*time.Hour, "time between scheduled checks")

	// Remote daemon connection
	cmd.Flags().StringVar(&settingsFlags.APIUrl, "api-url", "", "remote daemon URL (e.g. http://host:8080)")
	cmd.Flags().DurationVar(&settingsFlags.APITimeout, "api-timeout", 30*time.Second, "request timeout")

	return cmd
}

// createSkipCommand creates the skip subcommand
func createSkipCommand(upgradrCommand command, skipFlags *SkipFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skip",
		Short: "Skip a version",
		Long: `Mark a version tag as skipped so it is never offered again.

Examples:
  upgradr skip --tag=v2.1.0
  upgradr skip --tag=v2.1.0 --api-url=http://remote:8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return upgradrCommand.Skip(SkipFlags{
				Tag:        skipFlags.Tag,
				APIUrl:     skipFlags.APIUrl,
				APITimeout: skipFlags.APITimeout,
			})
		},
	}

	cmd.Flags().StringVar(&skipFlags.Tag, "tag", "", "version tag (required)")
	cmd.Flags().StringVar(&skipFlags.APIUrl, "api-url", "", "remote daemon URL (e.g. http://host:8080)")
	cmd.Flags().DurationVar(&skipFlags.APITimeout, "api-timeout", 30*time.Second, "request timeout")

	// Mark required flags
	if err := cmd.MarkFlagRequired("tag"); err != nil {
		panic(err)
	}

	return cmd
}

// createUnskipCommand creates the unskip subcommand
func createUnskipCommand(upgradrCommand command, skipFlags *SkipFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unskip",
		Short: "Clear a skipped version",
		Long: `Remove the skip mark from a version tag so it can be offered again.

Examples:
  upgradr unskip --tag=v2.1.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return upgradrCommand.Unskip(SkipFlags{
				Tag:        skipFlags.Tag,
				APIUrl:     skipFlags.APIUrl,
				APITimeout: skipFlags.APITimeout,
			})
		},
	}

	cmd.Flags().StringVar(&skipFlags.Tag, "tag", "", "version tag (required)")
	cmd.Flags().StringVar(&skipFlags.APIUrl, "api-url", "", "remote daemon URL (e.g. http://host:8080)")
	cmd.Flags().DurationVar(&skipFlags.APITimeout, "api-timeout", 30*time.Second, "request timeout")

	// Mark required flags
	if err := cmd.MarkFlagRequired("tag"); err != nil {
		panic(err)
	}

	return cmd
}

// createSkipsCommand creates the skips subcommand
func createSkipsCommand(upgradrCommand command, skipFlags *SkipFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skips",
		Short: "List skipped versions",
		Long: `List all version tags currently marked as skipped.

Examples:
  upgradr skips`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return upgradrCommand.Skips(SkipFlags{
				APIUrl:     skipFlags.APIUrl,
				APITimeout: skipFlags.APITimeout,
			})
		},
	}

	cmd.Flags().StringVar(&skipFlags.APIUrl, "api-url", "", "remote daemon URL (e.g. http://host:8080)")
	cmd.Flags().DurationVar(&skipFlags.APITimeout, "api-timeout", 30*time.Second, "request timeout")

	return cmd
}

// createHistoryCommand creates the history subcommand
func createHistoryCommand(upgradrCommand command, historyFlags *HistoryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent update events",
		Long: `Show recent audit events (checks, offers, decisions, installs), newest first.

Examples:
  upgradr history
  upgradr history --limit=10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return upgradrCommand.History(HistoryFlags{
				Limit:      historyFlags.Limit,
				APIUrl:     historyFlags.APIUrl,
				APITimeout: historyFlags.APITimeout,
			})
		},
	}

	cmd.Flags().IntVar(&historyFlags.Limit, "limit", 50, "maximum number of events")
	cmd.Flags().StringVar(&historyFlags.APIUrl, "api-url", "", "remote daemon URL (e.g. http://host:8080)")
	cmd.Flags().DurationVar(&historyFlags.APITimeout, "api-timeout", 30*time.Second, "request timeout")

	return cmd
}

// createOfferCommand creates the offer subcommand
func createOfferCommand(upgradrCommand command, offerFlags *OfferFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offer",
		Short: "Show the pending update offer",
		Long: `Show the update offer currently waiting for a decision, if any.
Offers only queue when the daemon runs with the queue presenter.

Examples:
  upgradr offer`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return upgradrCommand.Offer(OfferFlags{
				APIUrl:     offerFlags.APIUrl,
				APITimeout: offerFlags.APITimeout,
			})
		},
	}

	cmd.Flags().StringVar(&offerFlags.APIUrl, "api-url", "", "remote daemon URL (e.g. http://host:8080)")
	cmd.Flags().DurationVar(&offerFlags.APITimeout, "api-timeout", 30*time.Second, "request timeout")

	return cmd
}

// createDecideCommand creates the decide subcommand
func createDecideCommand(upgradrCommand command, decideFlags *DecideFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Resolve the pending update offer",
		Long: `Resolve the pending update offer with install, skip, or dismiss.
install launches the updater and the daemon exits so files can be replaced.

Examples:
  upgradr decide --decision=install
  upgradr decide --decision=skip
  upgradr decide --decision=dismiss`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return upgradrCommand.Decide(DecideFlags{
				Decision:   decideFlags.Decision,
				APIUrl:     decideFlags.APIUrl,
				APITimeout: decideFlags.APITimeout,
			})
		},
	}

	cmd.Flags().StringVar(&decideFlags.Decision, "decision", "", "decision (required): install, skip, dismiss")
	cmd.Flags().StringVar(&decideFlags.APIUrl, "api-url", "", "remote daemon URL (e.g. http://host:8080)")
	cmd.Flags().DurationVar(&decideFlags.APITimeout, "api-timeout", 30*time.Second, "request timeout")

	// Mark required flags
	if err := cmd.MarkFlagRequired("decision"); err != nil {
		panic(err)
	}

	return cmd
}

// createLoginCommand creates the login command
func createLoginCommand(upgradrCommand command) *cobra.Command {
	flags := &LoginFlags{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to upgradr daemon",
		Long: `Login to an auth-enabled upgradr daemon and save the session for
future commands.

Examples:
  upgradr login --username=admin --password=secret
  upgradr login --server-url=http://remote:8080 --username=admin --password=secret`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return upgradrCommand.Login(*flags)
		},
	}

	cmd.Flags().StringVar(&flags.Username, "username", "", "username (required)")
	cmd.Flags().StringVar(&flags.Password, "password", "", "password (required)")
	cmd.Flags().StringVar(&flags.ServerURL, "server-url", "", "server URL (default: http://127.0.0.1:8080)")

	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

// createLogoutCommand creates the logout command
func createLogoutCommand(upgradrCommand command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Logout from upgradr daemon",
		Long: `Logout from the upgradr daemon and clear the saved session.

Examples:
  upgradr logout`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return upgradrCommand.Logout()
		},
	}

	return cmd
}

// createHashPasswordCommand creates the hash-password command
func createHashPasswordCommand(upgradrCommand command) *cobra.Command {
	flags := &HashPasswordFlags{}

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password for the config file",
		Long: `Produce a bcrypt hash for a user's password_hash entry in the config
file, so plaintext passwords never have to be stored.

Examples:
  upgradr hash-password --password=secret
  upgradr hash-password --password=secret --cost=12`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return upgradrCommand.HashPassword(*flags)
		},
	}

	cmd.Flags().StringVar(&flags.Password, "password", "", "password to hash (required)")
	cmd.Flags().IntVar(&flags.Cost, "cost", 0, "bcrypt cost (0 uses the default)")

	_ = cmd.MarkFlagRequired("password")

	return cmd
}

// createServeCommand creates the serve subcommand
func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	serveFlags := &ServeFlags{}

	cmd := &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the upgradr daemon",
		Long: `Start the upgradr daemon that schedules update checks and serves the
control API. All configuration is loaded from a TOML config file.

Examples:
  upgradr serve upgradr.toml        # Start with specific config file
  upgradr serve --config=upgradr.toml
  upgradr serve upgradr.toml --daemonize   # Run in background`,
		RunE: func(cmd *cobra.Command, args []string) error {
			serveFlags.ConfigPath = globalFlags.ConfigPath
			return runServeCommand(serveFlags, args)
		},
	}

	// Add daemonize flags
	cmd.Flags().BoolVar(&serveFlags.Daemonize, "daemonize", false, "run as daemon in background")
	cmd.Flags().StringVar(&serveFlags.PidFile, "pidfile", "", "write daemon PID to file")
	cmd.Flags().StringVar(&serveFlags.LogFile, "logfile", "", "redirect daemon logs to file")

	return cmd
}

// createTemplateCommand creates the template command
func createTemplateCommand(upgradrCommand command, templateFlags *TemplateCreateFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Create config templates",
		Long: `Create daemon configuration templates for common deployments.
Templates can be edited and used directly with the serve command.

Supported template types:
  desktop   - Per-user daemon with queued offers for a UI
  server    - Hardened daemon with auth, metrics, and history sinks
  minimal   - Smallest config that can run checks

Examples:
  upgradr template --type=desktop --name=myapp
  upgradr template --type=server --name=fleet --output=./fleet.toml
  upgradr template --type=minimal --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return upgradrCommand.TemplateCreate(TemplateCreateFlags{
				Name:   templateFlags.Name,
				Type:   templateFlags.Type,
				Force:  templateFlags.Force,
				Output: templateFlags.Output,
			})
		},
	}

	// Add flags specific to template command
	cmd.Flags().StringVar(&templateFlags.Type, "type", "", "template type (required): desktop, server, minimal")
	cmd.Flags().StringVar(&templateFlags.Name, "name", "", "application name for template (defaults to type-sample)")
	cmd.Flags().StringVar(&templateFlags.Output, "output", "", "output file path (defaults to templates/name.toml)")
	cmd.Flags().BoolVar(&templateFlags.Force, "force", false, "overwrite existing template file")

	// Mark required flags
	if err := cmd.MarkFlagRequired("type"); err != nil {
		panic(err)
	}

	return cmd
}

func runServeCommand(flags *ServeFlags, args []string) error {
	configPath := flags.ConfigPath
	if len(args) > 0 {
		configPath = args[0]
	}

	if configPath == "" {
		return fmt.Errorf("config file required for serve command. Use --config=upgradr.toml or provide as argument")
	}

	// Load unified config once
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	// Config is known to load; hand off to the background child now
	if flags.Daemonize {
		return daemonize(flags.PidFile, flags.LogFile)
	}

	if flags.PidFile != "" {
		if err := writePidFile(flags.PidFile, os.Getpid()); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
	}

	logger := cfg.Log.NewSlogger()
	slog.SetDefault(logger)

	spec, err := cfg.UpdaterSpec()
	if err != nil {
		return fmt.Errorf("error building updater spec: %w", err)
	}
	runner := updater.New(spec, logger)

	genv, err := cfg.GlobalEnv()
	if err != nil {
		return fmt.Errorf("error loading global env: %w", err)
	}
	runner.SetEnv(genv)

	store, err := settings.Open(cfg.Settings.Path, logger)
	if err != nil {
		return fmt.Errorf("error opening settings store: %w", err)
	}

	var pres presenter.Presenter
	var queue *presenter.QueuePresenter
	if cfg.Presenter.Mode == presenter.ModeQueue {
		queue = presenter.NewQueuePresenter(cfg.Presenter.DecisionTimeout, logger)
		pres = queue
	} else {
		pres = presenter.NewLogPresenter(logger)
	}

	var sinks []history.Sink
	for _, dsn := range cfg.History.Sinks {
		sink, err := factory.NewSinkFromDSN(dsn)
		if err != nil {
			return fmt.Errorf("failed to open history sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	rec := history.NewRecorderSize(logger, cfg.History.RingSize, sinks...)

	// Setup metrics from config
	if cfg.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			fmt.Printf("Warning: failed to register metrics: %v\n", err)
		}
	}

	hostMon := metrics.NewHostMonitor(cfg.Metrics.Host)
	monCtx, stopMon := context.WithCancel(context.Background())
	defer stopMon()
	if hostMon.IsEnabled() {
		if cfg.Metrics.Enabled {
			if err := hostMon.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
				fmt.Printf("Warning: failed to register host metrics: %v\n", err)
			}
		}
		hostMon.Start(monCtx)
	}

	// The coordinator asks the daemon to exit after launching the installer
	// so the installer can replace the host's files.
	installStarted := make(chan struct{})
	var handoff sync.Once

	coord, err := coordinator.New(coordinator.Config{
		Runner:    runner,
		Settings:  store,
		Presenter: pres,
		Recorder:  rec,
		Guard:     guard.New(cfg.Guard.PIDFile),
		Logger:    logger,
		Shutdown:  func() { handoff.Do(func() { close(installStarted) }) },
	})
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}
	coord.Rearm()

	// Create and start HTTP/HTTPS server
	var srv *http.Server
	if cfg.Server.Enabled {
		deps := server.Deps{
			Coordinator: coord,
			Settings:    store,
			Queue:       queue,
			Logger:      logger,
		}
		if cfg.Server.Auth.Enabled {
			svc, err := auth.NewService(cfg.Server.Auth)
			if err != nil {
				return fmt.Errorf("failed to init auth service: %w", err)
			}
			deps.Auth = svc
			deps.AuthEnabled = true
		}
		if cfg.Metrics.Enabled {
			deps.Metrics = metrics.Handler()
		}
		if hostMon.IsEnabled() {
			deps.HostMon = hostMon
		}

		protocol := "HTTP"
		var tlsConf *tls.Config
		if cfg.Server.TLS != nil && cfg.Server.TLS.Enabled {
			protocol = "HTTPS"
			tlsConf, err = itls.SetupTLS(cfg.Server)
			if err != nil {
				return fmt.Errorf("failed to set up TLS: %w", err)
			}
		}

		srv, err = server.NewServer(cfg.Server.Listen, cfg.Server.BasePath, deps, tlsConf)
		if err != nil {
			return fmt.Errorf("failed to create %s server: %w", protocol, err)
		}
		fmt.Printf("Starting upgradr %s server on %s%s\n", protocol, cfg.Server.Listen, cfg.Server.BasePath)
	} else {
		logger.Info("http api disabled, running headless")
	}

	// Wait for shutdown signal or installer handoff
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		fmt.Println("Shutting down...")
	case <-installStarted:
		fmt.Println("Installer launched, exiting so it can replace files...")
	}

	if srv != nil {
		_ = srv.Close()
	}
	stopMon()
	hostMon.Stop()
	coord.Stop()
	if err := rec.Close(); err != nil {
		logger.Warn("history sink close failed", "error", err)
	}
	_ = removePidFile(flags.PidFile)
	return nil
}
