package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/civic/internal/events"
	"github.com/joescharf/civic/internal/logging"
	"github.com/joescharf/civic/internal/output"
	"github.com/joescharf/civic/internal/persist"
	"github.com/joescharf/civic/internal/requests"
	"github.com/joescharf/civic/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui     *output.UI
	logger *log.Logger
	app    *appState

	// logFile is set when log.file is configured.
	logFile *os.File

	verbose bool
	dryRun  bool
)

// appState holds the in-memory stores restored from the database for the
// lifetime of one command.
type appState struct {
	db       *persist.SQLiteStore
	issues   *store.MemoryStore
	events   *events.Manager
	requests *requests.Tracker
}

var rootCmd = &cobra.Command{
	Use:   "civic",
	Short: "Civic issue desk - track resident reports, local events, and service requests",
	Long: `civic keeps a municipality's resident issue reports in a queue, ordered by
report date, prioritized by urgency and grouped by category. It also tracks
community events and service requests.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return rootRun(cmd)
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		err := closeState()
		closeLog()
		return err
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/civic/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		configDir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CIVIC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	defaultConfigDir, _ := configDirFunc()
	setDefaults(defaultConfigDir)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	logger = newLogger()

	// State is loaded lazily, only when commands actually need it.
	// This allows config/version commands to run without a db.
}

func newLogger() *log.Logger {
	opts := logging.DefaultOptions()
	opts.Level = viper.GetString("log.level")
	if verbose {
		opts.Level = "debug"
	}

	closeLog()
	if path := viper.GetString("log.file"); path != "" {
		l, f, err := logging.NewFile(path, opts)
		if err == nil {
			logFile = f
			return l
		}
		fmt.Fprintf(os.Stderr, "Error: open log file: %v\n", err)
	}
	return logging.New(opts)
}

// rootRun handles `civic` with no subcommand: show the backlog summary.
func rootRun(cmd *cobra.Command) error {
	if _, err := getState(); err != nil {
		return cmd.Help()
	}
	return statusRun()
}

// getState returns the shared stores, restoring them from the database on
// first call.
func getState() (*appState, error) {
	if app != nil {
		return app, nil
	}
	ctx := context.Background()

	if err := validateConfig(); err != nil {
		return nil, fmt.Errorf("invalid configuration (see 'civic config check'):\n%w", err)
	}

	db, err := persist.NewSQLiteStore(viper.GetString("db_path"), persist.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	s := &appState{
		db:     db,
		issues: store.NewMemoryStore(
			store.WithLogger(logger),
			store.WithClock(func() time.Time { return now() }),
		),
		events: events.NewManager(
			events.WithLogger(logger),
			events.WithUpcomingDays(viper.GetInt("events.upcoming_days")),
			events.WithRecommendLimit(viper.GetInt("events.recommend_limit")),
			events.WithRecentSearches(viper.GetInt("events.recent_searches")),
		),
		requests: requests.NewTracker(requests.WithLogger(logger)),
	}

	if err := s.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	app = s
	return app, nil
}

func (s *appState) load(ctx context.Context) error {
	issues, err := s.db.LoadIssues(ctx)
	if err != nil {
		return err
	}
	if err := s.issues.Restore(issues); err != nil {
		return fmt.Errorf("restore issues: %w", err)
	}

	evs, err := s.db.LoadEvents(ctx)
	if err != nil {
		return err
	}
	if err := s.events.Restore(evs); err != nil {
		return fmt.Errorf("restore events: %w", err)
	}

	reqs, err := s.db.LoadRequests(ctx)
	if err != nil {
		return err
	}
	if err := s.requests.Restore(reqs); err != nil {
		return fmt.Errorf("restore requests: %w", err)
	}
	return nil
}

func (s *appState) saveIssues() error {
	if _, err := s.db.SaveIssues(context.Background(), s.issues.Snapshot()); err != nil {
		return fmt.Errorf("save issues: %w", err)
	}
	return nil
}

func (s *appState) saveEvents() error {
	if _, err := s.db.SaveEvents(context.Background(), s.events.Snapshot()); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	return nil
}

func (s *appState) saveRequests() error {
	if _, err := s.db.SaveRequests(context.Background(), s.requests.Snapshot()); err != nil {
		return fmt.Errorf("save requests: %w", err)
	}
	return nil
}

func closeState() error {
	if app == nil {
		return nil
	}
	err := app.db.Close()
	app = nil
	return err
}

func closeLog() {
	if logFile == nil {
		return
	}
	_ = logFile.Close()
	logFile = nil
}
