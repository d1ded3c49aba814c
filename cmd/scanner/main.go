// Command scanner watches a marketplace feed and prints a profit badge for every
// resellable listing it finds.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flipfinder/backend/config"
	"github.com/flipfinder/backend/internal/infrastructure/kv"
	"github.com/flipfinder/backend/internal/infrastructure/logging"
	"github.com/flipfinder/backend/internal/usecase"
)

// app carries the state shared by every subcommand
type app struct {
	verbose  bool
	dbPath   string
	proxyURL string

	cfg     *config.ScannerConfig
	logger  *zap.Logger
	store   *kv.SQLiteStore
	session *usecase.Session
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "scanner",
		Short: "FlipFinder marketplace scanner",
		Long: `Scans a marketplace feed, estimates resale value from recent sold listings
and prints a profit badge for each resellable listing.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "Session database path (default from config)")
	root.PersistentFlags().StringVar(&a.proxyURL, "proxy-url", "", "Proxy base URL (default from settings or config)")

	root.AddCommand(newScanCmd(a))
	root.AddCommand(newLoginCmd(a))
	root.AddCommand(newSettingsCmd(a))
	root.AddCommand(newStatsCmd(a))

	return root
}

// open loads config, the logger and the persisted session
func (a *app) open(ctx context.Context) error {
	cfg, err := config.LoadScanner()
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.DBPath = a.dbPath
	}
	a.cfg = cfg

	logger, err := logging.New("development", a.verbose)
	if err != nil {
		return err
	}
	a.logger = logger

	store, err := kv.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return err
	}
	a.store = store

	a.session = usecase.NewSession(store)
	if err := a.session.Load(ctx); err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	return nil
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// resolveProxyURL prefers the flag, then the saved credentials, then config
func (a *app) resolveProxyURL() string {
	if a.proxyURL != "" {
		return a.proxyURL
	}
	if saved := a.session.Settings().Credentials.ProxyURL; saved != "" {
		return saved
	}
	return a.cfg.ProxyURL
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
