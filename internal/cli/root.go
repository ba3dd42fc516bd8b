// Package cli implements the explorer command line: a long-running HTTP
// server plus one-shot commands that browse catalogs in the terminal.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"catalogexplorer/internal/catalog"
	"catalogexplorer/internal/config"
	"catalogexplorer/internal/observability"
	"catalogexplorer/internal/prefs"
	"catalogexplorer/internal/source"
)

// app carries what PersistentPreRunE builds for the subcommands.
type app struct {
	v       *viper.Viper
	cfg     config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
	prefs   prefs.Store
	reg     *catalog.Registry
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree with its own viper instance.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:   "explorer",
		Short: "Browse motor, module and RA compatibility catalogs",
		Long: `explorer loads the catalogs declared in a TOML manifest (or the bundled
defaults), indexes them, and serves them over HTTP or prints them in the terminal.

Configuration comes from .explorer.yaml, EXPLORER_* environment variables and flags.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { a.teardown() },
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default .explorer.yaml)")
	flags.BoolP("verbose", "v", false, "debug logging")
	flags.String("manifest", "", "catalog manifest (TOML); bundled defaults when empty")
	flags.String("prefs-driver", "", "preference store: memory, sqlite or postgres")
	flags.String("prefs-path", "", "sqlite preference database path")
	flags.String("prefs-dsn", "", "postgres preference DSN")
	for key, name := range map[string]string{
		"verbose":            "verbose",
		"manifest":           "manifest",
		"prefs.driver":       "prefs-driver",
		"prefs.sqlite_path":  "prefs-path",
		"prefs.postgres_dsn": "prefs-dsn",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(name))
	}

	root.AddCommand(
		a.serveCmd(),
		a.listCmd(),
		a.groupCmd(),
		a.searchCmd(),
		a.compatCmd(),
		a.importCmd(),
		a.exportCmd(),
	)
	// PersistentPostRun is skipped when RunE fails.
	for _, c := range root.Commands() {
		run := c.RunE
		c.RunE = func(cmd *cobra.Command, args []string) error {
			defer a.teardown()
			return run(cmd, args)
		}
	}
	return root
}

func (a *app) initConfig(cmd *cobra.Command) error {
	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
	} else {
		a.v.SetConfigName(".explorer")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(home)
		}
	}
	config.BindEnv(a.v)
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

func (a *app) setup(cmd *cobra.Command, _ []string) (err error) {
	defer func() {
		if err != nil {
			a.teardown()
		}
	}()
	if err := a.initConfig(cmd); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger, err = observability.NewLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	a.metrics = observability.NewMetrics()

	manifest, err := source.LoadManifest(cfg.Manifest)
	if err != nil {
		return err
	}
	a.prefs, err = prefs.Open(cmd.Context(), cfg.PrefsOptions())
	if err != nil {
		return fmt.Errorf("opening preferences: %w", err)
	}
	a.reg = catalog.New(manifest,
		catalog.WithPrefs(a.prefs),
		catalog.WithLogger(a.logger),
		catalog.WithMetrics(a.metrics),
	)
	if err := a.reg.Load(cmd.Context()); err != nil {
		return fmt.Errorf("loading catalogs: %w", err)
	}
	a.logger.Debug("catalogs ready", zap.Strings("catalogs", a.reg.Names()))
	return nil
}

// teardown is idempotent.
func (a *app) teardown() {
	if a.prefs != nil {
		if err := a.prefs.Close(); err != nil && a.logger != nil {
			a.logger.Warn("close preferences", zap.Error(err))
		}
		a.prefs = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
		a.logger = nil
	}
}

func (a *app) catalog(name string) (*catalog.Catalog, error) {
	c, err := a.reg.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w (known: %v)", err, a.reg.Names())
	}
	return c, nil
}
