package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/agentic-research/dbref/internal/config"
	"github.com/agentic-research/dbref/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	cfgFile string
	debug   bool
}

// app is the state shared by all subcommands of one root command.
type app struct {
	opts     rootOptions
	settings config.Settings
	log      *logrus.Logger
}

var longRootDescription = `dbref stores JSON documents in collections and resolves the references
between them. A reference is any object with a "collection" and an "id"
field; resolving replaces it with the document it points to.

Settings come from flags, DBREF_* environment variables, an HCL config file
and built-in defaults, in that order.`

// NewRootCmd builds the dbref command tree.
func NewRootCmd() *cobra.Command {
	a := &app{log: logrus.StandardLogger()}

	rootCmd := &cobra.Command{
		Use:           "dbref",
		Short:         "Resolve references between JSON documents",
		Long:          longRootDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadSettings(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.opts.cfgFile, "config", "", "HCL config file")
	pf.BoolVarP(&a.opts.debug, "debug", "d", false, "turn on debug logging")
	pf.String(config.KeyDB, "", "SQLite database path (default dbref.db)")
	pf.Bool(config.KeyReadOnly, false, "open the database read-only")
	pf.String(config.KeyLogLevel, "", "log level (default info)")
	pf.String(config.KeyLogFormat, "", "log format: text or json (default text)")

	rootCmd.AddCommand(
		newImportCmd(a),
		newResolveCmd(a),
		newResolveFileCmd(a),
		newCollectionsCmd(a),
	)
	return rootCmd
}

// loadSettings merges config file, environment and flags, then configures logging.
func (a *app) loadSettings(cmd *cobra.Command) error {
	cfg, err := config.Load(a.opts.cfgFile)
	if err != nil {
		return err
	}
	v := config.NewViper(cfg)
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	s, err := config.FromViper(v)
	if err != nil {
		return err
	}
	if a.opts.debug {
		s.LogLevel = logrus.DebugLevel.String()
	}
	if err := config.ConfigureLogger(a.log, s.LogLevel, s.LogFormat); err != nil {
		return err
	}
	a.settings = s
	a.log.WithFields(logrus.Fields{
		"config": a.opts.cfgFile,
		"db":     s.DBPath,
	}).Debug("settings loaded")
	return nil
}

// openStore opens the configured database, read-only unless forWrite.
func (a *app) openStore(forWrite bool) (*store.SQLiteStore, error) {
	opts := []store.OpenOption{store.WithLogger(logrus.NewEntry(a.log).WithField("component", "store"))}
	if !forWrite {
		// Reading never creates the database.
		return store.OpenReadOnly(a.settings.DBPath, opts...)
	}
	if a.settings.ReadOnly {
		return nil, fmt.Errorf("database %s is configured read-only", a.settings.DBPath)
	}
	return store.Open(a.settings.DBPath, opts...)
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
