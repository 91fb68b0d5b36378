package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nainya/grantdraft/internal/config"
	"github.com/nainya/grantdraft/internal/logger"
	"github.com/nainya/grantdraft/pkg/storage"
	"github.com/nainya/grantdraft/pkg/version"
)

// app carries the resolved configuration and I/O streams shared by all commands
type app struct {
	configPath string
	storePath  string
	backend    string
	logLevel   string

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg *config.Config
	log *logger.Logger
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{in: in, out: out, errOut: errOut}
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Version history for grant proposal drafts",
		Long: `grantdraft records every revision of a grant proposal draft as a
numbered version with a rationale, and lets you list, fetch and compare them.

History is kept in a JSON file, an append-only journal or a SQLite database,
and can be served to other processes over gRPC.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	cmd.SetIn(a.in)
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Config file path (YAML)")
	flags.StringVar(&a.storePath, "store", "", "Version history location (overrides config)")
	flags.StringVar(&a.backend, "backend", "", fmt.Sprintf("Storage backend %v (overrides config)", storage.Kinds))
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		a.saveCmd(),
		a.getCmd(),
		a.historyCmd(),
		a.latestCmd(),
		a.compareCmd(),
		a.draftCmd(),
		a.serveCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
				return nil
			},
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}

// setup loads the config file and applies flag overrides on top of it
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	overrides := &config.Config{}
	flags := cmd.Flags()
	if flags.Changed("store") {
		overrides.Storage.Path = a.storePath
	}
	if flags.Changed("backend") {
		overrides.Storage.Backend = a.backend
	}
	if flags.Changed("log-level") {
		overrides.Log.Level = a.logLevel
	}
	cfg.Merge(overrides)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a.cfg = cfg
	logger.InitGlobalLogger(logger.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: a.errOut,
	})
	a.log = logger.GetGlobalLogger()
	return nil
}

// openStore opens the configured backend. A backend that cannot be opened is
// logged and replaced by an in-memory store, matching load-failure semantics.
func (a *app) openStore(observer version.Observer) *version.Store {
	storeLog := a.log.StoreLogger(a.cfg.Storage.Backend)
	opts := version.Options{
		Logger:   storeLog.GetZerolog(),
		Observer: observer,
	}

	backend, err := storage.Open(a.cfg.Storage.Backend, a.cfg.Storage.Path)
	if err != nil {
		storeLog.Error("failed to open version history, keeping it in memory").
			Err(err).
			Str("path", a.cfg.Storage.Path).
			Send()
		if observer != nil {
			observer.LoadFailed()
		}
		return version.NewStore(opts)
	}

	opts.Backend = backend
	return version.NewStore(opts)
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
