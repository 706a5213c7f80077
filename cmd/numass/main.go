// numass browses, inspects and extends numass storages.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xtxerr/numass/internal/errors"
	"github.com/xtxerr/numass/internal/logging"
	"github.com/xtxerr/numass/internal/storage"
	"github.com/xtxerr/numass/internal/storage/config"
)

// Version is set at build time via ldflags
var Version = "dev"

const defaultConfigPath = "numass.yaml"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp()
	if err := a.execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(int(errors.ErrorToCode(err)))
	}
}

// app holds the flags shared by all commands and the lazily opened
// storage service.
type app struct {
	Root *cobra.Command

	configPath string
	root       string
	backend    string
	logLevel   string
	jsonLogs   bool

	cfg *config.Config
	svc *storage.Service
}

func newApp() *app {
	a := &app{}
	a.Root = &cobra.Command{
		Use:     "numass",
		Short:   "numass storage tools",
		Version: Version,
		Long: `
Browse a numass storage tree, list and summarize the points of a run,
and push run archives into a shelf.
`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := a.Root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (default "+defaultConfigPath+" if present)")
	flags.StringVarP(&a.root, "root", "r", "", "storage root (overrides config)")
	flags.StringVar(&a.backend, "backend", "", "backend: local, sftp, zip (overrides config)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	flags.BoolVar(&a.jsonLogs, "json", false, "log in JSON")

	a.Root.AddCommand(
		a.lsCommand(),
		a.pointsCommand(),
		a.inspectCommand(),
		a.pushCommand(),
		a.journalCommand(),
		a.shellCommand(),
	)
	return a
}

// setup loads the configuration and initializes logging.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	if a.root != "" {
		cfg.Root = a.root
	}
	if a.backend != "" {
		cfg.Backend = a.backend
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.jsonLogs {
		cfg.Logging.JSON = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return errors.NewInvalidValue("log-level", cfg.Logging.Level, err.Error())
	}
	logging.InitWriter(cmd.ErrOrStderr(), level, cfg.Logging.JSON)

	a.cfg = cfg
	return nil
}

func (a *app) loadConfig() (*config.Config, error) {
	path := a.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err != nil {
			return config.DefaultConfig(), nil
		}
		path = defaultConfigPath
	}
	return config.Load(path)
}

// service opens the storage on first use.
func (a *app) service(ctx context.Context) (*storage.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	svc, err := storage.New(ctx, a.cfg, storage.WithSource("numass-cli"))
	if err != nil {
		return nil, err
	}
	a.svc = svc
	return svc, nil
}

// execute runs the command line and closes the service afterwards, also
// when the command failed.
func (a *app) execute(ctx context.Context) error {
	err := a.Root.ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

func (a *app) close() error {
	if a.svc == nil {
		return nil
	}
	err := a.svc.Close()
	a.svc = nil
	return err
}
