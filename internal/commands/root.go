package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cleared-dev/invoicemap/internal/buildinfo"
	"github.com/cleared-dev/invoicemap/internal/config"
	"github.com/cleared-dev/invoicemap/internal/logging"
	"github.com/cleared-dev/invoicemap/internal/store"
)

// app is the state shared by subcommands: config, logger and store are
// opened on demand by commands that need them.
type app struct {
	cfgPath string
	cfg     *config.Config
	log     *zap.Logger
	st      *store.GormStore
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:     "invoicemap",
		Short:   "Rule-driven supplier invoice import",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&a.cfgPath, "config", config.FileName, "config file")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newMigrateCommand(a))
	rootCmd.AddCommand(newImportCommand(a))
	rootCmd.AddCommand(newPreviewCommand(a))
	rootCmd.AddCommand(newMappingCommand(a))
	rootCmd.AddCommand(newAccountsCommand(a))
	rootCmd.AddCommand(newLinkCommand(a))

	return rootCmd
}

// withStore wraps a RunE so it runs with config, logger and store open.
func (a *app) withStore(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := a.open(); err != nil {
			return err
		}
		defer a.close()
		return fn(cmd, args)
	}
}

func (a *app) open() error {
	cfg, err := config.LoadOrDefault(a.cfgPath)
	if err != nil {
		return err
	}
	log, err := logging.New(logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Version: buildinfo.Version,
	})
	if err != nil {
		return err
	}
	db, err := store.Open(cfg.Database.Driver, cfg.Database.DSN, logging.NewGormLogger(log))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	a.cfg, a.log, a.st = cfg, log, store.NewGormStore(db)
	return nil
}

func (a *app) close() {
	if a.st != nil {
		if sqlDB, err := a.st.DB().DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the invoice tables",
		Args:  cobra.NoArgs,
		RunE: a.withStore(func(cmd *cobra.Command, _ []string) error {
			if err := store.AutoMigrate(a.st.DB()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %s database\n", a.cfg.Database.Driver)
			return nil
		}),
	}
}
