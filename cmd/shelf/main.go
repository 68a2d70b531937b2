package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jbweber/homelab/shelf/internal/config"
	"github.com/jbweber/homelab/shelf/internal/logging"
	"github.com/jbweber/homelab/shelf/internal/migrations"
)

// Set at build time with -ldflags "-X main.version=..."
var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"
)

type rootOptions struct {
	configPath string
	envFile    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "shelf",
		Short:        "Shelf is a small book catalog service",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to a dotenv file, ignored when missing")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// setup loads configuration and builds the process logger
func (o *rootOptions) setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath, o.envFile)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(cfg.LogLevel, cfg.IsProduction).With(
		zap.String("version", version),
		zap.String("commit", gitCommit),
	)
	return cfg, logger, nil
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer logging.Flusher(logger)()

			if cfg.Database.Driver != config.DriverSQLite {
				return fmt.Errorf("nothing to migrate for database driver %q", cfg.Database.Driver)
			}

			db, err := cfg.InitializeDatabase(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer db.Close()

			current, err := migrations.NewMigrator(db, logger).GetCurrentVersion(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database at schema version %d\n", current)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "shelf %s (commit %s, built %s, %s)\n", version, gitCommit, buildTime, runtime.Version())
		},
	}
}
