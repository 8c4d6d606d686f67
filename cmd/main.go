package main

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/victornm/scamquiz/internal/config"
	"github.com/victornm/scamquiz/internal/server"
	"github.com/victornm/scamquiz/internal/storage/postgres/migrations"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "scamquiz",
		Short:         "Chat quiz that trains people to recognise scam messages",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to the YAML config file, optional")
	cmd.AddCommand(newServeCmd(&configPath), newMigrateCmd(&configPath))
	return cmd
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the LINE webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, os.Interrupt)
			defer stop()

			s, err := server.Init(ctx, c)
			if err != nil {
				slog.ErrorContext(ctx, "init server failed", "error", err)
				return err
			}

			errc := make(chan error, 1)
			go func() { errc <- s.Start(ctx) }()

			select {
			case <-ctx.Done():
			case err = <-errc:
			}

			s.Shutdown()
			return err
		},
	}
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply Postgres migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			group, err := migrations.Run(cmd.Context(), c.PostgresDSN())
			if err != nil {
				slog.ErrorContext(cmd.Context(), "migrate failed", "error", err)
				return err
			}

			if group.IsZero() {
				slog.InfoContext(cmd.Context(), "migrate: database is up to date")
				return nil
			}
			slog.InfoContext(cmd.Context(), fmt.Sprintf("migrate: applied %s", group))
			return nil
		},
	}
}

func loadConfig(path string) (server.Config, error) {
	var c server.Config

	if err := config.Load(path, &c, config.WithDefaults(server.Defaults())); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	setupLogger(c.Log.Level)
	return c, nil
}

func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

