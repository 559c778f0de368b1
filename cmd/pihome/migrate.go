package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/pihome/internal/infrastructure/config"
	"github.com/nerrad567/pihome/internal/infrastructure/database"
	"github.com/nerrad567/pihome/internal/infrastructure/logging"
	"github.com/nerrad567/pihome/migrations"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDatabase(opts)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // One-shot command

			_, pending, err := db.MigrationStatus(cmd.Context(), migrations.FS)
			if err != nil {
				return err
			}
			if err := db.Migrate(cmd.Context(), migrations.FS); err != nil {
				return err
			}
			for _, m := range pending {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s %s\n", m.Version, m.Name)
			}
			if len(pending) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDatabase(opts)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // One-shot command

			v, err := db.MigrateDown(cmd.Context(), migrations.FS)
			if err != nil {
				return err
			}
			if v == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s\n", v)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDatabase(opts)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // One-shot command

			applied, pending, err := db.MigrationStatus(cmd.Context(), migrations.FS)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range applied {
				fmt.Fprintf(out, "applied  %s  %s\n", m.Version, m.AppliedAt.UTC().Format("2006-01-02 15:04:05"))
			}
			for _, m := range pending {
				fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
			}
			return nil
		},
	})

	return cmd
}

// openDatabase opens the configured database without migrating it.
func openDatabase(opts *rootOptions) (*database.DB, error) {
	cfg, _, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// cliLogger keeps one-shot commands quiet on stdout: warnings and errors
// go to stderr as text.
func cliLogger(cmd *cobra.Command) *logging.Logger {
	return logging.NewWithWriter(cmd.ErrOrStderr(), config.LoggingConfig{Level: "warn", Format: "text"}, version)
}
