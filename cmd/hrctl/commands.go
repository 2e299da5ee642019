package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"hrcopilot/internal/app/server"
	"hrcopilot/internal/domain/auth"
	"hrcopilot/internal/domain/core"
	"hrcopilot/internal/platform/config"
	"hrcopilot/internal/platform/db"
	"hrcopilot/internal/platform/jobs"
)

func serveCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			app, err := server.New(cmd.Context(), *cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Run(cmd.Context())
		},
	}
}

func migrateCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrationsDir
			}
			pool, err := db.Connect(cmd.Context(), *cfg)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := db.Migrate(cmd.Context(), pool, dir); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
	cmd.Flags().String("dir", "", "Migrations directory (defaults to MIGRATIONS_DIR)")
	return cmd
}

func seedCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo employees when the directory is empty",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd.Context(), *cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			seeded, err := core.SeedDemoEmployees(cmd.Context(), app.Directory)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]bool{"seeded": seeded})
		},
	}
}

func normalizeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize",
		Short: "Rewrite every legacy-shaped leave balance into the canonical form",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd.Context(), *cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			summary, err := app.Jobs.RunNow(cmd.Context(), jobs.JobBalanceNormalize, func(ctx context.Context) (any, error) {
				return app.Leave.NormalizeAll(ctx)
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
}

func importCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Bulk upsert employees from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			app, err := openApp(cmd.Context(), *cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			summary, err := app.Jobs.RunNow(cmd.Context(), jobs.JobEmployeeImport, func(ctx context.Context) (any, error) {
				return core.ImportEmployees(ctx, app.Directory, f)
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
}

func tokenCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the mutating API routes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			token, err := auth.GenerateToken(cfg.JWTSecret, subject, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("subject", "hr-portal", "Token subject, recorded as the audit actor")
	cmd.Flags().String("role", auth.RoleHR, "Token role (hr, employee, service)")
	cmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")
	return cmd
}

// openApp builds the application without seeding so admin commands act on existing data only.
func openApp(ctx context.Context, cfg config.Config) (*server.App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.RunSeed = false
	cfg.ClearLeavesOnStart = false
	cfg.NormalizeSweepInterval = 0
	return server.New(ctx, cfg)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
