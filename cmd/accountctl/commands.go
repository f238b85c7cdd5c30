package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-account/pkg/simpleaccount/config"
	repopg "github.com/tendant/simple-account/pkg/simpleaccount/repo/postgres"
)

// NewMigrateCommand creates the migrate command
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  `Create the configured schema if needed and apply the embedded goose migrations.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.DatabaseType != "postgres" {
				return errors.New("migrate requires DATABASE_URL to point at postgres")
			}

			ctx := cmd.Context()
			migrationURL, err := schemaURL(ctx, cfg.DatabaseURL, cfg.DBSchema)
			if err != nil {
				return err
			}
			if err := repopg.MigrateURL(ctx, migrationURL); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied to schema %q\n", cfg.DBSchema)
			return nil
		},
	}
}

// NewFootprintCommand creates the footprint command
func NewFootprintCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "footprint <user-id>",
		Short: "Show what an account still owns",
		Long:  `Report identity, profile, categories, content, reactions and blobs remaining for a user.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}

			components, err := buildComponents(cmd)
			if err != nil {
				return err
			}
			defer components.Close()

			footprint, err := components.Admin.Footprint(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), footprint)
		},
	}
}

// NewOwnershipCommand creates the ownership command
func NewOwnershipCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ownership <user-id>",
		Short: "Partition a user's categories into exclusive and shared",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}

			components, err := buildComponents(cmd)
			if err != nil {
				return err
			}
			defer components.Close()

			ownership, err := components.Service.ResolveCategoryOwnership(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ownership)
		},
	}
}

func loadConfig(cmd *cobra.Command) (*config.ServerConfig, error) {
	prefix, _ := cmd.Flags().GetString("env-prefix")
	verbose, _ := cmd.Flags().GetBool("verbose")

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(config.WithEnv(prefix), config.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func buildComponents(cmd *cobra.Command) (*config.Components, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	components, err := cfg.BuildService(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to build service: %w", err)
	}
	return components, nil
}

// schemaURL creates schema when missing and returns databaseURL with its
// search_path pointing at it.
func schemaURL(ctx context.Context, databaseURL, schema string) (string, error) {
	if schema == "" {
		return databaseURL, nil
	}

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return "", fmt.Errorf("connect to database: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
		return "", fmt.Errorf("create schema %s: %w", schema, err)
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
