// Package main is the entry point for the drlab database migration tool.
// It manages schema migrations for both the SQLite and PostgreSQL backends.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/drlab-io/drlab/internal/config"
	"github.com/drlab-io/drlab/internal/repository/postgres"
	"github.com/drlab-io/drlab/internal/repository/sqlite"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// migrator is the slice of the database handles this tool needs.
type migrator interface {
	Migrate(ctx context.Context) error
	MigrationVersion(ctx context.Context) (int, error)
	Close() error
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "version":
		fmt.Printf("drlab Migration Tool\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "up":
		db, driver := mustOpen()
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := db.Migrate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
			os.Exit(1)
		}
		version, err := db.MigrationVersion(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read migration version: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s schema is up to date at version %d\n", driver, version)

	case "status":
		db, driver := mustOpen()
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		version, err := db.MigrationVersion(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read migration version: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("driver:  %s\n", driver)
		fmt.Printf("version: %d\n", version)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// mustOpen connects to the configured database backend without migrating.
func mustOpen() (migrator, string) {
	cfg, err := config.Load(os.Getenv("DRLAB_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to postgres: %v\n", err)
			os.Exit(1)
		}
		return db, "postgres"
	default:
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open sqlite database: %v\n", err)
			os.Exit(1)
		}
		return db, "sqlite"
	}
}

func printUsage() {
	fmt.Println(`drlab Migration Tool

Usage:
  drlab-migrate <command>

Commands:
  up          Apply all pending migrations
  status      Show the current schema version
  version     Print version information
  help        Show this help message

Environment Variables:
  DRLAB_CONFIG             Path to the config file (same file the server reads)
  DRLAB_DATABASE_DRIVER    Override the database driver ("sqlite" or "postgres")

Examples:
  drlab-migrate up
  drlab-migrate status
  DRLAB_DATABASE_DRIVER=postgres drlab-migrate up`)
}
