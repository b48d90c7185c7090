// Package main is the entry point for the drlab admin CLI.
// It provides administrative commands for managing user accounts and for
// running the retention and invitation sweeps on demand.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	rediscache "github.com/drlab-io/drlab/internal/cache/redis"
	"github.com/drlab-io/drlab/internal/config"
	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/lock"
	"github.com/drlab-io/drlab/internal/repository"
	"github.com/drlab-io/drlab/internal/repository/postgres"
	"github.com/drlab-io/drlab/internal/repository/sqlite"
	"github.com/drlab-io/drlab/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "version":
		fmt.Printf("drlab Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "user":
		runUserCommand(os.Args[2:])

	case "sweep":
		runSweepCommand(os.Args[2:])

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// env bundles everything a subcommand needs.
type env struct {
	cfg    *config.Config
	repos  *repository.Repositories
	locker lock.Locker
	close  func()
}

// mustSetup loads config, connects the database and picks a locker. The
// caller must invoke close when done.
func mustSetup() *env {
	cfg, err := config.Load(os.Getenv("DRLAB_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if !cfg.Admin.Enabled {
		fmt.Fprintln(os.Stderr, "admin commands are disabled in configuration (admin.enabled = false)")
		os.Exit(1)
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		repos   *repository.Repositories
		closeDB func()
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to postgres: %v\n", err)
			os.Exit(1)
		}
		repos = postgres.NewRepositories(db)
		closeDB = func() { db.Close() }
	default:
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open sqlite database: %v\n", err)
			os.Exit(1)
		}
		repos = sqlite.NewRepositories(db)
		closeDB = func() { db.Close() }
	}

	// The redis locker coordinates with a running server; the memory locker
	// only guards this process.
	locker := lock.Locker(lock.NewMemoryLocker())
	closeAll := closeDB
	if cfg.Redis.Enabled {
		client, err := rediscache.Connect(ctx, cfg.Redis)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to redis: %v\n", err)
			closeDB()
			os.Exit(1)
		}
		redisLock, err := rediscache.NewLock(client)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize redis lock: %v\n", err)
			client.Close()
			closeDB()
			os.Exit(1)
		}
		locker = lock.NewRedisLocker(redisLock)
		closeAll = func() {
			client.Close()
			closeDB()
		}
	}

	return &env{cfg: cfg, repos: repos, locker: locker, close: closeAll}
}

func runUserCommand(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: drlab-admin user <create|list>")
		os.Exit(1)
	}

	switch args[0] {
	case "create":
		fs := flag.NewFlagSet("user create", flag.ExitOnError)
		email := fs.String("email", "", "email address (required)")
		firstName := fs.String("first-name", "", "first name")
		lastName := fs.String("last-name", "", "last name")
		role := fs.String("role", string(domain.RoleTechnician), "role (ADMIN, MANAGER, TECHNICIAN, OPERATOR, VIEWER)")
		password := fs.String("password", "", "initial password (omit to require first-login setup)")
		_ = fs.Parse(args[1:])

		if *email == "" {
			fmt.Fprintln(os.Stderr, "user create: --email is required")
			os.Exit(1)
		}

		e := mustSetup()
		defer e.close()

		userService := service.NewUserService(e.repos.User, e.locker, e.cfg.Auth, zerolog.Nop())
		out, err := userService.Create(context.Background(), service.CreateUserInput{
			Email:     *email,
			FirstName: *firstName,
			LastName:  *lastName,
			Role:      domain.Role(*role),
			Password:  *password,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("created user %s (%s)\n", out.User.Email, out.User.ID)
		if out.User.SetupRequired {
			fmt.Println("the user must complete setup on first login")
		}

	case "list":
		e := mustSetup()
		defer e.close()

		userService := service.NewUserService(e.repos.User, e.locker, e.cfg.Auth, zerolog.Nop())
		out, err := userService.List(context.Background(), service.ListUsersInput{Limit: 100})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to list users: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%-38s %-30s %-12s %-8s\n", "ID", "EMAIL", "ROLE", "ACTIVE")
		for _, u := range out.Users {
			fmt.Printf("%-38s %-30s %-12s %-8t\n", u.ID, u.Email, u.Role, u.IsActive)
		}
		fmt.Printf("\n%d of %d users\n", len(out.Users), out.TotalCount)

	default:
		fmt.Fprintf(os.Stderr, "unknown user command: %s\n", args[0])
		os.Exit(1)
	}
}

func runSweepCommand(args []string) {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	lockTTL := fs.Duration("lock-ttl", 5*time.Minute, "sweep lock TTL")
	_ = fs.Parse(args)

	e := mustSetup()
	defer e.close()

	ctx := context.Background()
	idgen := service.NewIdentifierGenerator(e.repos.Sequence)
	sampleService := service.NewSampleService(
		e.repos.Batch, e.repos.Sample, e.repos.Client, e.repos.Project,
		idgen, nil, e.locker, zerolog.Nop(),
	)
	groupService := service.NewGroupService(e.repos.Group, e.repos.Membership, e.repos.User, e.locker, zerolog.Nop())
	invitationService := service.NewInvitationService(
		e.repos.Invitation, groupService, e.repos.User,
		e.locker, e.cfg.Auth.InvitationTTL, zerolog.Nop(),
	)

	discarded, err := sampleService.SweepDiscardable(ctx, *lockTTL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "discard sweep failed: %v\n", err)
		os.Exit(1)
	}
	expired, err := invitationService.SweepExpired(ctx, *lockTTL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invitation sweep failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("discarded %d samples, expired %d invitations\n", discarded, expired)
}

func printUsage() {
	fmt.Println(`drlab Admin CLI

Usage:
  drlab-admin <command> [arguments]

Commands:
  user        Manage user accounts (create, list)
  sweep       Run the retention and invitation sweeps once
  version     Print version information
  help        Show this help message

Environment Variables:
  DRLAB_CONFIG    Path to the config file (same file the server reads)

Examples:
  drlab-admin user create --email admin@lab.example --role ADMIN --password secret123
  drlab-admin user list
  drlab-admin sweep --lock-ttl 2m

Use "drlab-admin <command> --help" for more information about a command.`)
}
