// Package main is the entry point for the Meridian Bank admin CLI.
// It provisions users (including employees, which the public API never
// creates) and bootstraps the bank's clearing account.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-bank/internal/auth"
	"github.com/prn-tf/meridian-bank/internal/config"
	"github.com/prn-tf/meridian-bank/internal/domain"
	"github.com/prn-tf/meridian-bank/internal/pkg/secrets"
	"github.com/prn-tf/meridian-bank/internal/repository"
	"github.com/prn-tf/meridian-bank/internal/repository/postgres"
	"github.com/prn-tf/meridian-bank/internal/repository/sqlite"
	"github.com/prn-tf/meridian-bank/internal/service"
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

	switch os.Args[1] {
	case "version":
		fmt.Printf("Meridian Bank Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "user":
		runUserCreate(os.Args[2:])

	case "bootstrap":
		runBootstrap(os.Args[2:])

	case "secret":
		secret, err := secrets.GenerateJWTSecret()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate secret: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(secret)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runUserCreate(args []string) {
	fs := flag.NewFlagSet("user", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	username := fs.String("username", "", "username (required)")
	email := fs.String("email", "", "email address (required)")
	password := fs.String("password", "", "password (required)")
	firstName := fs.String("first-name", "", "first name")
	lastName := fs.String("last-name", "", "last name")
	role := fs.String("role", string(domain.RoleRegular), "role: REGULAR or EMPLOYEE")
	_ = fs.Parse(args)

	if *username == "" || *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "username, email and password are required")
		fs.Usage()
		os.Exit(1)
	}

	_, repos, closer := mustOpen(*configPath)
	defer closer()

	userService := service.NewUserService(repos.Users, quietLogger())
	output, err := userService.Register(context.Background(), service.RegisterInput{
		Username:  *username,
		Email:     *email,
		FirstName: *firstName,
		LastName:  *lastName,
		Password:  *password,
		Role:      domain.Role(strings.ToUpper(*role)),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create user: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("created user %q (id %d, role %s)\n",
		output.User.Username, output.User.ID, output.User.Role)
}

func runBootstrap(args []string) {
	fs := flag.NewFlagSet("bootstrap", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args)

	cfg, repos, closer := mustOpen(*configPath)
	defer closer()

	accountService := service.NewAccountService(
		repos.Accounts, repos.Users, repos.Transactions, auth.NewAccessPolicy(),
		service.AccountServiceConfig{
			IBANMaxAttempts:  cfg.Bank.IBANMaxAttempts,
			StrictOwnerCheck: cfg.Bank.StrictOwnerCheck,
			Location:         cfg.Location(),
		},
		quietLogger(),
	)

	acct, err := accountService.Bootstrap(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bootstrap clearing account: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("clearing account ready: %s (balance %s)\n", acct.IBAN, acct.Balance)
}

// mustOpen loads configuration, connects to the store and applies migrations.
func mustOpen(configPath string) (*config.Config, repository.Repositories, func()) {
	cfg := config.MustLoad(configPath)
	logger := quietLogger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.Database.IsEmbedded() {
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
			os.Exit(1)
		}
		if err := db.Migrate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to migrate database: %v\n", err)
			os.Exit(1)
		}
		return cfg, repository.Repositories{
			Users:        sqlite.NewUserRepository(db),
			Accounts:     sqlite.NewAccountRepository(db),
			Transactions: sqlite.NewTransactionRepository(db),
			Tx:           db,
		}, func() { _ = db.Close() }
	}

	db, err := postgres.NewDB(ctx, cfg.Database, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	if err := db.Migrate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to migrate database: %v\n", err)
		os.Exit(1)
	}
	return cfg, repository.Repositories{
		Users:        postgres.NewUserRepository(db),
		Accounts:     postgres.NewAccountRepository(db),
		Transactions: postgres.NewTransactionRepository(db),
		Tx:           db,
	}, func() { _ = db.Close() }
}

// quietLogger keeps CLI output readable: warnings and errors only.
func quietLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()
}

func printUsage() {
	fmt.Println(`Meridian Bank Admin CLI

Usage:
  meridian-admin <command> [arguments]

Commands:
  user        Create a user (use --role EMPLOYEE to provision staff)
  bootstrap   Create the bank's clearing account if missing
  secret      Generate a token-signing secret for auth.jwt_secret
  version     Print version information
  help        Show this help message

Examples:
  meridian-admin user --username teller1 --email teller1@meridian.example --password secret123 --role EMPLOYEE
  meridian-admin bootstrap --config ./configs/config.yaml`)
}
