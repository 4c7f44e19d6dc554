package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/huddlehq/huddle/internal/account"
	"github.com/huddlehq/huddle/internal/audit"
	"github.com/huddlehq/huddle/internal/auth"
	"github.com/huddlehq/huddle/internal/billing"
	"github.com/huddlehq/huddle/internal/database"
	"github.com/huddlehq/huddle/internal/film"
	"github.com/huddlehq/huddle/internal/game"
	"github.com/huddlehq/huddle/internal/playbook"
	"github.com/huddlehq/huddle/internal/player"
	"github.com/huddlehq/huddle/internal/team"
	"github.com/huddlehq/huddle/internal/tier"
)

// cliConfig is the part of the server configuration the CLI needs. Unlike
// config.Config it requires nothing, so every subcommand can print its own
// usage without a complete environment.
type cliConfig struct {
	DatabaseURL      string `envconfig:"DATABASE_URL"`
	StorageEndpoint  string `envconfig:"STORAGE_ENDPOINT"`
	StorageAccessKey string `envconfig:"STORAGE_ACCESS_KEY"`
	StorageSecretKey string `envconfig:"STORAGE_SECRET_KEY"`
	StorageBucket    string `envconfig:"STORAGE_BUCKET" default:"huddle-film"`
	StorageUseSSL    bool   `envconfig:"STORAGE_USE_SSL" default:"true"`
	TrialDays        int    `envconfig:"TRIAL_DAYS" default:"14"`
}

func (c cliConfig) storageEnabled() bool {
	return c.StorageEndpoint != "" && c.StorageAccessKey != "" && c.StorageSecretKey != ""
}

// app holds the state shared by every subcommand.
type app struct {
	cfg         cliConfig
	databaseURL string
	timeout     time.Duration
	db          *database.DB
}

// services are built on demand once a command has connected.
type services struct {
	db       *database.DB
	auth     *auth.Service
	accounts *account.Service
	billing  *billing.Service
	teams    team.Repository
	players  player.Repository
	plays    playbook.Repository
	games    game.Repository
}

func newRootCmd(a *app) *cobra.Command {
	if err := envconfig.Process("", &a.cfg); err != nil {
		// Malformed values surface again in the command that needs them.
		a.cfg = cliConfig{StorageBucket: "huddle-film", StorageUseSSL: true, TrialDays: 14}
	}

	root := &cobra.Command{
		Use:           "huddlectl",
		Short:         "Maintenance tasks for a Huddle deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.db != nil {
				a.db.Close()
				a.db = nil
			}
		},
	}
	root.PersistentFlags().StringVar(&a.databaseURL, "database-url", a.cfg.DatabaseURL, "Postgres connection string (default $DATABASE_URL)")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 2*time.Minute, "Operation timeout")

	root.AddCommand(
		newMigrateCmd(a),
		newCreateAdminCmd(a),
		newSeedCmd(a),
		newDiagnoseCmd(a),
		newTokensCmd(a),
	)
	return root
}

// commandContext returns the command context bounded by --timeout.
func (a *app) commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

func (a *app) connect(ctx context.Context) (*database.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	if a.databaseURL == "" {
		return nil, errors.New("no database configured: pass --database-url or set DATABASE_URL")
	}
	db, err := database.New(ctx, a.databaseURL)
	if err != nil {
		return nil, err
	}
	a.db = db
	return db, nil
}

func (a *app) services(ctx context.Context) (*services, error) {
	db, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	pool := db.Pool()

	auditLog := audit.NewLog(pool)
	teams := team.NewRepository(pool)
	users := auth.NewRepository(pool)
	billingSvc := billing.NewService(billing.NewRepository(pool), tier.NewPostgresRepository(pool), nil, auditLog, "")

	// Sessions issued here are never handed out, so a throwaway key is enough.
	tokens := auth.NewTokenManager(uuid.NewString(), time.Minute)
	authSvc := auth.NewService(users, teams, tokens, bcrypt.DefaultCost)

	return &services{
		db:       db,
		auth:     authSvc,
		accounts: account.NewService(authSvc, users, teams, billingSvc, nil, auditLog, a.cfg.TrialDays),
		billing:  billingSvc,
		teams:    teams,
		players:  player.NewRepository(pool),
		plays:    playbook.NewRepository(pool),
		games:    game.NewRepository(pool),
	}, nil
}

// store returns the film store, or nil when storage is not configured.
func (a *app) store() (*film.MinioStore, error) {
	if !a.cfg.storageEnabled() {
		return nil, nil
	}
	store, err := film.NewMinioStore(film.MinioConfig{
		Endpoint:  a.cfg.StorageEndpoint,
		AccessKey: a.cfg.StorageAccessKey,
		SecretKey: a.cfg.StorageSecretKey,
		Bucket:    a.cfg.StorageBucket,
		UseSSL:    a.cfg.StorageUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring storage: %w", err)
	}
	return store, nil
}

func stdinFd() int {
	return int(os.Stdin.Fd())
}
