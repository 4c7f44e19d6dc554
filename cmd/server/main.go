package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/huddlehq/huddle/internal/account"
	"github.com/huddlehq/huddle/internal/ai"
	"github.com/huddlehq/huddle/internal/aitag"
	"github.com/huddlehq/huddle/internal/api"
	"github.com/huddlehq/huddle/internal/audit"
	"github.com/huddlehq/huddle/internal/auth"
	"github.com/huddlehq/huddle/internal/billing"
	"github.com/huddlehq/huddle/internal/comms"
	"github.com/huddlehq/huddle/internal/config"
	"github.com/huddlehq/huddle/internal/database"
	"github.com/huddlehq/huddle/internal/errreport"
	"github.com/huddlehq/huddle/internal/film"
	"github.com/huddlehq/huddle/internal/game"
	"github.com/huddlehq/huddle/internal/logging"
	"github.com/huddlehq/huddle/internal/playbook"
	"github.com/huddlehq/huddle/internal/player"
	"github.com/huddlehq/huddle/internal/playtag"
	"github.com/huddlehq/huddle/internal/practice"
	"github.com/huddlehq/huddle/internal/team"
	"github.com/huddlehq/huddle/internal/tier"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	reporter := errreport.New(errreport.Config{
		Token:       cfg.RollbarToken,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})
	logging.Setup(cfg.LogLevel, cfg.LogFormat, reporter)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, reporter); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, reporter errreport.Reporter) error {
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	applied, err := database.Migrate(ctx, db.Pool())
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	if len(applied) > 0 {
		slog.Info("migrations applied", "versions", applied)
	}

	deps, sweeper, err := wire(ctx, cfg, db)
	if err != nil {
		return err
	}
	deps.Reporter = reporter

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting huddle server", "port", cfg.Port, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sweeper.Start(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// wire builds every repository and service on top of the pool. Optional
// integrations stay nil when their credentials are absent.
func wire(ctx context.Context, cfg *config.Config, db *database.DB) (api.RouterDeps, *billing.Sweeper, error) {
	pool := db.Pool()

	auditLog := audit.NewLog(pool)
	teams := team.NewRepository(pool)
	tiers := tier.NewPostgresRepository(pool)
	users := auth.NewRepository(pool)
	players := player.NewRepository(pool)
	plays := playbook.NewRepository(pool)
	games := game.NewRepository(pool)
	tags := playtag.NewRepository(pool)
	plans := practice.NewRepository(pool)

	var store film.Store
	if cfg.StorageEnabled() {
		minioStore, err := film.NewMinioStore(film.MinioConfig{
			Endpoint:  cfg.StorageEndpoint,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
			Bucket:    cfg.StorageBucket,
			UseSSL:    cfg.StorageUseSSL,
		})
		if err != nil {
			return api.RouterDeps{}, nil, err
		}
		store = minioStore
	} else {
		slog.Warn("film storage not configured; video uploads are disabled")
	}
	filmSvc := film.NewService(film.NewRepository(pool), store, cfg.UploadURLTTL)

	var gateway billing.Gateway
	if cfg.StripeSecretKey != "" {
		gateway = billing.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	}
	billingSvc := billing.NewService(billing.NewRepository(pool), tiers, gateway, auditLog, cfg.AppBaseURL)

	var gen ai.Generator
	if cfg.GeminiAPIKey != "" {
		g, err := ai.NewGenAIGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			slog.Warn("AI generator unavailable", "error", err)
		} else {
			gen = g
		}
	}

	var mailer comms.Mailer
	if cfg.SendgridAPIKey != "" {
		mailer = comms.NewSendGridMailer(cfg.SendgridAPIKey, "Huddle", cfg.MailFrom)
	}

	authSvc := auth.NewService(users, teams, auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL), cfg.BcryptCost)
	accounts := account.NewService(authSvc, users, teams, billingSvc, filmSvc, auditLog, cfg.TrialDays)

	deps := api.RouterDeps{
		Version:  cfg.Version,
		DB:       db,
		Auth:     authSvc,
		Accounts: accounts,
		Teams:    teams,
		Tiers:    tiers,
		Players:  players,
		Plays:    plays,
		Games:    games,
		Film:     filmSvc,
		PlayTags: tags,
		Practice: plans,
		Planner:  practice.NewPlanner(gen, billingSvc, plans),
		Tagger:   aitag.NewTagger(gen, billingSvc, tags),
		Billing:  billingSvc,
		Comms:    comms.NewService(comms.NewRepository(pool), players, mailer),
		Audit:    auditLog,
	}
	return deps, billing.NewSweeper(billingSvc, cfg.SweepEvery()), nil
}
