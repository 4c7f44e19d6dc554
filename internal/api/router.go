package api

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/go-chi/chi/v5"

	"github.com/huddlehq/huddle/internal/api/handler"
	"github.com/huddlehq/huddle/internal/api/middleware"
	"github.com/huddlehq/huddle/internal/audit"
	"github.com/huddlehq/huddle/internal/auth"
	"github.com/huddlehq/huddle/internal/errreport"
	"github.com/huddlehq/huddle/internal/game"
	"github.com/huddlehq/huddle/internal/metrics"
	"github.com/huddlehq/huddle/internal/playbook"
	"github.com/huddlehq/huddle/internal/player"
	"github.com/huddlehq/huddle/internal/playtag"
	"github.com/huddlehq/huddle/internal/practice"
	"github.com/huddlehq/huddle/internal/team"
	"github.com/huddlehq/huddle/internal/tier"
)

// Database is the connection pool as seen by health checks and admin stats.
type Database interface {
	handler.Pinger
	handler.TableCounter
}

// Accounts covers signup, staff and team administration.
type Accounts interface {
	handler.Signer
	handler.StaffService
	handler.TeamUpdater
	handler.TeamRemover
}

// Film is the video service.
type Film interface {
	handler.FilmService
	handler.StorageChecker
	handler.GameFilm
}

// Billing is the subscription and token service.
type Billing interface {
	handler.BillingService
	handler.SubscriptionAdmin
	handler.TierLookup
	middleware.AccessChecker
}

// AuditLog records and lists audit entries.
type AuditLog interface {
	audit.Recorder
	handler.AuditLister
}

// Authenticator resolves bearer tokens and verifies credentials.
type Authenticator interface {
	middleware.Authenticator
	handler.LoginService
}

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Version  string
	DB       Database
	Reporter errreport.Reporter
	Auth     Authenticator
	Accounts Accounts
	Teams    team.Repository
	Tiers    tier.Repository
	Players  player.Repository
	Plays    playbook.Repository
	Games    game.Repository
	Film     Film
	PlayTags playtag.Repository
	Practice practice.Repository
	Planner  handler.PracticePlanner
	Tagger   handler.Tagger
	Billing  Billing
	Comms    handler.CommsService
	Audit    AuditLog
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	if deps.Reporter == nil {
		deps.Reporter = errreport.Nop{}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Reporter))
	r.Use(chimiddleware.Logger)
	r.Use(metrics.Middleware)

	healthHandler := handler.NewHealthHandler(deps.DB, deps.Film, deps.Version)
	authHandler := handler.NewAuthHandler(deps.Accounts, deps.Auth)
	teamHandler := handler.NewTeamHandler(deps.Teams, deps.Accounts)
	staffHandler := handler.NewStaffHandler(deps.Accounts)
	playerHandler := handler.NewPlayerHandler(deps.Players)
	playbookHandler := handler.NewPlaybookHandler(deps.Plays)
	gameHandler := handler.NewGameHandler(deps.Games, deps.Film)
	videoHandler := handler.NewVideoHandler(deps.Film, deps.Games, deps.Billing)
	timelineHandler := handler.NewTimelineHandler(deps.Film, deps.Games)
	playTagHandler := handler.NewPlayTagHandler(deps.PlayTags, deps.Games, deps.Plays, deps.Film)
	taggingHandler := handler.NewTaggingHandler(deps.Tagger, deps.Film, deps.Plays, deps.Billing)
	practiceHandler := handler.NewPracticeHandler(deps.Practice, deps.Planner, deps.Players, deps.Games, deps.PlayTags)
	analyticsHandler := handler.NewAnalyticsHandler(deps.PlayTags, deps.Plays, deps.Games)
	tierHandler := handler.NewTierHandler(deps.Tiers, deps.Audit)
	billingHandler := handler.NewBillingHandler(deps.Billing)
	commsHandler := handler.NewCommsHandler(deps.Comms)
	adminHandler := handler.NewAdminHandler(deps.Teams, deps.Accounts, deps.Billing, deps.Audit, deps.DB)

	r.Get("/health", healthHandler.ServeHTTP)
	r.Handle("/metrics", metrics.Handler())

	r.Post("/auth/signup", authHandler.Signup)
	r.Post("/auth/login", authHandler.Login)
	r.Post("/webhooks/stripe", billingHandler.Webhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tiers", tierHandler.Public)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.Auth))
			r.Get("/me", authHandler.Me)
			r.Get("/tagging-tiers", taggingHandler.Tiers)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(auth.ValidRoles...))
				r.Use(middleware.RequireWriteMethods(auth.RoleHeadCoach, auth.RoleCoach))
				teamRoutes(r, routeHandlers{
					team:      teamHandler,
					staff:     staffHandler,
					player:    playerHandler,
					playbook:  playbookHandler,
					game:      gameHandler,
					video:     videoHandler,
					timeline:  timelineHandler,
					playTag:   playTagHandler,
					tagging:   taggingHandler,
					practice:  practiceHandler,
					analytics: analyticsHandler,
					billing:   billingHandler,
					comms:     commsHandler,
				}, middleware.RequireActiveSubscription(deps.Billing))
			})
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Auth(deps.Auth))
		r.Use(middleware.RequirePlatformAdmin())

		r.Get("/teams", adminHandler.ListTeams)
		r.Get("/teams/{id}", adminHandler.GetTeam)
		r.Delete("/teams/{id}", adminHandler.DeleteTeam)
		r.Patch("/teams/{id}/subscription", adminHandler.UpdateSubscription)
		r.Post("/teams/{id}/tokens", adminHandler.GrantTokens)

		r.Get("/tiers", tierHandler.List)
		r.Post("/tiers", tierHandler.Create)
		r.Patch("/tiers/{id}", tierHandler.Update)
		r.Delete("/tiers/{id}", tierHandler.Delete)

		r.Get("/audit-logs", adminHandler.AuditLogs)
		r.Get("/stats", adminHandler.Stats)
	})

	return r
}

type routeHandlers struct {
	team      *handler.TeamHandler
	staff     *handler.StaffHandler
	player    *handler.PlayerHandler
	playbook  *handler.PlaybookHandler
	game      *handler.GameHandler
	video     *handler.VideoHandler
	timeline  *handler.TimelineHandler
	playTag   *handler.PlayTagHandler
	tagging   *handler.TaggingHandler
	practice  *handler.PracticeHandler
	analytics *handler.AnalyticsHandler
	billing   *handler.BillingHandler
	comms     *handler.CommsHandler
}

// teamRoutes mounts the tenant-scoped API. Reads are open to every team role,
// writes to coaches; gated marks routes that need a live subscription.
func teamRoutes(r chi.Router, h routeHandlers, gated func(http.Handler) http.Handler) {
	r.Get("/team", h.team.Get)
	r.Get("/billing", h.billing.Overview)
	r.Get("/billing/transactions", h.billing.Transactions)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(auth.RoleHeadCoach))
		r.Patch("/team", h.team.Update)
		r.Get("/staff", h.staff.List)
		r.Post("/staff", h.staff.Create)
		r.Delete("/staff/{id}", h.staff.Delete)
		r.Post("/billing/checkout", h.billing.Checkout)
		r.Post("/billing/portal", h.billing.Portal)
	})

	r.Route("/players", func(r chi.Router) {
		r.Post("/", h.player.Create)
		r.Get("/", h.player.List)
		r.Get("/{id}", h.player.GetByID)
		r.Patch("/{id}", h.player.Update)
		r.Delete("/{id}", h.player.Delete)
	})
	r.Get("/depth-chart", h.player.DepthChart)

	r.Route("/plays", func(r chi.Router) {
		r.Post("/", h.playbook.Create)
		r.Get("/", h.playbook.List)
		r.Get("/{id}", h.playbook.GetByID)
		r.Patch("/{id}", h.playbook.Update)
		r.Delete("/{id}", h.playbook.Delete)
	})

	r.Route("/games", func(r chi.Router) {
		r.Post("/", h.game.Create)
		r.Get("/", h.game.List)
		r.Get("/{id}", h.game.GetByID)
		r.Patch("/{id}", h.game.Update)
		r.Delete("/{id}", h.game.Delete)

		r.Get("/{gameID}/videos", h.video.ListByGame)
		r.With(gated).Post("/{gameID}/videos", h.video.Create)
		r.Get("/{gameID}/timeline", h.timeline.Get)
		r.Post("/{gameID}/timeline/sync", h.timeline.Sync)
		r.Get("/{gameID}/plays", h.playTag.ListByGame)
		r.Post("/{gameID}/plays", h.playTag.Create)
		r.Delete("/{gameID}/plays", h.playTag.DeleteBySource)
		r.Get("/{gameID}/report", h.analytics.Game)
	})

	r.Route("/videos", func(r chi.Router) {
		r.Get("/{id}", h.video.GetByID)
		r.Patch("/{id}", h.video.Update)
		r.Delete("/{id}", h.video.Delete)
		r.Post("/{id}/complete", h.video.Complete)
		r.With(gated).Post("/{id}/ai-tag", h.tagging.AITag)
	})

	r.Patch("/play-instances/{id}", h.playTag.Update)
	r.Delete("/play-instances/{id}", h.playTag.Delete)

	r.Get("/reports/season", h.analytics.Season)

	r.Route("/practice-plans", func(r chi.Router) {
		r.Post("/", h.practice.Create)
		r.Get("/", h.practice.List)
		r.With(gated).Post("/generate", h.practice.Generate)
		r.Get("/{id}", h.practice.GetByID)
		r.Patch("/{id}", h.practice.Update)
		r.Delete("/{id}", h.practice.Delete)
	})

	r.Route("/contacts", func(r chi.Router) {
		r.Get("/", h.comms.ListContacts)
		r.Post("/", h.comms.CreateContact)
		r.Patch("/{id}", h.comms.UpdateContact)
		r.Delete("/{id}", h.comms.DeleteContact)
	})
	r.Get("/messages", h.comms.ListMessages)
	r.With(gated).Post("/messages", h.comms.SendMessage)
}
