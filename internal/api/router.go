package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/graemedakers/decision-jar/internal/api/handlers"
	"github.com/graemedakers/decision-jar/internal/api/middleware"
	"github.com/graemedakers/decision-jar/internal/auth"
	"github.com/graemedakers/decision-jar/internal/billing"
	"github.com/graemedakers/decision-jar/internal/database/models"
	"github.com/graemedakers/decision-jar/internal/ideas"
	"github.com/graemedakers/decision-jar/internal/jars"
	"github.com/graemedakers/decision-jar/internal/notify"
	"github.com/graemedakers/decision-jar/pkg/crypto"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB                   *gorm.DB
	Redis                *redis.Client
	Logger               *slog.Logger
	JWTService           *auth.JWTService
	AuthService          *auth.Service
	Encryptor            *crypto.Encryptor
	AsynqClient          *asynq.Client
	BillingWebhookSecret string
	AllowedOrigins       []string // CORS allowed origins
	RateLimitReqs        int      // Rate limit requests per window
	RateLimitSecs        int      // Rate limit window in seconds
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	// Rate limiting - applied globally to prevent abuse
	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	// CORS - restrict to configured origins, or allow all in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		// Default to localhost for development - configure in production
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	csrfStore := middleware.NewCSRFStore()

	// Initialize services
	jarService := jars.NewService(cfg.DB, cfg.Logger)
	billingService := billing.NewService(cfg.DB)
	ideaService := ideas.NewService(cfg.DB, billingService)
	deviceService := notify.NewDeviceService(cfg.DB)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService)
	accountHandler := handlers.NewAccountHandler(cfg.DB, cfg.AuthService, cfg.Encryptor)
	jarHandler := handlers.NewJarHandler(jarService, cfg.AsynqClient)
	ideaHandler := handlers.NewIdeaHandler(ideaService, cfg.AuthService, cfg.AsynqClient)
	reminderHandler := handlers.NewReminderHandler(cfg.DB, jarService)
	deviceHandler := handlers.NewDeviceHandler(deviceService)
	billingHandler := handlers.NewBillingHandler(billingService, cfg.BillingWebhookSecret)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)

		// Billing webhook authenticates with a shared secret, not a JWT
		r.Post("/billing/webhook", billingHandler.Webhook)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))
			// Cookie sessions need CSRF protection; Bearer clients pass
			// through untouched
			r.Use(middleware.CSRF(csrfStore))

			// Spins and AI suggestions cost real money and real compute, so
			// they get a tighter per-user limit on top of the global one
			expensive := middleware.RateLimitByUser(30, 60)

			// Account endpoints. Storing a BYO key is premium-only; clearing
			// one must keep working after a downgrade
			r.Get("/me", accountHandler.Me)
			r.With(middleware.RequirePlan(models.PlanPremium)).Put("/me/llm-key", accountHandler.SetLLMKey)
			r.Delete("/me/llm-key", accountHandler.ClearLLMKey)
			r.Post("/invite-token/regenerate", jarHandler.RegenerateInviteToken)

			// Jars endpoints
			r.Route("/jars", func(r chi.Router) {
				r.Get("/", jarHandler.List)
				r.Post("/", jarHandler.Create)
				r.Get("/resolve/{code}", jarHandler.Resolve)
				r.Post("/join", jarHandler.Join)
				r.Post("/active/clear", jarHandler.ClearActive)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", jarHandler.Get)
					r.Delete("/", jarHandler.Delete)
					r.Get("/members", jarHandler.Members)
					r.Post("/leave", jarHandler.Leave)
					r.Post("/activate", jarHandler.Activate)
					r.With(expensive).Post("/spin", ideaHandler.Spin)
					r.With(expensive).Post("/suggest", ideaHandler.Suggest)

					r.Get("/ideas", ideaHandler.List)
					r.Post("/ideas", ideaHandler.Add)

					r.Get("/reminders", reminderHandler.List)
					r.Post("/reminders", reminderHandler.Create)
				})
			})

			// Ideas endpoints (addressed by idea ID)
			r.Route("/ideas", func(r chi.Router) {
				r.Put("/{id}", ideaHandler.Update)
				r.Delete("/{id}", ideaHandler.Delete)
			})

			// Reminders endpoints (addressed by reminder ID)
			r.Route("/reminders", func(r chi.Router) {
				r.Put("/{id}", reminderHandler.Update)
				r.Delete("/{id}", reminderHandler.Delete)
			})

			// Device token endpoints
			r.Route("/devices", func(r chi.Router) {
				r.Post("/", deviceHandler.Register)
				r.Delete("/", deviceHandler.Unregister)
			})
		})
	})

	return &Router{r}
}
