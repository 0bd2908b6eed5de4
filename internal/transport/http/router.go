package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/storefront-api/internal/application/auth"
	"github.com/storefront-api/internal/application/user"
	"github.com/storefront-api/internal/application/verification"
	"github.com/storefront-api/internal/config"
	"github.com/storefront-api/internal/domain"
	"github.com/storefront-api/internal/infrastructure/google"
	jwtinfra "github.com/storefront-api/internal/infrastructure/jwt"
	"github.com/storefront-api/internal/transport/http/handler"
	appmiddleware "github.com/storefront-api/internal/transport/http/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo       UserRepository
	CodeStore      CodeStore
	Engine         *verification.Engine
	JWTProvider    *jwtinfra.Provider
	PhoneDirectory *google.PhoneDirectory
	GoogleVerifier *google.Verifier
	Log            *zap.Logger
}

// NewRouter builds and returns the application router. ctx bounds background
// work such as rate limiter cleanup.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	exposeStack := !cfg.IsProduction()

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.RequestLogger(log))
	r.Use(appmiddleware.Recoverer(log, exposeStack))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider)
	sendRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	verifyRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	authSvc := auth.NewService(auth.ServiceDeps{
		Engine:         deps.Engine,
		UserRepo:       deps.UserRepo,
		JWTProvider:    deps.JWTProvider,
		PhoneDirectory: deps.PhoneDirectory,
		GoogleVerifier: deps.GoogleVerifier,
		Log:            log,
	})
	userSvc := user.NewService(user.ServiceDeps{
		UserRepo:    deps.UserRepo,
		JWTProvider: deps.JWTProvider,
	})

	opts := handler.Options{ExposeStack: exposeStack, Log: log}
	healthH := handler.NewHealthHandler(deps.CodeStore)
	authH := handler.NewAuthHandler(authSvc, opts)
	userH := handler.NewUserHandler(userSvc, opts)

	r.Get("/health", healthH.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Route("/auth", func(r chi.Router) {
			r.With(sendRL.Limit).Post("/email/send-otp", authH.SendEmailOTP)
			r.With(verifyRL.Limit).Post("/email/verify-otp", authH.VerifyEmailOTP)
			r.With(sendRL.Limit).Post("/phone/send-code", authH.SendPhoneCode)
			r.With(verifyRL.Limit).Post("/phone/verify-code", authH.VerifyPhoneCode)
			r.Post("/phone/check", authH.CheckPhone)
			r.Post("/register", authH.Register)
			r.Post("/login", authH.Login)
			r.Post("/google", authH.Google)
		})

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Route("/users", func(r chi.Router) {
			r.Use(authMw)

			r.Get("/profile", userH.GetProfile)
			r.Put("/profile", userH.UpdateProfile)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Get("/", userH.List)
				r.Get("/{id}", userH.Get)
			})
		})
	})

	return r
}
