package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/marisec-auth/internal/application/auth"
	"github.com/marisec-auth/internal/application/otp"
	"github.com/marisec-auth/internal/application/session"
	"github.com/marisec-auth/internal/application/user"
	"github.com/marisec-auth/internal/config"
	"github.com/marisec-auth/internal/transport/http/handler"
	appmiddleware "github.com/marisec-auth/internal/transport/http/middleware"
)

// NewRouter builds and returns the application router. deps.RateLimiter is
// required; the caller owns it and stops it on shutdown.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	if deps.RateLimiter == nil {
		panic("transport/http: Deps.RateLimiter is required")
	}
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Applied to the unauthenticated endpoints that touch credentials or send mail.
	sensitiveRL := deps.RateLimiter

	engine := otp.NewEngine(deps.OTPStore, cfg.OTP.Pepper,
		otp.WithTTL(cfg.OTP.TTL),
		otp.WithMaxAttempts(cfg.OTP.MaxAttempts),
		otp.WithLogger(deps.Logger),
	)
	sessionSvc := session.NewService(session.ServiceDeps{
		Tokens:        deps.JWTProvider,
		Users:         deps.UserRepo,
		SecureCookies: cfg.SecureCookies(),
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		OTP:              engine,
		UserRepo:         deps.UserRepo,
		Sessions:         sessionSvc,
		Mailer:           deps.Mailer,
		SMSSender:        deps.SMSSender,
		Events:           deps.Events,
		Logger:           deps.Logger,
		DeliveryRequired: cfg.OTP.DeliveryRequired,
		OTPTTL:           cfg.OTP.TTL,
	})
	userSvc := user.NewService(user.ServiceDeps{
		UserRepo: deps.UserRepo,
		Avatars:  deps.Avatars,
		Logger:   deps.Logger,
	})

	reporter, _ := deps.OTPStore.(interface{ ActiveBackend() string })
	healthH := handler.NewHealthHandler(reporter)
	otpH := handler.NewOTPHandler(authSvc, sessionSvc)
	sessionH := handler.NewSessionHandler(authSvc, sessionSvc)
	profileH := handler.NewProfileHandler(userSvc)

	// ── Public routes (no auth) ──────────────────────────────────────────
	r.Get("/health-check/{action}", healthH.Ping)
	r.With(sensitiveRL.Limit).Post("/otp/issue", otpH.Issue)
	r.With(sensitiveRL.Limit).Post("/otp/verify", otpH.Verify)
	r.With(sensitiveRL.Limit).Post("/login", sessionH.Login)
	r.Post("/logout", sessionH.Logout)

	// ── Authenticated routes ─────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(appmiddleware.Auth(sessionSvc))

		r.Get("/profile", profileH.Get)
		r.Put("/profile/avatar", profileH.UploadAvatar)
	})

	return r
}
