package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"campusgo/internal/auth"
	"campusgo/internal/blob"
	"campusgo/internal/config"
	"campusgo/internal/constants"
	"campusgo/internal/db"
	"campusgo/internal/email"
	"campusgo/internal/session"
)

type Server struct {
	router *chi.Mux
	config *config.Config
}

func NewServer(
	cfg *config.Config,
	database *db.DB,
	emailService *email.SMTPService,
	blobs *blob.Service,
) (*Server, error) {
	accounts := db.NewAccountRepository(database)
	countries := db.NewCountryRepository(database)
	cities := db.NewCityRepository(database)
	universities := db.NewUniversityRepository(database)
	programs := db.NewProgramRepository(database)
	guides := db.NewGuideRepository(database)
	ads := db.NewAdRepository(database)

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret)
	sessions := session.NewManager(
		cfg.Session.Secret,
		cfg.Session.CookieName,
		cfg.Session.MaxAge,
		cfg.Session.Secure,
		cfg.Session.InactivityTimeout,
		accounts,
	)

	authHandler := NewAuthHandler(accounts, tokens, emailService, sessions)
	accountHandler := NewAccountHandler(accounts, emailService, blobs)
	countryHandler := NewCountryHandler(countries)
	cityHandler := NewCityHandler(cities)
	universityHandler := NewUniversityHandler(universities)
	programHandler := NewProgramHandler(programs)
	guideHandler := NewGuideHandler(guides)
	adHandler := NewAdHandler(ads)
	uploadHandler := NewUploadHandler(blobs)
	healthHandler := NewHealthHandler(cfg.Server.Name, database)

	authMiddleware := NewAuthMiddleware(tokens, accounts)
	sessionMiddleware := NewSessionMiddleware(sessions, session.DefaultBypassList())

	loginLimiter := rateLimitByIP(10, time.Minute)
	codeLimiter := rateLimitByIP(5, time.Minute)
	refreshLimiter := rateLimitByIP(30, time.Minute)

	r := chi.NewRouter()
	r.Use(slogRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(securityHeadersMiddleware)

	r.Get("/health", healthHandler.Check)

	// Protected static content: image files require an active cookie
	// session and redirect rather than error without one.
	r.With(sessionMiddleware.RequireSession).Get("/upload/*", uploadHandler.Serve)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(sessionMiddleware.InactivityGate)

		// Uploads carry their own, larger body limit.
		r.Route("/uploads", func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Post("/{kind}", uploadHandler.Upload)
		})

		r.Group(func(r chi.Router) {
			r.Use(maxBodySizeMiddleware(1 << 20)) // 1 MB

			r.Route("/auth", func(r chi.Router) {
				r.With(loginLimiter).Post("/login", authHandler.Login)
				r.Get("/verify-token", authHandler.VerifyToken)
				r.With(refreshLimiter).Post("/refresh-token", authHandler.RefreshToken)
				r.Post("/logout", authHandler.Logout)
				r.With(codeLimiter).Post("/forgot-password", authHandler.ForgotPassword)
				r.With(codeLimiter).Post("/verify-reset-code", authHandler.VerifyResetCode)
				r.With(codeLimiter).Post("/reset-password", authHandler.ResetPassword)
				r.With(codeLimiter).Post("/send-confirmation-code", authHandler.SendConfirmationCode)
				r.With(codeLimiter).Post("/verify-confirmation-code", authHandler.VerifyConfirmationCode)
			})

			r.Route("/accounts", func(r chi.Router) {
				r.With(codeLimiter).Post("/register", accountHandler.Register)
				r.Get("/email-exists", accountHandler.EmailExists)

				r.Group(func(r chi.Router) {
					r.Use(authMiddleware.RequireAdmin)
					r.Get("/", accountHandler.List)
					r.Post("/register-admin", accountHandler.RegisterAdmin)
					r.Post("/delete-many", accountHandler.DeleteMany)
					r.Get("/stats/overview", accountHandler.Stats)
				})

				r.Group(func(r chi.Router) {
					r.Use(authMiddleware.RequireAuth)
					r.Get("/search", accountHandler.Search)
					r.Get("/{id}", accountHandler.Get)
					r.Put("/{id}", accountHandler.Update)
					r.Delete("/{id}", accountHandler.Delete)
					r.Put("/{id}/password", accountHandler.ChangePassword)
					r.Get("/{id}/language", accountHandler.GetLanguage)
					r.Put("/{id}/language", accountHandler.UpdateLanguage)
				})
			})

			mountCatalog(r, authMiddleware, "/countries", catalogRoutes{
				list: countryHandler.List, get: countryHandler.Get,
				create: countryHandler.Create, update: countryHandler.Update, del: countryHandler.Delete,
			})
			mountCatalog(r, authMiddleware, "/cities", catalogRoutes{
				list: cityHandler.List, get: cityHandler.Get,
				create: cityHandler.Create, update: cityHandler.Update, del: cityHandler.Delete,
			})
			mountCatalog(r, authMiddleware, "/universities", catalogRoutes{
				list: universityHandler.List, get: universityHandler.Get,
				create: universityHandler.Create, update: universityHandler.Update, del: universityHandler.Delete,
			})
			mountCatalog(r, authMiddleware, "/programs", catalogRoutes{
				list: programHandler.List, get: programHandler.Get,
				create: programHandler.Create, update: programHandler.Update, del: programHandler.Delete,
			})

			r.Route("/guides", func(r chi.Router) {
				r.Get("/", guideHandler.List)
				r.Get("/slug/{slug}", guideHandler.GetBySlug)
				r.Get("/{id}", guideHandler.Get)
				r.Group(func(r chi.Router) {
					r.Use(authMiddleware.RequireAdmin)
					r.Post("/", guideHandler.Create)
					r.Put("/{id}", guideHandler.Update)
					r.Delete("/{id}", guideHandler.Delete)
				})
			})

			mountCatalog(r, authMiddleware, "/ads", catalogRoutes{
				list: adHandler.List, get: adHandler.Get,
				create: adHandler.Create, update: adHandler.Update, del: adHandler.Delete,
			})
		})
	})

	return &Server{
		router: r,
		config: cfg,
	}, nil
}

type catalogRoutes struct {
	list   http.HandlerFunc
	get    http.HandlerFunc
	create http.HandlerFunc
	update http.HandlerFunc
	del    http.HandlerFunc
}

// mountCatalog wires the shared route shape of the catalog resources:
// public reads, admin-only writes.
func mountCatalog(r chi.Router, authMiddleware *AuthMiddleware, pattern string, routes catalogRoutes) {
	r.Route(pattern, func(r chi.Router) {
		r.Get("/", routes.list)
		r.Get("/{id}", routes.get)
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireAdmin)
			r.Post("/", routes.create)
			r.Put("/{id}", routes.update)
			r.Delete("/{id}", routes.del)
		})
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// rateLimitByIP answers over-limit requests with the standard error
// envelope instead of httprate's plain-text default.
func rateLimitByIP(requestLimit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(requestLimit, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, constants.ErrCodeRateLimited, "Too many requests, slow down")
		}),
	)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func maxBodySizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr,
		)
	})
}
