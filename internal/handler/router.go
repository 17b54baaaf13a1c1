package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-bank/internal/auth"
	"github.com/prn-tf/meridian-bank/internal/config"
	"github.com/prn-tf/meridian-bank/internal/metrics"
)

// RouterConfig contains the dependencies of the router.
type RouterConfig struct {
	AuthHandler        *AuthHandler
	UserHandler        *UserHandler
	AccountHandler     *AccountHandler
	TransactionHandler *TransactionHandler
	AuthMiddleware     *auth.Middleware
	Metrics            *metrics.Metrics
	MetricsConfig      config.MetricsConfig
	Logger             zerolog.Logger
}

// NewRouter assembles the API route tree. Login, self-registration, health
// and the scrape endpoint are public; everything else requires a bearer
// token.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(requestLogger(cfg.Logger))
	r.Use(chimw.Recoverer)
	r.Use(cfg.Metrics.Middleware)

	r.Get("/health", handleHealth)
	if cfg.MetricsConfig.Enabled {
		path := cfg.MetricsConfig.Path
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, cfg.Metrics.Handler())
	}

	cfg.AuthHandler.RegisterRoutes(r)
	cfg.UserHandler.RegisterPublicRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(cfg.AuthMiddleware.Authenticate)

		cfg.UserHandler.RegisterRoutes(r)
		cfg.AccountHandler.RegisterRoutes(r)
		cfg.TransactionHandler.RegisterRoutes(r)
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// requestLogger logs one line per request.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	log := logger.With().Str("component", "http").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Str("request_id", chimw.GetReqID(r.Context())).
				Msg("request handled")
		})
	}
}

// statusWriter captures the response status for the request log.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
