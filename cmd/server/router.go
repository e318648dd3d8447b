package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jwttoken "propshare/internal/jwt_token"
	"propshare/internal/platform/config"
	"propshare/internal/ratelimit"
	"propshare/internal/registry/handler"
	"propshare/internal/registry/service"
	"propshare/internal/relay"
	"propshare/pkg/platform/httputil"
	authmw "propshare/pkg/platform/middleware/auth"
	"propshare/pkg/platform/middleware/metadata"
	"propshare/pkg/platform/middleware/request"
)

type healthResponse struct {
	Status   string         `json:"status"`
	Sequence uint64         `json:"sequence"`
	Paused   bool           `json:"paused"`
	Pending  map[string]int `json:"relay_pending"`
	Redis    string         `json:"redis,omitempty"`
}

func newRouter(cfg config.Server, svc *service.Service, dispatcher *relay.Dispatcher, sinks sinkSet, limiter *ratelimit.Limiter, log *slog.Logger) http.Handler {
	jwt := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	authenticate := authmw.RequireCaller(jwttoken.NewJWTServiceAdapter(jwt), log)
	requireCaller := func(next http.Handler) http.Handler {
		return authenticate(limiter.Handler(next))
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(request.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(log))
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:   "ok",
			Sequence: svc.Sequence(),
			Paused:   svc.Paused(),
			Pending:  dispatcher.Pending(),
		}
		if sinks.redis != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			resp.Redis = "ok"
			if err := sinks.redis.Health(ctx); err != nil {
				// the projection lags but the registry itself is healthy
				resp.Redis = "unavailable"
				resp.Status = "degraded"
			}
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	})
	r.Handle("/metrics", promhttp.Handler())

	handler.New(svc, log).Register(r, requireCaller)
	return r
}
