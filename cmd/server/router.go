package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jwttoken "civitas/internal/jwt_token"
	"civitas/internal/platform/config"
	platformmetrics "civitas/internal/platform/metrics"
	"civitas/internal/verification/handler"
	"civitas/internal/verification/service"
	"civitas/pkg/platform/httputil"
	"civitas/pkg/platform/middleware/auth"
	"civitas/pkg/platform/middleware/metadata"
	"civitas/pkg/platform/middleware/request"
	"civitas/pkg/platform/middleware/requesttime"
)

type routerDeps struct {
	cfg         config.Config
	logger      *slog.Logger
	service     *service.Service
	registry    *prometheus.Registry
	httpMetrics *platformmetrics.Metrics
	health      map[string]func(context.Context) error
}

func newRouter(d routerDeps) http.Handler {
	jwtService := jwttoken.NewJWTService(d.cfg.Auth.JWTSigningKey, d.cfg.Auth.Issuer, d.cfg.Auth.Audience)
	validator := jwttoken.NewJWTServiceAdapter(jwtService)

	r := chi.NewRouter()
	r.Use(request.Recovery(d.logger))
	r.Use(request.RequestID)
	r.Use(request.Logger(d.logger))
	r.Use(d.httpMetrics.Middleware)

	r.Get("/health", healthHandler(d.health))
	r.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{Registry: d.registry}))

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(d.cfg.Server.RequestTimeout))
		r.Use(metadata.ClientMetadata)
		r.Use(requesttime.Middleware(time.Now))
		r.Use(auth.RequireAuth(validator, d.logger))
		r.Use(auth.RejectMerged(d.service, d.logger))
		handler.New(d.service, d.logger).Register(r)
	})
	return r
}

func healthHandler(checks map[string]func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = "unavailable"
				continue
			}
			body[name] = "ok"
		}
		httputil.WriteJSON(w, status, body)
	}
}
