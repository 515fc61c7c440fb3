package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kestrelworks/agentrelay/internal/agent"
	"github.com/kestrelworks/agentrelay/internal/api"
	"github.com/kestrelworks/agentrelay/internal/config"
	"github.com/kestrelworks/agentrelay/internal/inflight"
	"github.com/kestrelworks/agentrelay/internal/metrics"
	"github.com/kestrelworks/agentrelay/internal/relay"
)

// New constructs the HTTP handler for the relay. A nil checker marks the
// upstream client as uninitialized in health responses. The streams counter
// tracks in-flight relays so shutdown can drain them.
func New(cfg config.ServerConfig, tr *relay.Translator, checker agent.CredentialChecker, version string, streams *inflight.Counter) http.Handler {
	if streams == nil {
		streams = &inflight.Counter{}
	}

	r := chi.NewRouter()
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}))
	}
	for _, m := range api.MiddlewareChain() {
		r.Use(m)
	}

	preg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = preg
	prometheus.DefaultGatherer = preg
	metrics.Register(preg)

	r.Get("/", api.RootHandler(version))
	r.Get("/health", api.HealthHandler(version, cfg.AWSRegion, checker))
	r.Route("/api/agent", func(ar chi.Router) {
		ar.Use(streams.Middleware())
		ar.Post("/stream", api.StreamHandler(tr, cfg.RequestTimeout))
	})

	if cfg.MetricsAddr == fmt.Sprintf(":%d", cfg.Port) {
		r.Handle("/metrics", promhttp.HandlerFor(preg, promhttp.HandlerOpts{}))
	}

	return r
}
