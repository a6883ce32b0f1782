package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/huanshanxiaoyao/governor-game/go/internal/view"
)

func setupServer(config *Config, services *Services) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Port),
		Handler:           newHandler(services),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// newHandler builds the full HTTP handler: routes, CORS and h2c.
func newHandler(services *Services) http.Handler {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	registerRoutes(mux, services)
	view.NewWebSocketHandler(services.Views).RegisterRoutes(mux)
	setupHealthCheck(mux)

	return h2c.NewHandler(c.Handler(mux), &http2.Server{})
}

func registerRoutes(mux *http.ServeMux, services *Services) {
	h := &apiHandler{services: services}

	mux.HandleFunc("GET /api/games/{gid}/negotiation/active", h.activeNegotiation)
	mux.HandleFunc("POST /api/games/{gid}/negotiation/open", h.openNegotiation)
	mux.HandleFunc("POST /api/games/{gid}/negotiation/send", h.sendNegotiation)
	mux.HandleFunc("POST /api/games/{gid}/negotiation/close", h.closeNegotiation)
	mux.HandleFunc("POST /api/games/{gid}/negotiation/irrigation", h.startIrrigation)
	mux.HandleFunc("POST /api/games/{gid}/advance", h.advance)
	mux.HandleFunc("POST /api/games/{gid}/sync", h.sync)
	mux.HandleFunc("POST /api/games/{gid}/precompute", h.startPrecompute)
	mux.HandleFunc("DELETE /api/games/{gid}/precompute", h.stopPrecompute)
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
