package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// routes sets up the router, middlewares and every endpoint.
func (s *Server) routes() {
	s.r = chi.NewRouter()

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.r.Use(requestID)
	s.r.Use(middleware.RealIP)
	s.r.Use(s.requestLogger)
	s.r.Use(middleware.Recoverer)

	s.r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.r.Handle("/metrics", promhttp.Handler())

	s.r.Route("/v1", func(r chi.Router) {
		r.Get("/pairs", s.handlePairsList)
		r.Get("/pairs/{source}/{destination}", s.handlePairGet)
		r.Get("/fees", s.handleFeeGet)

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", s.handleTransactionCreate)
			r.Get("/", s.handleTransactionsByStatus)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleTransactionGet)
				r.Get("/history", s.handleTransactionHistory)
				r.Post("/verify", s.handleTransactionVerify)
				r.Post("/confirm", s.handleTransactionConfirm)
				r.Post("/complete", s.handleTransactionComplete)
				r.Post("/revert", s.handleTransactionRevert)
				r.Patch("/status", s.handleTransactionStatus)
			})
		})

		r.Get("/users/{userID}/transactions", s.handleUserTransactions)
	})
}
