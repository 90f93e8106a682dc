// Package server assembles the HTTP routes of the URL shortener.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atinyakov/shorturl-microservice/internal/app/handler"
	"github.com/atinyakov/shorturl-microservice/internal/app/service"
	"github.com/atinyakov/shorturl-microservice/internal/middleware"
)

// Init builds the router. Stats are only served to clients whose X-Real-IP
// falls within trustedSubnet.
func Init(logger *zap.Logger, trustedSubnet string, svc service.URLServiceIface) *chi.Mux {
	postHandler := handler.NewPost(svc, logger)
	getHandler := handler.NewGet(svc, logger)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(middleware.WithGZIP)

	r.Post("/api/shorturl", postHandler.Shorten)
	r.Get("/api/shorturl/{id}", getHandler.ByShort)
	r.Get("/ping", getHandler.PingDB)

	r.Group(func(r chi.Router) {
		r.Use(middleware.WithSubnet(trustedSubnet))
		r.Get("/api/internal/stats", getHandler.Stats)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Route not found", http.StatusNotFound)
	})

	return r
}
