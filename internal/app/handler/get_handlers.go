package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/shorturl-microservice/internal/app/service"
	"github.com/atinyakov/shorturl-microservice/internal/storage"
)

type GetHandler struct {
	service service.URLServiceIface
	logger  *zap.Logger
}

func NewGet(s service.URLServiceIface, l *zap.Logger) *GetHandler {
	return &GetHandler{
		service: s,
		logger:  l,
	}
}

// ByShort redirects to the canonical URL registered under the id path
// parameter. Unknown or malformed ids get the "No short URL found" document.
// The id must be a base-10 integer in full: "1abc" is not found rather than
// read as 1 by prefix parsing.
func (h *GetHandler) ByShort(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
	defer cancel()

	id := chi.URLParam(req, "id")

	r, err := h.service.Resolve(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.logger.Debug("short url not found", zap.String("id", id))
			writeError(res, h.logger, errNoShortURL)
			return
		}

		h.logger.Error("cannot resolve short url", zap.String("id", id), zap.Error(err))
		http.Error(res, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	http.Redirect(res, req, r.Original, http.StatusFound)
}

func (h *GetHandler) PingDB(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
	defer cancel()
	if err := h.service.PingContext(ctx); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}

	res.WriteHeader(http.StatusOK)
}

// Stats reports the number of registered URLs.
func (h *GetHandler) Stats(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
	defer cancel()

	stats, err := h.service.Stats(ctx)
	if err != nil {
		h.logger.Error("cannot count urls", zap.Error(err))
		http.Error(res, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(res, h.logger, http.StatusOK, stats)
}
