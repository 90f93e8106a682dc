package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/shorturl-microservice/internal/app/service"
	"github.com/atinyakov/shorturl-microservice/internal/models"
)

// submitTimeout bounds a submission including the DNS check.
const submitTimeout = 5 * time.Second

type PostHandler struct {
	service service.URLServiceIface
	logger  *zap.Logger
}

func NewPost(s service.URLServiceIface, l *zap.Logger) *PostHandler {
	return &PostHandler{
		service: s,
		logger:  l,
	}
}

// Shorten registers the submitted url field and answers with its short id.
// Rejected URLs are answered with status 200 and {"error":"invalid url"}.
func (h *PostHandler) Shorten(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), submitTimeout)
	defer cancel()

	defer req.Body.Close()

	raw, err := readSubmittedURL(res, req)
	if err != nil {
		writeMalformed(res, h.logger, err)
		return
	}

	r, err := h.service.Shorten(ctx, raw)
	if err != nil {
		if errors.Is(err, service.ErrInvalidURL) {
			h.logger.Info("rejected url", zap.String("url", raw), zap.Error(err))
			writeError(res, h.logger, errInvalidURL)
			return
		}

		h.logger.Error("cannot shorten url", zap.String("url", raw), zap.Error(err))
		http.Error(res, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(res, h.logger, http.StatusOK, models.Response{
		OriginalURL: r.Original,
		ShortURL:    r.ID,
	})
}
