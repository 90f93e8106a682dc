// Package service composes URL validation with the short identifier registry.
package service

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/atinyakov/shorturl-microservice/internal/models"
	"github.com/atinyakov/shorturl-microservice/internal/storage"
)

type URLService struct {
	validator URLValidator
	registry  Registry
	logger    *zap.Logger
}

func NewURL(validator URLValidator, registry Registry, logger *zap.Logger) *URLService {
	return &URLService{
		validator: validator,
		registry:  registry,
		logger:    logger,
	}
}

// Shorten validates raw and registers its canonical form, reusing the
// existing identifier when the URL was submitted before.
func (s *URLService) Shorten(ctx context.Context, raw string) (*storage.URLRecord, error) {
	canonical, err := s.validator.Validate(ctx, raw)
	if err != nil {
		return nil, err
	}

	record, err := s.registry.GetOrCreate(ctx, canonical)
	if err != nil {
		s.logger.Error("cannot register url", zap.String("url", canonical), zap.Error(err))
		return nil, err
	}

	s.logger.Info("short url", zap.Int64("id", record.ID), zap.String("url", record.Original))
	return &record, nil
}

// Resolve looks up a short identifier given as a decimal string. Anything
// that is not a positive base-10 integer is reported as storage.ErrNotFound.
func (s *URLService) Resolve(ctx context.Context, rawID string) (*storage.URLRecord, error) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return nil, storage.ErrNotFound
	}

	record, err := s.registry.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return &record, nil
}

func (s *URLService) Stats(ctx context.Context) (*models.Stats, error) {
	count, err := s.registry.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &models.Stats{URLs: count}, nil
}

func (s *URLService) PingContext(ctx context.Context) error {
	return s.registry.PingContext(ctx)
}
