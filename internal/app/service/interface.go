package service

import (
	"context"

	"github.com/atinyakov/shorturl-microservice/internal/models"
	"github.com/atinyakov/shorturl-microservice/internal/storage"
)

// Registry owns the canonical URL <-> short identifier mapping.
type Registry interface {
	GetOrCreate(context.Context, string) (storage.URLRecord, error)
	FindByID(context.Context, int64) (storage.URLRecord, error)
	Count(context.Context) (int, error)
	PingContext(context.Context) error
}

// URLValidator turns raw input into a canonical, resolvable URL.
type URLValidator interface {
	Validate(context.Context, string) (string, error)
}

// HostResolver is satisfied by *net.Resolver.
type HostResolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// URLServiceIface is what the transports depend on.
type URLServiceIface interface {
	Shorten(context.Context, string) (*storage.URLRecord, error)
	Resolve(context.Context, string) (*storage.URLRecord, error)
	Stats(context.Context) (*models.Stats, error)
	PingContext(context.Context) error
}
