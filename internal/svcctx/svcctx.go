// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/narrio/internal/auth"
	"github.com/jackzampolin/narrio/internal/books"
	"github.com/jackzampolin/narrio/internal/config"
	"github.com/jackzampolin/narrio/internal/home"
	"github.com/jackzampolin/narrio/internal/jobs"
	"github.com/jackzampolin/narrio/internal/providers"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Config   *config.Manager
	Home     *home.Dir
	Registry *providers.Registry
	Jobs     *jobs.Registry
	Runner   *jobs.Runner
	Books    *books.Service
	Auth     auth.Verifier
	Logger   *slog.Logger

	// BaseCtx is the server lifetime context. Background work spawned
	// from a request must use it instead of the request context.
	BaseCtx context.Context
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// ConfigFrom extracts the config manager from context.
func ConfigFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Config
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

// RegistryFrom extracts the provider registry from context.
func RegistryFrom(ctx context.Context) *providers.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// JobsFrom extracts the job registry from context.
func JobsFrom(ctx context.Context) *jobs.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Jobs
	}
	return nil
}

// RunnerFrom extracts the job runner from context.
func RunnerFrom(ctx context.Context) *jobs.Runner {
	if s := ServicesFrom(ctx); s != nil {
		return s.Runner
	}
	return nil
}

// BooksFrom extracts the book service from context.
func BooksFrom(ctx context.Context) *books.Service {
	if s := ServicesFrom(ctx); s != nil {
		return s.Books
	}
	return nil
}

// AuthFrom extracts the token verifier from context.
func AuthFrom(ctx context.Context) auth.Verifier {
	if s := ServicesFrom(ctx); s != nil {
		return s.Auth
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// BaseCtxFrom extracts the server lifetime context. Falls back to the
// given context when services are absent.
func BaseCtxFrom(ctx context.Context) context.Context {
	if s := ServicesFrom(ctx); s != nil && s.BaseCtx != nil {
		return s.BaseCtx
	}
	return ctx
}
