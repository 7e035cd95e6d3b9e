package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/deadlock-data/wikicache/internal/cache"
	"github.com/deadlock-data/wikicache/internal/resource"
)

// Resolver describes the cache core used by the HTTP handlers. It allows
// injecting fake resolvers during tests.
type Resolver interface {
	Resolve(ctx context.Context, name, locator string, forceRefresh bool) (*resource.Result, error)
}

// AppOptions wires the Fiber application to the registry, cache core and store.
type AppOptions struct {
	Logger   *logrus.Logger
	Registry *resource.Registry
	Resolver Resolver
	// Store is only used for listings; resolutions always go through Resolver.
	Store cache.Store
}

const contextKeyRequestID = "_wikicache_request_id"

// NewApp builds a Fiber application exposing cached resources under
// /resources with request IDs and panic recovery.
func NewApp(opts AppOptions) (*fiber.App, error) {
	return newApp(opts, newNameLocks())
}

func newApp(opts AppOptions, locks *nameLocks) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("resource registry is required")
	}
	if opts.Resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if opts.Store == nil {
		return nil, errors.New("cache store is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	h := &resourceHandler{
		logger:   opts.Logger,
		registry: opts.Registry,
		resolver: opts.Resolver,
		store:    opts.Store,
		locks:    locks,
	}
	app.Get("/resources", h.list)
	app.Get("/resources/:name", h.get)

	return app, nil
}

func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
