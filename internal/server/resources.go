package server

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/deadlock-data/wikicache/internal/cache"
	"github.com/deadlock-data/wikicache/internal/logging"
	"github.com/deadlock-data/wikicache/internal/resource"
)

type resourceHandler struct {
	logger   *logrus.Logger
	registry *resource.Registry
	resolver Resolver
	store    cache.Store
	locks    *nameLocks
}

type resourcePayload struct {
	Name      string     `json:"name"`
	Locator   string     `json:"locator"`
	Cached    bool       `json:"cached"`
	SizeBytes int64      `json:"size_bytes,omitempty"`
	ModTime   *time.Time `json:"mod_time,omitempty"`
}

// list 返回所有已注册资源及其缓存状态，不会触发回源。
func (h *resourceHandler) list(c fiber.Ctx) error {
	ctx := requestContext(c)
	defs := h.registry.List()
	payload := make([]resourcePayload, 0, len(defs))
	for _, def := range defs {
		item := resourcePayload{Name: def.Name, Locator: def.Locator}
		entry, err := h.store.Stat(ctx, def.Name)
		switch {
		case err == nil:
			modTime := entry.ModTime.UTC()
			item.Cached = true
			item.SizeBytes = entry.SizeBytes
			item.ModTime = &modTime
		case errors.Is(err, cache.ErrNotFound):
		default:
			h.logger.WithError(err).
				WithFields(logrus.Fields{"action": "list", "resource": def.Name}).
				Warn("cache_stat_failed")
		}
		payload = append(payload, item)
	}
	return c.JSON(fiber.Map{"resources": payload})
}

// get 解析单个资源；?refresh=true 强制回源。同名请求在此串行化。
func (h *resourceHandler) get(c fiber.Ctx) error {
	started := time.Now()
	name := strings.TrimSpace(c.Params("name"))
	def, ok := h.registry.Lookup(name)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "resource_not_found"})
	}

	forceRefresh := false
	if raw := c.Query("refresh"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_refresh"})
		}
		forceRefresh = parsed
	}

	unlock := h.locks.lock(def.Name)
	result, err := h.resolver.Resolve(requestContext(c), def.Name, def.Locator, forceRefresh)
	unlock()

	fields := logging.ResourceFields(def.Name, def.Locator, result != nil && result.CacheHit)
	fields["action"] = "serve"
	fields["request_id"] = RequestID(c)
	fields["force_refresh"] = forceRefresh
	fields["elapsed_ms"] = time.Since(started).Milliseconds()

	if err != nil {
		status, code := classifyError(err)
		h.logger.WithError(err).WithFields(fields).Warn("resource request failed")
		return c.Status(status).JSON(fiber.Map{"error": code, "message": err.Error()})
	}

	h.logger.WithFields(fields).Info("resource served")
	c.Set("X-Wikicache-Cache-Hit", strconv.FormatBool(result.CacheHit))
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Send(result.Raw)
}

// classifyError 将核心错误映射为 HTTP 状态码与错误码。
func classifyError(err error) (int, string) {
	var (
		fetchErr     *resource.FetchError
		malformedErr *resource.MalformedDataError
		persistErr   *resource.PersistenceError
	)
	switch {
	case errors.As(err, &fetchErr):
		return fiber.StatusBadGateway, "fetch_failed"
	case errors.As(err, &malformedErr):
		return fiber.StatusBadGateway, "malformed_data"
	case errors.As(err, &persistErr):
		return fiber.StatusInternalServerError, "persistence_failed"
	default:
		return fiber.StatusInternalServerError, "internal_error"
	}
}

func requestContext(c fiber.Ctx) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
