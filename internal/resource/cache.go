package resource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/deadlock-data/wikicache/internal/cache"
	"github.com/deadlock-data/wikicache/internal/logging"
)

// Fetcher 描述远端获取能力，便于测试中注入假实现。
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, locator string) ([]byte, error)

// Fetch makes FetcherFunc satisfy Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, locator string) ([]byte, error) {
	return f(ctx, locator)
}

// Result 是一次解析的完整结果。
type Result struct {
	Name    string
	Locator string
	// Data 是解码后的 JSON 值（map[string]any、[]any、string、json.Number、bool 或 nil）。
	Data any
	// Raw 是磁盘条目的原始字节，与 Data 等价。
	Raw      []byte
	CacheHit bool
	Entry    cache.Entry
}

// Cache 在本地条目与远端获取之间做选择，除 Store 外不持有任何状态。
type Cache struct {
	store   cache.Store
	fetcher Fetcher
	logger  *logrus.Logger
}

// NewCache 组装缓存核心；logger 为空时使用 logrus 全局实例。
func NewCache(store cache.Store, fetcher Fetcher, logger *logrus.Logger) (*Cache, error) {
	if store == nil {
		return nil, errors.New("cache store is required")
	}
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Cache{
		store:   store,
		fetcher: fetcher,
		logger:  logger,
	}, nil
}

// Get 返回 name 对应的 JSON 数据。forceRefresh 为 false 且本地存在条目时直接读盘，
// 不产生网络请求；否则从 locator 获取、校验并写入缓存后返回。
func (c *Cache) Get(ctx context.Context, name, locator string, forceRefresh bool) (any, error) {
	result, err := c.Resolve(ctx, name, locator, forceRefresh)
	if err != nil {
		return nil, err
	}
	return result.Data, nil
}

// Resolve 与 Get 语义相同，额外返回命中状态、原始字节与条目信息。
func (c *Cache) Resolve(ctx context.Context, name, locator string, forceRefresh bool) (*Result, error) {
	if err := cache.ValidateName(name); err != nil {
		return nil, fmt.Errorf("resolve %q: %w", name, err)
	}
	if locator == "" {
		return nil, fmt.Errorf("resolve %s: %w", name, ErrEmptyLocator)
	}

	if err := c.store.EnsureDir(); err != nil {
		return nil, c.fail(name, locator, &PersistenceError{Name: name, Op: "mkdir", Err: err})
	}

	if !forceRefresh {
		result, err := c.load(ctx, name, locator)
		switch {
		case err == nil:
			c.logger.WithFields(logging.ResourceFields(name, locator, true)).
				WithFields(logrus.Fields{"action": "cache_load", "bytes": result.Entry.SizeBytes}).
				Info("loaded from cache")
			return result, nil
		case errors.Is(err, cache.ErrNotFound):
			// miss, fall through to fetch
		default:
			return nil, c.fail(name, locator, err)
		}
	}

	result, err := c.fetchAndStore(ctx, name, locator)
	if err != nil {
		return nil, c.fail(name, locator, err)
	}
	return result, nil
}

func (c *Cache) load(ctx context.Context, name, locator string) (*Result, error) {
	cached, err := c.store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, err
		}
		return nil, &PersistenceError{Name: name, Op: "read", Err: err}
	}
	defer cached.Reader.Close()

	raw, err := io.ReadAll(cached.Reader)
	if err != nil {
		return nil, &PersistenceError{Name: name, Op: "read", Err: err}
	}
	data, err := Decode(raw)
	if err != nil {
		return nil, &PersistenceError{Name: name, Op: "decode", Err: err}
	}

	return &Result{
		Name:     name,
		Locator:  locator,
		Data:     data,
		Raw:      raw,
		CacheHit: true,
		Entry:    cached.Entry,
	}, nil
}

func (c *Cache) fetchAndStore(ctx context.Context, name, locator string) (*Result, error) {
	started := time.Now()
	c.logger.WithFields(logging.ResourceFields(name, locator, false)).
		WithField("action", "fetch").
		Debug("fetching from remote")

	body, err := c.fetcher.Fetch(ctx, locator)
	if err != nil {
		return nil, &FetchError{Name: name, Locator: locator, Err: err}
	}

	data, err := Decode(body)
	if err != nil {
		return nil, &MalformedDataError{Name: name, Locator: locator, Offset: errorOffset(err), Err: err}
	}

	raw, err := Format(body)
	if err != nil {
		return nil, &PersistenceError{Name: name, Op: "encode", Err: err}
	}

	entry, err := c.store.Put(ctx, name, bytes.NewReader(raw))
	if err != nil {
		return nil, &PersistenceError{Name: name, Op: "write", Err: err}
	}

	c.logger.WithFields(logging.ResourceFields(name, locator, false)).
		WithFields(logrus.Fields{
			"action":     "fetch",
			"bytes":      len(body),
			"elapsed_ms": time.Since(started).Milliseconds(),
			"file":       entry.FilePath,
		}).
		Info("fetched and cached")

	return &Result{
		Name:     name,
		Locator:  locator,
		Data:     data,
		Raw:      raw,
		CacheHit: false,
		Entry:    *entry,
	}, nil
}

func (c *Cache) fail(name, locator string, err error) error {
	c.logger.WithError(err).
		WithFields(logging.ResourceFields(name, locator, false)).
		WithField("action", "resolve").
		Warn("resolve failed")
	return err
}
