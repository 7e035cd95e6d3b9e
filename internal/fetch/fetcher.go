// Package fetch retrieves resource payloads over HTTP(S). It owns the shared
// http.Client configuration and reports non-success statuses as StatusError
// so callers can tell transport failures from bad payloads.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/deadlock-data/wikicache/internal/version"
)

// StatusError 表示远端返回了非 2xx 状态码。
type StatusError struct {
	Locator    string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %s from %s", e.Status, e.Locator)
}

// HTTPFetcher 对 locator 发起一次 GET 请求并返回完整响应体，不做重试。
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher 使用共享 client 构造 fetcher；userAgent 为空时使用版本号默认值。
func NewHTTPFetcher(client *http.Client, userAgent string) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if userAgent == "" {
		userAgent = version.UserAgent()
	}
	return &HTTPFetcher{
		client:    client,
		userAgent: userAgent,
	}
}

// Fetch 返回响应体。连接错误、超时与非 2xx 状态都会返回 error。
func (f *HTTPFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// 丢弃剩余正文以便连接复用。
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{
			Locator:    locator,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
