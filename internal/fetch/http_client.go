package fetch

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/deadlock-data/wikicache/internal/config"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          16,
	MaxIdleConnsPerHost:   8,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewClient 返回共享 http.Client，用于所有远端资源请求。
// 配置了 Proxy 时覆盖环境变量中的代理设置。
func NewClient(cfg *config.Config) (*http.Client, error) {
	timeout := 30 * time.Second
	transport := defaultTransport.Clone()

	if cfg != nil {
		if cfg.Global.FetchTimeout.DurationValue() > 0 {
			timeout = cfg.Global.FetchTimeout.DurationValue()
		}
		if cfg.Global.Proxy != "" {
			proxyURL, err := url.Parse(cfg.Global.Proxy)
			if err != nil {
				return nil, fmt.Errorf("parse proxy: %w", err)
			}
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}
