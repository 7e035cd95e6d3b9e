package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/deadlock-data/wikicache/internal/cache"
)

// Validate 针对语义级别做进一步校验，防止非法配置进入运行阶段。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", "无法识别的日志级别")
	}
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	if g.FetchTimeout.DurationValue() <= 0 {
		return newFieldError("Global.FetchTimeout", "必须大于 0")
	}
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.Proxy != "" {
		if err := ValidateLocator(g.Proxy); err != nil {
			return fmt.Errorf("Global.Proxy: %w", err)
		}
	}

	if len(c.Resources) == 0 {
		return errors.New("至少需要配置一个 Resource")
	}

	seenNames := map[string]struct{}{}
	for _, res := range c.Resources {
		if res.Name == "" {
			return newFieldError("Resource[].Name", "不能为空")
		}
		if err := cache.ValidateName(res.Name); err != nil {
			return newFieldError(resourceField(res.Name, "Name"), "只允许字母、数字、'.'、'_'、'-'")
		}
		if _, exists := seenNames[res.Name]; exists {
			return newFieldError(resourceField(res.Name, "Name"), "重复")
		}
		seenNames[res.Name] = struct{}{}

		if err := ValidateLocator(res.URL); err != nil {
			return fmt.Errorf("%s: %w", resourceField(res.Name, "URL"), err)
		}
	}

	return nil
}

// ValidateLocator 检查资源地址为带 Host 的 http(s) URL，配置校验与资源注册表共用。
func ValidateLocator(raw string) error {
	if raw == "" {
		return errors.New("缺少地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("地址缺少 Host: %s", raw)
	}
	return nil
}
