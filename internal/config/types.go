package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// GlobalConfig 描述全局运行时行为，所有资源共享同一份参数。
type GlobalConfig struct {
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	StoragePath     string   `mapstructure:"StoragePath"`
	FetchTimeout    Duration `mapstructure:"FetchTimeout"`
	Proxy           string   `mapstructure:"Proxy"`
	UserAgent       string   `mapstructure:"UserAgent"`
	ContinueOnError bool     `mapstructure:"ContinueOnError"`
	ListenPort      int      `mapstructure:"ListenPort"`
}

// ResourceConfig 声明一个具名 JSON 资源及其远端地址。
type ResourceConfig struct {
	Name string `mapstructure:"Name"`
	URL  string `mapstructure:"URL"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global    GlobalConfig     `mapstructure:",squash"`
	Resources []ResourceConfig `mapstructure:"Resource"`
}

// ResourceNames 返回按声明顺序排列的资源名，供日志字段使用。
func (c *Config) ResourceNames() []string {
	if c == nil || len(c.Resources) == 0 {
		return nil
	}
	names := make([]string, len(c.Resources))
	for i, res := range c.Resources {
		names[i] = res.Name
	}
	return names
}

// DefaultResources 返回 Deadlock wiki 的默认数据页列表；配置文件未声明 [[Resource]] 时使用。
func DefaultResources() []ResourceConfig {
	return []ResourceConfig{
		{Name: "ability_cards", URL: "https://deadlock.wiki/Data:AbilityCards.json?action=raw"},
		{Name: "item_data", URL: "https://deadlock.wiki/Data:ItemData.json?action=raw"},
		{Name: "hero_data", URL: "https://deadlock.wiki/Data:HeroData.json?action=raw"},
		{Name: "soul_unlock_data", URL: "https://deadlock.wiki/Data:SoulUnlockData.json?action=raw"},
		{Name: "generic_data", URL: "https://deadlock.wiki/Data:GenericData.json?action=raw"},
		{Name: "lang_en", URL: "https://deadlock.wiki/Data:Lang_en.json?action=raw"},
	}
}
