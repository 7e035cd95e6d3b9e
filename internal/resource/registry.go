package resource

import (
	"errors"
	"fmt"

	"github.com/deadlock-data/wikicache/internal/cache"
	"github.com/deadlock-data/wikicache/internal/config"
)

// Definition 将逻辑资源名与远端地址绑定。
type Definition struct {
	Name    string
	Locator string
}

// Registry 提供按名称查询与按声明顺序遍历资源的能力。调用方应在启动阶段创建一次并复用。
type Registry struct {
	byName  map[string]Definition
	ordered []Definition
}

// NewRegistry 校验名称唯一且文件系统安全、地址为 http(s) 后构建注册表。
func NewRegistry(defs []Definition) (*Registry, error) {
	registry := &Registry{
		byName: make(map[string]Definition, len(defs)),
	}

	for _, def := range defs {
		if err := cache.ValidateName(def.Name); err != nil {
			return nil, fmt.Errorf("resource %q: %w", def.Name, err)
		}
		if _, exists := registry.byName[def.Name]; exists {
			return nil, fmt.Errorf("duplicate resource name %s", def.Name)
		}
		if err := checkLocator(def.Locator); err != nil {
			return nil, fmt.Errorf("resource %s: %w", def.Name, err)
		}
		registry.byName[def.Name] = def
		registry.ordered = append(registry.ordered, def)
	}

	return registry, nil
}

// DefinitionsFromConfig 按配置声明顺序转换 [[Resource]] 条目。
func DefinitionsFromConfig(cfg *config.Config) []Definition {
	if cfg == nil {
		return nil
	}
	defs := make([]Definition, 0, len(cfg.Resources))
	for _, res := range cfg.Resources {
		defs = append(defs, Definition{Name: res.Name, Locator: res.URL})
	}
	return defs
}

// Lookup 根据名称查找资源。
func (r *Registry) Lookup(name string) (Definition, bool) {
	def, ok := r.byName[name]
	return def, ok
}

// List 返回按声明顺序排列的资源副本。
func (r *Registry) List() []Definition {
	return append([]Definition(nil), r.ordered...)
}

// Select 返回指定名称的资源，保持调用方给出的顺序；names 为空时返回全部。
func (r *Registry) Select(names ...string) ([]Definition, error) {
	if len(names) == 0 {
		return r.List(), nil
	}
	selected := make([]Definition, 0, len(names))
	var unknown []error
	for _, name := range names {
		def, ok := r.byName[name]
		if !ok {
			unknown = append(unknown, fmt.Errorf("unknown resource %q", name))
			continue
		}
		selected = append(selected, def)
	}
	if len(unknown) > 0 {
		return nil, errors.Join(unknown...)
	}
	return selected, nil
}

func checkLocator(raw string) error {
	if raw == "" {
		return ErrEmptyLocator
	}
	return config.ValidateLocator(raw)
}
