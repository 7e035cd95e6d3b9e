package resource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SyncOptions 控制一次批量解析。
type SyncOptions struct {
	ForceRefresh bool
	// ContinueOnError 为 true 时单个资源失败不会中断后续资源。
	ContinueOnError bool
}

// Failure 记录单个资源的失败原因。
type Failure struct {
	Name string
	Err  error
}

// Report 汇总一次 Sync 的结果，Results 与 Failures 均按处理顺序排列。
type Report struct {
	RunID    string
	Results  []*Result
	Failures []Failure
	// Skipped 是因提前终止而未处理的资源名。
	Skipped []string
}

// Err 合并所有失败；全部成功时返回 nil。
func (r *Report) Err() error {
	if r == nil || len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f.Err)
	}
	return errors.Join(errs...)
}

// Sync 依次解析 defs 中的每个资源。返回的 error 仅表示 ctx 被取消；
// 资源级失败记录在 Report 中，由调用方决定退出码。
func Sync(ctx context.Context, c *Cache, defs []Definition, opts SyncOptions) (*Report, error) {
	if c == nil {
		return nil, errors.New("cache is required")
	}

	report := &Report{RunID: uuid.NewString()}
	logger := c.logger.WithField("run_id", report.RunID)
	started := time.Now()

	logger.WithFields(logrus.Fields{
		"action":        "sync_start",
		"resources":     len(defs),
		"force_refresh": opts.ForceRefresh,
	}).Info("sync started")

	for i, def := range defs {
		if err := ctx.Err(); err != nil {
			report.Skipped = append(report.Skipped, names(defs[i:])...)
			return report, fmt.Errorf("sync interrupted: %w", err)
		}

		result, err := c.Resolve(ctx, def.Name, def.Locator, opts.ForceRefresh)
		if err != nil {
			report.Failures = append(report.Failures, Failure{Name: def.Name, Err: err})
			if !opts.ContinueOnError {
				report.Skipped = append(report.Skipped, names(defs[i+1:])...)
				break
			}
			continue
		}

		report.Results = append(report.Results, result)
		logger.WithFields(logrus.Fields{
			"action":    "sync_resource",
			"resource":  def.Name,
			"cache_hit": result.CacheHit,
		}).Info("resource synced")
	}

	logger.WithFields(logrus.Fields{
		"action":     "sync_done",
		"succeeded":  len(report.Results),
		"failed":     len(report.Failures),
		"skipped":    len(report.Skipped),
		"elapsed_ms": time.Since(started).Milliseconds(),
	}).Info("sync finished")

	return report, nil
}

func names(defs []Definition) []string {
	out := make([]string, len(defs))
	for i, def := range defs {
		out[i] = def.Name
	}
	return out
}
