package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/deadlock-data/wikicache/internal/cache"
	"github.com/deadlock-data/wikicache/internal/config"
	"github.com/deadlock-data/wikicache/internal/fetch"
	"github.com/deadlock-data/wikicache/internal/logging"
	"github.com/deadlock-data/wikicache/internal/resource"
	"github.com/deadlock-data/wikicache/internal/server"
	"github.com/deadlock-data/wikicache/internal/version"
)

const defaultConfigPath = "config.toml"

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath   string
	forceRefresh bool
	query        string
	checkOnly    bool
	serve        bool
	showVersion  bool
	names        []string
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, opts)
	stop()
	os.Exit(code)
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(ctx context.Context, opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	registry, err := resource.NewRegistry(resource.DefinitionsFromConfig(cfg))
	if err != nil {
		fmt.Fprintf(stdErr, "构建资源注册表失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["resources"] = cfg.ResourceNames()
		fields["storage_path"] = cfg.Global.StoragePath
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序：配置 → 注册表 → 磁盘缓存 → fetcher → 缓存核心，CLI 与 HTTP 共用同一核心。
	store, err := cache.NewStore(cfg.Global.StoragePath)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存目录失败: %v\n", err)
		return 1
	}

	httpClient, err := fetch.NewClient(cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化 HTTP 客户端失败: %v\n", err)
		return 1
	}
	fetcher := fetch.NewHTTPFetcher(httpClient, cfg.Global.UserAgent)

	core, err := resource.NewCache(store, fetcher, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["resources"] = len(registry.List())
	fields["storage_path"] = cfg.Global.StoragePath
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if opts.serve {
		if err := startHTTPServer(ctx, cfg, registry, core, store, logger); err != nil {
			fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
			return 1
		}
		return 0
	}

	return runSync(ctx, opts, cfg, registry, core)
}

// runSync 解析选中的资源，任一资源失败时返回 1。
func runSync(ctx context.Context, opts cliOptions, cfg *config.Config, registry *resource.Registry, core *resource.Cache) int {
	defs, err := registry.Select(opts.names...)
	if err != nil {
		fmt.Fprintf(stdErr, "选择资源失败: %v\n", err)
		return 1
	}

	report, err := resource.Sync(ctx, core, defs, resource.SyncOptions{
		ForceRefresh:    opts.forceRefresh,
		ContinueOnError: cfg.Global.ContinueOnError,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "同步被中断: %v\n", err)
		return 1
	}

	if opts.query != "" {
		for _, result := range report.Results {
			value := gjson.GetBytes(result.Raw, opts.query)
			fmt.Fprintf(stdOut, "%s: %s\n", result.Name, value.String())
		}
	}

	for _, failure := range report.Failures {
		fmt.Fprintf(stdErr, "%s: %v\n", failure.Name, failure.Err)
	}
	if len(report.Failures) > 0 || len(report.Skipped) > 0 {
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
// 未显式指定且 ./config.toml 不存在时返回空路径，由 config.Load 使用内置默认值。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("wikicache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		opts       cliOptions
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 WIKICACHE_CONFIG 覆盖）")
	fs.BoolVar(&opts.forceRefresh, "refresh", false, "忽略本地缓存，强制从远端获取")
	fs.StringVar(&opts.query, "query", "", "对每个资源执行 gjson 路径查询并输出结果")
	fs.BoolVar(&opts.checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&opts.serve, "serve", false, "启动 HTTP 服务暴露缓存资源")
	fs.BoolVar(&opts.showVersion, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}
	if opts.serve && opts.query != "" {
		return cliOptions{}, errors.New("-query 不能与 -serve 同时使用")
	}

	path := os.Getenv("WIKICACHE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}

	opts.configPath = path
	opts.names = fs.Args()
	return opts, nil
}

func startHTTPServer(
	ctx context.Context,
	cfg *config.Config,
	registry *resource.Registry,
	core *resource.Cache,
	store cache.Store,
	logger *logrus.Logger,
) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:   logger,
		Registry: registry,
		Resolver: core,
		Store:    store,
	})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
