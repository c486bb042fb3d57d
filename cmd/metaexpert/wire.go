package main

import (
	"context"
	"fmt"
	"io"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"

	"github.com/hupe1980/metaexpert"
	"github.com/hupe1980/metaexpert/config"
	"github.com/hupe1980/metaexpert/logging"
	"github.com/hupe1980/metaexpert/model"
	"github.com/hupe1980/metaexpert/model/anthropic"
	"github.com/hupe1980/metaexpert/model/gemini"
	"github.com/hupe1980/metaexpert/model/openai"
	"github.com/hupe1980/metaexpert/orchestrator"
	"github.com/hupe1980/metaexpert/store/redis"
	"github.com/hupe1980/metaexpert/tool"
	"github.com/hupe1980/metaexpert/tool/duckduckgo"
	"github.com/hupe1980/metaexpert/tool/scraper"
	"github.com/hupe1980/metaexpert/tool/serper"
)

// app holds everything a command needs for the lifetime of the process.
type app struct {
	cfg      *config.Config
	logger   logging.Logger
	registry *prometheus.Registry
	me       *metaexpert.MetaExpert
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}

	logger, closeLogger, err := buildLogger(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}
	a.logger = logger
	a.closers = append(a.closers, closeLogger)

	var rdb *backend.Client
	if cfg.Cache.Backend == "redis" || cfg.Redis.Guard {
		rdb = redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		a.closers = append(a.closers, func() { _ = rdb.Close() })
	}

	llm, err := buildModel(ctx, cfg.Model)
	if err != nil {
		a.Close()
		return nil, err
	}

	tools, err := buildInvoker(cfg, component(logger, "tool"), rdb)
	if err != nil {
		a.Close()
		return nil, err
	}

	metrics, err := orchestrator.NewMetrics(a.registry)
	if err != nil {
		a.Close()
		return nil, err
	}

	var guard orchestrator.Guard
	if rdb != nil && cfg.Redis.Guard {
		guard = redis.NewGuard(rdb, 0, redis.WithPrefix(cfg.Redis.Prefix))
	}

	a.me, err = metaexpert.New(llm, tools, func(o *metaexpert.Options) {
		o.MaxSteps = cfg.Run.MaxSteps
		o.MaxConcurrentRuns = cfg.Run.MaxConcurrent
		o.GenerateTimeout = cfg.Run.GenerateTimeout
		o.Logger = component(logger, "orchestrator")
		o.Metrics = metrics
		o.Guard = guard
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	logger.Debug("cli.app.ready", "provider", cfg.Model.Provider, "model", llm.Info().Name, "search", cfg.Search.Provider, "cache", cfg.Cache.Backend)
	return a, nil
}

func buildLogger(cfg config.LogConfig, out io.Writer) (logging.Logger, func(), error) {
	level := logging.ParseLevel(cfg.Level)

	if cfg.Backend == "zap" {
		z, err := logging.NewZapLogger(level, cfg.Format)
		if err != nil {
			return nil, nil, fmt.Errorf("build zap logger: %w", err)
		}
		return z, func() { _ = z.Sync() }, nil
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Format,
		Output:    out,
		Component: "metaexpert",
	}), func() {}, nil
}

// component tags l with a component name when it supports fields.
func component(l logging.Logger, name string) logging.Logger {
	if rl, ok := l.(*logging.RunLogger); ok {
		return rl.WithComponent(name)
	}
	return l
}

func buildModel(ctx context.Context, cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.Temperature = cfg.Temperature
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			if cfg.BaseURL != "" {
				o.Provider = "openai-compatible"
			}
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = sdk.Model(cfg.Name)
			}
			o.Temperature = cfg.Temperature
			o.APIKey = cfg.APIKey
			o.UseBedrock = cfg.Bedrock
			o.AWSRegion = cfg.Region
			o.AWSProfile = cfg.Profile
		}), nil
	case "gemini":
		return gemini.NewModel(ctx, func(o *gemini.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.Temperature = float32(cfg.Temperature)
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		})
	case "mock":
		return model.NewMockModel("mock", "mock"), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

func buildSearcher(cfg config.Config) (tool.Searcher, error) {
	switch cfg.Search.Provider {
	case "serper":
		if cfg.Search.APIKey == "" {
			return nil, fmt.Errorf("serper search needs search.api_key or SERPER_API_KEY")
		}
		return serper.New(cfg.Search.APIKey, func(o *serper.Options) {
			o.MaxResults = cfg.Search.MaxResults
		}), nil
	case "duckduckgo":
		return duckduckgo.New(func(o *duckduckgo.Options) {
			o.MaxResults = cfg.Search.MaxResults
			o.UserAgent = cfg.Fetch.UserAgent
		}), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Search.Provider)
	}
}

func buildInvoker(cfg *config.Config, logger logging.Logger, rdb *backend.Client) (tool.Invoker, error) {
	searcher, err := buildSearcher(*cfg)
	if err != nil {
		return nil, err
	}

	fetcher := scraper.New(func(o *scraper.Options) {
		o.MaxLength = cfg.Fetch.MaxLength
		o.UserAgent = cfg.Fetch.UserAgent
	})

	invoker := tool.NewInvoker(searcher, fetcher, func(o *tool.InvokerOptions) {
		o.Timeout = cfg.Run.ToolTimeout
		o.Logger = logger
	})

	switch cfg.Cache.Backend {
	case "memory":
		return tool.NewCachedInvoker(invoker, tool.NewInMemoryCache(cfg.Cache.Size, cfg.Cache.TTL), cfg.Cache.TTL, logger), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis cache needs a redis client")
		}
		return tool.NewCachedInvoker(invoker, redis.NewCache(rdb, cfg.Cache.TTL, redis.WithPrefix(cfg.Redis.Prefix)), cfg.Cache.TTL, logger), nil
	default:
		return invoker, nil
	}
}
