// Package app wires adapters, stores and services from a Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"ratefeed/internal/broadcast"
	"ratefeed/internal/composite"
	"ratefeed/internal/config"
	"ratefeed/internal/httpx"
	"ratefeed/internal/power"
	"ratefeed/internal/provider"
	"ratefeed/internal/provider/binance"
	"ratefeed/internal/provider/cache"
	"ratefeed/internal/provider/google"
	"ratefeed/internal/provider/okj"
	"ratefeed/internal/provider/okx"
	"ratefeed/internal/provider/ratelimit"
)

// App holds the wired services. Close releases stores and writers.
type App struct {
	Config      config.Config
	Logger      *slog.Logger
	Providers   provider.Registry
	Calculator  *composite.Calculator
	Powers      power.Store
	Templates   *broadcast.TemplateStore
	Broadcaster *broadcast.Broadcaster
	Scheduler   *broadcast.Scheduler

	closers []io.Closer
}

// Build creates every component. Nothing is started; the caller decides
// whether to run the scheduler.
func Build(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{Config: cfg, Logger: log, Providers: provider.Registry{}}
	if err := a.build(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config
	hc, err := httpx.New(cfg.RequestTimeout(), httpx.WithProxy(cfg.HTTPSProxy))
	if err != nil {
		return fmt.Errorf("http client: %w", err)
	}

	a.Providers.Register(binance.New(binanceOpts(cfg, hc)...))
	a.Providers.Register(okx.New(okxOpts(cfg, hc)...))
	a.Providers.Register(okj.New(okjOpts(cfg, hc)...))

	pivot, err := a.googleProvider(hc)
	if err != nil {
		return err
	}
	a.Providers.Register(pivot)

	if a.Powers, err = a.powerStore(ctx); err != nil {
		return err
	}
	a.Calculator = &composite.Calculator{
		Resolver: &power.Resolver{Store: a.Powers, Logger: a.Logger},
		USDT:     a.Providers[provider.Binance],
		JPY:      a.Providers[provider.OKJ],
		Pivot:    pivot,
		Logger:   a.Logger,
	}

	if a.Templates, err = broadcast.NewTemplateStore(cfg.Path(cfg.Broadcast.TemplateFile)); err != nil {
		return fmt.Errorf("templates: %w", err)
	}
	loc, err := time.LoadLocation(cfg.Broadcast.Timezone)
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	a.Broadcaster = &broadcast.Broadcaster{
		Calc:      a.Calculator,
		Templates: a.Templates,
		Notifier:  a.notifiers(hc),
		Location:  loc,
		Logger:    a.Logger,
	}
	a.Scheduler = broadcast.NewScheduler(a.Logger)
	if err := a.Scheduler.Add(broadcast.PriceBroadcast, cfg.BroadcastInterval(), a.Broadcaster.Job); err != nil {
		return fmt.Errorf("schedule broadcast: %w", err)
	}
	return nil
}

func binanceOpts(cfg config.Config, hc httpx.Doer) []binance.Option {
	opts := []binance.Option{binance.WithHTTPClient(hc)}
	if cfg.Binance.BaseURL != "" {
		opts = append(opts, binance.WithBaseURL(cfg.Binance.BaseURL))
	}
	return opts
}

func okxOpts(cfg config.Config, hc httpx.Doer) []okx.Option {
	opts := []okx.Option{okx.WithHTTPClient(hc)}
	if cfg.OKX.BaseURL != "" {
		opts = append(opts, okx.WithBaseURL(cfg.OKX.BaseURL))
	}
	return opts
}

func okjOpts(cfg config.Config, hc httpx.Doer) []okj.Option {
	opts := []okj.Option{okj.WithHTTPClient(hc)}
	if cfg.OKJ.BaseURL != "" {
		opts = append(opts, okj.WithBaseURL(cfg.OKJ.BaseURL))
	}
	return opts
}

// googleProvider returns the scraper behind its rate limiter and cache.
// The limiter sits inside the cache so cached reads never wait on it.
func (a *App) googleProvider(hc httpx.Doer) (*cache.Provider, error) {
	g := a.Config.Google
	opts := []google.Option{google.WithHTTPClient(hc)}
	if g.BaseURL != "" {
		opts = append(opts, google.WithBaseURL(g.BaseURL))
	}
	var p provider.Provider = google.New(opts...)
	switch {
	case g.MaxRequestsPerMinute > 0:
		burst := max(g.Burst, 1)
		p = &ratelimit.TokenBucketProvider{P: p, TB: ratelimit.NewTokenBucket(float64(g.MaxRequestsPerMinute)/60, burst)}
	case g.MinRequestIntervalSec > 0:
		p = &ratelimit.MinInterval{P: p, Interval: time.Duration(g.MinRequestIntervalSec) * time.Second}
	}

	policy, err := cache.ParsePolicy(g.CachePolicy)
	if err != nil {
		return nil, err
	}
	store, err := a.quoteStore()
	if err != nil {
		return nil, err
	}
	return &cache.Provider{
		P:            p,
		Store:        store,
		TTL:          a.Config.GoogleCacheTTL(),
		Policy:       policy,
		FetchTimeout: a.Config.RequestTimeout(),
		Logger:       a.Logger,
	}, nil
}

func (a *App) quoteStore() (cache.Store, error) {
	cfg := a.Config
	switch cfg.Google.CacheBackend {
	case "memory":
		return cache.NewMemoryStore(), nil
	case "redis":
		rs, err := cache.NewRedisStoreFromURL(cfg.Redis.URL, cfg.Redis.Prefix)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rs)
		return rs, nil
	default:
		fs, err := cache.NewFileStore(cfg.Path(cfg.Google.CacheFile))
		if err != nil {
			return nil, fmt.Errorf("quote cache: %w", err)
		}
		return fs, nil
	}
}

func (a *App) powerStore(ctx context.Context) (power.Store, error) {
	cfg := a.Config.Power
	if cfg.Backend != "db" {
		return power.NewFileStore(a.Config.Path(cfg.File))
	}
	db, err := power.OpenDB(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB)
	}
	return power.NewGormStore(ctx, db)
}

// notifiers fans out to every configured channel and always logs.
func (a *App) notifiers(hc httpx.Doer) broadcast.Notifier {
	cfg := a.Config
	ns := broadcast.MultiNotifier{broadcast.LogNotifier{Logger: a.Logger}}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		ns = append(ns, broadcast.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			broadcast.WithTelegramHTTPClient(hc)))
	} else {
		a.Logger.Warn("telegram not configured")
	}
	if len(cfg.Kafka.Brokers) > 0 {
		k := broadcast.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.closers = append(a.closers, k)
		ns = append(ns, k)
	}
	return ns
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}
