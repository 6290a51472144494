package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/action"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/cachestore"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/config"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/countstore"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/engine"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/filter"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/scheduler"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/setstore"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/store"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/toxicity"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/tracker"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	slogecho "github.com/samber/slog-echo"
	"golang.org/x/sync/errgroup"
)

// registered once per process; servers built in tests share it
var httpMetrics = echoprometheus.NewMiddleware("automod")

type Server struct {
	logger    *slog.Logger
	engine    *automod.Engine
	scheduler *scheduler.Scheduler
	store     store.Store
	config    config.Provider
	rdb       *redis.Client
	echo      *echo.Echo
}

type Config struct {
	DatabaseURL        string
	MaxDBConnections   int
	GuildConfigPath    string
	SetsFileJSON       string
	RedisURL           string
	PerspectiveAPIKey  string
	ReversalWebhookURL string
	SlackWebhookURL    string
	NotifyMinAction    string
	NotifyHourlyLimit  int64
	ScheduleRetryDelay time.Duration
	Logger             *slog.Logger
}

// OpenStore selects a storage backend from a URL: "memory" (or empty), "pebble://<dir>", or a SQL database URL.
func OpenStore(dburl string, maxConnections int) (store.Store, error) {
	switch {
	case dburl == "" || dburl == "memory":
		return store.NewMemStore(), nil
	case strings.HasPrefix(dburl, "pebble://"):
		return store.NewPebbleStore(strings.TrimPrefix(dburl, "pebble://"))
	default:
		db, err := store.SetupDatabase(dburl, maxConnections)
		if err != nil {
			return nil, err
		}
		return store.NewGormStore(db)
	}
}

func NewServer(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	st, err := OpenStore(cfg.DatabaseURL, cfg.MaxDBConnections)
	if err != nil {
		return nil, fmt.Errorf("initializing violation store: %w", err)
	}

	sets := setstore.NewDefaultSetStore()
	if cfg.SetsFileJSON != "" {
		if err := sets.LoadFromFileJSON(cfg.SetsFileJSON); err != nil {
			return nil, fmt.Errorf("initializing in-process setstore: %v", err)
		} else {
			logger.Info("loaded set config from JSON", "path", cfg.SetsFileJSON)
		}
	}

	var counters countstore.CountStore
	var cache cachestore.CacheStore
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		rdb = redis.NewClient(opt)
		// check redis connection
		_, err = rdb.Ping(context.TODO()).Result()
		if err != nil {
			return nil, fmt.Errorf("redis ping failed: %v", err)
		}
		counters = countstore.NewRedisCountStoreFromClient(rdb)
		cache = cachestore.NewRedisCacheStore(rdb, cachestore.RedisOptions{TTL: 5 * time.Minute, LocalTTL: 30 * time.Second})
	} else {
		counters = countstore.NewMemCountStore()
		cache = cachestore.NewMemCacheStore(5_000, 5*time.Minute)
	}

	var guilds config.Provider = config.NewStaticProvider()
	if cfg.GuildConfigPath != "" {
		p, err := config.LoadFile(cfg.GuildConfigPath)
		if err != nil {
			return nil, fmt.Errorf("loading guild config: %w", err)
		}
		logger.Info("loaded guild moderation config", "path", cfg.GuildConfigPath, "guilds", len(p.Guilds))
		guilds = p
	}
	provider := &config.CachedProvider{
		Inner:  guilds,
		Cache:  cache,
		Logger: logger,
	}

	var scorer toxicity.Scorer
	if cfg.PerspectiveAPIKey != "" {
		logger.Info("configuring Perspective toxicity scoring")
		scorer = toxicity.NewPerspectiveClient(cfg.PerspectiveAPIKey)
	}

	eng := automod.Engine{
		Logger:   logger,
		Config:   provider,
		Filters:  filter.DefaultFilterSet(scorer),
		Tracker:  tracker.NewTracker(st, logger),
		Sets:     sets,
		Counters: counters,
	}
	if cfg.SlackWebhookURL != "" {
		minAction, err := action.Parse(cfg.NotifyMinAction)
		if err != nil {
			return nil, fmt.Errorf("parsing notify-min-action: %w", err)
		}
		eng.Notifier = engine.NewSlackNotifier(cfg.SlackWebhookURL, cfg.NotifyHourlyLimit)
		eng.NotifyMinAction = minAction
	}

	reverser := NewWebhookReverser(cfg.ReversalWebhookURL, logger)
	sched := scheduler.NewScheduler(st, reverser.Reverse, logger)
	if cfg.ScheduleRetryDelay > 0 {
		sched.RetryDelay = cfg.ScheduleRetryDelay
	}

	s := &Server{
		logger:    logger,
		engine:    &eng,
		scheduler: sched,
		store:     st,
		config:    provider,
		rdb:       rdb,
	}
	s.echo = s.newEcho()
	return s, nil
}

func (s *Server) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(s.logger))
	e.Use(middleware.Recover())
	e.Use(httpMetrics)
	e.Use(middleware.BodyLimit("1M"))
	e.HTTPErrorHandler = s.errorHandler

	e.GET("/_health", s.HandleHealthCheck)
	e.POST("/v1/evaluate", s.HandleEvaluate)
	e.GET("/v1/violations", s.HandleListViolations)
	e.GET("/v1/violations/count", s.HandleViolationCount)
	e.POST("/v1/violations/reset", s.HandleResetViolations)
	e.GET("/v1/schedule", s.HandleListSchedule)
	e.DELETE("/v1/schedule/:id", s.HandleCancelSchedule)
	e.GET("/v1/stats/actions", s.HandleActionStats)
	e.POST("/v1/config/:guild/invalidate", s.HandleInvalidateConfig)
	return e
}

// Run restores pending reversals, then serves HTTP and runs the scheduler loop until ctx is cancelled.
func (s *Server) Run(ctx context.Context, bind, metricsListen string) error {
	n, err := s.scheduler.Restore(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("scheduler ready", "pending", n)

	httpd := &http.Server{
		Addr:              bind,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      time.Minute,
	}
	metrics := &http.Server{
		Addr:              metricsListen,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return s.scheduler.Run(ctx)
	})
	eg.Go(func() error {
		s.logger.Info("starting automod API", "bind", bind)
		if err := httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start metrics endpoint: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(httpd.Shutdown(shutdownCtx), metrics.Shutdown(shutdownCtx), s.engine.WaitNotifications(shutdownCtx))
	})
	return eg.Wait()
}

func (s *Server) Close() error {
	var errs []error
	if s.rdb != nil {
		errs = append(errs, s.rdb.Close())
	}
	errs = append(errs, s.store.Close())
	return errors.Join(errs...)
}
