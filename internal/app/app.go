package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/lecturegen/internal/data/db"
	"github.com/yungbote/lecturegen/internal/data/repos"
	httpapi "github.com/yungbote/lecturegen/internal/http"
	"github.com/yungbote/lecturegen/internal/http/handlers"
	"github.com/yungbote/lecturegen/internal/modules/lecture"
	"github.com/yungbote/lecturegen/internal/observability"
	"github.com/yungbote/lecturegen/internal/pkg/dbctx"
	"github.com/yungbote/lecturegen/internal/platform/logger"
	"github.com/yungbote/lecturegen/internal/platform/redis"
	"github.com/yungbote/lecturegen/internal/services"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	DB       *gorm.DB
	Repos    repos.Repos
	Lectures services.LectureService
	Server   *httpapi.Server

	comp         *Components
	rdb          *goredis.Client
	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &App{Log: log, Cfg: cfg}
	if err := a.init(ctx); err != nil {
		a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Cfg
	a.otelShutdown = observability.InitOTel(ctx, a.Log, observability.OtelConfig{
		Enabled:     cfg.Otel.Enabled,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Version:     cfg.Version,
		Endpoint:    cfg.Otel.Endpoint,
		Headers:     observability.ParseHeaders(cfg.Secrets.OtelHeaders),
		Insecure:    cfg.Otel.Insecure,
		SampleRatio: cfg.Otel.SampleRatio,
	})

	gdb, err := db.Open(a.Log, db.Config{
		Driver:     cfg.Database.Driver,
		DSN:        cfg.Secrets.DatabaseURL,
		Host:       cfg.Database.Host,
		Port:       cfg.Database.Port,
		User:       cfg.Database.User,
		Password:   cfg.Secrets.DBPassword,
		Name:       cfg.Database.Name,
		SQLitePath: cfg.Database.SQLitePath,
	})
	if err != nil {
		return err
	}
	a.DB = gdb
	a.Repos = repos.New(gdb, a.Log)

	// Runs left queued or running by a previous process can never finish.
	if n, err := a.Repos.LectureRuns.FailUnfinished(dbctx.Context{Ctx: ctx}, "interrupted by restart"); err != nil {
		return fmt.Errorf("recover unfinished runs: %w", err)
	} else if n > 0 {
		a.Log.Warn("marked unfinished runs as failed", "count", n)
	}

	var cache lecture.PlanCache
	var events services.RunEventPublisher
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Secrets.RedisPassword,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Log.Warn("redis unavailable; plan cache and run events disabled", "error", err)
		} else {
			a.rdb = rdb
			cache = redis.NewPlanCache(a.Log, rdb, cfg.Redis.KeyPrefix, cfg.Content.CacheTTL)
			events = redis.NewEventBus(a.Log, rdb, cfg.Redis.Channel)
		}
	}

	comp, err := BuildComponents(ctx, a.Log, cfg, cache)
	if err != nil {
		return err
	}
	a.comp = comp

	if err := services.EnsureRunsDir(cfg.Runs.Dir); err != nil {
		return fmt.Errorf("create runs dir: %w", err)
	}
	a.Lectures, err = services.NewLectureService(a.Log, a.Repos.LectureRuns, comp.Pipeline, events, services.LectureServiceConfig{
		RunsDir:           cfg.Runs.Dir,
		Concurrency:       cfg.Runs.Concurrency,
		RunTimeout:        cfg.Runs.Timeout,
		KeepIntermediates: cfg.Runs.KeepIntermediates,
	})
	if err != nil {
		return err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	a.Server = httpapi.NewServer(cfg.HTTP.Addr, httpapi.RouterConfig{
		Log:            a.Log,
		ServiceName:    otelServiceName(cfg),
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		LectureHandler: handlers.NewLectureHandler(a.Lectures),
		HealthHandler:  handlers.NewHealthHandler(sqlDB.PingContext),
	})
	return nil
}

func otelServiceName(cfg Config) string {
	if !cfg.Otel.Enabled {
		return ""
	}
	return cfg.ServiceName
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("http server listening", "addr", a.Cfg.HTTP.Addr)
		errCh <- a.Server.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (a *App) Close(ctx context.Context) {
	timeout := a.Cfg.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if a.Lectures != nil {
		if err := a.Lectures.Close(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			a.Log.Warn("lecture service close", "error", err)
		}
	}
	if a.comp != nil {
		a.comp.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown", "error", err)
		}
	}
	a.Log.Sync()
}
