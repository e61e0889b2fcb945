// Package cli wires the engine and its adapters from a config.Config for the
// autonoma command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/autonoma-fleet/autonoma"
	"github.com/autonoma-fleet/autonoma/pkg/adapters/file"
	api "github.com/autonoma-fleet/autonoma/pkg/adapters/http"
	"github.com/autonoma-fleet/autonoma/pkg/adapters/llm"
	"github.com/autonoma-fleet/autonoma/pkg/adapters/mcp"
	"github.com/autonoma-fleet/autonoma/pkg/adapters/memory"
	redisadapter "github.com/autonoma-fleet/autonoma/pkg/adapters/redis"
	"github.com/autonoma-fleet/autonoma/pkg/adapters/scheduling"
	"github.com/autonoma-fleet/autonoma/pkg/adapters/sqlite"
	"github.com/autonoma-fleet/autonoma/pkg/adapters/telemetry"
	"github.com/autonoma-fleet/autonoma/pkg/config"
	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/autonoma-fleet/autonoma/pkg/observability"
	"github.com/autonoma-fleet/autonoma/pkg/persistence/middleware"
	"github.com/autonoma-fleet/autonoma/pkg/policy"
	"github.com/autonoma-fleet/autonoma/pkg/ports"
	"github.com/autonoma-fleet/autonoma/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
)

// auditRingSize is how many recent audit records stay in memory.
const auditRingSize = 1000

// App is the wired application: the engine and every adapter the
// configuration selects.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Engine    *autonoma.Engine
	Sessions  *session.Manager
	Scheduler api.BookingService
	Insights  ports.InsightStore
	Audit     *memory.AuditLog
	Registry  *prometheus.Registry

	closers []func() error
}

// Build creates the App. On error everything opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	app := &App{Config: cfg, Logger: logger, Audit: memory.NewAuditLog(auditRingSize)}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	sinks := []ports.AuditSink{memory.NewLogAuditSink(logger), app.Audit}

	var rdb *goredis.Client
	if strings.EqualFold(cfg.Store.Type, "redis") || cfg.Audit.RedisStream != "" {
		r := cfg.Store.Redis
		rdb = redisadapter.NewClient(r.Addr, r.Password, r.DB)
		app.closers = append(app.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis %s unreachable: %w", r.Addr, err)
		}
	}

	var store ports.RunStore = memory.NewStore()
	sessionOpts := []session.Option{session.WithLogger(logger)}
	if strings.EqualFold(cfg.Store.Type, "redis") {
		r := cfg.Store.Redis
		store = redisadapter.NewFromClient(rdb, redisadapter.WithPrefix(r.Prefix), redisadapter.WithTTL(r.TTL))
		sessionOpts = append(sessionOpts, session.WithLocker(redisadapter.NewLocker(rdb, r.Prefix)))
	}
	if strings.EqualFold(cfg.Store.Type, "file") {
		active, fallback, err := cfg.Store.File.Keys()
		if err != nil {
			return nil, err
		}
		var fileOpts []file.Option
		if active != nil {
			fileOpts = append(fileOpts, file.WithKeys(active, fallback...))
		}
		if store, err = file.New(cfg.Store.File.Dir, fileOpts...); err != nil {
			return nil, err
		}
	}
	if len(cfg.Store.RedactPatterns) > 0 {
		redact, err := middleware.NewPIIMiddleware(cfg.Store.RedactPatterns)
		if err != nil {
			return nil, err
		}
		store = middleware.Chain(store, redact)
	}
	app.Sessions = session.NewManager(store, sessionOpts...)

	if cfg.Audit.RedisStream != "" {
		sinks = append(sinks, redisadapter.NewAuditStream(rdb, cfg.Audit.RedisStream, 0))
	}

	if cfg.Audit.SQLitePath != "" {
		db, err := sqlite.Open(cfg.Audit.SQLitePath)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, db.Close)
		sinks = append(sinks, db)
		app.Insights = db
	} else {
		app.Insights = memory.NewInsightStore()
	}

	if strings.EqualFold(cfg.Scheduling.Mode, "http") {
		app.Scheduler = scheduling.NewClient(cfg.Scheduling.BaseURL, cfg.Scheduling.Timeout)
	} else {
		app.Scheduler = scheduling.NewServiceCenter()
	}

	generator, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, err
	}

	p := policy.Default()
	if cfg.Policy.File != "" {
		if p, err = policy.Load(cfg.Policy.File); err != nil {
			return nil, err
		}
	}

	hooks := domain.LifecycleHooks{}
	if logger.Enabled(ctx, slog.LevelDebug) {
		hooks = debugHooks(logger)
	}
	if cfg.Metrics.Enabled {
		app.Registry = prometheus.NewRegistry()
		app.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m, err := observability.NewMetrics(app.Registry)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		hooks = hooks.Combine(m.Hooks())
	}

	opts := []autonoma.Option{
		autonoma.WithDesign(cfg.Engine.Design),
		autonoma.WithLogger(logger),
		autonoma.WithLifecycleHooks(hooks),
		autonoma.WithTextGenerator(generator),
		autonoma.WithScheduler(app.Scheduler),
		autonoma.WithAuditSink(ports.MultiAuditSink(sinks...)),
		autonoma.WithInsightSink(app.Insights),
		autonoma.WithPolicy(p),
		autonoma.WithNodeTimeout(cfg.Engine.NodeTimeout),
	}

	if cfg.Tracing.Enabled {
		tp, err := observability.InitTracer(ctx, observability.TracingConfig{
			ServiceName: cfg.Tracing.ServiceName,
			Endpoint:    cfg.Tracing.Endpoint,
			Insecure:    cfg.Tracing.Insecure,
		})
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return tp.Shutdown(ctx)
		})
		opts = append(opts, autonoma.WithTracer(tp.Tracer("autonoma")))
	}

	if app.Engine, err = autonoma.New(opts...); err != nil {
		return nil, err
	}

	logger.Info("autonoma wired",
		"design", app.Engine.DesignName(),
		"store", cfg.Store.Type,
		"scheduling", cfg.Scheduling.Mode,
		"llm", cfg.LLM.Provider,
		"sqlite", cfg.Audit.SQLitePath != "",
		"metrics", cfg.Metrics.Enabled,
		"tracing", cfg.Tracing.Enabled,
	)
	return app, nil
}

// TelemetrySource returns the CSV replay when a file is configured and the
// synthetic generator otherwise.
func (a *App) TelemetrySource() (ports.TelemetrySource, error) {
	t := a.Config.Telemetry
	if t.File == "" {
		return telemetry.NewSynthetic(t.Interval), nil
	}
	return telemetry.LoadCSV(t.File, t.Interval)
}

// Handler builds the HTTP API over the wired adapters.
func (a *App) Handler() (http.Handler, error) {
	src, err := a.TelemetrySource()
	if err != nil {
		return nil, err
	}
	opts := []api.Option{
		api.WithLogger(a.Logger),
		api.WithBookingService(a.Scheduler),
		api.WithInsights(a.Insights),
		api.WithTelemetry(src),
		api.WithDefaultVehicle(a.Config.Telemetry.VehicleID),
	}
	if a.Registry != nil {
		opts = append(opts, api.WithMetricsHandler(promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})))
	}
	return api.NewHandler(a.Engine, a.Sessions, opts...), nil
}

// MCP builds the MCP server over the wired adapters.
func (a *App) MCP() *mcp.Server {
	return mcp.NewServer(a.Engine, a.Sessions, mcp.WithInsights(a.Insights), mcp.WithLogger(a.Logger))
}

// Close releases every adapter in reverse order of creation.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
