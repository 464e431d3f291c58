package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/optionpricer/internal/pricing/application"
	"github.com/wyfcoding/optionpricer/internal/pricing/domain"
	"github.com/wyfcoding/optionpricer/internal/pricing/infrastructure/messaging"
	"github.com/wyfcoding/optionpricer/internal/pricing/infrastructure/persistence/mysql"
	rediscache "github.com/wyfcoding/optionpricer/internal/pricing/infrastructure/persistence/redis"
	"github.com/wyfcoding/optionpricer/internal/pricing/infrastructure/random"
	httphandler "github.com/wyfcoding/optionpricer/internal/pricing/interfaces/http"
	consumer "github.com/wyfcoding/optionpricer/internal/pricing/interfaces/messaging"
	"github.com/wyfcoding/optionpricer/pkg/cache"
	"github.com/wyfcoding/optionpricer/pkg/config"
	"github.com/wyfcoding/optionpricer/pkg/db"
	"github.com/wyfcoding/optionpricer/pkg/logger"
	"github.com/wyfcoding/optionpricer/pkg/metrics"
	"github.com/wyfcoding/optionpricer/pkg/middleware"
	"github.com/wyfcoding/optionpricer/pkg/mq"
	"github.com/wyfcoding/optionpricer/pkg/ratelimit"
)

// AppContext 服务运行时依赖
type AppContext struct {
	Config     *config.Config
	AppService *application.PricingService
	Metrics    *metrics.Metrics
	Collector  metrics.MetricsCollector
	Limiter    ratelimit.RateLimiter
	Requests   *consumer.PricingRequestConsumer
}

// routeCosts 重计算路由每次请求消耗的令牌数
func routeCosts(rl config.RateLimitConfig) map[string]int {
	return map[string]int{
		"/api/v1/pricing/batch":       rl.BatchCost,
		"/api/v1/pricing/convergence": rl.ConvergenceCost,
	}
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", config.GetEnv("APP_CONFIG", "configs/pricing/config.toml"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config(cfg.Logger)); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	app, cleanup, err := initService(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize service", "error", err)
	}
	defer cleanup()

	engine := gin.New()
	registerGin(engine, app)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	runCtx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if app.Requests != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.Requests.Run(runCtx); err != nil {
				logger.Error(runCtx, "Pricing request consumer exited", "error", err)
			}
		}()
	}

	go func() {
		logger.Info(ctx, "HTTP server listening", "addr", srv.Addr, "service", cfg.ServiceName, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "HTTP server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info(ctx, "Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.HTTP.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown failed", "error", err)
	}
	stop()
	wg.Wait()
}

func registerGin(e *gin.Engine, app *AppContext) {
	e.Use(
		middleware.GinRecoveryMiddleware(),
		middleware.GinLoggingMiddleware(),
		middleware.GinCORSMiddleware(),
	)
	if app.Collector != nil {
		e.Use(middleware.GinMetricsMiddleware(app.Collector))
	}
	if app.Metrics != nil {
		e.GET(app.Config.Metrics.Path, gin.WrapH(app.Metrics.Handler()))
	}

	routes := e.Group("")
	if app.Limiter != nil {
		limit := ratelimit.PerSecond(app.Config.RateLimit.QPS, app.Config.RateLimit.Burst)
		routes.Use(middleware.RateLimitMiddleware(app.Limiter, limit, routeCosts(app.Config.RateLimit)))
	}
	httphandler.NewPricingHandler(app.AppService).RegisterRoutes(routes)
	logger.Info(context.Background(), "HTTP routes registered", "service", app.Config.ServiceName)
}

func initService(ctx context.Context, c *config.Config) (*AppContext, func(), error) {
	logger.Info(ctx, "initializing service dependencies...")

	app := &AppContext{Config: c}
	var closers []func()
	cleanup := func() {
		logger.Info(ctx, "cleaning up resources...")
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*AppContext, func(), error) {
		cleanup()
		return nil, nil, err
	}

	var opts []application.Option

	if c.Metrics.Enabled {
		m := metrics.New(c.ServiceName)
		if err := m.Register(); err != nil {
			return fail(fmt.Errorf("register metrics: %w", err))
		}
		app.Metrics = m
		app.Collector = metrics.NewDefaultMetricsCollector(m)
		opts = append(opts, application.WithMetrics(app.Collector))
	}

	if c.Database.Enabled() {
		database, err := db.Init(ctx, db.Config{
			Driver:             c.Database.Driver,
			DSN:                c.Database.DSN,
			MaxOpenConns:       c.Database.MaxOpenConns,
			MaxIdleConns:       c.Database.MaxIdleConns,
			ConnMaxLifetime:    c.Database.ConnMaxLifetime,
			LogEnabled:         c.Database.LogEnabled,
			SlowQueryThreshold: c.Database.SlowQueryThreshold,
		})
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = database.Close() })
		if c.Database.AutoMigrate {
			if err := mysql.AutoMigrate(database.DB); err != nil {
				return fail(fmt.Errorf("auto migrate: %w", err))
			}
		}
		opts = append(opts, application.WithRepository(mysql.NewPricingRepository(database.DB)))
	}

	if c.Redis.Enabled {
		redisCache, err := cache.New(cache.Config{
			Host:         c.Redis.Host,
			Port:         c.Redis.Port,
			Password:     c.Redis.Password,
			DB:           c.Redis.DB,
			MaxPoolSize:  c.Redis.MaxPoolSize,
			ConnTimeout:  c.Redis.ConnTimeout,
			ReadTimeout:  c.Redis.ReadTimeout,
			WriteTimeout: c.Redis.WriteTimeout,
		})
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = redisCache.Close() })
		opts = append(opts, application.WithCache(rediscache.NewResultCache(redisCache, time.Duration(c.Redis.ResultTTL)*time.Second)))
		if c.RateLimit.Enabled {
			app.Limiter = ratelimit.NewRedisRateLimiter(redisCache.GetClient())
		}
	}

	var producer *mq.KafkaProducer
	kafkaCfg := mq.KafkaConfig{
		Brokers:        c.Kafka.Brokers,
		GroupID:        c.Kafka.GroupID,
		SessionTimeout: c.Kafka.SessionTimeout,
		MaxRetries:     c.Kafka.MaxRetries,
		RetryBackoff:   c.Kafka.RetryBackoff,
	}
	if c.Kafka.Enabled() {
		producer = mq.NewProducer(kafkaCfg)
		closers = append(closers, func() { _ = producer.Close() })
		opts = append(opts, application.WithPublisher(messaging.NewKafkaEventPublisher(producer, c.Kafka.Topic)))
	}

	mode := random.Mode(c.MonteCarlo.StreamMode)
	settings := application.Settings{
		Workers:              c.MonteCarlo.Workers,
		DefaultReplications:  c.MonteCarlo.DefaultReplications,
		MaxReplications:      c.MonteCarlo.MaxReplications,
		MaxSteps:             c.MonteCarlo.MaxSteps,
		CheckpointInterval:   c.MonteCarlo.CheckpointInterval,
		MaxBatchSize:         c.MonteCarlo.MaxBatchSize,
		MaxConvergenceCounts: c.MonteCarlo.MaxConvergenceCounts,
		Reproducible:         mode == random.ModePerWorker,
	}
	factories := func(seed uint64) (domain.SourceFactory, error) {
		return random.FactoryFor(mode, seed)
	}
	app.AppService = application.NewPricingService(settings, factories, opts...)

	if producer != nil && c.Kafka.RequestTopic != "" {
		reader := mq.NewConsumer(kafkaCfg, c.Kafka.RequestTopic)
		closers = append(closers, func() { _ = reader.Close() })
		var dlq *mq.DeadLetterQueue
		if c.Kafka.DeadLetterTopic != "" {
			dlq = mq.NewDeadLetterQueue(producer, c.Kafka.DeadLetterTopic)
		}
		app.Requests = consumer.NewPricingRequestConsumer(reader, app.AppService, dlq)
	}

	logger.Info(ctx, "service dependencies ready",
		"workers", settings.Workers,
		"stream_mode", mode,
		"persistence", c.Database.Enabled(),
		"cache", c.Redis.Enabled,
		"kafka", c.Kafka.Enabled(),
	)
	return app, cleanup, nil
}
