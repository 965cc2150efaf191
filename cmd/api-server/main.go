package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/belle-designer/AppointmentSystem/internal/api"
	"github.com/belle-designer/AppointmentSystem/internal/appointment"
	"github.com/belle-designer/AppointmentSystem/internal/booking"
	"github.com/belle-designer/AppointmentSystem/internal/config"
	"github.com/belle-designer/AppointmentSystem/internal/db"
	"github.com/belle-designer/AppointmentSystem/internal/directory"
	"github.com/belle-designer/AppointmentSystem/internal/events"
	"github.com/belle-designer/AppointmentSystem/internal/logger"
	redisclient "github.com/belle-designer/AppointmentSystem/internal/redis"
	"github.com/belle-designer/AppointmentSystem/internal/slots"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger config comes from cfg, so this one goes to stderr raw
		os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("api-server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	log.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("store", cfg.StoreDriver),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog, err := slots.NewCatalog(cfg.SlotTimes, cfg.Holidays)
	if err != nil {
		return err
	}
	validator := appointment.NewValidator(catalog, cfg.DailyCapacity, time.Now)

	var (
		pgPool *pgxpool.Pool
		repo   appointment.Repository
		dir    directory.Directory
	)
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{})
		if err == nil {
			err = db.Migrate(pgCtx, pgPool)
		}
		cancelPg()
		if err != nil {
			return err
		}
		defer pgPool.Close()
		log.Info("connected to Postgres")

		pg := appointment.NewPgRepository(pgPool)
		repo, dir = pg, pg
	default:
		repo = appointment.NewMemoryRepository()
		dir = directory.Demo(directory.DemoSeed, directory.DemoDoctors, directory.DemoPatients)
		log.Info("using in-memory store with demo directory")
	}

	cached, err := directory.NewCached(dir, cfg.DirectoryCacheSize, log.Named("directory"))
	if err != nil {
		return err
	}

	opts := []appointment.Option{appointment.WithLogger(log.Named("appointment"))}

	var (
		rdb      *redis.Client
		sessions booking.SessionStore = booking.NewMemorySessionStore(cfg.BookingSessionTTL)
	)
	if cfg.RedisAddr != "" {
		redisCtx, cancelRedis := context.WithTimeout(rootCtx, 5*time.Second)
		rdb, err = redisclient.NewRedisClient(redisCtx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		cancelRedis()
		if err != nil {
			return err
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Warn("error closing redis", zap.Error(err))
			}
		}()
		log.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))

		opts = append(opts, appointment.WithLocker(redisclient.NewRedisLocker(rdb, cfg.LockTTL)))
		sessions = booking.NewRedisSessionStore(rdb, cfg.BookingSessionTTL)
	}

	if cfg.AMQPURL != "" {
		pub, err := events.Dial(cfg.AMQPURL, cfg.AMQPExchange, log.Named("events"))
		if err != nil {
			return err
		}
		defer func() {
			if err := pub.Close(); err != nil {
				log.Warn("error closing amqp", zap.Error(err))
			}
		}()
		log.Info("publishing events", zap.String("exchange", cfg.AMQPExchange))
		opts = append(opts, appointment.WithPublisher(pub))
	}

	svc := appointment.NewService(repo, cached, validator, opts...)

	router := api.NewRouter(api.RouterConfig{
		Service:            svc,
		Directory:          cached,
		Sessions:           sessions,
		PgPool:             pgPool,
		Redis:              rdb,
		Logger:             log.Named("http"),
		Env:                cfg.Env,
		Version:            version,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-rootCtx.Done():
	}

	log.Info("shutting down api-server", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
