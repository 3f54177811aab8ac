package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/rapeepat/shopflow/internal/adapter/handler"
	"github.com/rapeepat/shopflow/internal/adapter/storage"
	"github.com/rapeepat/shopflow/internal/core/catalog"
	"github.com/rapeepat/shopflow/internal/core/lock"
	"github.com/rapeepat/shopflow/internal/core/predictor"
	"github.com/rapeepat/shopflow/internal/core/resolver"
	"github.com/rapeepat/shopflow/internal/core/service"
	"github.com/rapeepat/shopflow/internal/port"
)

const (
	defaultHTTPAddr  = ":8080"
	workerCount      = 4
	eventQueueSize   = 1000
	lockWaitBound    = 10 * time.Second
	lockStaleAfter   = 30 * time.Second
	lockCapacity     = 4096
	lockSweepEvery   = 15 * time.Second
	shutdownDeadline = 5 * time.Second
)

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Backing store: MySQL when a DSN is configured, in-memory otherwise.
	var tab port.TabularStore
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN != "" {
		db, err := sql.Open("mysql", mysqlDSN)
		if err != nil {
			logger.Error("open mysql", slog.Any("error", err))
			os.Exit(1)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			logger.Error("ping mysql", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()

		adapter := storage.NewMySQLAdapter(db)
		if err := adapter.EnsureSchema(ctx); err != nil {
			logger.Error("ensure schema", slog.Any("error", err))
			os.Exit(1)
		}
		tab = adapter
		logger.Info("connected to mysql")
	} else {
		tab = storage.NewMemoryStore()
		logger.Warn("MYSQL_DSN not set, using in-memory store")
	}

	// Optional Redis idempotency cache.
	var cache port.CacheRepository
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr, PoolSize: 100})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("ping redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer rdb.Close()
		cache = storage.NewRedisAdapter(rdb)
		logger.Info("connected to redis")
	} else {
		logger.Warn("REDIS_ADDR not set, request idempotency disabled")
	}

	store := catalog.NewStore(tab)
	if err := store.Init(ctx); err != nil {
		logger.Error("init catalog store", slog.Any("error", err))
		os.Exit(1)
	}

	locks := lock.NewManager(lockWaitBound, lockStaleAfter, lockCapacity, logger)
	locks.StartSweeper(ctx, lockSweepEvery)

	res := resolver.New(store, nil)
	orderService := service.NewOrderService(store, res, locks, cache, logger, eventQueueSize)

	// Warm the predictor from order history; advisory, so a failure here
	// only logs.
	pred := predictor.New()
	if history, err := store.LoadOrders(ctx); err != nil {
		logger.Warn("load order history", slog.Any("error", err))
	} else {
		pred.Learn(history)
		logger.Info("predictor warmed", slog.Int("orders", len(history)))
	}

	// Post-commit workers: feed the predictor and leave a ledger trail.
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for ev := range orderService.Events() {
				pred.Observe(ev.Order)
				logger.Info("ledger entry",
					slog.Int("worker", id),
					slog.Int64("order_id", ev.Order.ID),
					slog.String("customer", ev.Order.Customer),
					slog.Float64("total", ev.Order.Total))
			}
		}(i)
	}
	logger.Info("started workers", slog.Int("count", workerCount))

	httpHandler := handler.NewHTTPHandler(orderService)
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	httpAddr := env("HTTP_ADDR", defaultHTTPAddr)
	httpServer := &http.Server{Addr: httpAddr, Handler: mux}

	go func() {
		logger.Info("http server listening", slog.String("addr", httpAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownDeadline)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("http server stopped")

	orderService.Close()
	wg.Wait()
	logger.Info("workers stopped")
}
