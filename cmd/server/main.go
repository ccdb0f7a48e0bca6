package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"event-ticketing/config"
	"event-ticketing/internal/cache"
	"event-ticketing/internal/database"
	"event-ticketing/internal/handler"
	"event-ticketing/internal/middleware"
	"event-ticketing/internal/queue"
	"event-ticketing/internal/repository"
	"event-ticketing/internal/service"
	"event-ticketing/internal/worker"
	"event-ticketing/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	defer logger.Sync()
	log := logger.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config.LoadConfig()); err != nil {
		log.Error("server exited", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// stores 依設定選出的儲存層
type stores struct {
	events    repository.EventRepository
	bookings  repository.BookingRepository
	inventory repository.TicketInventory
	mirror    service.InventoryMirror
	queue     queue.BookingQueue
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.WithComponent("main")

	var pool *pgxpool.Pool
	if cfg.App.StoreBackend == config.BackendPostgres {
		p, err := database.InitDatabase(ctx, &cfg.Database)
		if err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}
		defer p.Close()
		if err := database.EnsureSchema(ctx, p); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		pool = p
	}

	var rdb *redis.Client
	if cfg.NeedsRedis() {
		r, err := database.InitRedis(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("initialize redis: %w", err)
		}
		defer r.Close()
		rdb = r
	}

	s, err := buildStores(ctx, cfg, pool, rdb)
	if err != nil {
		return err
	}

	bookingService := service.NewBookingService(s.inventory, s.bookings, s.queue)
	eventService := service.NewEventService(s.events, s.mirror)
	notificationWorker := worker.NewNotificationWorker(worker.NewLogNotifier(), s.queue, worker.DefaultMaxAttempts)

	if gin.Mode() != gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	auth := middleware.Authenticate(cfg.App.JWTSecret)
	handler.RegisterHealthRoutes(router)
	handler.NewEventHandler(eventService).RegisterRoutes(router, auth)
	handler.NewBookingHandler(bookingService).RegisterRoutes(router, auth)

	srv := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.App.StoreBackend),
			zap.String("inventory", cfg.App.InventoryStore),
			zap.String("queue", cfg.App.QueueBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return notificationWorker.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.App.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func buildStores(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, rdb *redis.Client) (*stores, error) {
	s := &stores{}

	switch cfg.App.StoreBackend {
	case config.BackendPostgres:
		s.events = repository.NewEventRepository(pool)
		s.bookings = repository.NewBookingRepository(pool)
	case config.BackendMemory:
		s.events = repository.NewMemoryEventRepository()
		s.bookings = repository.NewMemoryBookingRepository()
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.App.StoreBackend)
	}

	switch cfg.App.InventoryStore {
	case config.BackendRedis:
		inventory := cache.NewRedisEventInventory(rdb)
		if err := warmAll(ctx, s.events, inventory); err != nil {
			return nil, fmt.Errorf("warm up inventory: %w", err)
		}
		s.inventory = inventory
		s.mirror = inventory
	case config.BackendPostgres, config.BackendMemory:
		// 庫存跟著活動儲存層
		s.inventory = s.events
	default:
		return nil, fmt.Errorf("unknown INVENTORY_BACKEND %q", cfg.App.InventoryStore)
	}

	switch cfg.App.QueueBackend {
	case config.BackendMemory:
		s.queue = queue.NewMemoryBookingQueue(cfg.App.QueueBufferSize)
	case config.BackendRedis:
		q, err := queue.NewRedisStreamBookingQueue(ctx, rdb, "", nil)
		if err != nil {
			return nil, fmt.Errorf("initialize notification queue: %w", err)
		}
		s.queue = q
	default:
		return nil, fmt.Errorf("unknown QUEUE_BACKEND %q", cfg.App.QueueBackend)
	}

	return s, nil
}

// warmAll 啟動時把既有活動同步到 Redis，已存在的庫存不覆蓋
func warmAll(ctx context.Context, events repository.EventRepository, inventory cache.RedisEventInventory) error {
	list, err := events.List(ctx, nil)
	if err != nil {
		return err
	}
	for _, event := range list {
		if err := inventory.WarmUp(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
