package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/sirawit8921/massage-shop-reservation/internal/config"
	"github.com/sirawit8921/massage-shop-reservation/internal/database"
	"github.com/sirawit8921/massage-shop-reservation/internal/handler"
	"github.com/sirawit8921/massage-shop-reservation/internal/middleware"
	"github.com/sirawit8921/massage-shop-reservation/internal/notify"
	"github.com/sirawit8921/massage-shop-reservation/internal/queue"
	"github.com/sirawit8921/massage-shop-reservation/internal/repository"
	"github.com/sirawit8921/massage-shop-reservation/internal/router"
	"github.com/sirawit8921/massage-shop-reservation/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()
	rcfg, err := config.LoadReservationConfig()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis is optional unless it also holds the collection.
	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		if cfg.Persistence == "redis" {
			log.Fatalf("redis: %v", err)
		}
		log.Printf("redis unavailable, rate limit and cache disabled: %v", err)
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	persist, closeStore, err := openPersistence(ctx, cfg, rdb)
	if err != nil {
		log.Fatalf("persistence: %v", err)
	}
	defer closeStore()

	store := service.NewReservationStore(persist, service.Rules{
		MinAdvance:          rcfg.MinAdvance,
		CheckinWindow:       rcfg.CheckinWindow,
		CheckinRadiusMeters: rcfg.CheckinRadiusMeters,
		DefaultVenue:        rcfg.DefaultVenue,
		Location:            rcfg.Location,
		Schedule: service.Schedule{
			OpenHour:     rcfg.OpenHour,
			CloseHour:    rcfg.CloseHour,
			SlotDuration: rcfg.SlotDuration,
		},
	})

	var pub handler.EventPublisher
	if cfg.RabbitURL != "" {
		pub = queue.NewPublisher(cfg.RabbitURL)
		go runConsumer(ctx, cfg, rcfg)
	} else {
		log.Printf("RABBITMQ_URL not set, reservation events disabled")
	}

	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb)
	h := handler.NewReservationHandler(store, pub, cache)

	if cfg.ExpirySchedule != "" {
		c := cron.New()
		_, err := c.AddFunc(cfg.ExpirySchedule, func() {
			expired, err := h.ExpireMissed(ctx)
			if err != nil {
				log.Printf("expiry-job: %v", err)
				return
			}
			if len(expired) > 0 {
				log.Printf("expiry-job: cancelled %d reservation(s)", len(expired))
			}
		})
		if err != nil {
			log.Fatalf("invalid EXPIRY_SCHEDULE %q: %v", cfg.ExpirySchedule, err)
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	router.RegisterRoutes(e, router.Deps{
		Reservations: h,
		JWTSecret:    cfg.JWTSecret,
		RateLimit:    middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		Cache:        cache,
	})

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s, persistence=%s)", addr, cfg.Env, cfg.Persistence)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// openPersistence builds the collection backend named by PERSISTENCE.  The
// returned func releases it.
func openPersistence(ctx context.Context, cfg config.Config, rdb *redis.Client) (service.Persistence, func(), error) {
	noop := func() {}
	switch cfg.Persistence {
	case "memory":
		return repository.NewMemoryStore(), noop, nil
	case "file":
		return repository.NewFileStore(cfg.FilePath), noop, nil
	case "redis":
		return repository.NewRedisStore(rdb, cfg.CollectionKey), noop, nil
	case "mysql", "postgres":
		dsn := cfg.DatabaseURL
		if cfg.Persistence == "mysql" {
			dsn = database.MySQLDSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		} else if dsn == "" {
			return nil, noop, errors.New("DATABASE_URL is required for postgres")
		}
		db, err := database.Open(cfg.Persistence, dsn)
		if err != nil {
			return nil, noop, err
		}
		repo, err := repository.NewReservationRepo(db, cfg.Persistence)
		if err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, noop, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, func() { _ = db.Close() }, nil
	}
	return nil, noop, fmt.Errorf("unknown PERSISTENCE %q", cfg.Persistence)
}

// runConsumer writes the audit log and, when Twilio is configured, texts
// confirmations for new reservations.
func runConsumer(ctx context.Context, cfg config.Config, rcfg config.ReservationConfig) {
	var n queue.Notifier
	if sender := notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom); sender != nil {
		n = notify.NewSMSNotifier(sender, rcfg.Location, rcfg.CheckinWindow)
	}
	consumer := queue.NewConsumer(cfg.RabbitURL, cfg.LogDir, n)
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("reservation-consumer: %v", err)
	}
}
