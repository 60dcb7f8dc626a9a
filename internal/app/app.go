package app

import (
	"context"

	"shoplive-backend/internal/auth"
	"shoplive-backend/internal/catalog"
	"shoplive-backend/internal/clock"
	"shoplive-backend/internal/config"
	"shoplive-backend/internal/database"
	"shoplive-backend/internal/events"
	"shoplive-backend/internal/holds"
	"shoplive-backend/internal/middleware"
	"shoplive-backend/internal/notify"
	"shoplive-backend/internal/promotion"
	"shoplive-backend/internal/scheduler"
	"shoplive-backend/internal/sequence"
	"shoplive-backend/internal/shipping"
	"shoplive-backend/internal/stock"
	"shoplive-backend/internal/waitlist"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Resources are the long-lived handles the entrypoint owns: connections to
// verify at startup and the scheduler to run alongside the listener.
type Resources struct {
	DB        *gorm.DB
	Rdb       *redis.Client
	Scheduler *scheduler.Scheduler
	Notifier  *notify.Publisher
}

// CreateApp builds the Fiber app with all middleware, the reservation core
// wiring, and route registration.
func CreateApp(cfg *config.Config) (*fiber.App, *Resources, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{}))

	sessionCfg := middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.Env == "production",
	}
	sessionHandler, rdb, err := middleware.Session(sessionCfg)
	if err != nil {
		return nil, nil, err
	}
	app.Use(sessionHandler)
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, nil, err
	}

	// Core wiring. The bus is the only seam between the ledgers and their
	// collaborators; ledger transactions always commit before dispatch.
	bus := events.NewBus()
	clk := clock.NewSystem()

	holdService := &holds.Service{
		DB:       db,
		Bus:      bus,
		Clock:    clk,
		Shipping: shipping.NewDefaultPolicy(),
	}
	promoEngine := promotion.NewEngine(db, bus, clk, cfg.PromotionWindow)
	waitlistService := &waitlist.Service{
		DB:       db,
		Catalog:  &catalog.GormReader{DB: db},
		Stock:    &stock.Accountant{DB: db},
		Seq:      &sequence.Allocator{Rdb: rdb},
		Bus:      bus,
		Clock:    clk,
		Promoter: promoEngine,
	}
	converter := &promotion.Converter{Holds: holdService}
	converter.Register(bus)
	advancer := &promotion.Advancer{Engine: promoEngine}
	advancer.Register(bus)

	sweeper := &scheduler.Sweeper{DB: db, Bus: bus, Clock: clk}
	res := &Resources{
		DB:  db,
		Rdb: rdb,
		Scheduler: &scheduler.Scheduler{
			Sweeper:  sweeper,
			Interval: cfg.SweepInterval,
		},
	}

	if cfg.AMQPURL != "" {
		notifier, err := notify.NewPublisher(cfg.AMQPURL, cfg.NotifyQueue)
		if err != nil {
			// The core must come up without the broker; the outbox keeps
			// the events replayable.
			log.Error().Err(err).Msg("notification bridge unavailable, continuing without it")
		} else {
			notifier.Register(bus)
			res.Notifier = notifier
		}
	}

	// --- Routes ---
	app.Get("/healthz", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "database unreachable")
		}
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "redis unreachable")
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	authHandlers := &auth.Handlers{
		UserFinder: &auth.GormUserFinder{DB: db},
		Rdb:        rdb,
		Config:     sessionCfg,
	}
	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/login", authHandlers.Login)
	authGroup.Get("/me", authHandlers.Me)
	authGroup.Delete("/logout", authHandlers.Logout)

	cartHandlers := &holds.Handlers{Service: holdService}
	cartGroup := app.Group("/api/v1/cart", middleware.RequireAuth())
	cartGroup.Get("/", cartHandlers.Summary)
	cartGroup.Delete("/", cartHandlers.Clear)
	cartGroup.Post("/items", cartHandlers.AddItem)
	cartGroup.Patch("/items/:id", cartHandlers.UpdateItem)
	cartGroup.Delete("/items/:id", cartHandlers.RemoveItem)

	reservationHandlers := &waitlist.Handlers{Service: waitlistService}
	reservationGroup := app.Group("/api/v1/reservations", middleware.RequireAuth())
	reservationGroup.Post("/", reservationHandlers.Create)
	reservationGroup.Get("/", reservationHandlers.List)
	reservationGroup.Delete("/:id", reservationHandlers.Cancel)

	return app, res, nil
}
