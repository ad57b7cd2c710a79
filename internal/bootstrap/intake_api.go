package bootstrap

import (
	"intake_server/adapter/in/http"
	"intake_server/config"
	"intake_server/infra/middleware"
	"intake_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
)

// NewAPI builds the fiber application with all routes registered.
func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	logLevel := logger.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = logger.LevelDebug
	}
	logger.Init(logger.Config{
		Level:   logLevel,
		Service: "intake-api",
	})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("failed to initialize dependencies")
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),

		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit: 1 * 1024 * 1024,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Health check (no auth required)
	healthHandler := http.NewHealthHandler(deps.DB, deps.Redis)
	healthHandler.Register(app)

	// API routes behind the shared key
	api := app.Group("/api/v1")
	api.Use(middleware.APIKeyAuth(cfg.APIKey))

	intakeHandler := http.NewIntakeHandler(
		deps.Intake,
		deps.StatsRepo,
		deps.FeedbackRepo,
		deps.EmailRepo,
		deps.Archive,
		deps.Tracker,
	)
	intakeHandler.Register(api)

	logger.Info("API server initialized")
	return app, cleanup, nil
}
