// Package main provides the InterfaceAgent API server implementation.
package main

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/stackconsult/interfaceAgent/pkg/audit"
	"github.com/stackconsult/interfaceAgent/pkg/eventbus"
	"github.com/stackconsult/interfaceAgent/pkg/orchestrator"
	"github.com/stackconsult/interfaceAgent/pkg/persistence"
	"github.com/stackconsult/interfaceAgent/pkg/registry"
	"github.com/stackconsult/interfaceAgent/pkg/services"
	"github.com/stackconsult/interfaceAgent/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	validate    *validator.Validate
	stepTimeout time.Duration
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		registry:    registry,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// WithStepTimeout overrides the default per-step execution timeout.
func (a *API) WithStepTimeout(timeout time.Duration) *API {
	a.stepTimeout = timeout

	return a
}

func (a *API) App() *fiber.App {
	auditLog := audit.NewLogger(a.persistence.AuditRepository(), a.logger)

	executor := orchestrator.NewExecutor(a.persistence, a.registry, a.eventBus, a.logger)
	if a.stepTimeout > 0 {
		executor.WithStepTimeout(a.stepTimeout)
	}

	agentService := services.NewAgent(a.persistence, a.registry, a.eventBus, auditLog, a.logger)
	pipelineService := services.NewPipeline(a.persistence, auditLog, a.logger)
	executionService := services.NewExecution(a.persistence, executor, a.logger)

	handlers := web.NewAPIHandlers(agentService, pipelineService, executionService, auditLog, a.validate, a.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("InterfaceAgent API")
	})

	handlers.RegisterRoutes(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
