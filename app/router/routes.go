// Package router provides HTTP routing, middleware configuration, and server setup for the orchestrator API
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voteflow/voteflow/app/dto"
	"github.com/voteflow/voteflow/app/handlers"
	"github.com/voteflow/voteflow/app/middleware"
	"github.com/voteflow/voteflow/config"
	"github.com/voteflow/voteflow/utils"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app            *fiber.App
	cfg            *config.Config
	wizardHandler  *handlers.WizardHandler
	consoleHandler *handlers.ConsoleHandler
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(cfg *config.Config, wizardHandler *handlers.WizardHandler, consoleHandler *handlers.ConsoleHandler) Router {
	app := fiber.New(fiber.Config{
		AppName:      "VoteFlow Orchestrator API",
		ServerHeader: "VoteFlow",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:            app,
		cfg:            cfg,
		wizardHandler:  wizardHandler,
		consoleHandler: consoleHandler,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.setupMiddleware()

	r.app.Get("/health", r.healthCheck)
	r.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := r.app.Group("/api/v1")

	api.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: &dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
	}))

	api.Get("/plans", r.wizardHandler.ListPlans)

	drafts := api.Group("/drafts", middleware.RequireOperator())
	drafts.Post("/", r.wizardHandler.CreateDraft)
	drafts.Get("/:id", r.wizardHandler.Status)
	drafts.Delete("/:id", r.wizardHandler.Cancel)
	drafts.Post("/:id/plan", r.wizardHandler.SelectPlan)
	drafts.Post("/:id/voters", r.wizardHandler.Ingest)
	drafts.Post("/:id/message", r.wizardHandler.Compose)
	drafts.Post("/:id/back", r.wizardHandler.StepBack)
	drafts.Post("/:id/payment", r.wizardHandler.DispatchPayment)
	drafts.Post("/:id/payment/verify", r.wizardHandler.SubmitPaymentReference)

	console := api.Group("/console", middleware.RequireOperator())
	console.Get("/", r.consoleHandler.Snapshot)
	console.Post("/telemetry", r.consoleHandler.OpenTelemetry)
	console.Delete("/telemetry", r.consoleHandler.CloseTelemetry)
	console.Get("/campaigns", r.consoleHandler.ListCampaigns)
	console.Post("/campaigns/:id/stop", r.consoleHandler.StopCampaign)
	console.Get("/drafts/:id/export", r.consoleHandler.ExportVoters)

	r.app.Use(r.notFoundHandler)
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins: r.cfg.Server.AllowedOrigins,
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"X-Requested-With",
			"X-Request-ID",
			middleware.OperatorHeader,
		},
		ExposeHeaders: []string{
			"X-Request-ID",
		},
		MaxAge: 3600,
	}))

	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","pid":"${pid}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/health"
		},
	}))

	r.app.Use(middleware.Metrics())

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				c.Locals("requestid"),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"service":   "voteflow-orchestrator",
		},
	})
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "Endpoint not found",
		Error: &dto.ErrorDetail{
			Code: "NOT_FOUND",
		},
	})
}

// errorHandler handles Fiber errors that escape the handlers
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if fiberErr, ok := err.(*fiber.Error); ok {
		code = fiberErr.Code
	}
	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: err.Error(),
		Error: &dto.ErrorDetail{
			Code: "REQUEST_FAILED",
		},
	})
}

// generateRequestID creates a random hex request identifier
func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "req_" + utils.UTCNow().Format("20060102150405")
	}
	return hex.EncodeToString(bytes)
}
