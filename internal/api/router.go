package api

import (
	"errors"

	"hisabkitab/docs"
	"hisabkitab/internal/api/handlers"
	"hisabkitab/pkg/auth"
	"hisabkitab/pkg/config"
	"hisabkitab/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"
)

func SetupRouter(
	authHandler *handlers.AuthHandler,
	importHandler *handlers.ImportHandler,
	txHandler *handlers.TransactionHandler,
	analyticsHandler *handlers.AnalyticsHandler,
	jwtManager *auth.JWTManager,
	server config.ServerConfig,
	appLogger *zap.Logger,
) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "hisabkitab",
		BodyLimit:    server.BodyLimit,
		ReadTimeout:  server.ReadTimeout,
		WriteTimeout: server.WriteTimeout,
		ErrorHandler: errorHandler(appLogger),
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(logger.New())

	// Importing docs registers the swagger spec.
	_ = docs.SwaggerInfo
	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/refresh", authHandler.RefreshToken)

	requireAuth := middleware.AuthMiddleware(jwtManager, appLogger)

	imports := api.Group("/imports", requireAuth)
	imports.Post("/upload", importHandler.Upload)
	imports.Get("/jobs", importHandler.ListJobs)
	imports.Get("/jobs/:id", importHandler.GetJob)

	// Fixed paths go before /:id.
	transactions := api.Group("/transactions", requireAuth)
	transactions.Get("", txHandler.List)
	transactions.Get("/categories", txHandler.Categories)
	transactions.Get("/export", txHandler.Export)
	transactions.Post("/bulk-delete", txHandler.BulkDelete)
	transactions.Get("/:id", txHandler.Get)
	transactions.Patch("/:id", txHandler.Update)
	transactions.Delete("/:id", txHandler.Delete)

	analytics := api.Group("/analytics", requireAuth)
	analytics.Get("/monthly", analyticsHandler.Monthly)
	analytics.Get("/categories", analyticsHandler.Categories)
	analytics.Get("/merchants", analyticsHandler.Merchants)
	analytics.Get("/cashflow", analyticsHandler.Cashflow)

	return app
}

// errorHandler passes fiber errors through and hides anything else behind a
// generic message.
func errorHandler(appLogger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var e *fiber.Error
		if errors.As(err, &e) {
			return c.Status(e.Code).JSON(fiber.Map{
				"error": e.Message,
			})
		}

		appLogger.Error("Unhandled request error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
}
