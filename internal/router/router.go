package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-runner/internal/config"
	"github.com/stemsi/exstem-runner/internal/handler"
	"github.com/stemsi/exstem-runner/internal/middleware"
	"github.com/stemsi/exstem-runner/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth   *handler.AuthHandler
	Test   *handler.TestHandler
	Run    *handler.RunHandler
	Result *handler.ResultHandler
	Admin  *handler.AdminHandler
	WS     *handler.WSHandler
	System *handler.SystemHandler
}

// Guards are the shared middleware dependencies.
type Guards struct {
	Session     middleware.SessionSource
	Runs        middleware.RunLookup
	AuthLimiter *middleware.RateLimiter
}

// catalogMaxAge lets the page reuse the picker tree briefly.
const catalogMaxAge = 300

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(guards Guards, handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)

	requireSession := middleware.RequireSession(guards.Session)
	loadRun := middleware.LoadRun(guards.Runs)

	// ─── 1. Auth Group (Rate Limited) ──────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		credentials := []gin.HandlerFunc{}
		if guards.AuthLimiter != nil {
			credentials = append(credentials, guards.AuthLimiter.Middleware())
		}
		auth.POST("/login", append(credentials, handlers.Auth.Login)...)
		auth.POST("/register", append(credentials, handlers.Auth.Register)...)

		auth.GET("/me", handlers.Auth.Me)
		auth.POST("/logout", handlers.Auth.Logout)
	}

	api := router.Group("/api/v1")
	api.Use(requireSession)

	// ─── 2. Test Selection ─────────────────────────────────────────────
	{
		api.GET("/catalog", middleware.CacheControl(catalogMaxAge), handlers.Test.Catalog)
		api.GET("/system/status", handlers.System.Status)

		tests := api.Group("/tests")
		tests.Use(middleware.NoStore())
		tests.GET("/active", handlers.Test.Active)
		tests.POST("/preview", handlers.Test.Preview)
		tests.POST("", handlers.Test.Start)
		tests.POST("/:id/resume", handlers.Test.Resume)
	}

	// ─── 3. Runs ───────────────────────────────────────────────────────
	runs := api.Group("/runs/:id")
	runs.Use(middleware.NoStore(), loadRun)
	{
		runs.GET("", handlers.Run.Get)
		runs.DELETE("", handlers.Run.Cancel)
		runs.POST("/select", handlers.Run.Select)
		runs.POST("/next", handlers.Run.Next)
		runs.POST("/prev", handlers.Run.Prev)
		runs.POST("/goto", handlers.Run.GoTo)
		runs.POST("/flag", handlers.Run.Flag)
		runs.POST("/submit", handlers.Run.Submit)
		runs.POST("/end", handlers.Run.End)
		runs.POST("/retry", handlers.Run.Retry)
		runs.POST("/pause", handlers.Run.Pause)
		runs.POST("/resume", handlers.Run.Resume)
	}

	// ─── 4. Results ────────────────────────────────────────────────────
	{
		api.GET("/results", handlers.Result.List)
		api.GET("/results/:id", handlers.Result.Detail)
	}

	// ─── 5. WebSocket Group ────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(requireSession)
	{
		ws.GET("/runs/:id/stream", loadRun, handlers.WS.RunStream)
	}

	// ─── 6. Admin Group ────────────────────────────────────────────────
	adminAPI := api.Group("/admin")
	adminAPI.Use(middleware.RequireAdmin())
	{
		adminAPI.GET("/users", handlers.Admin.ListUsers)
		adminAPI.PUT("/users/:id", handlers.Admin.UpdateUser)
		adminAPI.DELETE("/users/:id", handlers.Admin.DeleteUser)

		adminAPI.GET("/questions", handlers.Admin.ListQuestions)
		adminAPI.GET("/questions/:id", handlers.Admin.GetQuestion)
		adminAPI.POST("/questions", handlers.Admin.CreateQuestion)
		adminAPI.PUT("/questions/:id", handlers.Admin.UpdateQuestion)
		adminAPI.DELETE("/questions/:id", handlers.Admin.DeleteQuestion)
	}

	return router
}
