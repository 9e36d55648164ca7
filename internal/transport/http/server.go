package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"scholarai/internal/bootstrap"
	"scholarai/internal/transport/http/handler"
	"scholarai/internal/transport/http/middleware"
)

// maxMultipartMemory bounds how much of a PDF upload gin keeps in memory.
const maxMultipartMemory = 32 << 20

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.MaxMultipartMemory = maxMultipartMemory
	router.Use(middleware.RequestLog(app.Log), gin.Recovery())
	router.Use(cors.New(corsConfig(app.Config.AllowedOrigins())))

	svc := app.Services
	healthHandler := handler.NewHealthHandler(app)
	authHandler := handler.NewAuthHandler(svc.Auth)
	projectHandler := handler.NewProjectHandler(svc.Projects)
	paperHandler := handler.NewPaperHandler(svc.Research)
	documentHandler := handler.NewDocumentHandler(svc.Documents)
	prototypeHandler := handler.NewPrototypeHandler(svc.Prototypes)
	jobHandler := handler.NewJobHandler(svc.Jobs)

	router.GET("/healthz", healthHandler.Check)

	requireAuth := middleware.AuthJWT(app.Config.Auth.JWTSecret, svc.Auth, handler.IsForbidden)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/logout", authHandler.Logout)
	authGroup.GET("/me", requireAuth, authHandler.Me)

	projects := v1.Group("/projects", requireAuth)
	projects.POST("", projectHandler.Create)
	projects.GET("", projectHandler.List)
	projects.GET("/:id", projectHandler.Get)
	projects.PATCH("/:id", projectHandler.Update)
	projects.DELETE("/:id", projectHandler.Delete)
	projects.GET("/:id/sections", projectHandler.Sections)

	papers := v1.Group("/papers", requireAuth)
	papers.POST("", paperHandler.Create)
	papers.GET("", paperHandler.List)
	papers.POST("/ingest", paperHandler.Ingest)
	papers.POST("/upload", paperHandler.Upload)
	papers.POST("/search", paperHandler.Search)
	papers.POST("/bulk-ingest", paperHandler.BulkIngest)
	papers.GET("/:id", paperHandler.Get)
	papers.DELETE("/:id", paperHandler.Delete)

	documents := v1.Group("/documents", requireAuth)
	documents.POST("", documentHandler.Create)
	documents.GET("", documentHandler.List)
	documents.GET("/:id", documentHandler.Get)
	documents.PATCH("/:id", documentHandler.Update)
	documents.DELETE("/:id", documentHandler.Delete)
	documents.POST("/:id/generate", documentHandler.Generate)
	documents.POST("/:id/generate/:section", documentHandler.GenerateSection)
	documents.GET("/:id/export", documentHandler.Export)

	prototypes := v1.Group("/prototypes", requireAuth)
	prototypes.POST("", prototypeHandler.Create)
	prototypes.GET("", prototypeHandler.List)
	prototypes.GET("/:id", prototypeHandler.Get)
	prototypes.PATCH("/:id", prototypeHandler.Update)
	prototypes.DELETE("/:id", prototypeHandler.Delete)
	prototypes.POST("/:id/build", prototypeHandler.Build)
	prototypes.GET("/:id/status", prototypeHandler.Status)
	prototypes.GET("/:id/download", prototypeHandler.Download)

	v1.GET("/jobs/:id", requireAuth, jobHandler.Get)

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowOrigins = nil
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	}
	return cfg
}
