package routes

import (
    "net/http"

    "github.com/gin-gonic/gin"
    "github.com/ternarybob/arbor"

    "github.com/zaqqye/uiflow_backend/internal/config"
    "github.com/zaqqye/uiflow_backend/internal/controllers"
    "github.com/zaqqye/uiflow_backend/internal/middleware"
    "github.com/zaqqye/uiflow_backend/internal/ws"
)

// Services are the long-lived components the handlers call into.
type Services struct {
    Generator controllers.ScreenGenerator
    Repo      controllers.ScreenRepository
    Exporter  controllers.FeatureExporter
    Hub       *ws.DocumentHub
    Logger    arbor.ILogger
}

func Register(r *gin.Engine, cfg *config.Config, svc Services) {
    r.GET("/healthz", func(c *gin.Context) {
        c.JSON(http.StatusOK, gin.H{"status": "ok"})
    })

    cfgCtrl := &controllers.ConfigController{Cfg: cfg}
    r.GET("/api/v1/config/public", cfgCtrl.Public)

    screensCtrl := &controllers.ScreensController{
        Generator: svc.Generator,
        Repo:      svc.Repo,
        Cfg:       cfg,
        Logger:    svc.Logger,
    }
    if svc.Hub != nil {
        screensCtrl.Events = svc.Hub
    }
    exportCtrl := &controllers.ExportController{Exporter: svc.Exporter}

    authMW := middleware.AuthMiddleware(middleware.AuthConfig{JWTSecret: cfg.JWTSecret})
    api := r.Group("/api/v1", authMW)
    {
        docs := api.Group("/documents/:id")
        {
            docs.POST("/screens/generate", screensCtrl.Generate)
            docs.GET("/screens", screensCtrl.Get)
            docs.PUT("/screens/:screenId", screensCtrl.UpdateScreen)
            docs.PUT("/app-flow", screensCtrl.UpdateAppFlow)
            docs.POST("/app-flow/steps", screensCtrl.AddStep)
            docs.PUT("/app-flow/steps/:stepId", screensCtrl.EditStep)
            docs.DELETE("/app-flow/steps/:stepId", screensCtrl.DeleteStep)
        }
        api.DELETE("/app-flows/:id", screensCtrl.DeleteAppFlow)
        api.POST("/boards/:boardId/export", exportCtrl.Export)

        if svc.Hub != nil {
            api.GET("/ws/documents/:id", ws.DocumentHandler(svc.Hub))
        }
    }
}
