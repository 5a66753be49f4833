package handlers

import (
	"github.com/SAP-F-2025/cat-service/internal/services"
	"github.com/SAP-F-2025/cat-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	catHandler  *CATHandler
	itemHandler *ItemHandler
	logger      utils.Logger
}

func NewHandlerManager(serviceManager services.ServiceManager, logger utils.Logger) *HandlerManager {
	return &HandlerManager{
		catHandler:  NewCATHandler(serviceManager.CAT(), logger),
		itemHandler: NewItemHandler(serviceManager.ItemBank(), serviceManager.ImportExport(), logger),
		logger:      logger,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.Use(RequestIDMiddleware(), utils.LoggerMiddleware(hm.logger), IdentityMiddleware())

	router.GET("/health", HealthCheck)

	v1 := router.Group("/api/v1")
	{
		// Adaptive sessions
		sessions := v1.Group("/cat")
		{
			sessions.POST("/start", hm.catHandler.StartSession)
			sessions.POST("/answer", hm.catHandler.SubmitAnswer)
			sessions.POST("/finish", hm.catHandler.FinishSession)
			sessions.POST("/abandon/:session_id", hm.catHandler.AbandonSession)
			sessions.GET("/status/:session_id", hm.catHandler.GetStatus)
			sessions.GET("/results/:session_id", hm.catHandler.GetResults)
			sessions.GET("/history", hm.catHandler.GetHistory)
		}

		// Item bank
		items := v1.Group("/items")
		{
			items.POST("", hm.itemHandler.CreateItem)
			items.GET("", hm.itemHandler.ListItems)
			items.POST("/import", hm.itemHandler.ImportItems)
			items.GET("/export", hm.itemHandler.ExportItems)
			items.GET("/:id", hm.itemHandler.GetItem)
			items.PUT("/:id", hm.itemHandler.UpdateItem)
			items.POST("/:id/publish", hm.itemHandler.PublishItem)
			items.POST("/:id/retire", hm.itemHandler.RetireItem)
		}
	}
}
