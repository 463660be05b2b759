package router

import (
	"dca-scanner/api/handler"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, scanH *handler.ScanHandler) {
	// 核心接口
	r.GET("/", scanH.Live)
	r.POST("/analyze", scanH.Analyze)

	api := r.Group("/api/v1")
	{
		scan := api.Group("/scan")
		{
			scan.POST("/upload", scanH.Upload)
		}
		api.GET("/scans", scanH.ListScans)
		findings := api.Group("/findings")
		{
			findings.GET("/search", scanH.SearchFindings)
		}
	}
}
