// internal/api/router.go
package api

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/TutorMindMCP/internal/config"
	"github.com/Corphon/TutorMindMCP/internal/di"
	"github.com/Corphon/TutorMindMCP/internal/services"
)

// SetupRouter 配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()

	// 只从容器获取服务，不再创建新实例
	container := di.GetContainer()

	tutoringService, ok := container.Get("tutoring").(*services.TutoringService)
	if !ok {
		return nil, fmt.Errorf("导学服务未正确初始化")
	}

	knowledgeService, ok := container.Get("knowledge").(*services.KnowledgeService)
	if !ok {
		return nil, fmt.Errorf("知识库服务未正确初始化")
	}

	recordsService, ok := container.Get("records").(*services.RecordsService)
	if !ok {
		return nil, fmt.Errorf("学习记录服务未正确初始化")
	}

	guidanceService, ok := container.Get("guidance").(*services.GuidanceService)
	if !ok {
		return nil, fmt.Errorf("导学步骤服务未正确初始化")
	}

	uploadDir := filepath.Join(cfg.DataDir, "uploads")
	handler := NewHandler(tutoringService, knowledgeService, recordsService, guidanceService, uploadDir)
	wsManager := NewWSManager()

	r := gin.Default()

	// 启用CORS
	r.Use(corsMiddleware())

	// HTTPS重定向（生产环境）
	if !cfg.DebugMode {
		r.Use(func(c *gin.Context) {
			if c.Request.Header.Get("X-Forwarded-Proto") != "https" {
				c.Redirect(http.StatusPermanentRedirect,
					"https://"+c.Request.Host+c.Request.URL.Path)
				return
			}
			c.Next()
		})
	}

	// 上传文件静态服务
	r.Static("/uploads", uploadDir)

	// WebSocket 支持
	r.GET("/ws/session/:session_id", handler.SessionWebSocket(wsManager))

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	{
		// ===============================
		// 采集相关路由
		// ===============================
		captureGroup := api.Group("/capture")
		{
			captureGroup.POST("/text", handler.CaptureText)
			captureGroup.POST("/image", handler.CaptureImage)
			captureGroup.POST("/audio", handler.CaptureAudio)
		}

		// ===============================
		// 会话相关路由
		// ===============================
		sessionGroup := api.Group("/session")
		{
			sessionGroup.POST("/message", handler.SendSessionMessage)
			sessionGroup.GET("/history/:session_id", handler.GetSessionHistory)
			sessionGroup.DELETE("/:session_id", handler.ClearSession)
		}

		// ===============================
		// 学习记录相关路由
		// ===============================
		api.POST("/records", handler.AddRecord)
		api.GET("/records/statistics/:user_id", handler.GetStatistics)
		api.GET("/records/:user_id", handler.GetRecords)

		// ===============================
		// 知识库相关路由
		// ===============================
		knowledgeGroup := api.Group("/knowledge")
		{
			knowledgeGroup.POST("/search", handler.SearchKnowledge)
			knowledgeGroup.POST("", handler.AddKnowledge)
		}

		// ===============================
		// 导学步骤相关路由
		// ===============================
		guidanceGroup := api.Group("/guidance")
		{
			guidanceGroup.POST("", handler.GenerateGuidance)
			guidanceGroup.GET("/:session_id", handler.GetGuidanceSession)
		}

		// 健康检查
		api.GET("/health", handler.Health)
	}

	return r, nil
}

// corsMiddleware 实现跨域资源共享
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
