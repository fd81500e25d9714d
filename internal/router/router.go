package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pomobot/backend/internal/handler"
	"pomobot/backend/internal/middleware"
)

func New(pomodoroHandler *handler.PomodoroHandler, corsOrigins []string, adminToken string) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), middleware.CORS(corsOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	pomodoro := api.Group("/pomodoro")

	pomodoro.GET("/state", pomodoroHandler.GetState)
	pomodoro.POST("/start", pomodoroHandler.Start)
	pomodoro.POST("/pause", pomodoroHandler.Pause)
	pomodoro.POST("/reset", pomodoroHandler.Reset)
	pomodoro.POST("/skip", pomodoroHandler.Skip)

	pomodoro.GET("/config", pomodoroHandler.GetConfig)
	pomodoro.PUT("/config", pomodoroHandler.UpdateConfig)
	pomodoro.POST("/config/reset", pomodoroHandler.ResetConfig)

	pomodoro.GET("/stats/today", pomodoroHandler.TodayStats)
	pomodoro.GET("/stats/all", pomodoroHandler.AllStats)
	pomodoro.GET("/stats/range", pomodoroHandler.StatsForRange)
	pomodoro.GET("/stats/day/:date", pomodoroHandler.StatsForDate)

	pomodoro.GET("/events", pomodoroHandler.Events)

	admin := pomodoro.Group("")
	admin.Use(middleware.AdminToken(adminToken))
	admin.DELETE("/stats/day/:date", pomodoroHandler.ClearStatsForDate)
	admin.DELETE("/stats", pomodoroHandler.ClearAllStats)

	return engine
}
