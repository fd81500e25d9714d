package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "pomobot/backend/internal/errors"
	"pomobot/backend/internal/model"
	"pomobot/backend/internal/service"
)

type PomodoroHandler struct {
	timer   *service.TimerService
	configs *service.ConfigService
	stats   *service.StatsService
}

func NewPomodoroHandler(timer *service.TimerService, configs *service.ConfigService, stats *service.StatsService) *PomodoroHandler {
	return &PomodoroHandler{timer: timer, configs: configs, stats: stats}
}

// ===== Timer state & control =====

func (h *PomodoroHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"state": h.timer.GetState()})
}

func (h *PomodoroHandler) Start(c *gin.Context) {
	h.timer.Start()
	c.JSON(http.StatusOK, gin.H{"message": "timer started", "state": h.timer.GetState()})
}

func (h *PomodoroHandler) Pause(c *gin.Context) {
	h.timer.Pause()
	c.JSON(http.StatusOK, gin.H{"message": "timer paused", "state": h.timer.GetState()})
}

func (h *PomodoroHandler) Reset(c *gin.Context) {
	h.timer.Reset()
	c.JSON(http.StatusOK, gin.H{"message": "timer reset", "state": h.timer.GetState()})
}

func (h *PomodoroHandler) Skip(c *gin.Context) {
	h.timer.Skip()
	c.JSON(http.StatusOK, gin.H{"message": "skipped to next phase", "state": h.timer.GetState()})
}

// ===== Configuration =====

func (h *PomodoroHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"config": h.configs.GetConfig(c.Request.Context())})
}

func (h *PomodoroHandler) UpdateConfig(c *gin.Context) {
	var update model.ConfigUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		writeError(c, apperrors.BadRequest("invalid_json", "invalid request body"))
		return
	}

	cfg, err := h.timer.UpdateConfig(c.Request.Context(), update)
	if err != nil {
		var vErr *model.ValidationError
		if errors.As(err, &vErr) {
			writeError(c, apperrors.Validation(vErr.Error(), gin.H{"fields": vErr.Fields}))
			return
		}
		writeError(c, apperrors.Internal("failed to update configuration"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "configuration updated", "config": cfg})
}

func (h *PomodoroHandler) ResetConfig(c *gin.Context) {
	cfg, err := h.configs.ResetToDefaults(c.Request.Context())
	if err != nil {
		writeError(c, apperrors.Internal("failed to reset configuration"))
		return
	}
	h.timer.ReloadConfig(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "configuration reset to defaults", "config": cfg})
}

// ===== Statistics =====

func (h *PomodoroHandler) TodayStats(c *gin.Context) {
	stats, err := h.stats.GetTodayStats(c.Request.Context())
	if err != nil {
		writeError(c, apperrors.Internal("failed to get today's statistics"))
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *PomodoroHandler) StatsForDate(c *gin.Context) {
	date, ok := dateParam(c, c.Param("date"))
	if !ok {
		return
	}
	stats, err := h.stats.GetStatsForDate(c.Request.Context(), date)
	if err != nil {
		writeError(c, apperrors.Internal("failed to get statistics"))
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *PomodoroHandler) StatsForRange(c *gin.Context) {
	start, ok := dateParam(c, c.Query("start"))
	if !ok {
		return
	}
	end, ok := dateParam(c, c.Query("end"))
	if !ok {
		return
	}

	daily, err := h.stats.GetStatsForRange(c.Request.Context(), start, end)
	if err != nil {
		writeError(c, apperrors.Internal("failed to get statistics range"))
		return
	}

	totalSessions := 0
	totalWorkTime := 0
	for _, day := range daily {
		totalSessions += day.SessionsCompleted
		totalWorkTime += day.TotalWorkTime
	}

	c.JSON(http.StatusOK, gin.H{
		"startDate":     start,
		"endDate":       end,
		"totalSessions": totalSessions,
		"totalWorkTime": totalWorkTime,
		"dailyStats":    daily,
	})
}

func (h *PomodoroHandler) AllStats(c *gin.Context) {
	all, err := h.stats.GetAllStats(c.Request.Context())
	if err != nil {
		writeError(c, apperrors.Internal("failed to get all statistics"))
		return
	}
	c.JSON(http.StatusOK, all)
}

func (h *PomodoroHandler) ClearStatsForDate(c *gin.Context) {
	date, ok := dateParam(c, c.Param("date"))
	if !ok {
		return
	}
	if err := h.stats.ClearStatsForDate(c.Request.Context(), date); err != nil {
		writeError(c, apperrors.Internal("failed to clear statistics"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "statistics cleared for " + date})
}

func (h *PomodoroHandler) ClearAllStats(c *gin.Context) {
	if err := h.stats.ClearAllStats(c.Request.Context()); err != nil {
		writeError(c, apperrors.Internal("failed to clear statistics"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "all statistics cleared"})
}

// ===== Event stream =====

// Events streams the engine's notifications over SSE. A late joiner first
// receives a snapshot of the current state.
func (h *PomodoroHandler) Events(c *gin.Context) {
	events := h.timer.Subscribe(c.Request.Context())

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.SSEvent("state", gin.H{"state": h.timer.GetState()})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		event, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent(string(event.Type), event.Payload)
		return true
	})
}

// dateParam validates a YYYY-MM-DD value, writing a 400 when it is
// missing or malformed.
func dateParam(c *gin.Context, raw string) (string, bool) {
	if raw == "" {
		writeError(c, apperrors.BadRequest("invalid_date", "date is required (YYYY-MM-DD)"))
		return "", false
	}
	if _, err := time.Parse("2006-01-02", raw); err != nil {
		writeError(c, apperrors.BadRequest("invalid_date", "invalid date format, use YYYY-MM-DD"))
		return "", false
	}
	return raw, true
}
