package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/lekenzi/QuizNexus/internal/pkg/errors"
	"github.com/lekenzi/QuizNexus/internal/service"
	"github.com/lekenzi/QuizNexus/internal/service/jobs"
)

// JobTrigger запускает зарегистрированную задачу немедленно
type JobTrigger interface {
	RunNow(ctx context.Context, name string) error
	Jobs() []string
}

// AdminHandler обрабатывает служебные запросы администратора
type AdminHandler struct {
	jobs  JobTrigger
	stats *service.StatsService
}

// NewAdminHandler создает обработчик администратора
func NewAdminHandler(jobs JobTrigger, stats *service.StatsService) *AdminHandler {
	return &AdminHandler{jobs: jobs, stats: stats}
}

// ListJobs возвращает имена зарегистрированных задач
func (h *AdminHandler) ListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": h.jobs.Jobs()})
}

// RunJob выполняет задачу синхронно и возвращает результат
func (h *AdminHandler) RunJob(c *gin.Context) {
	name := c.Param("name")
	err := h.jobs.RunNow(c.Request.Context(), name)
	switch {
	case err == nil:
		log.Printf("[AdminHandler] Задача %s выполнена по запросу администратора", name)
		c.JSON(http.StatusOK, gin.H{"job": name, "status": "completed"})
	case errors.Is(err, jobs.ErrUnknownJob):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, jobs.ErrJobRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "error_type": "job_running"})
	default:
		log.Printf("[AdminHandler] Задача %s завершилась с ошибкой: %v", name, err)
		c.JSON(http.StatusInternalServerError, gin.H{"job": name, "status": "failed", "error": err.Error()})
	}
}

// ExportUserStats выгружает статистику пользователей и рассылает ее администраторам
func (h *AdminHandler) ExportUserStats(c *gin.Context) {
	result, err := h.stats.ExportUserStats(c.Request.Context())
	if err != nil {
		log.Printf("[AdminHandler] Ошибка выгрузки статистики: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export user statistics"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetUserStats возвращает статистику одного пользователя
func (h *AdminHandler) GetUserStats(c *gin.Context) {
	stats, err := h.stats.GetUserStats(c.Request.Context(), c.MustGet(ParamUserID).(uint))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		log.Printf("[AdminHandler] Ошибка получения статистики: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
