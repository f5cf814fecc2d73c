package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lekenzi/QuizNexus/internal/handler/dto"
	"github.com/lekenzi/QuizNexus/internal/middleware"
	apperrors "github.com/lekenzi/QuizNexus/internal/pkg/errors"
	"github.com/lekenzi/QuizNexus/internal/service"
)

// UserHandler обрабатывает запросы пользователя: дашборд, настройки, ответы
type UserHandler struct {
	dashboard   *service.DashboardService
	preferences *service.PreferenceService
	submissions *service.SubmissionService
}

// NewUserHandler создает новый обработчик пользователей
func NewUserHandler(
	dashboard *service.DashboardService,
	preferences *service.PreferenceService,
	submissions *service.SubmissionService,
) *UserHandler {
	return &UserHandler{
		dashboard:   dashboard,
		preferences: preferences,
		submissions: submissions,
	}
}

// GetDashboard возвращает викторины пользователя с его результатами
func (h *UserHandler) GetDashboard(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	quizzes, err := h.dashboard.GetUserQuizzes(c.Request.Context(), userID)
	if err != nil {
		h.handleUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quizzes": quizzes})
}

// GetPreferences возвращает настройки уведомлений
func (h *UserHandler) GetPreferences(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	pref, err := h.preferences.Get(c.Request.Context(), userID)
	if err != nil {
		h.handleUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPreferenceResponse(pref))
}

// UpdatePreferences частично обновляет настройки уведомлений
func (h *UserHandler) UpdatePreferences(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	var req service.PreferenceInput
	if !bindJSON(c, &req) {
		return
	}
	pref, err := h.preferences.Update(c.Request.Context(), userID, req)
	if err != nil {
		h.handleUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPreferenceResponse(pref))
}

// SubmitResponse сохраняет ответ на вопрос идущей викторины
func (h *UserHandler) SubmitResponse(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	var req service.SubmitInput
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.submissions.Submit(c.Request.Context(), userID, c.MustGet(ParamQuizID).(uint), req)
	if err != nil {
		h.handleUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"question_id":     resp.QuestionID,
		"selected_option": resp.SelectedOption,
	})
}

func (h *UserHandler) handleUserError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrQuizNotLive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "error_type": "quiz_not_live"})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		log.Printf("[UserHandler] Internal server error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
