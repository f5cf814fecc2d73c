package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lekenzi/QuizNexus/internal/handler/dto"
	apperrors "github.com/lekenzi/QuizNexus/internal/pkg/errors"
	"github.com/lekenzi/QuizNexus/internal/service"
)

// Ключи контекста для числовых параметров маршрутов
const (
	ParamSubjectID  = "subjectID"
	ParamChapterID  = "chapterID"
	ParamQuizID     = "quizID"
	ParamQuestionID = "questionID"
	ParamUserID     = "userID"
)

// CatalogHandler обрабатывает запросы к каталогу: предметы, разделы, викторины, вопросы
type CatalogHandler struct {
	catalog *service.CatalogService
	loc     *time.Location
}

// NewCatalogHandler создает новый обработчик каталога
func NewCatalogHandler(catalog *service.CatalogService, loc *time.Location) *CatalogHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &CatalogHandler{catalog: catalog, loc: loc}
}

// ListSubjects возвращает все предметы
func (h *CatalogHandler) ListSubjects(c *gin.Context) {
	subjects, err := h.catalog.ListSubjects(c.Request.Context())
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, subjects)
}

// ListChapters возвращает разделы предмета
func (h *CatalogHandler) ListChapters(c *gin.Context) {
	chapters, err := h.catalog.ListChaptersBySubject(c.Request.Context(), c.MustGet(ParamSubjectID).(uint))
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, chapters)
}

// ListQuizzes возвращает все викторины
func (h *CatalogHandler) ListQuizzes(c *gin.Context) {
	quizzes, err := h.catalog.ListQuizzes(c.Request.Context())
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListQuizResponse(quizzes, h.loc))
}

// ListChapterQuizzes возвращает викторины раздела
func (h *CatalogHandler) ListChapterQuizzes(c *gin.Context) {
	quizzes, err := h.catalog.ListQuizzesByChapter(c.Request.Context(), c.MustGet(ParamChapterID).(uint))
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListQuizResponse(quizzes, h.loc))
}

// GetQuiz возвращает викторину с вопросами без правильных ответов
func (h *CatalogHandler) GetQuiz(c *gin.Context) {
	quiz, err := h.catalog.GetQuizWithQuestions(c.Request.Context(), c.MustGet(ParamQuizID).(uint))
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewQuizResponse(quiz, h.loc, true))
}

// ---- Администрирование ----

// CreateSubject создает предмет
func (h *CatalogHandler) CreateSubject(c *gin.Context) {
	var req service.SubjectInput
	if !bindJSON(c, &req) {
		return
	}
	subject, err := h.catalog.CreateSubject(c.Request.Context(), req)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	c.JSON(http.StatusCreated, subject)
}

// UpdateSubject изменяет предмет
func (h *CatalogHandler) UpdateSubject(c *gin.Context) {
	var req service.SubjectInput
	if !bindJSON(c, &req) {
		return
	}
	subject, err := h.catalog.UpdateSubject(c.Request.Context(), c.MustGet(ParamSubjectID).(uint), req)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, subject)
}

// DeleteSubject удаляет предмет
func (h *CatalogHandler) DeleteSubject(c *gin.Context) {
	if err := h.catalog.DeleteSubject(c.Request.Context(), c.MustGet(ParamSubjectID).(uint)); err != nil {
		h.handleCatalogError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateChapter создает раздел
func (h *CatalogHandler) CreateChapter(c *gin.Context) {
	var req service.ChapterInput
	if !bindJSON(c, &req) {
		return
	}
	chapter, err := h.catalog.CreateChapter(c.Request.Context(), req)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	c.JSON(http.StatusCreated, chapter)
}

// UpdateChapter изменяет раздел
func (h *CatalogHandler) UpdateChapter(c *gin.Context) {
	var req service.ChapterInput
	if !bindJSON(c, &req) {
		return
	}
	chapter, err := h.catalog.UpdateChapter(c.Request.Context(), c.MustGet(ParamChapterID).(uint), req)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, chapter)
}

// DeleteChapter удаляет раздел
func (h *CatalogHandler) DeleteChapter(c *gin.Context) {
	if err := h.catalog.DeleteChapter(c.Request.Context(), c.MustGet(ParamChapterID).(uint)); err != nil {
		h.handleCatalogError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateQuiz создает викторину
func (h *CatalogHandler) CreateQuiz(c *gin.Context) {
	var req service.QuizInput
	if !bindJSON(c, &req) {
		return
	}
	quiz, err := h.catalog.CreateQuiz(c.Request.Context(), req)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewQuizResponse(quiz, h.loc, false))
}

// UpdateQuiz изменяет викторину
func (h *CatalogHandler) UpdateQuiz(c *gin.Context) {
	var req service.QuizInput
	if !bindJSON(c, &req) {
		return
	}
	quiz, err := h.catalog.UpdateQuiz(c.Request.Context(), c.MustGet(ParamQuizID).(uint), req)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewQuizResponse(quiz, h.loc, false))
}

// DeleteQuiz удаляет викторину вместе с вопросами, ответами и результатами
func (h *CatalogHandler) DeleteQuiz(c *gin.Context) {
	if err := h.catalog.DeleteQuiz(c.Request.Context(), c.MustGet(ParamQuizID).(uint)); err != nil {
		h.handleCatalogError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateQuestion добавляет вопрос к викторине
func (h *CatalogHandler) CreateQuestion(c *gin.Context) {
	var req service.QuestionInput
	if !bindJSON(c, &req) {
		return
	}
	question, err := h.catalog.CreateQuestion(c.Request.Context(), req)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewQuestionResponse(question))
}

// UpdateQuestion изменяет вопрос
func (h *CatalogHandler) UpdateQuestion(c *gin.Context) {
	var req service.QuestionInput
	if !bindJSON(c, &req) {
		return
	}
	question, err := h.catalog.UpdateQuestion(c.Request.Context(), c.MustGet(ParamQuestionID).(uint), req)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewQuestionResponse(question))
}

// DeleteQuestion удаляет вопрос
func (h *CatalogHandler) DeleteQuestion(c *gin.Context) {
	if err := h.catalog.DeleteQuestion(c.Request.Context(), c.MustGet(ParamQuestionID).(uint)); err != nil {
		h.handleCatalogError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// bindJSON разбирает тело запроса; при ошибке отвечает 400
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return false
	}
	return true
}

// handleCatalogError обрабатывает ошибки сервиса каталога и отправляет соответствующий HTTP ответ
func (h *CatalogHandler) handleCatalogError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		log.Printf("[CatalogHandler] Internal server error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
