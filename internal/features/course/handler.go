package course

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/enrollhub/enrollment-server-go/pkg/cache"
	"github.com/enrollhub/enrollment-server-go/pkg/pagination"
	"github.com/enrollhub/enrollment-server-go/pkg/response"
)

// chapterListTTL bounds how stale a cached chapter list may get; curriculum
// edits invalidate it eagerly, the TTL covers missed invalidations.
const chapterListTTL = 60 * time.Second

// Handler processes course HTTP requests.
type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
	cache  *cache.RedisClient
}

// NewHandler constructs a course handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger, cacheClient *cache.RedisClient) *Handler {
	return &Handler{db: db, logger: logger, cache: cacheClient}
}

func chapterListKey(courseID uuid.UUID) string {
	return fmt.Sprintf("course:%s:chapters", courseID)
}

// List returns paginated courses.
func (h *Handler) List(c *gin.Context) {
	params := pagination.Extract(c)
	filters := ListFilters{
		Keyword:    c.Query("keyword"),
		ActiveOnly: c.Query("activeOnly") == "true",
	}

	courses, total, err := List(h.db, filters, params)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list courses", err)
		return
	}
	response.Success(c, http.StatusOK, courses, "", pagination.MetadataFrom(total, params))
}

// GetByID returns a single course.
func (h *Handler) GetByID(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("courseId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	crs, err := Get(h.db, courseID)
	if err != nil {
		h.writeError(c, "failed to load course", err)
		return
	}
	response.SuccessWithCache(c, http.StatusOK, crs, "", 60)
}

// Create inserts a new course.
func (h *Handler) Create(c *gin.Context) {
	var req struct {
		Name        string  `json:"name"`
		Description *string `json:"description"`
		Order       int     `json:"order"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course payload", err)
		return
	}

	crs, err := Create(h.db, req.Name, req.Description, req.Order)
	if err != nil {
		h.writeError(c, "failed to create course", err)
		return
	}
	response.Created(c, crs, "Course created")
}

// CreateModule inserts a module into a course.
func (h *Handler) CreateModule(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("courseId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	var req struct {
		Name  string `json:"name"`
		Order int    `json:"order"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid module payload", err)
		return
	}

	module, err := AddModule(h.db, courseID, req.Name, req.Order)
	if err != nil {
		h.writeError(c, "failed to create module", err)
		return
	}
	h.invalidateChapterList(c, courseID)
	response.Created(c, module, "Module created")
}

// CreateChapter inserts a chapter into a module.
func (h *Handler) CreateChapter(c *gin.Context) {
	moduleID, err := uuid.Parse(c.Param("moduleId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid module id", err)
		return
	}

	var req struct {
		Name    string     `json:"name"`
		VideoID *string    `json:"videoId"`
		QuizID  *uuid.UUID `json:"quizId"`
		Order   int        `json:"order"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid chapter payload", err)
		return
	}

	chapter, err := AddChapter(h.db, moduleID, req.Name, req.VideoID, req.QuizID, req.Order)
	if err != nil {
		h.writeError(c, "failed to create chapter", err)
		return
	}

	var m CourseModule
	if err := h.db.Select("course_id").First(&m, "id = ?", moduleID).Error; err == nil {
		h.invalidateChapterList(c, m.CourseID)
	}
	response.Created(c, chapter, "Chapter created")
}

// ListChapters returns every live chapter of a course in order.
func (h *Handler) ListChapters(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("courseId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	var chapters []Chapter
	key := chapterListKey(courseID)
	if err := h.cache.GetJSON(c.Request.Context(), key, &chapters); err == nil {
		response.SuccessWithCache(c, http.StatusOK, chapters, "", 60)
		return
	}

	chapters, err = GetChapters(h.db, courseID)
	if err != nil {
		h.writeError(c, "failed to list chapters", err)
		return
	}
	if err := h.cache.SetJSON(c.Request.Context(), key, chapters, chapterListTTL); err != nil {
		h.logger.Warn("chapter list cache write failed", slog.String("error", err.Error()))
	}
	response.SuccessWithCache(c, http.StatusOK, chapters, "", 60)
}

func (h *Handler) invalidateChapterList(c *gin.Context, courseID uuid.UUID) {
	if err := h.cache.Delete(c.Request.Context(), chapterListKey(courseID)); err != nil {
		h.logger.Warn("chapter list cache invalidation failed", slog.String("error", err.Error()))
	}
}

func (h *Handler) writeError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, ErrCourseNotFound), errors.Is(err, ErrModuleNotFound), errors.Is(err, ErrChapterNotFound):
		response.Error(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, ErrNameRequired):
		response.Error(c, http.StatusBadRequest, err.Error(), nil)
	default:
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, message, err)
	}
}
