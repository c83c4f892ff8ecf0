package progress

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches progress endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler) {
	courses := router.Group("/courses/:courseId/progress")
	{
		courses.GET("", handler.Get)
		courses.PUT("", handler.Update)
		courses.POST("/chapters/:chapterId/complete", handler.CompleteChapter)
		courses.PUT("/chapters/:chapterId/video", handler.VideoProgress)
		courses.POST("/quiz-attempts", handler.SubmitQuizAttempt)
	}
}
