package course

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches course endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, adminOnly gin.HandlerFunc) {
	courses := router.Group("/courses")
	{
		courses.GET("", handler.List)
		courses.POST("", adminOnly, handler.Create)
		courses.GET("/:courseId", handler.GetByID)
		courses.GET("/:courseId/chapters", handler.ListChapters)
		courses.POST("/:courseId/modules", adminOnly, handler.CreateModule)
	}
	router.POST("/modules/:moduleId/chapters", adminOnly, handler.CreateChapter)
}
