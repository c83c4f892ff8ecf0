package enrollment

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches enrollment endpoints to the router. The gin
// middleware arguments gate the admin-only mutation endpoints.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, adminOnly gin.HandlerFunc) {
	enrollments := router.Group("/enrollments")
	{
		enrollments.POST("", adminOnly, handler.Enroll)
		enrollments.DELETE("", adminOnly, handler.Unenroll)
		enrollments.GET("/users/:userId", handler.ListByUserID)
		enrollments.GET("/courses/:courseId", adminOnly, handler.ListByCourseID)
		enrollments.GET("/users/:userId/courses/:courseId/verify", handler.Verify)
		enrollments.POST("/users/:userId/courses/:courseId/sync", adminOnly, handler.Sync)
	}
}
