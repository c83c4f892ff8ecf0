package accessrequest

import "github.com/gin-gonic/gin"

// RegisterRoutes attaches access request endpoints to the router.
func RegisterRoutes(router *gin.RouterGroup, handler *Handler, adminOnly gin.HandlerFunc) {
	requests := router.Group("/access-requests")
	{
		requests.POST("", handler.Create)
		requests.GET("/pending", adminOnly, handler.ListPendingRequests)
		requests.POST("/:requestId/approve", adminOnly, handler.Approve)
		requests.POST("/:requestId/reject", adminOnly, handler.Reject)
	}
}
