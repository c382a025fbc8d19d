package leave

import (
	"go-hris-leave/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts /leaves. createGuards run before Create (rate limit,
// idempotency). Cancel and transition only need read access here; the service
// checks ownership and approval rights itself.
func RegisterRoutes(
	r *gin.RouterGroup,
	handler *Handler,
	rbacService middleware.RBACService,
	createGuards []gin.HandlerFunc,
	secured ...gin.HandlerFunc,
) {
	leaves := r.Group("/leaves")
	leaves.Use(secured...)
	{
		leaves.GET("", middleware.RBACAuthorize(rbacService, "leave", "read"), handler.GetAll)
		leaves.GET("/:id", middleware.RBACAuthorize(rbacService, "leave", "read"), handler.GetById)

		createChain := append([]gin.HandlerFunc{middleware.RBACAuthorize(rbacService, "leave", "create")}, createGuards...)
		leaves.POST("", append(createChain, handler.Create)...)

		leaves.POST("/:id/transition", middleware.RBACAuthorize(rbacService, "leave", "read"), handler.Transition)
		leaves.POST("/:id/approve", middleware.RBACAuthorize(rbacService, "leave", "approve"), handler.Approve)
		leaves.POST("/:id/reject", middleware.RBACAuthorize(rbacService, "leave", "approve"), handler.Reject)
		leaves.POST("/:id/cancel", middleware.RBACAuthorize(rbacService, "leave", "read"), handler.Cancel)
		leaves.DELETE("/:id", middleware.RBACAuthorize(rbacService, "leave", "approve"), handler.Delete)
	}
}
