package leavepolicy

import (
	"go-hris-leave/internal/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(
	r *gin.RouterGroup,
	handler *Handler,
	rbacService middleware.RBACService,
	secured ...gin.HandlerFunc,
) {
	policy := r.Group("/leave-policy")
	policy.Use(secured...)
	{
		policy.GET("", middleware.RBACAuthorize(rbacService, "leave_policy", "read"), handler.Get)
		policy.PUT("", middleware.RBACAuthorize(rbacService, "leave_policy", "update"), handler.Update)
	}
}
