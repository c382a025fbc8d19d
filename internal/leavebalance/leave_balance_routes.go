package leavebalance

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
	balances := r.Group("/leave-balances")
	balances.Use(secured...)
	{
		balances.GET("", middleware.RBACAuthorize(rbacService, "leave_balance", "read"), handler.GetAll)
		balances.GET("/me", handler.GetMine)
		balances.GET("/employees/:employee_id", middleware.RBACAuthorize(rbacService, "leave_balance", "read"), handler.GetBalance)
		balances.POST("/employees/:employee_id/recompute", middleware.RBACAuthorize(rbacService, "leave_balance", "recompute"), handler.Recompute)
	}
}
