package payments

import (
	"topgun/internal/auth"
	"topgun/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupPaymentRoutes registers the authenticated payment endpoints under /seats
func SetupPaymentRoutes(rg *gin.RouterGroup, controller *Controller, verifier auth.Verifier) {
	payments := rg.Group("/seats")
	payments.Use(middleware.BearerAuth(verifier))
	{
		payments.POST("/purchase", controller.PurchaseReady) // POST /seats/purchase
		payments.POST("/approve", controller.Approve)        // POST /seats/approve

		payments.GET("/paymentlist", controller.ListPayments)                  // GET /seats/paymentlist
		payments.GET("/paymentlist/:paymentNo", controller.ListPaymentDetails) // GET /seats/paymentlist/:paymentNo
		payments.GET("/paymentTotalList", controller.ListTotals)               // GET /seats/paymentTotalList
		payments.GET("/order/:tid", controller.Order)                          // GET /seats/order/:tid
		payments.GET("/detail/:paymentNo", controller.Detail)                  // GET /seats/detail/:paymentNo

		payments.DELETE("/cancelAll/:paymentNo", controller.CancelAll)          // DELETE /seats/cancelAll/:paymentNo
		payments.DELETE("/cancelItem/:paymentDetailNo", controller.CancelItem)  // DELETE /seats/cancelItem/:paymentDetailNo
		payments.PUT("/detailUpdate/:paymentDetailNo", controller.UpdateDetail) // PUT /seats/detailUpdate/:paymentDetailNo
		payments.POST("/reconcile/:key", controller.Reconcile)                  // POST /seats/reconcile/:key

		admin := payments.Group("/admin", middleware.RequireRoles(auth.RoleAdmin))
		admin.POST("/reconcile", controller.Sweep) // POST /seats/admin/reconcile
	}
}
