package payments

import (
	"errors"
	"net/http"
	"strconv"

	"topgun/internal/paygateway"
	"topgun/internal/seats"
	"topgun/internal/shared/middleware"
	"topgun/internal/shared/utils/response"
	"topgun/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// PurchaseReady godoc
// @Summary Price the selected seats and open a payment with the provider
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PurchaseRequest true "Seats and redirect URLs"
// @Router /seats/purchase [post]
func (c *Controller) PurchaseReady(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	var req PurchaseRequest
	if !bindAndValidate(ctx, &req) {
		return
	}

	result, err := c.service.PurchaseReady(ctx.Request.Context(), userID, req)
	if err != nil {
		handleError(ctx, err, "Failed to prepare payment")
		return
	}

	response.Success(ctx, http.StatusOK, "Payment ready", result)
}

// Approve godoc
// @Summary Confirm a ready payment and record it
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ApproveRequest true "Approval token and seats"
// @Router /seats/approve [post]
func (c *Controller) Approve(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	var req ApproveRequest
	if !bindAndValidate(ctx, &req) {
		return
	}

	result, err := c.service.Approve(ctx.Request.Context(), userID, req)
	if err != nil {
		handleError(ctx, err, "Failed to approve payment")
		return
	}

	response.Success(ctx, http.StatusCreated, "Payment approved", result)
}

// ListPayments godoc
// @Summary List the caller's payments
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Router /seats/paymentlist [get]
func (c *Controller) ListPayments(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	headers, err := c.service.ListPayments(ctx.Request.Context(), userID)
	if err != nil {
		handleError(ctx, err, "Failed to get payments")
		return
	}

	response.Success(ctx, http.StatusOK, "Payments retrieved successfully", headers)
}

// ListPaymentDetails godoc
// @Summary List the lines of one of the caller's payments
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param paymentNo path int true "Payment number"
// @Router /seats/paymentlist/{paymentNo} [get]
func (c *Controller) ListPaymentDetails(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	paymentNo, ok := pathID(ctx, "paymentNo")
	if !ok {
		return
	}

	details, err := c.service.ListPaymentDetails(ctx.Request.Context(), userID, paymentNo)
	if err != nil {
		handleError(ctx, err, "Failed to get payment details")
		return
	}

	response.Success(ctx, http.StatusOK, "Payment details retrieved successfully", details)
}

// ListTotals godoc
// @Summary List the caller's payments with their lines
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Router /seats/paymentTotalList [get]
func (c *Controller) ListTotals(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	totals, err := c.service.ListTotals(ctx.Request.Context(), userID)
	if err != nil {
		handleError(ctx, err, "Failed to get payments")
		return
	}

	response.Success(ctx, http.StatusOK, "Payments retrieved successfully", totals)
}

// Order godoc
// @Summary Fetch the provider's view of a transaction
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param tid path string true "Transaction ID"
// @Router /seats/order/{tid} [get]
func (c *Controller) Order(ctx *gin.Context) {
	tid := ctx.Param("tid")
	if tid == "" {
		response.Error(ctx, http.StatusBadRequest, "Invalid transaction ID", nil)
		return
	}

	order, err := c.service.Order(ctx.Request.Context(), tid)
	if err != nil {
		handleError(ctx, err, "Failed to get order")
		return
	}

	response.Success(ctx, http.StatusOK, "Order retrieved successfully", order)
}

// Detail godoc
// @Summary Payment, its lines and the provider snapshot in one response
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param paymentNo path int true "Payment number"
// @Router /seats/detail/{paymentNo} [get]
func (c *Controller) Detail(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	paymentNo, ok := pathID(ctx, "paymentNo")
	if !ok {
		return
	}

	info, err := c.service.Detail(ctx.Request.Context(), userID, paymentNo)
	if err != nil {
		handleError(ctx, err, "Failed to get payment")
		return
	}

	response.Success(ctx, http.StatusOK, "Payment retrieved successfully", info)
}

// CancelAll godoc
// @Summary Refund whatever remains of a payment
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param paymentNo path int true "Payment number"
// @Router /seats/cancelAll/{paymentNo} [delete]
func (c *Controller) CancelAll(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	paymentNo, ok := pathID(ctx, "paymentNo")
	if !ok {
		return
	}

	result, err := c.service.CancelAll(ctx.Request.Context(), userID, paymentNo)
	if err != nil {
		handleError(ctx, err, "Failed to cancel payment")
		return
	}

	response.Success(ctx, http.StatusOK, "Payment cancelled", result)
}

// CancelItem godoc
// @Summary Refund one line of a payment
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param paymentDetailNo path int true "Payment detail number"
// @Router /seats/cancelItem/{paymentDetailNo} [delete]
func (c *Controller) CancelItem(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	detailNo, ok := pathID(ctx, "paymentDetailNo")
	if !ok {
		return
	}

	result, err := c.service.CancelItem(ctx.Request.Context(), userID, detailNo)
	if err != nil {
		handleError(ctx, err, "Failed to cancel payment item")
		return
	}

	response.Success(ctx, http.StatusOK, "Payment item cancelled", result)
}

// UpdateDetail godoc
// @Summary Correct passenger fields on a payment line
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param paymentDetailNo path int true "Payment detail number"
// @Param request body DetailUpdateRequest true "Passenger fields"
// @Router /seats/detailUpdate/{paymentDetailNo} [put]
func (c *Controller) UpdateDetail(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	detailNo, ok := pathID(ctx, "paymentDetailNo")
	if !ok {
		return
	}

	var req DetailUpdateRequest
	if !bindAndValidate(ctx, &req) {
		return
	}

	detail, err := c.service.UpdateDetail(ctx.Request.Context(), userID, detailNo, req)
	if err != nil {
		handleError(ctx, err, "Failed to update payment detail")
		return
	}

	response.Success(ctx, http.StatusOK, "Payment detail updated", detail)
}

// Reconcile godoc
// @Summary Apply a refund the provider confirmed but the ledger missed
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param key path string true "Cancellation idempotency key"
// @Router /seats/reconcile/{key} [post]
func (c *Controller) Reconcile(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	header, err := c.service.ReconcileCancellation(ctx.Request.Context(), userID, ctx.Param("key"))
	if err != nil {
		handleError(ctx, err, "Failed to reconcile cancellation")
		return
	}

	response.Success(ctx, http.StatusOK, "Cancellation reconciled", header)
}

// Sweep godoc
// @Summary Apply every recorded cancellation the ledger has not caught up with
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max records (default 100)"
// @Router /seats/admin/reconcile [post]
func (c *Controller) Sweep(ctx *gin.Context) {
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		response.Error(ctx, http.StatusBadRequest, "Invalid limit", "limit must be a positive integer")
		return
	}

	applied, err := c.service.SweepPendingCancellations(ctx.Request.Context(), 0, limit)
	if err != nil {
		handleError(ctx, err, "Failed to reconcile cancellations")
		return
	}

	response.Success(ctx, http.StatusOK, "Pending cancellations applied", gin.H{"applied": applied})
}

func currentUser(ctx *gin.Context) (string, bool) {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok || identity.UserID == "" {
		response.Error(ctx, http.StatusUnauthorized, "User not authenticated", nil)
		return "", false
	}
	return identity.UserID, true
}

func pathID(ctx *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Error(ctx, http.StatusBadRequest, "Invalid "+name, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func bindAndValidate(ctx *gin.Context, req interface{}) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		response.Error(ctx, http.StatusBadRequest, "Invalid request body", err.Error())
		return false
	}
	if fieldErrs := Validate(req); len(fieldErrs) > 0 {
		response.Error(ctx, http.StatusBadRequest, "Validation failed", fieldErrs)
		return false
	}
	return true
}

// handleError maps service errors onto HTTP statuses
func handleError(ctx *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	detail := err.Error()

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, seats.ErrSeatNotFound):
		status = http.StatusNotFound
		if errors.Is(err, ErrNotOwner) {
			// Same answer as a missing payment
			detail = ErrPaymentNotFound.Error()
		}
	case errors.Is(err, ErrAlreadyCancelled),
		errors.Is(err, ErrDetailAlreadyCancelled),
		errors.Is(err, ErrInsufficientRemaining),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrAlreadyApproved),
		errors.Is(err, ErrConcurrentModification),
		errors.Is(err, ErrHeaderBusy),
		errors.Is(err, ErrAmountMismatch),
		errors.Is(err, seats.ErrSeatUnavailable):
		status = http.StatusConflict
	case errors.Is(err, ErrEmptySeatList), errors.Is(err, ErrInvalidQuantity):
		status = http.StatusBadRequest
	case errors.Is(err, paygateway.ErrNotConfigured):
		status = http.StatusServiceUnavailable
	case errors.Is(err, ErrInvalidGatewayAmount):
		status = http.StatusBadGateway
	default:
		if gwErr, ok := paygateway.AsGatewayError(err); ok {
			status = http.StatusBadGateway
			response.Error(ctx, status, message, gin.H{
				"operation":     gwErr.Operation,
				"error_code":    gwErr.Code,
				"error_message": gwErr.Message,
			})
			return
		}
	}

	if status >= http.StatusInternalServerError {
		logger.GetDefault().LogHTTPError(ctx, err, status)
	}
	response.Error(ctx, status, message, detail)
}
