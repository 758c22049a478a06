package seats

import (
	"net/http"
	"strconv"

	"topgun/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// ListSeats godoc
// @Summary List every seat in the catalogue
// @Tags seats
// @Produce json
// @Router /seats/ [get]
func (c *Controller) ListSeats(ctx *gin.Context) {
	seats, err := c.service.ListSeats(ctx.Request.Context())
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to get seats", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Seats retrieved successfully", seats, nil)
}

// ListFlightSeats godoc
// @Summary List the seats of one flight
// @Tags seats
// @Produce json
// @Param flightId path int true "Flight ID"
// @Router /seats/flight/{flightId} [get]
func (c *Controller) ListFlightSeats(ctx *gin.Context) {
	flightID, err := strconv.ParseInt(ctx.Param("flightId"), 10, 64)
	if err != nil || flightID <= 0 {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid flight ID", nil, "flightId must be a positive integer")
		return
	}

	seats, err := c.service.ListFlightSeats(ctx.Request.Context(), flightID)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to get seats", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Seats retrieved successfully", seats, nil)
}
