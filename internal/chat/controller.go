package chat

import (
	"errors"
	"net/http"
	"strconv"

	"topgun/internal/shared/middleware"
	"topgun/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// ListRooms godoc
// @Summary List chat rooms, flagging the ones the caller has joined
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Router /room/ [get]
func (c *Controller) ListRooms(ctx *gin.Context) {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		response.Error(ctx, http.StatusUnauthorized, "User not authenticated", nil)
		return
	}

	rooms, err := c.service.ListRooms(ctx.Request.Context(), identity.UserID)
	if err != nil {
		response.Error(ctx, http.StatusInternalServerError, "Failed to get rooms", err.Error())
		return
	}

	response.Success(ctx, http.StatusOK, "Rooms retrieved successfully", rooms)
}

// EnterRoom godoc
// @Summary Join a chat room
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body EnterRequest true "Room to join"
// @Router /room/enter [post]
func (c *Controller) EnterRoom(ctx *gin.Context) {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		response.Error(ctx, http.StatusUnauthorized, "User not authenticated", nil)
		return
	}

	var req EnterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.Error(ctx, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if err := c.service.Enter(ctx.Request.Context(), identity.UserID, req.RoomNo); err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			response.Error(ctx, http.StatusNotFound, "Room not found", nil)
			return
		}
		response.Error(ctx, http.StatusInternalServerError, "Failed to enter room", err.Error())
		return
	}

	response.Success(ctx, http.StatusOK, "Entered room", gin.H{"roomNo": req.RoomNo})
}

// History godoc
// @Summary Persisted messages of a room the caller belongs to
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param roomNo path int true "Room number"
// @Param limit query int false "Max messages (default 50, max 200)"
// @Param before query int false "Only messages numbered below this one"
// @Router /room/{roomNo}/messages [get]
func (c *Controller) History(ctx *gin.Context) {
	identity, ok := middleware.CurrentIdentity(ctx)
	if !ok {
		response.Error(ctx, http.StatusUnauthorized, "User not authenticated", nil)
		return
	}

	roomNo, err := strconv.ParseInt(ctx.Param("roomNo"), 10, 64)
	if err != nil || roomNo <= 0 {
		response.Error(ctx, http.StatusBadRequest, "Invalid room number", nil)
		return
	}
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "0"))
	before, err := strconv.ParseInt(ctx.DefaultQuery("before", "0"), 10, 64)
	if err != nil || before < 0 {
		response.Error(ctx, http.StatusBadRequest, "Invalid message cursor", nil)
		return
	}

	messages, err := c.service.History(ctx.Request.Context(), identity.UserID, roomNo, before, limit)
	if err != nil {
		switch {
		case errors.Is(err, ErrRoomNotFound):
			response.Error(ctx, http.StatusNotFound, "Room not found", nil)
		case errors.Is(err, ErrNotMember):
			response.Error(ctx, http.StatusForbidden, "Not a member of this room", nil)
		default:
			response.Error(ctx, http.StatusInternalServerError, "Failed to get messages", err.Error())
		}
		return
	}

	response.Success(ctx, http.StatusOK, "Messages retrieved successfully", messages)
}
