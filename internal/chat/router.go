package chat

import (
	"topgun/internal/auth"
	"topgun/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupChatRoutes registers the room endpoints and the STOMP websocket.
// /ws authenticates per frame, so it sits outside the bearer middleware.
func SetupChatRoutes(rg *gin.RouterGroup, controller *Controller, stomp *StompHandler, verifier auth.Verifier) {
	rooms := rg.Group("/room")
	rooms.Use(middleware.BearerAuth(verifier))
	{
		rooms.GET("/", controller.ListRooms)               // GET /room/
		rooms.POST("/enter", controller.EnterRoom)         // POST /room/enter
		rooms.GET("/:roomNo/messages", controller.History) // GET /room/:roomNo/messages
	}

	rg.GET("/ws", stomp.ServeWS)
}
