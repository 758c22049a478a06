package seats

import (
	"github.com/gin-gonic/gin"
)

// SetupSeatRoutes registers the public catalogue reads
func SetupSeatRoutes(rg *gin.RouterGroup, controller *Controller) {
	seats := rg.Group("/seats")
	{
		seats.GET("/", controller.ListSeats)                       // GET /seats/
		seats.GET("/flight/:flightId", controller.ListFlightSeats) // GET /seats/flight/:flightId
	}
}
