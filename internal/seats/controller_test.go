package seats

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupSeatRoutes(r.Group(""), NewController(svc))
	return r
}

func TestControllerListFlightSeats(t *testing.T) {
	repo := newFakeRepo(
		Seat{SeatsNo: 1, SeatsRank: "A", SeatsNumber: "1", SeatsPrice: 10000, FlightID: 7},
		Seat{SeatsNo: 2, SeatsRank: "B", SeatsNumber: "2", SeatsPrice: 15000, FlightID: 8},
	)
	r := newTestRouter(NewService(repo, nil, 0))

	tests := []struct {
		path   string
		status int
		count  int
	}{
		{"/seats/", http.StatusOK, 2},
		{"/seats/flight/7", http.StatusOK, 1},
		{"/seats/flight/abc", http.StatusBadRequest, 0},
		{"/seats/flight/0", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.status {
			t.Fatalf("%s: status = %d, want %d", tt.path, rec.Code, tt.status)
		}
		if tt.status != http.StatusOK {
			continue
		}
		var body struct {
			Data []Seat `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if len(body.Data) != tt.count {
			t.Errorf("%s: got %d seats, want %d", tt.path, len(body.Data), tt.count)
		}
	}
}
