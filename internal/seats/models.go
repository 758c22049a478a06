package seats

import (
	"time"
)

const (
	SeatStatusAvailable = "AVAILABLE"
	SeatStatusBlocked   = "BLOCKED"
)

// Flight is reference data for the seats that belong to it
type Flight struct {
	FlightID         int64     `gorm:"column:flight_id;primaryKey" json:"flightId"`
	FlightNumber     string    `gorm:"column:flight_number;type:varchar(20);not null" json:"flightNumber"`
	DepartureTime    time.Time `gorm:"column:departure_time" json:"departureTime"`
	ArrivalTime      time.Time `gorm:"column:arrival_time" json:"arrivalTime"`
	FlightTime       string    `gorm:"column:flight_time;type:varchar(20)" json:"flightTime"`
	DepartureAirport string    `gorm:"column:departure_airport;type:varchar(60)" json:"departureAirport"`
	ArrivalAirport   string    `gorm:"column:arrival_airport;type:varchar(60)" json:"arrivalAirport"`
	UserID           string    `gorm:"column:user_id;type:varchar(50)" json:"userId"`
	FlightPrice      int64     `gorm:"column:flight_price" json:"flightPrice"`
	FlightStatus     string    `gorm:"column:flight_status;type:varchar(20)" json:"flightStatus"`
}

func (Flight) TableName() string {
	return "flights"
}

// Seat is one purchasable seat. Read-only to the payment flow.
type Seat struct {
	SeatsNo     int64  `gorm:"column:seats_no;primaryKey" json:"seatsNo"`
	SeatsRank   string `gorm:"column:seats_rank;type:varchar(20);not null" json:"seatsRank"`
	SeatsNumber string `gorm:"column:seats_number;type:varchar(10);not null" json:"seatsNumber"`
	SeatsPrice  int64  `gorm:"column:seats_price;not null;check:seats_price >= 0" json:"seatsPrice"`
	FlightID    int64  `gorm:"column:flight_id;index" json:"flightId"`
	SeatsStatus string `gorm:"column:seats_status;type:varchar(20);default:'AVAILABLE'" json:"seatsStatus"`
}

func (Seat) TableName() string {
	return "seats"
}

// Label is the display name used on receipts, e.g. "A1"
func (s *Seat) Label() string {
	return s.SeatsRank + s.SeatsNumber
}

// IsAvailable reports whether the seat may be sold. Blocked seats keep their
// row but are refused at checkout.
func (s *Seat) IsAvailable() bool {
	return s.SeatsStatus == "" || s.SeatsStatus == SeatStatusAvailable
}
