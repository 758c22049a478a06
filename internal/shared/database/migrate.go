package database

import (
	"topgun/internal/chat"
	"topgun/internal/payments"
	"topgun/internal/seats"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&seats.Flight{},
		&seats.Seat{},
		&payments.PaymentHeader{},
		&payments.PaymentDetail{},
		&payments.PaymentCancellation{},
		&chat.Room{},
		&chat.RoomMember{},
		&chat.RoomMessage{},
	)
}
