package seats

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	FindByNo(ctx context.Context, seatNo int64) (*Seat, error)
	List(ctx context.Context) ([]Seat, error)
	ListByFlight(ctx context.Context, flightID int64) ([]Seat, error)

	// Catalogue loading, used by the seeder
	UpsertCatalogue(ctx context.Context, flights []Flight, seats []Seat) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByNo(ctx context.Context, seatNo int64) (*Seat, error) {
	var seat Seat
	err := r.db.WithContext(ctx).First(&seat, "seats_no = ?", seatNo).Error
	if err != nil {
		return nil, err
	}
	return &seat, nil
}

func (r *repository) List(ctx context.Context) ([]Seat, error) {
	var seats []Seat
	err := r.db.WithContext(ctx).
		Order("seats_no ASC").
		Find(&seats).Error
	return seats, err
}

func (r *repository) ListByFlight(ctx context.Context, flightID int64) ([]Seat, error) {
	var seats []Seat
	err := r.db.WithContext(ctx).
		Where("flight_id = ?", flightID).
		Order("seats_rank ASC, seats_number ASC").
		Find(&seats).Error
	return seats, err
}

func (r *repository) UpsertCatalogue(ctx context.Context, flights []Flight, seats []Seat) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(flights) > 0 {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&flights).Error; err != nil {
				return err
			}
		}
		if len(seats) > 0 {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&seats).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
