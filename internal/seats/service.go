package seats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"topgun/internal/shared/constants"
	"topgun/pkg/cache"
	"topgun/pkg/logger"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

var (
	ErrSeatNotFound    = errors.New("seat not found")
	ErrSeatUnavailable = errors.New("seat is not available for sale")
)

// Service resolves seat numbers to price, rank and label
type Service interface {
	// FindSeat always reads the catalogue; payments price against it
	FindSeat(ctx context.Context, seatNo int64) (*Seat, error)
	ListSeats(ctx context.Context) ([]Seat, error)
	ListFlightSeats(ctx context.Context, flightID int64) ([]Seat, error)
	InvalidateCache(ctx context.Context) error
}

type service struct {
	repo         Repository
	cacheService cache.Service
	listTTL      time.Duration
	group        singleflight.Group
}

// NewService builds the lookup. cacheService may be nil; listTTL <= 0 uses TTL_SEATS_LIST.
func NewService(repo Repository, cacheService cache.Service, listTTL time.Duration) Service {
	if listTTL <= 0 {
		listTTL = constants.TTL_SEATS_LIST
	}
	return &service{
		repo:         repo,
		cacheService: cacheService,
		listTTL:      listTTL,
	}
}

func (s *service) FindSeat(ctx context.Context, seatNo int64) (*Seat, error) {
	if seatNo <= 0 {
		return nil, ErrSeatNotFound
	}

	// Concurrent lookups of one seat share a single query, never a cached price
	v, err, _ := s.group.Do(fmt.Sprintf("seat:%d", seatNo), func() (interface{}, error) {
		seat, err := s.repo.FindByNo(ctx, seatNo)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrSeatNotFound
			}
			return nil, fmt.Errorf("failed to get seat: %w", err)
		}
		return seat, nil
	})
	if err != nil {
		return nil, err
	}

	// Callers share the flight result; hand each its own copy
	seat := *v.(*Seat)
	return &seat, nil
}

func (s *service) ListSeats(ctx context.Context) ([]Seat, error) {
	return s.list(ctx, constants.CACHE_KEY_SEATS_ALL, func() ([]Seat, error) {
		return s.repo.List(ctx)
	})
}

func (s *service) ListFlightSeats(ctx context.Context, flightID int64) ([]Seat, error) {
	return s.list(ctx, constants.BuildFlightSeatsKey(flightID), func() ([]Seat, error) {
		return s.repo.ListByFlight(ctx, flightID)
	})
}

func (s *service) InvalidateCache(ctx context.Context) error {
	if s.cacheService == nil {
		return nil
	}
	return s.cacheService.DeletePattern(ctx, constants.PATTERN_INVALIDATE_SEATS_ALL)
}

func (s *service) list(ctx context.Context, key string, fetch func() ([]Seat, error)) ([]Seat, error) {
	var cached []Seat
	if s.readCache(ctx, key, &cached) {
		return cached, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		seats, err := fetch()
		if err != nil {
			return nil, fmt.Errorf("failed to list seats: %w", err)
		}
		if seats == nil {
			seats = []Seat{}
		}
		s.writeCache(ctx, key, seats, s.listTTL)
		return seats, nil
	})
	if err != nil {
		return nil, err
	}

	shared := v.([]Seat)
	out := make([]Seat, len(shared))
	copy(out, shared)
	return out, nil
}

func (s *service) readCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cacheService == nil {
		return false
	}
	err := s.cacheService.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.GetDefault().WarnContext(ctx, "seat cache read failed", "key", key, "error", err)
	}
	return false
}

func (s *service) writeCache(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if s.cacheService == nil {
		return
	}
	if err := s.cacheService.Set(ctx, key, value, ttl); err != nil {
		logger.GetDefault().WarnContext(ctx, "seat cache write failed", "key", key, "error", err)
	}
}
