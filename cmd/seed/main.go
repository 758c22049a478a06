package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"topgun/internal/auth"
	"topgun/internal/chat"
	"topgun/internal/seats"
	"topgun/internal/shared/config"
	"topgun/internal/shared/constants"
	"topgun/internal/shared/database"
	"topgun/pkg/cache"

	"github.com/joho/godotenv"
	"gorm.io/gorm/clause"
)

type Seeder struct {
	db *database.DB
}

func main() {
	fmt.Println("🌱 Starting TopGun Database Seeder...")

	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using system environment variables")
	}

	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db}

	// Clean database
	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	// Seed data
	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	// Dev tokens for the seeded users
	fmt.Println("\n🔑 Access tokens:")
	tokens := auth.NewTokenService(cfg)
	for _, u := range devUsers {
		token, err := tokens.Issue(u.id, u.role)
		if err != nil {
			log.Fatalf("Failed to issue token for %s: %v", u.id, err)
		}
		fmt.Printf("  %s (%s): Bearer %s\n", u.id, u.role, token)
	}

	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

var devUsers = []struct {
	id   string
	role auth.Role
}{
	{"maverick", auth.RoleMember},
	{"goose", auth.RoleMember},
	{"iceman", auth.RoleAirline},
}

// CleanDatabase truncates the seeded tables. The payment ledger is left alone.
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"room_messages",
		"room_members",
		"rooms",
		"seats",
		"flights",
	}

	tx := s.db.PostgreSQL.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	for _, table := range tables {
		fmt.Printf("  Truncating table: %s\n", table)
		if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit().Error
}

// SeedAll seeds all required data
func (s *Seeder) SeedAll() error {
	ctx := context.Background()

	if err := s.SeedCatalogue(ctx); err != nil {
		return fmt.Errorf("failed to seed catalogue: %w", err)
	}

	if err := s.SeedRooms(ctx); err != nil {
		return fmt.Errorf("failed to seed rooms: %w", err)
	}

	// Clear cached seats and memberships so the fresh rows are served
	if s.db.Redis != nil {
		cacheService := cache.NewService(s.db.Redis)
		seatService := seats.NewService(seats.NewRepository(s.db.PostgreSQL), cacheService, 0)
		if err := seatService.InvalidateCache(ctx); err != nil {
			log.Printf("Warning: Failed to clear cached seat listings: %v", err)
		}
		if err := cacheService.DeletePattern(ctx, constants.PATTERN_INVALIDATE_CHAT_ALL); err != nil {
			log.Printf("Warning: Failed to clear Redis cache %s: %v", constants.PATTERN_INVALIDATE_CHAT_ALL, err)
		}
	}

	return nil
}

// SeedCatalogue creates two flights with a small cabin each
func (s *Seeder) SeedCatalogue(ctx context.Context) error {
	fmt.Println("  ✈️ Seeding flights and seats...")

	departure := time.Now().UTC().Truncate(time.Hour).Add(72 * time.Hour)
	flights := []seats.Flight{
		{
			FlightID:         1,
			FlightNumber:     "TG101",
			DepartureTime:    departure,
			ArrivalTime:      departure.Add(70 * time.Minute),
			FlightTime:       "1h 10m",
			DepartureAirport: "GMP",
			ArrivalAirport:   "CJU",
			UserID:           "iceman",
			FlightPrice:      10000,
			FlightStatus:     "SCHEDULED",
		},
		{
			FlightID:         2,
			FlightNumber:     "TG202",
			DepartureTime:    departure.Add(24 * time.Hour),
			ArrivalTime:      departure.Add(24*time.Hour + 2*time.Hour),
			FlightTime:       "2h 0m",
			DepartureAirport: "ICN",
			ArrivalAirport:   "NRT",
			UserID:           "iceman",
			FlightPrice:      20000,
			FlightStatus:     "SCHEDULED",
		},
	}

	cabin := []struct {
		rank  string
		count int
		price int64
	}{
		{"A", 4, 30000},
		{"B", 6, 15000},
		{"C", 8, 10000},
	}

	var seatList []seats.Seat
	var seatNo int64
	for _, f := range flights {
		for _, row := range cabin {
			for n := 1; n <= row.count; n++ {
				seatNo++
				status := seats.SeatStatusAvailable
				if row.rank == "A" && n == row.count {
					// crew rest seat
					status = seats.SeatStatusBlocked
				}
				seatList = append(seatList, seats.Seat{
					SeatsNo:     seatNo,
					SeatsRank:   row.rank,
					SeatsNumber: strconv.Itoa(n),
					SeatsPrice:  row.price + f.FlightPrice,
					FlightID:    f.FlightID,
					SeatsStatus: status,
				})
			}
		}
	}

	repo := seats.NewRepository(s.db.PostgreSQL)
	if err := repo.UpsertCatalogue(ctx, flights, seatList); err != nil {
		return err
	}

	fmt.Printf("    ✅ Created %d flights and %d seats\n", len(flights), len(seatList))
	return nil
}

// SeedRooms creates the chat rooms and puts the dev users in them
func (s *Seeder) SeedRooms(ctx context.Context) error {
	fmt.Println("  💬 Seeding chat rooms...")

	rooms := []chat.Room{
		{RoomNo: 1, RoomName: "TG101 Passengers"},
		{RoomNo: 2, RoomName: "TG202 Passengers"},
		{RoomNo: 3, RoomName: "Crew Lounge"},
	}
	members := []chat.RoomMember{
		{RoomNo: 1, UsersID: "maverick"},
		{RoomNo: 1, UsersID: "goose"},
		{RoomNo: 2, UsersID: "goose"},
		{RoomNo: 3, UsersID: "iceman"},
	}

	db := s.db.PostgreSQL.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rooms).Error; err != nil {
		return fmt.Errorf("failed to create rooms: %w", err)
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error; err != nil {
		return fmt.Errorf("failed to create room members: %w", err)
	}

	for _, r := range rooms {
		fmt.Printf("    ✅ Created room: %s\n", r.RoomName)
	}
	return nil
}
