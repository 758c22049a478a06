package chat

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	ListRooms(ctx context.Context, userID string) ([]RoomView, error)
	FindRoom(ctx context.Context, roomNo int64) (*Room, error)
	AddMember(ctx context.Context, roomNo int64, userID string) error
	ListMembers(ctx context.Context, roomNo int64) ([]string, error)
	InsertMessage(ctx context.Context, msg *RoomMessage) error
	ListMessages(ctx context.Context, roomNo int64, before int64, limit int) ([]RoomMessage, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// ListRooms returns every room with join = Y where userID is a member
func (r *repository) ListRooms(ctx context.Context, userID string) ([]RoomView, error) {
	rooms := []RoomView{}
	err := r.db.WithContext(ctx).
		Table("rooms AS r").
		Select(`r.room_no, r.room_name,
			CASE WHEN m.users_id IS NULL THEN 'N' ELSE 'Y' END AS "join"`).
		Joins("LEFT JOIN room_members m ON m.room_no = r.room_no AND m.users_id = ?", userID).
		Order("r.room_no ASC").
		Scan(&rooms).Error
	return rooms, err
}

func (r *repository) FindRoom(ctx context.Context, roomNo int64) (*Room, error) {
	var room Room
	err := r.db.WithContext(ctx).First(&room, "room_no = ?", roomNo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

// AddMember is idempotent
func (r *repository) AddMember(ctx context.Context, roomNo int64, userID string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&RoomMember{RoomNo: roomNo, UsersID: userID}).Error
}

func (r *repository) ListMembers(ctx context.Context, roomNo int64) ([]string, error) {
	members := []string{}
	err := r.db.WithContext(ctx).
		Model(&RoomMember{}).
		Where("room_no = ?", roomNo).
		Order("users_id ASC").
		Pluck("users_id", &members).Error
	return members, err
}

func (r *repository) InsertMessage(ctx context.Context, msg *RoomMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// ListMessages returns the newest limit messages numbered below before
// (any number when before is 0), oldest first
func (r *repository) ListMessages(ctx context.Context, roomNo int64, before int64, limit int) ([]RoomMessage, error) {
	messages := []RoomMessage{}
	query := r.db.WithContext(ctx).Where("room_no = ?", roomNo)
	if before > 0 {
		query = query.Where("room_message_no < ?", before)
	}
	err := query.
		Order("room_message_no DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
