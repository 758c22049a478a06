package chat

import (
	"strconv"
	"time"
)

const (
	MessageTypeChat = "chat"

	// TopicPrefix is where room broadcasts are delivered
	TopicPrefix = "/private/chat/"
)

type Room struct {
	RoomNo   int64  `gorm:"column:room_no;primaryKey" json:"roomNo"`
	RoomName string `gorm:"column:room_name;type:varchar(100);not null" json:"roomName"`
}

func (Room) TableName() string {
	return "rooms"
}

type RoomMember struct {
	RoomNo  int64  `gorm:"column:room_no;primaryKey;autoIncrement:false" json:"roomNo"`
	UsersID string `gorm:"column:users_id;type:varchar(50);primaryKey" json:"usersId"`
}

func (RoomMember) TableName() string {
	return "room_members"
}

// RoomMessage is the persisted chat log. Receiver is null for room-wide messages.
type RoomMessage struct {
	RoomMessageNo       int64     `gorm:"column:room_message_no;primaryKey;autoIncrement" json:"roomMessageNo"`
	RoomMessageType     string    `gorm:"column:room_message_type;type:varchar(20);not null" json:"roomMessageType"`
	RoomMessageSender   string    `gorm:"column:room_message_sender;type:varchar(50);not null" json:"roomMessageSender"`
	RoomMessageReceiver *string   `gorm:"column:room_message_receiver;type:varchar(50)" json:"roomMessageReceiver"`
	RoomMessageContent  string    `gorm:"column:room_message_content;type:text;not null" json:"roomMessageContent"`
	RoomMessageTime     time.Time `gorm:"column:room_message_time;not null" json:"roomMessageTime"`
	RoomNo              int64     `gorm:"column:room_no;not null" json:"roomNo"`
}

func (RoomMessage) TableName() string {
	return "room_messages"
}

// RoomView is a room as seen by one user
type RoomView struct {
	RoomNo   int64  `json:"roomNo"`
	RoomName string `json:"roomName"`
	Join     string `json:"join"` // "Y" or "N"
}

type EnterRequest struct {
	RoomNo int64 `json:"roomNo" binding:"required,gt=0"`
}

// ChatRequest is the body of a SEND frame
type ChatRequest struct {
	Content string `json:"content"`
}

// ChatResponse is what subscribers of a room receive
type ChatResponse struct {
	SenderUsersID   string    `json:"senderUsersId"`
	SenderUsersType string    `json:"senderUsersType"`
	Time            time.Time `json:"time"`
	Content         string    `json:"content"`
	Type            string    `json:"type"`
}

func RoomTopic(roomNo int64) string {
	return TopicPrefix + strconv.FormatInt(roomNo, 10)
}
