package chat

import "errors"

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNotMember    = errors.New("not a member of this room")
)
