package chat

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"topgun/internal/auth"
	"topgun/pkg/cache"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type memRepo struct {
	mu        sync.Mutex
	rooms     map[int64]string
	members   map[int64]map[string]bool
	messages  []RoomMessage
	insertErr error
}

func newMemRepo() *memRepo {
	return &memRepo{
		rooms:   map[int64]string{1: "Lounge", 2: "Crew"},
		members: map[int64]map[string]bool{1: {"alice": true}},
	}
}

func (m *memRepo) ListRooms(_ context.Context, userID string) ([]RoomView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []RoomView{}
	for no, name := range m.rooms {
		join := "N"
		if m.members[no][userID] {
			join = "Y"
		}
		out = append(out, RoomView{RoomNo: no, RoomName: name, Join: join})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomNo < out[j].RoomNo })
	return out, nil
}

func (m *memRepo) FindRoom(_ context.Context, roomNo int64) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.rooms[roomNo]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return &Room{RoomNo: roomNo, RoomName: name}, nil
}

func (m *memRepo) AddMember(_ context.Context, roomNo int64, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.members[roomNo] == nil {
		m.members[roomNo] = map[string]bool{}
	}
	m.members[roomNo][userID] = true
	return nil
}

func (m *memRepo) ListMembers(_ context.Context, roomNo int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []string{}
	for id := range m.members[roomNo] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memRepo) InsertMessage(_ context.Context, msg *RoomMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	msg.RoomMessageNo = int64(len(m.messages) + 1)
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memRepo) ListMessages(_ context.Context, roomNo int64, before int64, limit int) ([]RoomMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []RoomMessage{}
	for _, msg := range m.messages {
		if msg.RoomNo == roomNo && (before == 0 || msg.RoomMessageNo < before) {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memRepo) stored() []RoomMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RoomMessage(nil), m.messages...)
}

type stubVerifier map[string]*auth.Identity

func (s stubVerifier) Verify(raw string) (*auth.Identity, error) {
	if id, ok := s[auth.RemoveBearer(raw)]; ok {
		return id, nil
	}
	return nil, auth.ErrUnauthenticated
}

var testVerifier = stubVerifier{
	"alice-token": {UserID: "alice", UserType: auth.RoleMember},
	"bob-token":   {UserID: "bob", UserType: auth.RoleAirline},
}

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func newTestService(repo Repository, hub *Hub, cacheService cache.Service) *service {
	svc := NewService(repo, hub, testVerifier, cacheService).(*service)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestHubPublish(t *testing.T) {
	hub := NewHub()
	a, b := NewSubscriber(4), NewSubscriber(4)
	hub.Subscribe("/private/chat/1", "sub-a", a)
	hub.Subscribe("/private/chat/1", "sub-b", b)
	hub.Subscribe("/private/chat/2", "sub-a2", a)

	if n := hub.Publish("/private/chat/1", []byte("hi")); n != 2 {
		t.Fatalf("delivered = %d, want 2", n)
	}
	d := <-a.Queue()
	if d.Subscription != "sub-a" || string(d.Body) != "hi" || d.MessageID == "" {
		t.Errorf("delivery = %+v", d)
	}

	hub.Unsubscribe("sub-b", b)
	if n := hub.Subscribers("/private/chat/1"); n != 1 {
		t.Errorf("subscribers = %d, want 1", n)
	}

	hub.Remove(a)
	if hub.Subscribers("/private/chat/1") != 0 || hub.Subscribers("/private/chat/2") != 0 {
		t.Errorf("remove left subscriptions behind")
	}
	select {
	case <-a.Done():
	default:
		t.Errorf("removed subscriber not closed")
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := NewHub()
	slow, fast := NewSubscriber(1), NewSubscriber(8)
	hub.Subscribe("/private/chat/1", "slow", slow)
	hub.Subscribe("/private/chat/1", "fast", fast)

	hub.Publish("/private/chat/1", []byte("1"))
	if n := hub.Publish("/private/chat/1", []byte("2")); n != 1 {
		t.Errorf("delivered = %d, want 1", n)
	}

	select {
	case <-slow.Done():
	default:
		t.Fatal("slow subscriber was not dropped")
	}
	if n := hub.Subscribers("/private/chat/1"); n != 1 {
		t.Errorf("subscribers = %d, want 1", n)
	}
	if len(fast.Queue()) != 2 {
		t.Errorf("fast subscriber queue = %d, want 2", len(fast.Queue()))
	}
}

func TestSendBroadcastsThenPersists(t *testing.T) {
	repo := newMemRepo()
	hub := NewHub()
	svc := newTestService(repo, hub, nil)

	listener := NewSubscriber(4)
	hub.Subscribe(RoomTopic(1), "l", listener)

	if !svc.Send(context.Background(), "Bearer alice-token", 1, "hello crew") {
		t.Fatal("member message rejected")
	}

	d := <-listener.Queue()
	var got ChatResponse
	if err := json.Unmarshal(d.Body, &got); err != nil {
		t.Fatal(err)
	}
	if got.SenderUsersID != "alice" || got.SenderUsersType != "MEMBER" || got.Content != "hello crew" ||
		got.Type != "chat" || !got.Time.Equal(fixedNow) {
		t.Errorf("broadcast = %+v", got)
	}

	stored := repo.stored()
	if len(stored) != 1 {
		t.Fatalf("stored = %d messages", len(stored))
	}
	msg := stored[0]
	if msg.RoomMessageType != "chat" || msg.RoomMessageSender != "alice" || msg.RoomMessageReceiver != nil ||
		!msg.RoomMessageTime.Equal(fixedNow) || msg.RoomNo != 1 || msg.RoomMessageContent != "hello crew" {
		t.Errorf("stored = %+v", msg)
	}
}

func TestSendDropsSilently(t *testing.T) {
	repo := newMemRepo()
	hub := NewHub()
	svc := newTestService(repo, hub, nil)
	listener := NewSubscriber(4)
	hub.Subscribe(RoomTopic(1), "l", listener)

	tests := []struct {
		name  string
		token string
		room  int64
	}{
		{"missing token", "", 1},
		{"invalid token", "Bearer forged", 1},
		{"not a member", "Bearer bob-token", 1},
		{"unknown room", "Bearer alice-token", 99},
	}
	for _, tt := range tests {
		if svc.Send(context.Background(), tt.token, tt.room, "psst") {
			t.Errorf("%s: message accepted", tt.name)
		}
	}

	if len(listener.Queue()) != 0 {
		t.Errorf("dropped messages were broadcast")
	}
	if len(repo.stored()) != 0 {
		t.Errorf("dropped messages were persisted")
	}
}

func TestSendPersistFailureStillDelivers(t *testing.T) {
	repo := newMemRepo()
	repo.insertErr = errors.New("disk full")
	hub := NewHub()
	svc := newTestService(repo, hub, nil)
	listener := NewSubscriber(4)
	hub.Subscribe(RoomTopic(1), "l", listener)

	if !svc.Send(context.Background(), "alice-token", 1, "still here") {
		t.Fatal("message rejected")
	}
	if len(listener.Queue()) != 1 {
		t.Errorf("message not delivered")
	}
}

func TestEnterAndHistory(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, NewHub(), cache.NewMemoryService())
	ctx := context.Background()

	if _, err := svc.History(ctx, "bob", 1, 0, 10); !errors.Is(err, ErrNotMember) {
		t.Fatalf("err = %v, want ErrNotMember", err)
	}
	// membership is now cached as [alice]; Enter must invalidate it
	if err := svc.Enter(ctx, "bob", 1); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if err := svc.Enter(ctx, "bob", 1); err != nil {
		t.Fatalf("second Enter: %v", err)
	}
	if err := svc.Enter(ctx, "bob", 42); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("err = %v, want ErrRoomNotFound", err)
	}

	if !svc.Send(ctx, "bob-token", 1, "boarding") {
		t.Fatal("new member rejected")
	}
	history, err := svc.History(ctx, "bob", 1, 0, 0)
	if err != nil || len(history) != 1 || history[0].RoomMessageContent != "boarding" {
		t.Errorf("history = %+v, %v", history, err)
	}

	rooms, _ := svc.ListRooms(ctx, "bob")
	if len(rooms) != 2 || rooms[0].Join != "Y" || rooms[1].Join != "N" {
		t.Errorf("rooms = %+v", rooms)
	}
}

func TestDestinationParsing(t *testing.T) {
	tests := []struct {
		dest   string
		prefix string
		room   int64
		ok     bool
	}{
		{"/private/chat/7", TopicPrefix, 7, true},
		{"http://localhost:8080/private/chat/7", TopicPrefix, 7, true},
		{"/app/room/3", sendPrefixApp, 3, true},
		{"/room/3", sendPrefixRoom, 3, true},
		{"/private/chat/abc", TopicPrefix, 0, false},
		{"/private/chat/0", TopicPrefix, 0, false},
		{"/public/chat", TopicPrefix, 0, false},
	}
	for _, tt := range tests {
		room, ok := roomFromDestination(normalizeDestination(tt.dest), tt.prefix)
		if room != tt.room || ok != tt.ok {
			t.Errorf("%s: got (%d, %v), want (%d, %v)", tt.dest, room, ok, tt.room, tt.ok)
		}
	}

	if v := negotiateVersion("1.0,1.1,1.2"); v != "1.2" {
		t.Errorf("version = %s", v)
	}
	if v := negotiateVersion(""); v != "1.0" {
		t.Errorf("version = %s", v)
	}
}

func TestHistoryPagesBackwards(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, NewHub(), cache.NewMemoryService())
	ctx := context.Background()

	for _, text := range []string{"m1", "m2", "m3", "m4", "m5"} {
		if !svc.Send(ctx, "alice-token", 1, text) {
			t.Fatalf("send %s rejected", text)
		}
	}

	contents := func(msgs []RoomMessage) []string {
		out := make([]string, len(msgs))
		for i, m := range msgs {
			out[i] = m.RoomMessageContent
		}
		return out
	}

	tests := []struct {
		name   string
		before int64
		want   []string
	}{
		{"newest page", 0, []string{"m4", "m5"}},
		{"older page", 4, []string{"m2", "m3"}},
		{"last partial page", 2, []string{"m1"}},
		{"past the start", 1, []string{}},
		{"negative cursor", -3, []string{"m4", "m5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.History(ctx, "alice", 1, tt.before, 2)
			if err != nil {
				t.Fatalf("History: %v", err)
			}
			if got := contents(page); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("page = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRepositoryListMessagesCursor(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer sqlDB.Close()
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "room_messages" WHERE room_no = \$1 AND room_message_no < \$2 ORDER BY room_message_no DESC LIMIT \$3`).
		WithArgs(int64(1), int64(40), 2).
		WillReturnRows(sqlmock.NewRows([]string{"room_message_no", "room_message_content", "room_no", "room_message_time"}).
			AddRow(int64(39), "later", int64(1), now).
			AddRow(int64(38), "earlier", int64(1), now))

	msgs, err := NewRepository(db).ListMessages(context.Background(), 1, 40, 2)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].RoomMessageNo != 38 || msgs[1].RoomMessageNo != 39 {
		t.Errorf("messages = %+v, want 38 then 39", msgs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
