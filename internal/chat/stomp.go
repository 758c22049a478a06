package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"topgun/internal/auth"
	"topgun/internal/shared/config"
	"topgun/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	headerAccessToken = "accessToken"

	sendPrefixApp  = "/app/room/"
	sendPrefixRoom = "/room/"
)

var supportedVersions = []string{"1.2", "1.1", "1.0"}

// StompHandler serves the chat broker: STOMP frames carried in websocket messages
type StompHandler struct {
	hub      *Hub
	service  Service
	verifier auth.Verifier
	cfg      config.ChatConfig
	upgrader websocket.Upgrader
}

func NewStompHandler(hub *Hub, service Service, verifier auth.Verifier, cfg config.ChatConfig) *StompHandler {
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 64 * 1024
	}

	h := &StompHandler{
		hub:      hub,
		service:  service,
		verifier: verifier,
		cfg:      cfg,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		Subprotocols:    []string{"v12.stomp", "v11.stomp", "v10.stomp"},
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *StompHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// ServeWS godoc
// @Summary STOMP over websocket chat endpoint
// @Tags chat
// @Router /ws [get]
func (h *StompHandler) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already answered with an HTTP error
		logger.GetDefault().WarnContext(c.Request.Context(), "websocket upgrade failed", "error", err)
		return
	}

	s := &session{
		h:       h,
		conn:    conn,
		sub:     NewSubscriber(h.cfg.SendBuffer),
		control: make(chan *frame.Frame, 16),
		subs:    make(map[string]string),
	}
	s.run(context.WithoutCancel(c.Request.Context()))
}

type session struct {
	h    *StompHandler
	conn *websocket.Conn
	sub  *Subscriber

	// frames other than MESSAGE, written by the writer goroutine
	control chan *frame.Frame

	connected bool
	identity  *auth.Identity
	subs      map[string]string // subscription id -> destination
}

func (s *session) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ctx)
	}()

	s.readLoop(ctx)

	cancel()
	s.h.hub.Remove(s.sub)
	<-writerDone
	s.conn.Close()
}

func (s *session) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(s.h.cfg.MaxMessageSize)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.GetDefault().DebugContext(ctx, "websocket closed", "error", err)
			}
			return
		}

		reader := frame.NewReader(bytes.NewReader(data))
		for {
			f, err := reader.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				s.fail(ctx, "malformed frame")
				return
			}
			if f == nil {
				continue // heart-beat
			}
			if !s.handle(ctx, f) {
				return
			}
		}
	}
}

// handle processes one frame and reports whether the session continues
func (s *session) handle(ctx context.Context, f *frame.Frame) bool {
	if !s.connected {
		if f.Command != frame.CONNECT && f.Command != frame.STOMP {
			s.fail(ctx, "expected CONNECT frame")
			return false
		}
		s.onConnect(ctx, f)
		return true
	}

	switch f.Command {
	case frame.SUBSCRIBE:
		if !s.onSubscribe(ctx, f) {
			return false
		}
	case frame.UNSUBSCRIBE:
		s.onUnsubscribe(f)
	case frame.SEND:
		s.onSend(ctx, f)
	case frame.ACK, frame.NACK, frame.BEGIN, frame.COMMIT, frame.ABORT:
		// nothing is transactional or acked here
	case frame.DISCONNECT:
		s.receipt(ctx, f)
		return false
	default:
		s.fail(ctx, "unsupported command "+f.Command)
		return false
	}

	s.receipt(ctx, f)
	return true
}

func (s *session) onConnect(ctx context.Context, f *frame.Frame) {
	if token := f.Header.Get(headerAccessToken); token != "" {
		if identity, err := s.h.verifier.Verify(token); err == nil {
			s.identity = identity
		}
	}
	s.connected = true

	s.enqueue(ctx, frame.New(frame.CONNECTED,
		frame.Version, negotiateVersion(f.Header.Get(frame.AcceptVersion)),
		frame.HeartBeat, "0,0",
		frame.Server, "topgun",
		frame.Session, uuid.NewString(),
	))
}

func (s *session) onSubscribe(ctx context.Context, f *frame.Frame) bool {
	dest := normalizeDestination(f.Header.Get(frame.Destination))
	roomNo, ok := roomFromDestination(dest, TopicPrefix)
	if !ok {
		s.fail(ctx, "unknown destination "+dest)
		return false
	}
	if s.identity == nil {
		s.fail(ctx, "authentication required")
		return false
	}

	member, err := s.h.service.IsMember(ctx, roomNo, s.identity.UserID)
	if err != nil || !member {
		s.fail(ctx, "not a member of room "+strconv.FormatInt(roomNo, 10))
		return false
	}

	id := f.Header.Get(frame.Id)
	if id == "" {
		id = dest
	}
	s.subs[id] = dest
	s.h.hub.Subscribe(dest, id, s.sub)
	return true
}

func (s *session) onUnsubscribe(f *frame.Frame) {
	id := f.Header.Get(frame.Id)
	if _, ok := s.subs[id]; !ok {
		return
	}
	delete(s.subs, id)
	s.h.hub.Unsubscribe(id, s.sub)
}

// onSend never answers with an error: bad tokens, strangers and junk are dropped
func (s *session) onSend(ctx context.Context, f *frame.Frame) {
	dest := normalizeDestination(f.Header.Get(frame.Destination))
	roomNo, ok := roomFromDestination(dest, sendPrefixApp)
	if !ok {
		roomNo, ok = roomFromDestination(dest, sendPrefixRoom)
	}
	if !ok {
		return
	}

	var req ChatRequest
	if err := json.Unmarshal(f.Body, &req); err != nil {
		return
	}
	s.h.service.Send(ctx, f.Header.Get(headerAccessToken), roomNo, req.Content)
}

func (s *session) receipt(ctx context.Context, f *frame.Frame) {
	if id, ok := f.Header.Contains(frame.Receipt); ok {
		s.enqueue(ctx, frame.New(frame.RECEIPT, frame.ReceiptId, id))
	}
}

func (s *session) fail(ctx context.Context, message string) {
	f := frame.New(frame.ERROR, frame.Message, message, frame.ContentType, "text/plain")
	f.Body = []byte(message)
	s.enqueue(ctx, f)
}

func (s *session) enqueue(ctx context.Context, f *frame.Frame) {
	select {
	case s.control <- f:
	case <-ctx.Done():
	}
}

func (s *session) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.drainControl()
			return
		case <-s.sub.Done():
			// dropped by the hub for falling behind
			s.conn.Close()
			return
		case f := <-s.control:
			if err := s.write(f); err != nil {
				s.conn.Close()
				return
			}
		case d := <-s.sub.Queue():
			msg := frame.New(frame.MESSAGE,
				frame.Destination, d.Destination,
				frame.Subscription, d.Subscription,
				frame.MessageId, d.MessageID,
				frame.ContentType, "application/json",
			)
			msg.Body = d.Body
			if err := s.write(msg); err != nil {
				s.conn.Close()
				return
			}
		}
	}
}

// drainControl flushes receipts and errors queued before the session ended
func (s *session) drainControl() {
	for {
		select {
		case f := <-s.control:
			if err := s.write(f); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *session) write(f *frame.Frame) error {
	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		return err
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.h.cfg.WriteWait))
	return s.conn.WriteMessage(websocket.TextMessage, buf.Bytes())
}

func negotiateVersion(accept string) string {
	if accept == "" {
		return "1.0"
	}
	offered := strings.Split(accept, ",")
	for _, v := range supportedVersions {
		for _, o := range offered {
			if strings.TrimSpace(o) == v {
				return v
			}
		}
	}
	return "1.0"
}

// normalizeDestination strips a scheme and host some clients prepend
func normalizeDestination(dest string) string {
	if strings.Contains(dest, "://") {
		if u, err := url.Parse(dest); err == nil {
			return u.Path
		}
	}
	return dest
}

func roomFromDestination(dest, prefix string) (int64, bool) {
	if !strings.HasPrefix(dest, prefix) {
		return 0, false
	}
	roomNo, err := strconv.ParseInt(strings.TrimPrefix(dest, prefix), 10, 64)
	if err != nil || roomNo <= 0 {
		return 0, false
	}
	return roomNo, true
}
