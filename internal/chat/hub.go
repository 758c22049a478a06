package chat

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// Delivery is one message queued for one subscription
type Delivery struct {
	Subscription string
	Destination  string
	MessageID    string
	Body         []byte
}

// Subscriber is one connection's outbound queue. A subscriber that falls
// behind is dropped rather than allowed to stall a broadcast.
type Subscriber struct {
	queue chan Delivery
	done  chan struct{}
	once  sync.Once
}

func NewSubscriber(buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = 1
	}
	return &Subscriber{
		queue: make(chan Delivery, buffer),
		done:  make(chan struct{}),
	}
}

func (s *Subscriber) Queue() <-chan Delivery { return s.queue }
func (s *Subscriber) Done() <-chan struct{}  { return s.done }

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

type subscription struct {
	id  string
	sub *Subscriber
}

// Hub fans room broadcasts out to subscribed connections
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[subscription]struct{}
	seq    atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[subscription]struct{})}
}

func (h *Hub) Subscribe(topic, id string, s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[subscription]struct{})
		h.topics[topic] = subs
	}
	subs[subscription{id: id, sub: s}] = struct{}{}
}

func (h *Hub) Unsubscribe(id string, s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := subscription{id: id, sub: s}
	for topic, subs := range h.topics {
		if _, ok := subs[key]; ok {
			delete(subs, key)
			if len(subs) == 0 {
				delete(h.topics, topic)
			}
		}
	}
}

// Remove drops every subscription s holds and closes it
func (h *Hub) Remove(s *Subscriber) {
	h.mu.Lock()
	for topic, subs := range h.topics {
		for key := range subs {
			if key.sub == s {
				delete(subs, key)
			}
		}
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	h.mu.Unlock()
	s.close()
}

// Publish queues body for every subscription on topic and returns how many
// accepted it. It never blocks on a slow subscriber.
func (h *Hub) Publish(topic string, body []byte) int {
	msgID := strconv.FormatUint(h.seq.Add(1), 10)

	var slow []*Subscriber
	delivered := 0

	h.mu.RLock()
	for key := range h.topics[topic] {
		d := Delivery{
			Subscription: key.id,
			Destination:  topic,
			MessageID:    msgID,
			Body:         body,
		}
		select {
		case key.sub.queue <- d:
			delivered++
		default:
			slow = append(slow, key.sub)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		h.Remove(s)
	}
	return delivered
}

func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
