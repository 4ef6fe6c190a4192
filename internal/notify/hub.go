// Package notify fans session notices out to WebSocket subscribers.
package notify

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-authoring/internal/wizard"
)

const sendBuffer = 64

type MessageType string

const (
	MsgNotice MessageType = "notice"
	MsgClosed MessageType = "session_closed"
)

// Message is the envelope written to subscribers.
type Message struct {
	Type      MessageType     `json:"type"`
	SessionID string          `json:"sessionId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Subscriber is one listener on one session.
type Subscriber struct {
	SessionID string
	Send      chan []byte
	hub       *Hub
}

// Hub implements wizard.Notifier. Notify never blocks; a subscriber whose
// buffer is full misses the message.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{}
	log  *zap.Logger
}

var _ wizard.Notifier = (*Hub)(nil)

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{subs: map[string]map[*Subscriber]struct{}{}, log: log}
}

func (h *Hub) Subscribe(sessionID string) *Subscriber {
	s := &Subscriber{SessionID: sessionID, Send: make(chan []byte, sendBuffer), hub: h}
	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = map[*Subscriber]struct{}{}
	}
	h.subs[sessionID][s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Unsubscribe removes s and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[s.SessionID]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	close(s.Send)
	if len(set) == 0 {
		delete(h.subs, s.SessionID)
	}
}

func (h *Hub) Notify(sessionID string, n wizard.Notice) {
	payload, err := json.Marshal(n)
	if err != nil {
		h.log.Warn("encode notice", zap.Error(err))
		return
	}
	h.publish(Message{Type: MsgNotice, SessionID: sessionID, Payload: payload})
}

// CloseSession tells subscribers the session is gone and drops them.
func (h *Hub) CloseSession(sessionID string) {
	h.publish(Message{Type: MsgClosed, SessionID: sessionID})
	h.mu.Lock()
	for s := range h.subs[sessionID] {
		close(s.Send)
	}
	delete(h.subs, sessionID)
	h.mu.Unlock()
}

func (h *Hub) publish(m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[m.SessionID] {
		select {
		case s.Send <- data:
		default:
			h.log.Debug("subscriber buffer full, message dropped", zap.String("session", m.SessionID))
		}
	}
}

// Subscribers reports how many listeners a session has.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}
