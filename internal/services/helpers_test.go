package services_test

import (
	"sync"

	"github.com/winniek75/flashinput-sub005/internal/models"
)

// recordingTransport is an in-memory Transport that keeps every message
// delivered to each connection.
type recordingTransport struct {
	mu     sync.Mutex
	topics map[string]map[string]bool
	inbox  map[string][]*models.WSMessage
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{
		topics: make(map[string]map[string]bool),
		inbox:  make(map[string][]*models.WSMessage),
	}
}

func (t *recordingTransport) Send(connID string, msg *models.WSMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inbox[connID] = append(t.inbox[connID], msg)
}

func (t *recordingTransport) Publish(topic string, msg *models.WSMessage, except string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for connID := range t.topics[topic] {
		if connID != except {
			t.inbox[connID] = append(t.inbox[connID], msg)
		}
	}
}

func (t *recordingTransport) Subscribe(connID, topic string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.topics[topic] == nil {
		t.topics[topic] = make(map[string]bool)
	}
	t.topics[topic][connID] = true
}

func (t *recordingTransport) Unsubscribe(connID, topic string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.topics[topic], connID)
}

func (t *recordingTransport) DropTopic(topic string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.topics, topic)
}

func (t *recordingTransport) subscribed(connID, topic string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.topics[topic][connID]
}

// messages returns what connID received, optionally filtered by type.
func (t *recordingTransport) messages(connID, msgType string) []*models.WSMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*models.WSMessage
	for _, msg := range t.inbox[connID] {
		if msgType == "" || msg.Type == msgType {
			out = append(out, msg)
		}
	}
	return out
}

func (t *recordingTransport) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inbox = make(map[string][]*models.WSMessage)
}

// sequenceCodes replays codes in order, repeating the last one.
func sequenceCodes(codes ...string) func() string {
	var mu sync.Mutex
	i := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		code := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return code
	}
}
