// Package websocket pushes classification results to connected viewers.
package websocket

import (
	"encoding/json"
	"sync"

	"camnet/internal/logger"
	"camnet/internal/service/ai"
)

// Message is what viewers receive.
type Message struct {
	Text   string     `json:"text"`
	Result *ai.Result `json:"result,omitempty"`
}

// Board is the text area viewers see. Display is only called on the UI
// queue; readers may call Current from any goroutine.
type Board struct {
	hub    *HubService
	logger *logger.Logger

	mu      sync.RWMutex
	current Message
}

// NewBoard creates a board broadcasting through hub and greets new viewers
// with the current text.
func NewBoard(hub *HubService, logger *logger.Logger) *Board {
	b := &Board{hub: hub, logger: logger}
	hub.SetGreeting(b.encoded)
	return b
}

// Display shows result and broadcasts it.
func (b *Board) Display(result *ai.Result) {
	msg := Message{Text: result.Text(), Result: result}

	b.mu.Lock()
	b.current = msg
	b.mu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("Error encoding result: %v", err)
		return
	}
	b.hub.Broadcast(data)
}

// Current returns the text and result on display.
func (b *Board) Current() Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

func (b *Board) encoded() []byte {
	msg := b.Current()
	if msg.Result == nil {
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil
	}
	return data
}
