// Package client holds the caller-side pieces of the generation pipeline:
// in-memory conversation state with optimistic message reconciliation, and
// the status poller that drives in-flight generations to their terminal
// state.
package client

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yiyebaofu0518/typix/internal/chat"
	"github.com/yiyebaofu0518/typix/internal/domain"
)

const tempIDPrefix = "temp-user-"

// Conversation is the rendered message list of one chat. Optimistic messages
// are locally synthesized projections that are guaranteed to be removed or
// superseded once the authoritative response arrives.
type Conversation struct {
	mu       sync.Mutex
	chatID   string
	messages []chat.MessageView
}

// NewConversation creates conversation state for chatID.
func NewConversation(chatID string) *Conversation {
	return &Conversation{chatID: chatID}
}

// ChatID returns the owning chat id.
func (c *Conversation) ChatID() string { return c.chatID }

// Load replaces the message list with server state.
func (c *Conversation) Load(messages []chat.MessageView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append([]chat.MessageView(nil), messages...)
}

// Messages returns a snapshot of the message list.
func (c *Conversation) Messages() []chat.MessageView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.MessageView(nil), c.messages...)
}

// Append adds a server message at the tail.
func (c *Conversation) Append(msg chat.MessageView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

// AppendOptimistic inserts a locally synthesized pending user message at the
// tail and returns its temporary id. The message is structurally a normal
// user message; only the id marks it as local.
func (c *Conversation) AppendOptimistic(content string) string {
	now := time.Now()
	tempID := tempIDPrefix + uuid.NewString()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, chat.MessageView{
		ID:        tempID,
		ChatID:    c.chatID,
		Content:   content,
		Role:      domain.MessageRoleUser,
		Type:      domain.MessageTypeText,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return tempID
}

// Confirm removes the optimistic message and splices the server-returned
// message set in at the same logical position, preserving any other messages
// appended in the interim.
func (c *Conversation) Confirm(tempID string, serverMessages []chat.MessageView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.indexOf(tempID)
	if idx < 0 {
		c.messages = append(c.messages, serverMessages...)
		return
	}
	tail := append([]chat.MessageView(nil), c.messages[idx+1:]...)
	c.messages = append(c.messages[:idx], serverMessages...)
	c.messages = append(c.messages, tail...)
}

// Reject removes the optimistic message entirely; no partial state remains.
func (c *Conversation) Reject(tempID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.indexOf(tempID)
	if idx < 0 {
		return
	}
	c.messages = append(c.messages[:idx], c.messages[idx+1:]...)
}

// ApplyGeneration replaces the generation sub-object of every message
// referencing generationID. Content, role and timestamps are untouched, and a
// non-terminal status never overwrites an observed terminal one.
func (c *Conversation) ApplyGeneration(generationID string, gen *chat.GenerationView) {
	if gen == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages {
		msg := &c.messages[i]
		if msg.GenerationID != generationID && (msg.Generation == nil || msg.Generation.ID != generationID) {
			continue
		}
		if msg.Generation != nil && msg.Generation.Status.Terminal() && !gen.Status.Terminal() {
			continue
		}
		copied := *gen
		msg.Generation = &copied
	}
}

// InFlight returns the generation ids of messages whose generation has not
// reached a terminal status.
func (c *Conversation) InFlight() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	seen := map[string]bool{}
	for i := range c.messages {
		msg := &c.messages[i]
		id := msg.GenerationID
		if id == "" && msg.Generation != nil {
			id = msg.Generation.ID
		}
		if id == "" || seen[id] {
			continue
		}
		if msg.Generation != nil && msg.Generation.Status.Terminal() {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// HasOptimistic reports whether any temporary-id message remains.
func (c *Conversation) HasOptimistic() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages {
		if strings.HasPrefix(c.messages[i].ID, tempIDPrefix) {
			return true
		}
	}
	return false
}

func (c *Conversation) indexOf(id string) int {
	for i := range c.messages {
		if c.messages[i].ID == id {
			return i
		}
	}
	return -1
}
