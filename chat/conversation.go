// Package chat relays private chat between the browser and the backend
// websocket and keeps the state of one open conversation.
package chat

import (
	"fmt"
	"strings"
	"time"
)

// Event types sent by the backend.
const (
	TypeMessage = "private_message"
	TypeEdit    = "private_edit"
	TypeDelete  = "private_delete"
	TypeTyping  = "private_typing"
)

// Time accepts RFC 3339 timestamps with or without a zone. Zoneless values
// are UTC.
type Time struct {
	time.Time
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999"}

func (t *Time) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range timeLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v
			return nil
		}
	}
	return fmt.Errorf("chat: invalid timestamp %q", s)
}

// Message is one private message as the backend reports it.
type Message struct {
	ID         int64  `json:"message_id"`
	SenderID   int64  `json:"sender_id"`
	ReceiverID int64  `json:"receiver_id"`
	Content    string `json:"content"`
	Timestamp  Time   `json:"timestamp"`
	Username   string `json:"username,omitempty"`
}

// Event is any frame pushed by the backend chat socket.
type Event struct {
	Type       string `json:"type"`
	MessageID  int64  `json:"message_id"`
	SenderID   int64  `json:"sender_id"`
	ReceiverID int64  `json:"receiver_id"`
	Content    string `json:"content"`
	NewContent string `json:"new_content"`
	Username   string `json:"username"`
	Timestamp  Time   `json:"timestamp"`
}

func (e Event) message() Message {
	return Message{
		ID:         e.MessageID,
		SenderID:   e.SenderID,
		ReceiverID: e.ReceiverID,
		Content:    e.Content,
		Timestamp:  e.Timestamp,
		Username:   e.Username,
	}
}

// Conversation is the open chat between Self and Peer.
type Conversation struct {
	Self       int64
	Peer       int64
	Messages   []Message
	PeerTyping string
}

func NewConversation(self, peer int64, history []Message) *Conversation {
	return &Conversation{Self: self, Peer: peer, Messages: append([]Message(nil), history...)}
}

func (c *Conversation) between(sender, receiver int64) bool {
	return (sender == c.Self && receiver == c.Peer) || (sender == c.Peer && receiver == c.Self)
}

func (c *Conversation) index(id int64) int {
	for i, m := range c.Messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// Apply folds e into the conversation and reports whether e concerns it.
// Messages append in arrival order, edits and deletes match by id, and
// typing counts only when it comes from the peer.
func (c *Conversation) Apply(e Event) bool {
	switch e.Type {
	case TypeMessage:
		if !c.between(e.SenderID, e.ReceiverID) {
			return false
		}
		c.Messages = append(c.Messages, e.message())
		if e.SenderID == c.Peer {
			c.PeerTyping = ""
		}
		return true
	case TypeEdit:
		i := c.index(e.MessageID)
		if i < 0 {
			return false
		}
		c.Messages[i].Content = e.NewContent
		return true
	case TypeDelete:
		i := c.index(e.MessageID)
		if i < 0 {
			return false
		}
		c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
		return true
	case TypeTyping:
		if e.SenderID != c.Peer {
			return false
		}
		c.PeerTyping = e.Username
		return true
	}
	return false
}
