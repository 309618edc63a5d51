package domain

import (
	"time"
)

// MessageType message type, also the thread kind
type MessageType string

// ThreadKind kind of thread a message lands in
type ThreadKind = MessageType

const (
	// MessageTypeBroadcast one thread per tenant
	MessageTypeBroadcast MessageType = "broadcast"
	// MessageTypeGroup one thread per group
	MessageTypeGroup MessageType = "group"
	// MessageTypeIndividual one thread per parent, shared by all staff
	MessageTypeIndividual MessageType = "individual"
)

// Valid report whether t is a known message type
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeBroadcast, MessageTypeGroup, MessageTypeIndividual:
		return true
	}
	return false
}

// Message 表示一則訊息，建立後不可修改
type Message struct {
	ID          string      `bson:"_id" json:"id"`
	TenantID    string      `bson:"tenant_id" json:"tenant_id"`
	SenderID    string      `bson:"sender_id" json:"sender_id"`
	MessageType MessageType `bson:"message_type" json:"message_type"`
	GroupID     string      `bson:"group_id,omitempty" json:"group_id,omitempty"`
	RecipientID string      `bson:"recipient_id,omitempty" json:"recipient_id,omitempty"`
	// ThreadID group id or anchoring parent id, empty for broadcast
	ThreadID  string    `bson:"thread_id" json:"-"`
	Content   string    `bson:"content" json:"content"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Thread classify the message into its thread
func (m *Message) Thread() ThreadKey {
	switch m.MessageType {
	case MessageTypeGroup:
		return ThreadKey{Kind: MessageTypeGroup, ID: m.GroupID}
	case MessageTypeIndividual:
		if m.RecipientID != "" {
			return ThreadKey{Kind: MessageTypeIndividual, ID: m.RecipientID}
		}
		return ThreadKey{Kind: MessageTypeIndividual, ID: m.SenderID}
	default:
		return BroadcastThread
	}
}

// ComposeRequest body of a send request
type ComposeRequest struct {
	MessageType MessageType `json:"message_type"`
	Content     string      `json:"content"`
	GroupID     string      `json:"group_id,omitempty"`
	RecipientID string      `json:"recipient_id,omitempty"`
}
