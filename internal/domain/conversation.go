package domain

import (
	"fmt"
	"sort"
	"time"
)

type Conversation struct {
	ConversationID string        `json:"id" dynamodbav:"conversation_id"`
	PairKey        string        `json:"-" dynamodbav:"pair_key"`
	CreatedAt      time.Time     `json:"created_at" dynamodbav:"created_at"`
	Participants   []Participant `json:"participants,omitempty" dynamodbav:"-"`
	LastMessage    *Message      `json:"last_message" dynamodbav:"-"`
}

// Participant links a user to a conversation. PK: conversation_id, SK: user_id.
type Participant struct {
	ParticipantID  string          `json:"id" dynamodbav:"participant_id"`
	ConversationID string          `json:"conversation_id" dynamodbav:"conversation_id"`
	UserID         string          `json:"user_id" dynamodbav:"user_id"`
	CreatedAt      time.Time       `json:"created_at" dynamodbav:"created_at"`
	Profile        *ProfileSummary `json:"profile,omitempty" dynamodbav:"-"`
}

// Message belongs to exactly one conversation. PK: conversation_id, SK: message_key.
type Message struct {
	MessageID      string    `json:"id" dynamodbav:"message_id"`
	ConversationID string    `json:"conversation_id" dynamodbav:"conversation_id"`
	MessageKey     string    `json:"-" dynamodbav:"message_key"`
	SenderID       string    `json:"user_id" dynamodbav:"sender_id"`
	Content        string    `json:"content" dynamodbav:"content"`
	Read           bool      `json:"read" dynamodbav:"read"`
	CreatedAt      time.Time `json:"created_at" dynamodbav:"created_at"`
}

type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}

type CreateConversationRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// PairKey returns the order-independent key of a two-user conversation. Each
// id is length-prefixed so ids containing the separator cannot collide.
func PairKey(userA, userB string) string {
	ids := []string{userA, userB}
	sort.Strings(ids)
	return fmt.Sprintf("%d:%s#%d:%s", len(ids[0]), ids[0], len(ids[1]), ids[1])
}

// HasParticipant reports whether userID takes part in c.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// SortByLastMessage orders conversations by last message time, newest first.
// Conversations without messages go last and keep their relative order.
func SortByLastMessage(cs []Conversation) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i].LastMessage, cs[j].LastMessage
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})
}
