package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrThreadNotFound = goerr.New("thread not found")
	ErrInvalidRole    = goerr.New("invalid message role")
)

type ThreadID string

// NewThreadID generates a new unique ThreadID
func NewThreadID() ThreadID {
	return ThreadID(uuid.New().String())
}

type MessageID string

// NewMessageID generates a new unique MessageID
func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Validate checks if the role is valid
func (r Role) Validate() error {
	switch r {
	case RoleUser, RoleAssistant:
		return nil
	default:
		return goerr.Wrap(ErrInvalidRole, "unknown role", goerr.V("role", r))
	}
}

// Thread is a persisted chat thread
type Thread struct {
	ID        ThreadID  `json:"thread_id" firestore:"thread_id"`
	Title     string    `json:"title" firestore:"title"`
	Tags      []string  `json:"tags" firestore:"tags"`
	CreatedAt time.Time `json:"created_at" firestore:"created_at"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updated_at"`
}

// Message is a single chat turn within a thread
type Message struct {
	ID        MessageID `json:"message_id" firestore:"message_id"`
	ThreadID  ThreadID  `json:"thread_id" firestore:"thread_id"`
	Timestamp time.Time `json:"timestamp" firestore:"timestamp"`
	Role      Role      `json:"role" firestore:"role"`
	Content   string    `json:"content" firestore:"content"`
}

// ChatMessage is a role-tagged chat turn handed to a language model. Roles
// read from external stores are normalized to user when they fail validation.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
