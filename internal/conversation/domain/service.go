package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Store persists generation sessions. Methods taking tx write on the given
// handle so the caller can group them in one transaction; a nil tx uses the
// store's own connection.
type Store interface {
	CreateConversation(ctx context.Context, tx *gorm.DB, userID snowflake.ID, conversationType string, cost int64) (*Conversation, error)
	AppendMessage(ctx context.Context, tx *gorm.DB, conversationID snowflake.ID, role Role, content string, metadata datatypes.JSON) (*Message, error)
	RecordRequest(ctx context.Context, tx *gorm.DB, request GenerationRequest) (*GenerationRequest, error)
	GetHistory(ctx context.Context, conversationID snowflake.ID) ([]Message, error)
	Complete(ctx context.Context, conversationID snowflake.ID, content string) (*Message, error)
	MarkFailed(ctx context.Context, conversationID snowflake.ID) error
	GetByID(ctx context.Context, id snowflake.ID) (Conversation, error)
	ListByUser(ctx context.Context, userID snowflake.ID, limit int) ([]Conversation, error)
	GetRequest(ctx context.Context, conversationID snowflake.ID) (GenerationRequest, error)
}

const MaxListLimit = 50

var (
	ErrInvalidRole = errors.New("invalid_role")
	ErrNotFound    = errors.New("conversation_not_found")
	ErrNotActive   = errors.New("conversation_not_active")
)
