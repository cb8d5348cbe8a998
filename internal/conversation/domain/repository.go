package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertConversation(ctx context.Context, db *gorm.DB, conversation *Conversation) error
	InsertMessage(ctx context.Context, db *gorm.DB, message *Message) error
	InsertRequest(ctx context.Context, db *gorm.DB, request *GenerationRequest) error
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, now time.Time) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Conversation, error)
	ListMessages(ctx context.Context, db *gorm.DB, conversationID snowflake.ID) ([]Message, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]Conversation, error)
	FindRequestByConversation(ctx context.Context, db *gorm.DB, conversationID snowflake.ID) (*GenerationRequest, error)
}
