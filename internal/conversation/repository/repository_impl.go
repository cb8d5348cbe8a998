package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/xingyu/internal/conversation/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertConversation(ctx context.Context, db *gorm.DB, c *domain.Conversation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO ai_conversations (id, user_id, conversation_type, status, total_cost, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.UserID,
		c.ConversationType,
		c.Status,
		c.TotalCost,
		c.CreatedAt,
		c.UpdatedAt,
	).Error
}

func (r *repo) InsertMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO ai_messages (id, conversation_id, role, content, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.ConversationID,
		m.Role,
		m.Content,
		m.Metadata,
		m.CreatedAt,
	).Error
}

func (r *repo) InsertRequest(ctx context.Context, db *gorm.DB, req *domain.GenerationRequest) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tarot_ai_requests (id, user_id, conversation_id, spread_id, question, cards, cost, correlation_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID,
		req.UserID,
		req.ConversationID,
		req.SpreadID,
		req.Question,
		req.Cards,
		req.Cost,
		req.CorrelationID,
		req.CreatedAt,
	).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.Status, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE ai_conversations SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to,
		now,
		id,
		from,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, conversation_type, status, total_cost, created_at, updated_at
		 FROM ai_conversations WHERE id = ?`,
		id,
	).Scan(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *repo) ListMessages(ctx context.Context, db *gorm.DB, conversationID snowflake.ID) ([]domain.Message, error) {
	var messages []domain.Message
	err := db.WithContext(ctx).Raw(
		`SELECT id, conversation_id, role, content, metadata, created_at
		 FROM ai_messages
		 WHERE conversation_id = ?
		 ORDER BY created_at ASC, id ASC`,
		conversationID,
	).Scan(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]domain.Conversation, error) {
	var conversations []domain.Conversation
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, conversation_type, status, total_cost, created_at, updated_at
		 FROM ai_conversations
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		userID,
		limit,
	).Scan(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

func (r *repo) FindRequestByConversation(ctx context.Context, db *gorm.DB, conversationID snowflake.ID) (*domain.GenerationRequest, error) {
	var req domain.GenerationRequest
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, conversation_id, spread_id, question, cards, cost, correlation_id, created_at
		 FROM tarot_ai_requests WHERE conversation_id = ?`,
		conversationID,
	).Scan(&req).Error
	if err != nil {
		return nil, err
	}
	if req.ID == 0 {
		return nil, nil
	}
	return &req, nil
}
