package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/xingyu/internal/clock"
	"github.com/smallbiznis/xingyu/internal/conversation/domain"
	"github.com/smallbiznis/xingyu/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Metrics *metrics.GenerationMetrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	metrics *metrics.GenerationMetrics
}

func New(p Params) domain.Store {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("conversation.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) handle(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return s.db
	}
	return tx
}

func (s *Service) CreateConversation(ctx context.Context, tx *gorm.DB, userID snowflake.ID, conversationType string, cost int64) (*domain.Conversation, error) {
	conversationType = strings.TrimSpace(conversationType)
	if conversationType == "" {
		conversationType = domain.TypeTarot
	}

	now := s.clock.Now()
	conversation := &domain.Conversation{
		ID:               s.genID.Generate(),
		UserID:           userID,
		ConversationType: conversationType,
		Status:           domain.StatusActive,
		TotalCost:        cost,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.InsertConversation(ctx, s.handle(tx), conversation); err != nil {
		s.metrics.IncStoreError("create_conversation", err)
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return conversation, nil
}

func (s *Service) AppendMessage(ctx context.Context, tx *gorm.DB, conversationID snowflake.ID, role domain.Role, content string, metadata datatypes.JSON) (*domain.Message, error) {
	switch role {
	case domain.RoleUser, domain.RoleAssistant, domain.RoleSystem:
	default:
		return nil, domain.ErrInvalidRole
	}

	message := &domain.Message{
		ID:             s.genID.Generate(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Metadata:       metadata,
		CreatedAt:      s.clock.Now(),
	}
	if err := s.repo.InsertMessage(ctx, s.handle(tx), message); err != nil {
		s.metrics.IncStoreError("append_message", err)
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return message, nil
}

func (s *Service) RecordRequest(ctx context.Context, tx *gorm.DB, request domain.GenerationRequest) (*domain.GenerationRequest, error) {
	if request.ID == 0 {
		request.ID = s.genID.Generate()
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = s.clock.Now()
	}
	if len(request.Cards) == 0 {
		request.Cards = datatypes.JSON("[]")
	}
	if err := s.repo.InsertRequest(ctx, s.handle(tx), &request); err != nil {
		s.metrics.IncStoreError("record_request", err)
		return nil, fmt.Errorf("insert generation request: %w", err)
	}
	return &request, nil
}

func (s *Service) GetHistory(ctx context.Context, conversationID snowflake.ID) ([]domain.Message, error) {
	messages, err := s.repo.ListMessages(ctx, s.db, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}

// Complete appends the assistant reply and closes the conversation in one
// transaction, so a completed conversation always has exactly one reply.
func (s *Service) Complete(ctx context.Context, conversationID snowflake.ID, content string) (*domain.Message, error) {
	var message *domain.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated, err := s.repo.UpdateStatus(ctx, tx, conversationID, domain.StatusActive, domain.StatusCompleted, s.clock.Now())
		if err != nil {
			return fmt.Errorf("complete conversation: %w", err)
		}
		if !updated {
			return domain.ErrNotActive
		}

		message, err = s.AppendMessage(ctx, tx, conversationID, domain.RoleAssistant, content, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return message, nil
}

func (s *Service) MarkFailed(ctx context.Context, conversationID snowflake.ID) error {
	updated, err := s.repo.UpdateStatus(ctx, s.db, conversationID, domain.StatusActive, domain.StatusFailed, s.clock.Now())
	if err != nil {
		s.metrics.IncStoreError("mark_failed", err)
		return fmt.Errorf("mark conversation failed: %w", err)
	}
	if !updated {
		return domain.ErrNotActive
	}
	return nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Conversation, error) {
	conversation, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("find conversation: %w", err)
	}
	if conversation == nil {
		return domain.Conversation{}, domain.ErrNotFound
	}
	return *conversation, nil
}

func (s *Service) ListByUser(ctx context.Context, userID snowflake.ID, limit int) ([]domain.Conversation, error) {
	if limit <= 0 || limit > domain.MaxListLimit {
		limit = domain.MaxListLimit
	}
	conversations, err := s.repo.ListByUser(ctx, s.db, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if conversations == nil {
		conversations = []domain.Conversation{}
	}
	return conversations, nil
}

func (s *Service) GetRequest(ctx context.Context, conversationID snowflake.ID) (domain.GenerationRequest, error) {
	req, err := s.repo.FindRequestByConversation(ctx, s.db, conversationID)
	if err != nil {
		return domain.GenerationRequest{}, fmt.Errorf("find generation request: %w", err)
	}
	if req == nil {
		return domain.GenerationRequest{}, domain.ErrNotFound
	}
	return *req, nil
}
