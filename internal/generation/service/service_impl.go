package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	balancedomain "github.com/smallbiznis/xingyu/internal/balance/domain"
	"github.com/smallbiznis/xingyu/internal/config"
	conversationdomain "github.com/smallbiznis/xingyu/internal/conversation/domain"
	"github.com/smallbiznis/xingyu/internal/generation/domain"
	obscontext "github.com/smallbiznis/xingyu/internal/observability/context"
	"github.com/smallbiznis/xingyu/internal/observability/logger"
	"github.com/smallbiznis/xingyu/internal/observability/metrics"
	"github.com/smallbiznis/xingyu/internal/prompt"
	"github.com/smallbiznis/xingyu/internal/providers/llm"
	"github.com/smallbiznis/xingyu/internal/relay"
	spreaddomain "github.com/smallbiznis/xingyu/internal/spread/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Config        config.Config
	GenConfig     *config.GenerationConfigHolder
	Ledger        balancedomain.Ledger
	Conversations conversationdomain.Store
	Spreads       spreaddomain.Service
	Upstream      llm.Streamer
	Limiter       domain.Limiter             `optional:"true"`
	Metrics       *metrics.GenerationMetrics `optional:"true"`
	ObsMetrics    *metrics.Metrics           `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	limits        config.GenerationLimits
	genConfig     *config.GenerationConfigHolder
	ledger        balancedomain.Ledger
	conversations conversationdomain.Store
	spreads       spreaddomain.Service
	upstream      llm.Streamer
	limiter       domain.Limiter
	metrics       *metrics.GenerationMetrics
	obsMetrics    *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("generation.service"),
		limits:        p.Config.Generation,
		genConfig:     p.GenConfig,
		ledger:        p.Ledger,
		conversations: p.Conversations,
		spreads:       p.Spreads,
		upstream:      p.Upstream,
		limiter:       p.Limiter,
		metrics:       p.Metrics,
		obsMetrics:    p.ObsMetrics,
	}
}

type userMessageMetadata struct {
	SpreadID string        `json:"spread_id"`
	Cards    []prompt.Card `json:"cards"`
}

// Generate validates, prices and debits the request, records it, and
// connects upstream. Once the debit is applied it is never reversed, on
// any later failure.
func (s *Service) Generate(ctx context.Context, req domain.Request) (*relay.Session, error) {
	spreadLabel := req.SpreadID.String()

	question, cards, err := validate(req, s.limits)
	if err != nil {
		s.reject(ctx, spreadLabel, metrics.GenerationOutcomeInvalidInput)
		return nil, err
	}

	spread, err := s.spreads.GetByID(ctx, req.SpreadID)
	if err != nil {
		if errors.Is(err, spreaddomain.ErrNotFound) || errors.Is(err, spreaddomain.ErrInvalidID) {
			s.reject(ctx, spreadLabel, metrics.GenerationOutcomeSpreadNotFound)
			return nil, domain.ErrSpreadNotFound
		}
		s.reject(ctx, spreadLabel, metrics.GenerationOutcomeStoreUnavailable)
		return nil, fmt.Errorf("%w: spread lookup: %w", domain.ErrStoreUnavailable, err)
	}
	if !spread.IsEnabled {
		s.reject(ctx, spreadLabel, metrics.GenerationOutcomeSpreadNotFound)
		return nil, domain.ErrSpreadNotFound
	}

	genCfg := s.genConfig.Get()
	cost, err := Cost(genCfg.BasePrice, spread.PointMultiplier)
	if err != nil {
		s.log.Error("spread priced to a non-positive cost",
			zap.String("spread_id", spreadLabel),
			zap.Float64("base_price", genCfg.BasePrice),
			zap.Float64("point_multiplier", spread.PointMultiplier),
		)
		s.reject(ctx, spreadLabel, metrics.GenerationOutcomeInvalidPricing)
		return nil, err
	}

	if err := s.admit(ctx, req.UserID); err != nil {
		return nil, err
	}

	debit, err := s.ledger.Debit(ctx, req.UserID, cost)
	if err != nil {
		s.reject(ctx, spreadLabel, metrics.GenerationOutcomeStoreUnavailable)
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	if !debit.Applied {
		s.reject(ctx, spreadLabel, metrics.GenerationOutcomeInsufficientFunds)
		return nil, domain.ErrInsufficientFunds
	}
	s.obsMetrics.RecordPointsDebited(ctx, spreadLabel, cost)

	correlationID := ulid.Make().String()
	ctx = obscontext.WithCorrelationID(ctx, correlationID)
	log := logger.WithContext(ctx, s.log).With(
		zap.String("spread_id", spreadLabel),
		zap.Int64("cost", cost),
	)
	log.Info("points debited", zap.Int64("balance", debit.Balance))

	conversation, err := s.record(ctx, req.UserID, spread.ID, question, cards, cost, correlationID)
	if err != nil {
		log.Error("failed to record generation after debit", zap.Error(err))
		s.reject(ctx, spreadLabel, metrics.GenerationOutcomeStoreUnavailable)
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	log = log.With(zap.String("conversation_id", conversation.ID.String()))

	var template string
	if spread.AIPrompt != nil {
		template = *spread.AIPrompt
	}
	text := prompt.Build(
		prompt.Spread{Name: spread.Name, CardCount: spread.CardCount, Template: template},
		question,
		cards,
		prompt.Templates{Fallback: genCfg.FallbackPrompt, Closing: genCfg.ClosingPrompt},
	)
	messages := prompt.Messages(genCfg.SystemDirective, text)

	session := relay.NewSession(relay.Options{
		ConversationID: conversation.ID,
		CorrelationID:  correlationID,
		Cost:           cost,
		Recorder:       &recorder{store: s.conversations},
		Log:            log,
		Metrics:        s.metrics,
	})
	err = session.Connect(ctx, func(ctx context.Context) (io.ReadCloser, error) {
		return s.upstream.Stream(ctx, messages)
	})
	if err != nil {
		log.Warn("upstream connect failed", zap.Error(err))
		s.reject(ctx, spreadLabel, metrics.GenerationOutcomeUpstreamUnavailable)
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}

	s.metrics.IncOutcome(metrics.GenerationOutcomeStreaming)
	s.obsMetrics.RecordGenerationRequest(ctx, spreadLabel, metrics.GenerationOutcomeStreaming)
	return session, nil
}

// record writes the conversation, the user's message and the request record
// together.
func (s *Service) record(
	ctx context.Context,
	userID, spreadID snowflake.ID,
	question string,
	cards []prompt.Card,
	cost int64,
	correlationID string,
) (*conversationdomain.Conversation, error) {
	cardsJSON, err := json.Marshal(cards)
	if err != nil {
		return nil, err
	}
	metadata, err := json.Marshal(userMessageMetadata{SpreadID: spreadID.String(), Cards: cards})
	if err != nil {
		return nil, err
	}

	var conversation *conversationdomain.Conversation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.conversations.CreateConversation(ctx, tx, userID, conversationdomain.TypeTarot, cost)
		if err != nil {
			return err
		}
		if _, err := s.conversations.AppendMessage(ctx, tx, created.ID, conversationdomain.RoleUser, question, datatypes.JSON(metadata)); err != nil {
			return err
		}
		if _, err := s.conversations.RecordRequest(ctx, tx, conversationdomain.GenerationRequest{
			UserID:         userID,
			ConversationID: created.ID,
			SpreadID:       spreadID,
			Question:       question,
			Cards:          datatypes.JSON(cardsJSON),
			Cost:           cost,
			CorrelationID:  correlationID,
		}); err != nil {
			return err
		}
		conversation = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conversation, nil
}

// admit fails open: a broken limiter backend must not block paid requests.
func (s *Service) admit(ctx context.Context, userID snowflake.ID) error {
	if s.limiter == nil {
		return nil
	}
	allowed, err := s.limiter.Allow(ctx, userID)
	if err != nil {
		s.log.Warn("rate limiter unavailable", zap.Error(err))
		return nil
	}
	if !allowed {
		return domain.ErrRateLimited
	}
	return nil
}

func (s *Service) reject(ctx context.Context, spreadID, outcome string) {
	s.metrics.IncOutcome(outcome)
	s.obsMetrics.RecordGenerationRequest(ctx, spreadID, outcome)
}

type recorder struct {
	store conversationdomain.Store
}

func (r *recorder) RecordCompletion(ctx context.Context, conversationID snowflake.ID, content string) error {
	_, err := r.store.Complete(ctx, conversationID, content)
	return err
}

func (r *recorder) RecordFailure(ctx context.Context, conversationID snowflake.ID) error {
	return r.store.MarkFailed(ctx, conversationID)
}
