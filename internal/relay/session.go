package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/xingyu/internal/observability/metrics"
	"go.uber.org/zap"
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidState  = errors.New("relay_invalid_state")
	ErrPersistFailed = errors.New("relay_persist_failed")
)

const persistTimeout = 10 * time.Second

// Sink receives fragments in upstream order. A Send error means the caller
// is gone and is treated as cancellation.
type Sink interface {
	Send(fragment string) error
}

// Recorder persists the outcome of a stream.
type Recorder interface {
	RecordCompletion(ctx context.Context, conversationID snowflake.ID, content string) error
	RecordFailure(ctx context.Context, conversationID snowflake.ID) error
}

type Options struct {
	ConversationID snowflake.ID
	CorrelationID  string
	Cost           int64
	Recorder       Recorder
	Log            *zap.Logger
	Metrics        *metrics.GenerationMetrics
}

// Session relays one upstream generation to one caller.
type Session struct {
	conversationID snowflake.ID
	correlationID  string
	cost           int64
	recorder       Recorder
	log            *zap.Logger
	metrics        *metrics.GenerationMetrics

	mu    sync.Mutex
	state State
	body  io.ReadCloser
}

func NewSession(opts Options) *Session {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		conversationID: opts.ConversationID,
		correlationID:  opts.CorrelationID,
		cost:           opts.Cost,
		recorder:       opts.Recorder,
		log:            log.Named("relay.session"),
		metrics:        opts.Metrics,
		state:          StateIdle,
	}
}

func (s *Session) ConversationID() snowflake.ID { return s.conversationID }
func (s *Session) CorrelationID() string        { return s.correlationID }
func (s *Session) Cost() int64                  { return s.cost }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect opens the upstream body. On failure the session is Failed and the
// conversation is marked failed.
func (s *Session) Connect(ctx context.Context, open func(context.Context) (io.ReadCloser, error)) error {
	if !s.transition(StateIdle, StateConnecting) {
		return ErrInvalidState
	}

	body, err := open(ctx)
	if err != nil {
		s.setState(StateFailed)
		s.markFailed(ctx)
		return err
	}

	s.mu.Lock()
	s.body = body
	s.state = StateStreaming
	s.mu.Unlock()
	return nil
}

// Run forwards fragments to sink until the stream ends. The accumulated text
// is persisted only after a clean completion.
func (s *Session) Run(ctx context.Context, sink Sink) error {
	s.mu.Lock()
	if s.state != StateStreaming || s.body == nil {
		s.mu.Unlock()
		return ErrInvalidState
	}
	body := s.body
	s.body = nil
	s.mu.Unlock()

	start := time.Now()
	defer body.Close()
	// Closing the body unblocks a read parked on the network.
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stop()

	decoder := NewDecoder(body)
	var content strings.Builder
	for {
		fragment, err := decoder.Next(ctx)
		switch {
		case err == nil:
			content.WriteString(fragment)
			s.metrics.IncFragment()
			if sendErr := sink.Send(fragment); sendErr != nil {
				s.finish(metrics.GenerationOutcomeCancelled, start)
				s.log.Debug("sink closed", zap.Error(sendErr))
				return fmt.Errorf("%w: %w", context.Canceled, sendErr)
			}

		case errors.Is(err, io.EOF):
			if persistErr := s.persist(ctx, content.String()); persistErr != nil {
				s.finish(metrics.GenerationOutcomeStoreUnavailable, start)
				return persistErr
			}
			s.setState(StateCompleted)
			s.observe(metrics.GenerationOutcomeCompleted, start)
			return nil

		case ctx.Err() != nil:
			s.finish(metrics.GenerationOutcomeCancelled, start)
			return ctx.Err()

		default:
			s.finish(metrics.GenerationOutcomeInterrupted, start)
			s.markFailed(ctx)
			s.log.Warn("upstream stream interrupted",
				zap.String("conversation_id", s.conversationID.String()),
				zap.Error(err),
			)
			return ErrStreamInterrupted
		}
	}
}

// Close releases the upstream body of a session that will never run.
func (s *Session) Close() error {
	s.mu.Lock()
	body := s.body
	s.body = nil
	if s.state == StateIdle || s.state == StateConnecting || s.state == StateStreaming {
		s.state = StateFailed
	}
	s.mu.Unlock()

	if body == nil {
		return nil
	}
	return body.Close()
}

func (s *Session) persist(ctx context.Context, content string) error {
	if s.recorder == nil {
		return nil
	}
	// The caller may leave right after the last fragment; the reading is kept anyway.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.recorder.RecordCompletion(persistCtx, s.conversationID, content); err != nil {
		s.log.Error("failed to persist completion",
			zap.String("conversation_id", s.conversationID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}
	return nil
}

func (s *Session) markFailed(ctx context.Context) {
	if s.recorder == nil {
		return
	}
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.recorder.RecordFailure(persistCtx, s.conversationID); err != nil {
		s.log.Warn("failed to mark conversation failed",
			zap.String("conversation_id", s.conversationID.String()),
			zap.Error(err),
		)
	}
}

func (s *Session) finish(outcome string, start time.Time) {
	s.setState(StateFailed)
	s.observe(outcome, start)
}

func (s *Session) observe(outcome string, start time.Time) {
	s.metrics.IncOutcome(outcome)
	s.metrics.ObserveStream(outcome, time.Since(start))
}

func (s *Session) transition(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	return true
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
