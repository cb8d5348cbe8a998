package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	generationdomain "github.com/smallbiznis/xingyu/internal/generation/domain"
	obscontext "github.com/smallbiznis/xingyu/internal/observability/context"
	"github.com/smallbiznis/xingyu/internal/observability/logger"
	"github.com/smallbiznis/xingyu/internal/prompt"
	"github.com/smallbiznis/xingyu/internal/relay"
	"go.uber.org/zap"
)

const (
	headerConversationID = "X-Conversation-Id"
	streamErrorCode      = "stream_interrupted"
)

type tarotCard struct {
	Name     string `json:"name"`
	Position string `json:"position"`
}

type tarotRequest struct {
	UID      flexibleID  `json:"uid"`
	SpreadID flexibleID  `json:"spreadId"`
	Question string      `json:"question"`
	Cards    []tarotCard `json:"cards"`
}

// GenerateTarotReading debits the caller and streams the reading as
// server-sent events. Errors before the first byte are JSON; after that the
// stream ends with an error event.
func (s *Server) GenerateTarotReading(c *gin.Context) {
	var req tarotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.UID <= 0 {
		AbortWithError(c, newValidationError("uid", "invalid_uid", "uid must be a positive integer"))
		return
	}
	if req.SpreadID <= 0 {
		AbortWithError(c, newValidationError("spreadId", "invalid_spread_id", "spreadId must be a positive integer"))
		return
	}

	ctx := c.Request.Context()
	if timeout := s.cfg.Generation.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	user, err := s.userSvc.GetByUID(ctx, int64(req.UID))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	ctx = obscontext.WithUserID(ctx, user.ID.String())

	cards := make([]prompt.Card, 0, len(req.Cards))
	for _, card := range req.Cards {
		cards = append(cards, prompt.Card{Name: card.Name, Position: prompt.Position(card.Position)})
	}

	session, err := s.generationSvc.Generate(ctx, generationdomain.Request{
		UserID:   user.ID,
		SpreadID: snowflakeID(req.SpreadID),
		Question: req.Question,
		Cards:    cards,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer session.Close()

	conversationID := session.ConversationID().String()
	c.Set("conversation_id", conversationID)

	headers := c.Writer.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	headers.Set(headerConversationID, conversationID)
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	runErr := session.Run(ctx, &sseSink{w: c.Writer, flush: c.Writer.Flush})
	outcome := streamOutcome(c.Request.Context(), runErr)
	c.Set("stream_outcome", outcome)

	if runErr == nil || outcome == "cancelled" {
		return
	}
	if err := writeStreamError(c.Writer, streamErrorCode); err == nil {
		c.Writer.Flush()
	}
	logger.WithContext(ctx, s.log).Warn("reading stream ended early",
		zap.String("conversation_id", conversationID),
		zap.String("stream_outcome", outcome),
		zap.Error(runErr),
	)
}

func streamOutcome(requestCtx context.Context, err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, context.Canceled) || requestCtx.Err() != nil:
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, relay.ErrPersistFailed):
		return "persist_failed"
	default:
		return "interrupted"
	}
}

type sseSink struct {
	w     io.Writer
	flush func()
}

type contentFrame struct {
	Content string `json:"content"`
}

func (s *sseSink) Send(fragment string) error {
	data, err := json.Marshal(contentFrame{Content: fragment})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	if s.flush != nil {
		s.flush()
	}
	return nil
}

func writeStreamError(w io.Writer, code string) error {
	data, err := json.Marshal(map[string]string{"error": strings.TrimSpace(code)})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
	return err
}
