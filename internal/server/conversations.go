package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	conversationdomain "github.com/smallbiznis/xingyu/internal/conversation/domain"
)

// ListConversations returns the caller's latest conversations, or one
// conversation's messages when conversationId is given.
func (s *Server) ListConversations(c *gin.Context) {
	uid, err := parseUID(c.Query("uid"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	conversationID, err := parseOptionalSnowflakeID(c.Query("conversationId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	user, err := s.userSvc.GetByUID(ctx, uid)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if conversationID != nil {
		conversation, err := s.conversations.GetByID(ctx, *conversationID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if conversation.UserID != user.ID {
			AbortWithError(c, conversationdomain.ErrNotFound)
			return
		}

		messages, err := s.conversations.GetHistory(ctx, conversation.ID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{
			"conversation": conversation,
			"messages":     messages,
		}})
		return
	}

	conversations, err := s.conversations.ListByUser(ctx, user.ID, conversationdomain.MaxListLimit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"conversations": conversations}})
}
