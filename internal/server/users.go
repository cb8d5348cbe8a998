package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type checkinRequest struct {
	UID flexibleID `json:"uid"`
}

func (s *Server) GetUserInfo(c *gin.Context) {
	uid, err := parseUID(c.Query("uid"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	user, err := s.userSvc.GetByUID(c.Request.Context(), uid)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": user})
}

func (s *Server) Checkin(c *gin.Context) {
	var req checkinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.UID <= 0 {
		AbortWithError(c, newValidationError("uid", "invalid_uid", "uid must be a positive integer"))
		return
	}

	ctx := c.Request.Context()
	user, err := s.userSvc.GetByUID(ctx, int64(req.UID))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.checkinSvc.Checkin(ctx, user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"pointsEarned": result.Checkin.PointsEarned,
		"totalPoints":  result.Balance,
		"checkinDate":  result.Checkin.CheckinDate.Format("2006-01-02"),
	}})
}

func (s *Server) GetCheckinStats(c *gin.Context) {
	uid, err := parseUID(c.Query("uid"))
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

	stats, err := s.checkinSvc.Stats(ctx, user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"hasCheckedInToday": stats.CheckedInToday,
		"consecutiveDays":   stats.ConsecutiveDays,
		"totalPoints":       user.Points,
	}})
}
