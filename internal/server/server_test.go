package server

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	checkindomain "github.com/smallbiznis/xingyu/internal/checkin/domain"
	"github.com/smallbiznis/xingyu/internal/config"
	conversationdomain "github.com/smallbiznis/xingyu/internal/conversation/domain"
	generationdomain "github.com/smallbiznis/xingyu/internal/generation/domain"
	"github.com/smallbiznis/xingyu/internal/observability"
	"github.com/smallbiznis/xingyu/internal/relay"
	spreaddomain "github.com/smallbiznis/xingyu/internal/spread/domain"
	userdomain "github.com/smallbiznis/xingyu/internal/user/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	knownUID    int64        = 100001
	knownUserID snowflake.ID = 1
)

type fakeUserService struct {
	err error
}

func (f *fakeUserService) GetByUID(_ context.Context, uid int64) (userdomain.User, error) {
	if f.err != nil {
		return userdomain.User{}, f.err
	}
	if uid != knownUID {
		return userdomain.User{}, userdomain.ErrNotFound
	}
	return userdomain.User{ID: knownUserID, UID: uid, Nickname: "tester", Points: 10}, nil
}

type fakeSpreadService struct{}

func (fakeSpreadService) GetByID(context.Context, snowflake.ID) (spreaddomain.Spread, error) {
	return spreaddomain.Spread{}, spreaddomain.ErrNotFound
}

func (fakeSpreadService) ListEnabled(context.Context) ([]spreaddomain.Summary, error) {
	return []spreaddomain.Summary{{ID: 3, Name: "Past Present Future", CardCount: 3, PointMultiplier: 1.5}}, nil
}

func (fakeSpreadService) InvalidateListing(context.Context) {}

type fakeConversationStore struct {
	conversationdomain.Store
	conversations map[snowflake.ID]conversationdomain.Conversation
	err           error
}

func (f *fakeConversationStore) GetByID(_ context.Context, id snowflake.ID) (conversationdomain.Conversation, error) {
	if f.err != nil {
		return conversationdomain.Conversation{}, f.err
	}
	conv, ok := f.conversations[id]
	if !ok {
		return conversationdomain.Conversation{}, conversationdomain.ErrNotFound
	}
	return conv, nil
}

func (f *fakeConversationStore) GetHistory(_ context.Context, id snowflake.ID) ([]conversationdomain.Message, error) {
	return []conversationdomain.Message{
		{ID: 10, ConversationID: id, Role: conversationdomain.RoleUser, Content: "Will it rain?", Metadata: datatypes.JSON(`{}`)},
	}, nil
}

func (f *fakeConversationStore) ListByUser(_ context.Context, userID snowflake.ID, _ int) ([]conversationdomain.Conversation, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []conversationdomain.Conversation
	for _, conv := range f.conversations {
		if conv.UserID == userID {
			out = append(out, conv)
		}
	}
	return out, nil
}

type fakeGenerationService struct {
	body string
	err  error
	got  generationdomain.Request
}

func (f *fakeGenerationService) Generate(ctx context.Context, req generationdomain.Request) (*relay.Session, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	session := relay.NewSession(relay.Options{ConversationID: 77, Cost: 5})
	if err := session.Connect(ctx, func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(f.body)), nil
	}); err != nil {
		return nil, err
	}
	return session, nil
}

type fakeCheckinService struct {
	err error
}

func (f *fakeCheckinService) Checkin(context.Context, snowflake.ID) (checkindomain.Result, error) {
	if f.err != nil {
		return checkindomain.Result{}, f.err
	}
	return checkindomain.Result{
		Checkin: checkindomain.Checkin{PointsEarned: 5, CheckinDate: time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)},
		Balance: 15,
	}, nil
}

func (f *fakeCheckinService) HasCheckedInToday(context.Context, snowflake.ID) (bool, error) {
	return true, nil
}

func (f *fakeCheckinService) Stats(context.Context, snowflake.ID) (checkindomain.Stats, error) {
	return checkindomain.Stats{CheckedInToday: true, ConsecutiveDays: 4}, nil
}

type testServer struct {
	engine        *gin.Engine
	users         *fakeUserService
	conversations *fakeConversationStore
	generation    *fakeGenerationService
	checkin       *fakeCheckinService
}

func frame(content string) string {
	return fmt.Sprintf("data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", content)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	generation := &fakeGenerationService{body: frame("The") + frame(" Fool") + "data: [DONE]\n\n"}
	checkin := &fakeCheckinService{}
	users := &fakeUserService{}
	conversations := &fakeConversationStore{conversations: map[snowflake.ID]conversationdomain.Conversation{
		50: {ID: 50, UserID: knownUserID, Status: conversationdomain.StatusCompleted},
		51: {ID: 51, UserID: 2, Status: conversationdomain.StatusCompleted},
	}}
	engine := NewEngine(observability.Config{Environment: "test"}, nil)
	NewServer(ServerParams{
		Gin:           engine,
		Cfg:           config.Config{Generation: config.GenerationLimits{Timeout: time.Minute}},
		Log:           zap.NewNop(),
		UserSvc:       users,
		SpreadSvc:     fakeSpreadService{},
		Conversations: conversations,
		GenerationSvc: generation,
		CheckinSvc:    checkin,
	})
	return &testServer{
		engine:        engine,
		users:         users,
		conversations: conversations,
		generation:    generation,
		checkin:       checkin,
	}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func tarotBody() map[string]any {
	return map[string]any{
		"uid":      knownUID,
		"spreadId": 3,
		"question": "Will the move go well?",
		"cards": []map[string]string{
			{"name": "The Fool", "position": "upright"},
		},
	}
}

func errorType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Type
}

func TestGenerateTarotReadingStreamsFragments(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodPost, "/api/public/ai/tarot", tarotBody())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "77", rec.Header().Get(headerConversationID))
	assert.Equal(t, "data: {\"content\":\"The\"}\n\ndata: {\"content\":\" Fool\"}\n\n", rec.Body.String())

	assert.Equal(t, knownUserID, srv.generation.got.UserID)
	assert.EqualValues(t, 3, srv.generation.got.SpreadID)
	require.Len(t, srv.generation.got.Cards, 1)
	assert.Equal(t, "The Fool", srv.generation.got.Cards[0].Name)
}

func TestGenerateTarotReadingAcceptsStringIDs(t *testing.T) {
	srv := newTestServer(t)
	body := tarotBody()
	body["uid"] = "100001"
	body["spreadId"] = "3"

	rec := srv.do(http.MethodPost, "/api/public/ai/tarot", body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, srv.generation.got.SpreadID)
}

func TestGenerateTarotReadingInterruptedStreamEndsWithErrorEvent(t *testing.T) {
	srv := newTestServer(t)
	srv.generation.body = frame("The")

	rec := srv.do(http.MethodPost, "/api/public/ai/tarot", tarotBody())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		"data: {\"content\":\"The\"}\n\nevent: error\ndata: {\"error\":\"stream_interrupted\"}\n\n",
		rec.Body.String(),
	)
}

func TestGenerateTarotReadingErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		wantType string
	}{
		{"insufficient funds", generationdomain.ErrInsufficientFunds, http.StatusPaymentRequired, "insufficient_funds"},
		{"spread not found", generationdomain.ErrSpreadNotFound, http.StatusNotFound, "not_found"},
		{"validation", fmt.Errorf("%w: question is required", generationdomain.ErrInvalidQuestion), http.StatusBadRequest, "validation_error"},
		{"rate limited", generationdomain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"upstream", fmt.Errorf("%w: status 502", generationdomain.ErrUpstreamUnavailable), http.StatusBadGateway, "upstream_unavailable"},
		{"store", fmt.Errorf("%w: %w", generationdomain.ErrStoreUnavailable, gorm.ErrInvalidDB), http.StatusServiceUnavailable, "store_unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)
			srv.generation.err = tt.err

			rec := srv.do(http.MethodPost, "/api/public/ai/tarot", tarotBody())

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.wantType, errorType(t, rec))
			assert.Empty(t, rec.Header().Get(headerConversationID))
		})
	}
}

func TestGenerateTarotReadingRejectsBadInput(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/public/ai/tarot", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := tarotBody()
	body["uid"] = -4
	assert.Equal(t, http.StatusBadRequest, srv.do(http.MethodPost, "/api/public/ai/tarot", body).Code)

	body = tarotBody()
	body["uid"] = 5
	assert.Equal(t, http.StatusNotFound, srv.do(http.MethodPost, "/api/public/ai/tarot", body).Code)
}

func TestListSpreads(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodGet, "/api/public/tarot/spreads", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Past Present Future")
}

func TestListConversations(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodGet, "/api/public/ai/conversations?uid=100001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Data struct {
			Conversations []conversationdomain.Conversation `json:"conversations"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Data.Conversations, 1)
	assert.EqualValues(t, 50, listed.Data.Conversations[0].ID)

	rec = srv.do(http.MethodGet, "/api/public/ai/conversations?uid=100001&conversationId=50", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Will it rain?")

	rec = srv.do(http.MethodGet, "/api/public/ai/conversations?uid=100001&conversationId=51", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(http.MethodGet, "/api/public/ai/conversations?uid=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserInfo(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodGet, "/api/public/user/info?uid=100001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"points":10`)

	rec = srv.do(http.MethodGet, "/api/public/user/info?uid=9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckin(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodPost, "/api/public/user/checkin", map[string]any{"uid": knownUID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"pointsEarned":5,"totalPoints":15,"checkinDate":"2026-10-17"}}`, rec.Body.String())

	srv.checkin.err = checkindomain.ErrAlreadyCheckedIn
	rec = srv.do(http.MethodPost, "/api/public/user/checkin", map[string]any{"uid": knownUID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_checked_in", errorType(t, rec))

	rec = srv.do(http.MethodGet, "/api/public/user/checkin/stats?uid=100001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"hasCheckedInToday":true,"consecutiveDays":4,"totalPoints":10}}`, rec.Body.String())
}

func TestStoreOutageIsServiceUnavailable(t *testing.T) {
	storeDown := fmt.Errorf("find user by uid: %w", driver.ErrBadConn)

	srv := newTestServer(t)
	srv.users.err = storeDown
	rec := srv.do(http.MethodPost, "/api/public/ai/tarot", tarotBody())
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "store_unavailable", errorType(t, rec))

	rec = srv.do(http.MethodGet, "/api/public/user/info?uid=100001", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	srv = newTestServer(t)
	srv.conversations.err = fmt.Errorf("list conversations: %w", driver.ErrBadConn)
	rec = srv.do(http.MethodGet, "/api/public/ai/conversations?uid=100001", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "store_unavailable", errorType(t, rec))

	rec = srv.do(http.MethodGet, "/api/public/ai/conversations?uid=100001&conversationId=50", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNonTransientStoreErrorIsInternal(t *testing.T) {
	srv := newTestServer(t)
	srv.users.err = errors.New("find user by uid: syntax error")

	rec := srv.do(http.MethodGet, "/api/public/user/info?uid=100001", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", errorType(t, rec))
}

func TestHealthAndFallback(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusNotFound, srv.do(http.MethodGet, "/nope", nil).Code)
}
