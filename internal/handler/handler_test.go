package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/advisorly/reading-room/internal/config"
	"github.com/advisorly/reading-room/internal/domain"
	"github.com/advisorly/reading-room/internal/store"
)

func newTestRouter(t *testing.T) (*gin.Engine, *store.MessageLog) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	messageLog := store.NewMessageLog(db, zerolog.Nop())

	r := gin.New()
	h := New(nil, messageLog, config.WebSocketConfig{})
	h.RegisterRoutes(r)
	return r, messageLog
}

func seed(t *testing.T, l *store.MessageLog, roomID string, n int) []domain.ChatMessage {
	t.Helper()
	base := time.Now().UnixMilli()
	var msgs []domain.ChatMessage
	for i := 0; i < n; i++ {
		m := domain.ChatMessage{
			ID:              uuid.New(),
			UserID:          "u1",
			UserType:        domain.UserTypeClient,
			UserName:        "Alice",
			Content:         "message",
			CreatedAtMillis: base + int64(i)*10,
		}
		require.NoError(t, l.Append(roomID, m))
		msgs = append(msgs, m)
	}
	return msgs
}

type messagesResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Messages []domain.ChatMessage `json:"messages"`
	} `json:"data"`
}

func Test_Get_Messages(t *testing.T) {
	req := require.New(t)
	r, l := newTestRouter(t)
	seeded := seed(t, l, "r1", 3)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/rooms/r1/messages", nil))

	req.Equal(http.StatusOK, w.Code)
	var body messagesResponse
	req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	req.True(body.Success)
	req.Equal(seeded, body.Data.Messages)
}

func Test_Get_Messages_Limit_Returns_Newest(t *testing.T) {
	req := require.New(t)
	r, l := newTestRouter(t)
	seeded := seed(t, l, "r1", 5)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/rooms/r1/messages?limit=2", nil))

	req.Equal(http.StatusOK, w.Code)
	var body messagesResponse
	req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	req.Equal(seeded[3:], body.Data.Messages)
}

func Test_Get_Messages_Invalid_Limit(t *testing.T) {
	req := require.New(t)
	r, _ := newTestRouter(t)

	for _, limit := range []string{"abc", "0", "-3"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/rooms/r1/messages?limit="+limit, nil))
		req.Equal(http.StatusBadRequest, w.Code)
	}
}

func Test_Get_Messages_Empty_Room(t *testing.T) {
	req := require.New(t)
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/rooms/empty/messages", nil))

	req.Equal(http.StatusOK, w.Code)
	var body messagesResponse
	req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	req.True(body.Success)
	req.Empty(body.Data.Messages)
}

func Test_WebSocket_Requires_Room_ID(t *testing.T) {
	req := require.New(t)
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	req.Equal(http.StatusBadRequest, w.Code)
}

func Test_Health_Check(t *testing.T) {
	req := require.New(t)
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"status":"ok"}`, w.Body.String())
}
