package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/advisorly/reading-room/internal/config"
	"github.com/advisorly/reading-room/internal/room"
	"github.com/advisorly/reading-room/internal/store"
	"github.com/advisorly/reading-room/pkg/log"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler exposes the HTTP surface: the WebSocket entry point into room
// actors, the out-of-band history read API, and health.
type Handler struct {
	hub   *room.Hub
	log   *store.MessageLog
	wsCfg config.WebSocketConfig
}

func New(hub *room.Hub, messageLog *store.MessageLog, wsCfg config.WebSocketConfig) *Handler {
	return &Handler{
		hub:   hub,
		log:   messageLog,
		wsCfg: wsCfg,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.HandleWebSocket)

	api := r.Group("/api/v1")
	{
		api.GET("/rooms/:room_id/messages", h.GetMessages)
	}

	r.GET("/health", h.HealthCheck)
}

// HandleWebSocket upgrades the connection and hands it to the room actor
// selected by the room_id query parameter. A client reconnecting after a
// restart may pass its previous conn_id to be rehydrated without
// re-authenticating.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	roomID := c.Query("room_id")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "room_id is required"})
		return
	}

	connID := c.Query("conn_id")
	if connID == "" {
		connID = uuid.New().String()
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.L()
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	rm := h.hub.Get(roomID)
	client := room.NewClient(connID, rm, conn, h.wsCfg)
	rm.Attach(client)

	go client.WritePump()
	go client.ReadPump()
}

// GetMessages serves up to N most recent messages for a room in
// chronological order, independent of any live connection.
func (h *Handler) GetMessages(c *gin.Context) {
	roomID := c.Param("room_id")

	limit := defaultHistoryLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "limit must be a positive integer"})
			return
		}
		limit = parsed
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}
	}

	messages, err := h.log.Recent(roomID, limit)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to read history")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to get messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"messages": messages}})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
