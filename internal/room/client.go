package room

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/advisorly/reading-room/internal/config"
	"github.com/advisorly/reading-room/pkg/log"
)

// Distinct close codes for the two terminal authentication failures.
const (
	CloseCodeUnauthorized = 4001 // invalid or missing credential
	CloseCodeForbidden    = 4003 // credential scoped to a different room
)

// Client is one live WebSocket connection. Frames it reads are dispatched
// into its room's serialized event loop; everything the room sends back
// travels through the Send channel and the write pump.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte

	room *Room
	cfg  config.WebSocketConfig

	closeOnce sync.Once
	closed    bool
	closeCode int
	closeText string
}

func NewClient(id string, r *Room, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		ID:   id,
		Conn: conn,
		Send: make(chan []byte, buffer),
		room: r,
		cfg:  cfg,
	}
}

// shutdown closes the send channel; the write pump drains it and emits the
// close frame with the recorded code. Idempotent. Called only from the
// room actor goroutine.
func (c *Client) shutdown(code int, text string) {
	c.closeOnce.Do(func() {
		c.closed = true
		c.closeCode = code
		c.closeText = text
		close(c.Send)
	})
}

// enqueue offers a frame without blocking the actor. It returns false
// after shutdown (the read pump may still be dispatching frames it read
// before the close landed) or when the buffer is full; in both cases the
// connection is reconciled via its own close event, not here. shutdown
// and enqueue both run on the actor goroutine, so closed needs no lock.
func (c *Client) enqueue(data []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.room.Dispatch(event{kind: evClose, client: c})
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Debug().Str(log.FieldConnID, c.ID).Err(err).Msg("websocket read error")
			}
			break
		}
		c.room.Dispatch(event{kind: evFrame, client: c, frame: message})
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				code := c.closeCode
				if code == 0 {
					code = websocket.CloseNormalClosure
				}
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, c.closeText))
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
