package room

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/advisorly/reading-room/internal/audit"
	"github.com/advisorly/reading-room/internal/auth"
	"github.com/advisorly/reading-room/internal/config"
	"github.com/advisorly/reading-room/internal/domain"
	"github.com/advisorly/reading-room/internal/ledger"
	"github.com/advisorly/reading-room/internal/registry"
	"github.com/advisorly/reading-room/internal/store"
	"github.com/advisorly/reading-room/internal/stream"
	"github.com/advisorly/reading-room/pkg/log"
)

type eventKind int

const (
	evOpen eventKind = iota
	evFrame
	evClose
	evTeardown
	evStop
)

type event struct {
	kind   eventKind
	client *Client
	frame  []byte
}

// Deps are the collaborators a room actor composes.
type Deps struct {
	Verifier  *auth.Verifier
	Log       *store.MessageLog
	Snapshots registry.SnapshotStore
	Ledger    ledger.Client
	Stream    stream.Producer // optional transcript stream
	WebSocket config.WebSocketConfig
	Room      config.RoomConfig
}

// Room is the actor owning one conversation. Every inbound event (open,
// frame, close, teardown) is processed strictly one at a time on the Run
// goroutine, which makes broadcasts and log appends linearizable within
// the room and lets the session table go lock-free. The only work leaving
// the loop is the fire-and-forget ledger sync; the end-of-chat ledger call
// is awaited inside the loop because its result must be broadcast before
// teardown.
type Room struct {
	id     string
	events chan event
	done   chan struct{}

	sessions map[string]*domain.Session // connID -> session
	clients  map[string]*Client         // connID -> client
	rctx     domain.RoomContext

	deps         Deps
	historyLimit int
	graceDelay   time.Duration
	log          zerolog.Logger
}

func NewRoom(id string, deps Deps) *Room {
	buffer := deps.Room.EventBuffer
	if buffer <= 0 {
		buffer = 256
	}
	historyLimit := deps.Room.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 50
	}
	graceDelay := deps.Room.GraceDelay
	if graceDelay <= 0 {
		graceDelay = time.Second
	}
	return &Room{
		id:           id,
		events:       make(chan event, buffer),
		done:         make(chan struct{}),
		sessions:     make(map[string]*domain.Session),
		clients:      make(map[string]*Client),
		deps:         deps,
		historyLimit: historyLimit,
		graceDelay:   graceDelay,
		log:          log.L().With().Str(log.FieldRoomID, id).Logger(),
	}
}

// Dispatch hands an event to the actor. Safe from any goroutine; becomes
// a no-op once the room has stopped.
func (r *Room) Dispatch(ev event) {
	select {
	case r.events <- ev:
	case <-r.done:
	}
}

// Attach registers a freshly upgraded connection with the actor.
func (r *Room) Attach(c *Client) {
	r.Dispatch(event{kind: evOpen, client: c})
}

// Stop drains the actor and blocks until its loop has exited.
func (r *Room) Stop() {
	r.Dispatch(event{kind: evStop})
	<-r.done
}

// Run is the actor loop. Exactly one goroutine per room executes it.
func (r *Room) Run() {
	r.restoreContext()

	for ev := range r.events {
		switch ev.kind {
		case evOpen:
			r.handleOpen(ev.client)
		case evFrame:
			r.handleFrame(ev.client, ev.frame)
		case evClose:
			r.handleClose(ev.client)
		case evTeardown:
			r.handleTeardown()
		case evStop:
			close(r.done)
			return
		}
	}
}

// restoreContext rehydrates the ledger correlation identifiers persisted
// by a previous incarnation of this room, if any.
func (r *Room) restoreContext() {
	rc, err := r.deps.Snapshots.LoadContext(context.Background(), r.id)
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to load room context snapshot")
		return
	}
	if rc != nil {
		r.rctx = *rc
		r.log.Info().Msg("room context restored from snapshot")
	}
}

func (r *Room) handleOpen(c *Client) {
	if old, ok := r.clients[c.ID]; ok {
		// A reconnect presenting the same conn id before the old socket's
		// close event arrived. The newest connection wins; the stale one
		// is shut down and its late events are dropped by ownership
		// checks in handleFrame and handleClose.
		old.shutdown(websocket.CloseNormalClosure, "replaced by reconnect")
		delete(r.clients, c.ID)
		delete(r.sessions, c.ID)
		r.log.Info().Str(log.FieldConnID, c.ID).Msg("connection replaced by reconnect")
	}

	r.clients[c.ID] = c
	session := domain.NewSession(c.ID)
	r.sessions[c.ID] = session

	// A reconnecting client presenting its previous conn id is rehydrated
	// as authenticated without re-running the gate.
	snap, err := r.deps.Snapshots.LoadSession(context.Background(), r.id, c.ID)
	if err != nil {
		r.log.Warn().Err(err).Str(log.FieldConnID, c.ID).Msg("failed to load session snapshot")
		return
	}
	if snap != nil && snap.Authenticated {
		*session = *snap
		r.log.Info().Str(log.FieldConnID, c.ID).Str(log.FieldUserID, session.Identity.UserID).Msg("session rehydrated")
		r.afterAuth(c, session)
	}
}

func (r *Room) handleFrame(c *Client, frame []byte) {
	if r.clients[c.ID] != c {
		// The connection was already rejected, torn down, or replaced;
		// frames its read pump dispatched before noticing are dropped.
		return
	}
	session := r.sessions[c.ID]

	var base domain.BaseEvent
	if err := json.Unmarshal(frame, &base); err != nil {
		r.sendTo(c, domain.NewErrorEvent("invalid message format"))
		return
	}

	switch base.Type {
	case domain.MsgTypePing:
		// Unconditional, regardless of auth state.
		r.sendTo(c, &domain.PongEvent{Type: domain.MsgTypePong, Timestamp: time.Now().UnixMilli()})

	case domain.MsgTypeAuth:
		var ev domain.AuthEvent
		if err := json.Unmarshal(frame, &ev); err != nil {
			r.sendTo(c, domain.NewErrorEvent("invalid auth message"))
			return
		}
		r.handleAuth(c, session, ev)

	case domain.MsgTypeMessage:
		var ev domain.MessageEvent
		if err := json.Unmarshal(frame, &ev); err != nil {
			r.sendTo(c, domain.NewErrorEvent("invalid chat message"))
			return
		}
		r.handleChatMessage(c, session, ev)

	case domain.MsgTypeTyping:
		var ev domain.TypingEvent
		if err := json.Unmarshal(frame, &ev); err != nil {
			r.sendTo(c, domain.NewErrorEvent("invalid typing message"))
			return
		}
		r.handleTyping(c, session, ev)

	case domain.MsgTypeEndChat:
		var ev domain.EndChatEvent
		if err := json.Unmarshal(frame, &ev); err != nil {
			r.sendTo(c, domain.NewErrorEvent("invalid end_chat message"))
			return
		}
		r.handleEndChat(c, session, ev)

	default:
		r.sendTo(c, domain.NewErrorEvent("unknown message type"))
	}
}

func (r *Room) handleAuth(c *Client, session *domain.Session, ev domain.AuthEvent) {
	if session.Authenticated {
		// Re-binding identity would let the room's ledger correlation
		// drift mid-session.
		r.sendTo(c, domain.NewErrorEvent("already authenticated"))
		return
	}

	identity, err := r.deps.Verifier.Verify(auth.Request{
		Token:    ev.Token,
		UserID:   ev.UserID,
		UserType: ev.UserType,
		UserName: ev.UserName,
	}, r.id)
	if err != nil {
		r.rejectAuth(c, err)
		return
	}

	session.Authenticate(identity)
	if err := r.deps.Snapshots.SaveSession(context.Background(), r.id, *session); err != nil {
		r.log.Warn().Err(err).Str(log.FieldConnID, c.ID).Msg("failed to persist session snapshot")
	}

	r.bindContext(identity)
	audit.Log(r.log, audit.ActionAuth, identity.UserID, "session authenticated")

	r.afterAuth(c, session)
}

// bindContext fixes the ledger correlation identifiers. The first
// successful authentication binds the context; each party fills in its
// own identifier as it arrives.
func (r *Room) bindContext(identity domain.Identity) {
	if !r.rctx.Bound() {
		r.rctx = domain.RoomContext{RoomID: r.id, BoundAtMillis: time.Now().UnixMilli()}
	}
	switch identity.UserType {
	case domain.UserTypeAdvisor:
		r.rctx.AdvisorID = identity.UserID
	default:
		r.rctx.ClientID = identity.UserID
	}
	if err := r.deps.Snapshots.SaveContext(context.Background(), r.id, r.rctx); err != nil {
		r.log.Warn().Err(err).Msg("failed to persist room context")
	}
}

// afterAuth runs the success side effects shared by the gate and snapshot
// rehydration: participant list to the caller, recent history replay, and
// a presence broadcast to everyone else.
func (r *Room) afterAuth(c *Client, session *domain.Session) {
	r.sendTo(c, &domain.AuthSuccessEvent{
		Type:         domain.MsgTypeAuthSuccess,
		UserID:       session.Identity.UserID,
		Participants: r.participants(),
	})

	history, err := r.deps.Log.Recent(r.id, r.historyLimit)
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to read history")
	} else {
		r.sendTo(c, &domain.HistoryEvent{Type: domain.MsgTypeHistory, Messages: history})
	}

	r.broadcast(&domain.PresenceEvent{
		Type:     domain.MsgTypePresence,
		UserID:   session.Identity.UserID,
		UserType: session.Identity.UserType,
		UserName: session.Identity.UserName,
		Status:   domain.PresenceOnline,
	}, c.ID)
}

func (r *Room) rejectAuth(c *Client, err error) {
	code := CloseCodeUnauthorized
	if errors.Is(err, auth.ErrRoomMismatch) {
		code = CloseCodeForbidden
	}

	r.sendTo(c, &domain.AuthErrorEvent{Type: domain.MsgTypeAuthError, Message: err.Error()})
	audit.Log(r.log, audit.ActionAuthFailed, "", err.Error())

	delete(r.clients, c.ID)
	delete(r.sessions, c.ID)
	c.shutdown(code, err.Error())
}

func (r *Room) handleChatMessage(c *Client, session *domain.Session, ev domain.MessageEvent) {
	if !session.Authenticated {
		r.sendTo(c, domain.NewErrorEvent("not authenticated"))
		return
	}
	if strings.TrimSpace(ev.Content) == "" {
		return
	}

	msg := domain.ChatMessage{
		ID:              uuid.New(),
		UserID:          session.Identity.UserID,
		UserType:        session.Identity.UserType,
		UserName:        session.Identity.UserName,
		Content:         domain.SanitizeContent(ev.Content),
		CreatedAtMillis: time.Now().UnixMilli(),
	}

	// The durable append must succeed before the message is accepted for
	// broadcast or sync.
	if err := r.deps.Log.Append(r.id, msg); err != nil {
		r.log.Error().Err(err).Msg("failed to append message")
		r.sendTo(c, domain.NewErrorEvent("failed to store message"))
		return
	}

	// Includes the sender: its delivery confirmation, not a local echo.
	r.broadcast(domain.NewMessageOut(msg), "")
	r.syncAccepted(msg)
}

// syncAccepted pushes an accepted message downstream without blocking the
// actor. Failures are logged and absorbed; the local log remains the
// durable record and nothing is retried here.
func (r *Room) syncAccepted(msg domain.ChatMessage) {
	req := ledger.SyncMessageRequest{
		RoomID:          r.id,
		MessageID:       msg.ID.String(),
		UserID:          msg.UserID,
		UserType:        msg.UserType,
		UserName:        msg.UserName,
		Content:         msg.Content,
		TimestampMillis: msg.CreatedAtMillis,
		ClientID:        r.rctx.ClientID,
		AdvisorID:       r.rctx.AdvisorID,
	}

	logger := r.log
	go func() {
		if err := r.deps.Ledger.SyncMessage(context.Background(), req); err != nil {
			logger.Warn().Err(err).Str("message_id", req.MessageID).Msg("ledger sync failed")
		}
	}()

	if r.deps.Stream != nil {
		if err := r.deps.Stream.Produce(r.id, msg); err != nil {
			r.log.Warn().Err(err).Msg("transcript stream produce failed")
		}
	}
}

func (r *Room) handleTyping(c *Client, session *domain.Session, ev domain.TypingEvent) {
	if !session.Authenticated {
		return
	}
	r.broadcast(&domain.TypingOutEvent{
		Type:     domain.MsgTypeTyping,
		UserID:   session.Identity.UserID,
		UserType: session.Identity.UserType,
		IsTyping: ev.IsTyping,
	}, c.ID)
}

func (r *Room) handleEndChat(c *Client, session *domain.Session, ev domain.EndChatEvent) {
	if !session.Authenticated {
		r.sendTo(c, domain.NewErrorEvent("not authenticated"))
		return
	}
	if !r.rctx.Bound() {
		r.sendTo(c, domain.NewErrorEvent("no active chat to end"))
		return
	}

	reason := ev.Reason
	if reason == "" {
		reason = domain.EndReasonNormal
	}

	// Awaited on purpose: the billing result must be broadcast before
	// teardown. The ledger client bounds the call's latency.
	result, err := r.deps.Ledger.EndRoom(context.Background(), ledger.EndRoomRequest{
		RoomID:    r.rctx.RoomID,
		EndedBy:   session.Identity.UserType,
		Reason:    reason,
		ClientID:  r.rctx.ClientID,
		AdvisorID: r.rctx.AdvisorID,
	})
	if err != nil {
		// Room stays open; the caller may retry end_chat.
		r.log.Error().Err(err).Msg("ledger end room failed")
		r.sendTo(c, domain.NewErrorEvent("failed to end chat"))
		return
	}

	now := time.Now().UnixMilli()
	r.broadcast(&domain.ChatEndedEvent{
		Type:      domain.MsgTypeChatEnded,
		EndedBy:   session.Identity.UserID,
		UserName:  session.Identity.UserName,
		Reason:    reason,
		Billing:   result.Billing,
		Timestamp: now,
	}, "")
	r.sendTo(c, &domain.EndChatSuccessEvent{
		Type:         domain.MsgTypeEndChatSuccess,
		Reason:       reason,
		AlreadyEnded: result.AlreadyEnded,
		Billing:      result.Billing,
		Timestamp:    now,
	})

	audit.Log(r.log, audit.ActionEndChat, session.Identity.UserID, "chat ended: "+reason)

	// Grace delay lets in-flight sends complete before teardown.
	time.AfterFunc(r.graceDelay, func() {
		r.Dispatch(event{kind: evTeardown})
	})
}

func (r *Room) handleTeardown() {
	for id, c := range r.clients {
		c.shutdown(websocket.CloseNormalClosure, "chat ended")
		delete(r.clients, id)
		delete(r.sessions, id)
	}
	if err := r.deps.Snapshots.Clear(context.Background(), r.id); err != nil {
		r.log.Warn().Err(err).Msg("failed to clear room snapshots")
	}
	audit.Log(r.log, audit.ActionTeardown, "", "room torn down")
}

func (r *Room) handleClose(c *Client) {
	if r.clients[c.ID] != c {
		// This connection no longer owns its id: it was replaced by a
		// reconnect or already removed by teardown or auth rejection.
		// The live session must not be touched.
		c.shutdown(websocket.CloseNormalClosure, "")
		return
	}

	session := r.sessions[c.ID]
	delete(r.sessions, c.ID)
	delete(r.clients, c.ID)
	if err := r.deps.Snapshots.DeleteSession(context.Background(), r.id, c.ID); err != nil {
		r.log.Warn().Err(err).Str(log.FieldConnID, c.ID).Msg("failed to delete session snapshot")
	}
	c.shutdown(websocket.CloseNormalClosure, "")

	if session != nil && session.Authenticated {
		r.broadcast(&domain.PresenceEvent{
			Type:     domain.MsgTypePresence,
			UserID:   session.Identity.UserID,
			UserType: session.Identity.UserType,
			UserName: session.Identity.UserName,
			Status:   domain.PresenceOffline,
		}, "")
	}
}

// participants lists the identities of all authenticated sessions.
func (r *Room) participants() []domain.Identity {
	out := make([]domain.Identity, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.Authenticated {
			out = append(out, s.Identity)
		}
	}
	return out
}

// broadcast serializes once and delivers to every authenticated session
// except the optionally excluded connection. Best-effort per recipient.
func (r *Room) broadcast(payload interface{}, exclude string) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.log.Error().Err(err).Msg("failed to marshal broadcast payload")
		return
	}
	for connID, cl := range r.clients {
		session := r.sessions[connID]
		if session == nil || !session.Authenticated || connID == exclude {
			continue
		}
		if !cl.enqueue(data) {
			r.log.Warn().Str(log.FieldConnID, connID).Msg("send buffer full, dropping frame")
		}
	}
}

func (r *Room) sendTo(c *Client, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.log.Error().Err(err).Msg("failed to marshal payload")
		return
	}
	if !c.enqueue(data) {
		r.log.Warn().Str(log.FieldConnID, c.ID).Msg("send buffer full, dropping frame")
	}
}
