package domain

import "encoding/json"

// WebSocket frame types from client.
const (
	MsgTypeAuth    = "auth"
	MsgTypeMessage = "message"
	MsgTypeTyping  = "typing"
	MsgTypeEndChat = "end_chat"
	MsgTypePing    = "ping"
)

// WebSocket frame types to client.
const (
	MsgTypeAuthSuccess    = "auth_success"
	MsgTypeAuthError      = "auth_error"
	MsgTypeHistory        = "history"
	MsgTypePresence       = "presence"
	MsgTypeChatEnded      = "chat_ended"
	MsgTypeEndChatSuccess = "end_chat_success"
	MsgTypePong           = "pong"
	MsgTypeError          = "error"
)

// Presence statuses.
const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

// End-of-chat reasons accepted from clients.
const (
	EndReasonNormal     = "normal"
	EndReasonTimeout    = "timeout"
	EndReasonLowBalance = "low_balance"
	EndReasonDisconnect = "disconnect"
)

// BaseEvent discriminates inbound frames.
type BaseEvent struct {
	Type string `json:"type"`
}

// Client -> Server frames

type AuthEvent struct {
	Type     string `json:"type"`
	Token    string `json:"token,omitempty"`
	UserID   string `json:"userId,omitempty"`
	UserType string `json:"userType,omitempty"`
	UserName string `json:"userName,omitempty"`
}

type MessageEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type TypingEvent struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"isTyping"`
}

type EndChatEvent struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

// Server -> Client frames

type AuthSuccessEvent struct {
	Type         string     `json:"type"`
	UserID       string     `json:"userId"`
	Participants []Identity `json:"participants"`
}

type AuthErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type HistoryEvent struct {
	Type     string        `json:"type"`
	Messages []ChatMessage `json:"messages"`
}

type MessageOutEvent struct {
	Type      string   `json:"type"`
	ID        string   `json:"id"`
	Content   string   `json:"content"`
	UserID    string   `json:"userId"`
	UserType  UserType `json:"userType"`
	UserName  string   `json:"userName"`
	Timestamp int64    `json:"timestamp"`
}

type TypingOutEvent struct {
	Type     string   `json:"type"`
	UserID   string   `json:"userId"`
	UserType UserType `json:"userType"`
	IsTyping bool     `json:"isTyping"`
}

type PresenceEvent struct {
	Type     string   `json:"type"`
	UserID   string   `json:"userId"`
	UserType UserType `json:"userType"`
	UserName string   `json:"userName"`
	Status   string   `json:"status"`
}

type ChatEndedEvent struct {
	Type      string          `json:"type"`
	EndedBy   string          `json:"endedBy"`
	UserName  string          `json:"userName"`
	Reason    string          `json:"reason"`
	Billing   json.RawMessage `json:"billing,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

type EndChatSuccessEvent struct {
	Type         string          `json:"type"`
	Reason       string          `json:"reason"`
	AlreadyEnded bool            `json:"alreadyEnded,omitempty"`
	Billing      json.RawMessage `json:"billing,omitempty"`
	Timestamp    int64           `json:"timestamp"`
}

type PongEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewErrorEvent(message string) *ErrorEvent {
	return &ErrorEvent{Type: MsgTypeError, Message: message}
}

// NewMessageOut converts a stored transcript entry to its wire form.
func NewMessageOut(m ChatMessage) *MessageOutEvent {
	return &MessageOutEvent{
		Type:      MsgTypeMessage,
		ID:        m.ID.String(),
		Content:   m.Content,
		UserID:    m.UserID,
		UserType:  m.UserType,
		UserName:  m.UserName,
		Timestamp: m.CreatedAtMillis,
	}
}
