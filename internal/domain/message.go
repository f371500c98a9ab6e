package domain

import (
	"html"

	"github.com/google/uuid"
)

// MaxContentLength caps stored message content, in runes. Applied before
// entity escaping, once, at acceptance.
const MaxContentLength = 1000

// ChatMessage is an immutable entry of the room transcript. The local log
// is the sole authority for "what this room said"; the external ledger is
// a downstream replica that may lag or fail independently.
type ChatMessage struct {
	ID              uuid.UUID `json:"id"`
	UserID          string    `json:"userId"`
	UserType        UserType  `json:"userType"`
	UserName        string    `json:"userName"`
	Content         string    `json:"content"`
	CreatedAtMillis int64     `json:"createdAt"`
}

// SanitizeContent truncates to MaxContentLength runes and entity-escapes
// HTML-significant characters so stored and broadcast content is inert.
func SanitizeContent(content string) string {
	runes := []rune(content)
	if len(runes) > MaxContentLength {
		runes = runes[:MaxContentLength]
	}
	return html.EscapeString(string(runes))
}
