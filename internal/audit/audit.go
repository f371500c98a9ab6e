package audit

import (
	"github.com/rs/zerolog"

	"github.com/advisorly/reading-room/pkg/log"
)

// Audit actions for room events.
const (
	ActionAuth       = "room.auth"
	ActionAuthFailed = "room.auth_failed"
	ActionEndChat    = "room.end_chat"
	ActionTeardown   = "room.teardown"
)

const fieldAction = "action"

// Log emits a structured audit entry via the given room logger.
func Log(l zerolog.Logger, action, userID, msg string) {
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(fieldAction, action).
		Str(log.FieldUserID, userID).
		Msg(msg)
}
