package domain

// UserType distinguishes the two parties of a reading room.
type UserType string

const (
	UserTypeClient  UserType = "client"
	UserTypeAdvisor UserType = "advisor"
)

// ParseUserType returns the matching UserType, defaulting to client.
func ParseUserType(s string) UserType {
	if UserType(s) == UserTypeAdvisor {
		return UserTypeAdvisor
	}
	return UserTypeClient
}

// Identity is the authenticated principal bound to a session.
type Identity struct {
	UserID   string   `json:"userId"`
	UserType UserType `json:"userType"`
	UserName string   `json:"userName"`
}

// Session is the per-connection state owned by a room actor. It is only
// ever touched from the actor's event loop, so it carries no locking.
// The struct is JSON-serializable verbatim: the snapshot persisted for
// restart recovery is the session itself.
type Session struct {
	ConnID        string   `json:"connId"`
	Identity      Identity `json:"identity"`
	Authenticated bool     `json:"authenticated"`
}

func NewSession(connID string) *Session {
	return &Session{ConnID: connID}
}

// Authenticate binds an identity to the session. It is valid at most once
// per session; the room actor rejects repeat attempts before calling this.
func (s *Session) Authenticate(id Identity) {
	s.Identity = id
	s.Authenticated = true
}

// RoomContext carries the ledger correlation identifiers for one room
// actor. It is bound by the first successful authentication and kept
// current as the second party authenticates; end-of-chat billing calls
// need identifiers that later lightweight frames no longer carry.
type RoomContext struct {
	RoomID        string `json:"roomId"`
	ClientID      string `json:"clientId,omitempty"`
	AdvisorID     string `json:"advisorId,omitempty"`
	BoundAtMillis int64  `json:"boundAt"`
}

// Bound reports whether at least one successful authentication has fixed
// the context.
func (rc RoomContext) Bound() bool {
	return rc.BoundAtMillis != 0
}
