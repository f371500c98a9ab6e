package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/advisorly/reading-room/internal/config"
	"github.com/advisorly/reading-room/internal/domain"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrRoomMismatch  = errors.New("token not valid for this room")
	ErrTokenRequired = errors.New("token required")
)

const defaultUserName = "Anonymous"

// Claims asserted by a reading-room credential.
type Claims struct {
	jwt.RegisteredClaims
	RoomID   string `json:"room_id"`
	UserType string `json:"user_type"`
	Name     string `json:"name"`
}

// Request carries the fields of an inbound auth frame.
type Request struct {
	Token    string
	UserID   string
	UserType string
	UserName string
}

// Verifier validates credentials and produces identities. Verification is
// configured when a JWT secret is present; otherwise dev mode may
// synthesize identities from caller-supplied fields.
type Verifier struct {
	secret  []byte
	devMode bool
}

func NewVerifier(cfg config.AuthConfig) *Verifier {
	var secret []byte
	if cfg.JWTSecret != "" {
		secret = []byte(cfg.JWTSecret)
	}
	return &Verifier{secret: secret, devMode: cfg.DevMode}
}

// Verify authenticates one auth request against the room the actor is
// bound to. On success it returns the identity to bind to the session.
func (v *Verifier) Verify(req Request, roomID string) (domain.Identity, error) {
	if req.Token != "" && v.secret != nil {
		return v.verifyToken(req.Token, roomID)
	}

	if v.devMode {
		return synthesize(req), nil
	}

	return domain.Identity{}, ErrTokenRequired
}

func (v *Verifier) verifyToken(tokenString, roomID string) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		return domain.Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.Identity{}, ErrInvalidToken
	}

	if claims.RoomID != roomID {
		return domain.Identity{}, ErrRoomMismatch
	}

	name := claims.Name
	if name == "" {
		name = defaultUserName
	}

	return domain.Identity{
		UserID:   claims.Subject,
		UserType: domain.ParseUserType(claims.UserType),
		UserName: name,
	}, nil
}

func synthesize(req Request) domain.Identity {
	id := domain.Identity{
		UserID:   req.UserID,
		UserType: domain.ParseUserType(req.UserType),
		UserName: req.UserName,
	}
	if id.UserID == "" {
		id.UserID = uuid.New().String()
	}
	if id.UserName == "" {
		id.UserName = defaultUserName
	}
	return id
}
