package sandbox

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"roomkit/errors"
)

// RoomClaims is the payload of a room-access token: which client may
// open sessions, and optionally which single room the token is scoped
// to (empty means all rooms).
type RoomClaims struct {
	ClientID string `json:"clientId"`
	RoomID   string `json:"roomId,omitempty"`
	jwt.RegisteredClaims
}

// tokenIssuer signs and validates HS256 room-access tokens.
type tokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func newTokenIssuer(secret []byte, ttl time.Duration) *tokenIssuer {
	return &tokenIssuer{secret: secret, ttl: ttl}
}

// Issue signs a token for one client identity, optionally scoped to a
// single room.
func (t *tokenIssuer) Issue(clientID, roomID string) (string, error) {
	const op = "issue room token"
	if clientID == "" {
		return "", errors.New(errors.KindInvalidArgument, op, "client identity is required")
	}
	now := time.Now()
	claims := &RoomClaims{
		ClientID: clientID,
		RoomID:   roomID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "roomkit-sandbox",
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", errors.Wrap(errors.KindInternal, op, err)
	}
	return signed, nil
}

// Validate parses a token and verifies its signature and expiry.
func (t *tokenIssuer) Validate(tokenString string) (*RoomClaims, error) {
	const op = "validate room token"
	token, err := jwt.ParseWithClaims(tokenString, &RoomClaims{}, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindInvalidArgument, op, err)
	}
	claims, ok := token.Claims.(*RoomClaims)
	if !ok || !token.Valid {
		return nil, errors.New(errors.KindInvalidArgument, op, "token claims are invalid")
	}
	return claims, nil
}
