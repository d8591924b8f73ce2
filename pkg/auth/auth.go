package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/windflowlabs/windflow/pkg/storage"
	"github.com/windflowlabs/windflow/pkg/types"
)

var (
	// ErrInvalidToken covers malformed, mis-signed and expired tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInactiveUser is returned for valid tokens of deactivated accounts.
	ErrInactiveUser = errors.New("user is inactive")
)

// Verifier resolves a bearer token to a user. The WebSocket layer
// depends on this interface so alternative issuers can be swapped in.
type Verifier interface {
	Verify(token string) (*types.User, error)
}

// Claims is the JWT payload the platform issues and accepts.
type Claims struct {
	OrganizationID string `json:"org,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 tokens and looks the subject up in the
// store.
type JWTVerifier struct {
	secret []byte
	store  storage.Store
}

// NewJWTVerifier creates a verifier checking signatures against secret.
func NewJWTVerifier(secret []byte, store storage.Store) *JWTVerifier {
	return &JWTVerifier{secret: secret, store: store}
}

// Verify parses and validates the token, then loads its subject. The
// user must exist and be active.
func (v *JWTVerifier) Verify(token string) (*types.User, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	user, err := v.store.GetUser(claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", ErrInvalidToken)
		}
		return nil, fmt.Errorf("look up token subject: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return user, nil
}

// SignToken issues an HS256 token for a user. The serve command uses
// it to mint local admin tokens; the API issuing real sessions lives
// outside this module.
func SignToken(secret []byte, user *types.User, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		OrganizationID: user.OrganizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
