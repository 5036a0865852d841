package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// Issuer is the iss claim of every device token.
	Issuer = "edgelink"

	// DefaultTokenTTL is used when no TTL is configured.
	DefaultTokenTTL = 15 * time.Minute

	// MinSecretLength is the shortest HS256 secret accepted.
	MinSecretLength = 32
)

// Sentinel errors for device tokens.
var (
	ErrTokenInvalid   = errors.New("auth: invalid token")
	ErrSecretTooShort = errors.New("auth: token secret too short")
	ErrMissingSite    = errors.New("auth: site id required")
)

// DeviceClaims identifies the device to the coordinator.
type DeviceClaims struct {
	jwt.RegisteredClaims
	TransportID string `json:"tid,omitempty"`
}

// TokenSource mints short-lived HS256 device tokens. A fresh token is
// minted for every connection attempt so a reconnect never presents an
// expired one.
type TokenSource struct {
	siteID      string
	transportID string
	secret      []byte
	ttl         time.Duration
	now         func() time.Time
}

// NewTokenSource creates a token source for siteID. A ttl of zero selects
// DefaultTokenTTL.
func NewTokenSource(siteID, transportID, secret string, ttl time.Duration) (*TokenSource, error) {
	if siteID == "" {
		return nil, ErrMissingSite
	}
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrSecretTooShort, len(secret), MinSecretLength)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenSource{
		siteID:      siteID,
		transportID: transportID,
		secret:      []byte(secret),
		ttl:         ttl,
		now:         time.Now,
	}, nil
}

// Token returns a newly signed token.
func (s *TokenSource) Token() (string, error) {
	now := s.now()
	claims := DeviceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   s.siteID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
		TransportID: s.transportID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing device token: %w", err)
	}
	return signed, nil
}

// Header renders a token as an Authorization header. It has the shape of
// link.HeaderProvider.
func (s *TokenSource) Header(ctx context.Context) (http.Header, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	token, err := s.Token()
	if err != nil {
		return nil, err
	}
	h := make(http.Header, 1)
	h.Set("Authorization", "Bearer "+token)
	return h, nil
}

// ParseToken validates a device token against secret and returns its
// claims. Signature, expiry, issuer and subject are checked.
func ParseToken(tokenString, secret string) (*DeviceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &DeviceClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*DeviceClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return claims, nil
}
