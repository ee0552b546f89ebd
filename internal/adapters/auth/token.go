package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"roombooking/internal/domain"
)

const tokenIssuer = "roombooking"

// jwtClaims is the token payload: the user id travels as the subject.
type jwtClaims struct {
	jwt.RegisteredClaims
	Name string      `json:"name"`
	Role domain.Role `json:"role"`
}

// hmacKey signs and checks HS256 tokens with a shared secret.
type hmacKey []byte

func NewJWTIssuer(secret string) domain.TokenIssuer { return hmacKey(secret) }

func NewJWTVerifier(secret string) domain.TokenVerifier { return hmacKey(secret) }

func (k hmacKey) Issue(user *domain.User, expiry time.Duration) (string, error) {
	now := time.Now()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
		Name: user.Name,
		Role: user.Role,
	}).SignedString([]byte(k))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify accepts only unexpired HS256 tokens from this service that name
// a user and a known role.
func (k hmacKey) Verify(raw string) (*domain.Claims, error) {
	var c jwtClaims
	_, err := jwt.ParseWithClaims(raw, &c,
		func(*jwt.Token) (any, error) { return []byte(k), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if c.Subject == "" || !c.Role.Valid() {
		return nil, fmt.Errorf("%w: incomplete claims", domain.ErrUnauthorized)
	}
	return &domain.Claims{UserID: c.Subject, Name: c.Name, Role: c.Role}, nil
}
