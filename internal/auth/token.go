// Package auth validates bearer tokens issued by the external authentication
// provider. Credential verification and token issuance happen upstream; this
// service only needs the verified account identity.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/secureauth/sentinel/internal/models"
)

// Claims are the token claims this service relies on.
type Claims struct {
	AccountID string `json:"sub_account"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HS256 tokens against the shared secret.
type TokenVerifier struct {
	secret string
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: secret}
}

// Verify parses and validates tokenString and returns the verified account
// id. All failures map to ErrUnauthorized.
func (v *TokenVerifier) Verify(tokenString string) (uuid.UUID, *Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(v.secret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, nil, models.ErrUnauthorized
	}

	// The provider puts the account id in the standard subject claim;
	// sub_account is a legacy fallback.
	raw := claims.Subject
	if raw == "" {
		raw = claims.AccountID
	}

	accountID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, nil, models.ErrUnauthorized
	}

	return accountID, claims, nil
}
