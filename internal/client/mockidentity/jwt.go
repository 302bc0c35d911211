package mockidentity

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	purposeSession       = "session"
	purposePasswordReset = "password_reset"
)

// Claims is the payload of every token the directory issues. Subject is the
// user ID for session tokens and the normalized email for reset tokens.
type Claims struct {
	jwt.RegisteredClaims
	Purpose string `json:"purpose"`
}

func generateToken(subject, purpose string, secret []byte, now time.Time, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Purpose: purpose,
	})
	return token.SignedString(secret)
}

// parseToken verifies signature, expiry and purpose. Expired tokens yield
// common.ErrTokenExpired, anything else common.ErrInvalidToken.
func parseToken(tokenString, purpose string, secret []byte, now func() time.Time) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Purpose != purpose {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}
