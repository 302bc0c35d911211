package common

import "errors"

var (
	// Token lifecycle errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Local persistence errors.
	ErrCorruptedTokenData = errors.New("corrupted token data")
)
