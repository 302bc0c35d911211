// Package common contains shared constants, sentinel errors and small byte
// helpers used across the session manager.
package common

const (
	// AuthorizationHeaderName is the HTTP header / gRPC metadata key that
	// carries the bearer session token on outbound requests.
	AuthorizationHeaderName = "authorization"

	// RequestIDHeaderName correlates a client request with backend logs.
	RequestIDHeaderName = "x-request-id"

	BearerPrefix = "Bearer "
)
