// Package mockidentity is an in-process identity directory: the mock
// backend behind client.MemoryRepository and the fixture served by the REST
// and gRPC backend tests.
//
// It keeps accounts in memory with bcrypt password hashes, issues HS256 JWT
// session tokens and password-reset tokens, and hands 6-digit reset codes to
// an Outbox instead of sending email. Rejections are returned as *Error,
// which carries the HTTP status and a machine-readable code a real identity
// service would answer with; transports map it onto their own wire format.
package mockidentity
