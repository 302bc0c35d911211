package mockidentity

import (
	"fmt"
	"net/http"
)

// Error is a rejection by the directory.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeIdentifierTaken    = "identifier_taken"
	CodeValidationFailed   = "validation_failed"
	CodeInvalidResetCode   = "invalid_reset_code"
	CodeInvalidResetToken  = "invalid_reset_token"
	CodeInvalidToken       = "invalid_token"
	CodeTokenExpired       = "token_expired"
	CodeTokenRevoked       = "token_revoked"
)

func errInvalidCredentials() *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeInvalidCredentials, Message: "invalid identifier or password"}
}

func errIdentifierTaken(identifier string) *Error {
	return &Error{Status: http.StatusConflict, Code: CodeIdentifierTaken, Message: fmt.Sprintf("%q is already registered", identifier)}
}

func errValidation(msg string) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Code: CodeValidationFailed, Message: msg}
}

func errInvalidResetCode() *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeInvalidResetCode, Message: "reset code is invalid or expired"}
}

func errInvalidResetToken() *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeInvalidResetToken, Message: "reset token is invalid or expired"}
}

func errToken(code, msg string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: code, Message: msg}
}
