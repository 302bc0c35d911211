package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/authsession/internal/client/models"
	"github.com/dmitrijs2005/authsession/internal/client/repositories/tokens"
	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/logging"
	"github.com/google/uuid"
)

const (
	maxErrorBody     = 64 << 10
	defaultRESTScope = "rest"
)

// REST paths served by the identity backend.
const (
	PathLogin         = "/auth/login"
	PathRegister      = "/auth/register"
	PathForgot        = "/auth/password/forgot"
	PathVerifyCode    = "/auth/password/verify"
	PathResetPassword = "/auth/password/reset"
	PathCurrentUser   = "/auth/me"
	PathLogout        = "/auth/logout"
)

// Wire DTOs. Exported so test servers and alternative transports can share
// them.
type (
	LoginRequest struct {
		Identifier string `json:"identifier"`
		Secret     string `json:"secret"`
	}
	LoginResponse struct {
		Token string `json:"token"`
	}
	RegisterRequest struct {
		Identifier  string `json:"identifier"`
		Secret      string `json:"secret"`
		DisplayName string `json:"display_name,omitempty"`
		Phone       string `json:"phone,omitempty"`
	}
	ForgotRequest struct {
		Email string `json:"email"`
	}
	ForgotResponse struct {
		Sent bool `json:"sent"`
	}
	VerifyCodeRequest struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	VerifyCodeResponse struct {
		ResetToken string `json:"reset_token"`
	}
	ResetPasswordRequest struct {
		Email       string `json:"email"`
		NewPassword string `json:"new_password"`
		ResetToken  string `json:"reset_token"`
	}
	UserResponse struct {
		ID          int64     `json:"id"`
		Identifier  string    `json:"identifier"`
		DisplayName string    `json:"display_name"`
		Phone       string    `json:"phone"`
		CreatedAt   time.Time `json:"created_at"`
	}
	ErrorResponse struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
)

func (u UserResponse) toModel() *models.User {
	return &models.User{
		ID:          u.ID,
		Identifier:  u.Identifier,
		DisplayName: u.DisplayName,
		Phone:       u.Phone,
		CreatedAt:   u.CreatedAt,
	}
}

// UserToResponse converts a user to its wire form.
func UserToResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Identifier:  u.Identifier,
		DisplayName: u.DisplayName,
		Phone:       u.Phone,
		CreatedAt:   u.CreatedAt,
	}
}

// RESTRepository talks JSON over HTTP to the identity backend.
type RESTRepository struct {
	baseURL string
	http    *http.Client
	log     logging.Logger
	session tokenSession
}

type RESTOption func(*RESTRepository)

// WithHTTPClient replaces the default client (which only sets a timeout).
func WithHTTPClient(c *http.Client) RESTOption {
	return func(r *RESTRepository) { r.http = c }
}

func WithRESTLogger(l logging.Logger) RESTOption {
	return func(r *RESTRepository) { r.log = l }
}

func NewRESTRepository(baseURL string, store tokens.Store, timeout time.Duration, opts ...RESTOption) *RESTRepository {
	r := &RESTRepository{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With("backend", defaultRESTScope)
	r.session = tokenSession{tokens: store, log: r.log}
	return r
}

func (r *RESTRepository) Login(ctx context.Context, creds models.Credentials) (string, error) {
	var resp LoginResponse
	req := LoginRequest{Identifier: creds.Identifier, Secret: string(creds.Secret)}
	if err := r.do(ctx, http.MethodPost, PathLogin, "", req, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", malformed("POST "+PathLogin, "empty token")
	}
	return resp.Token, nil
}

func (r *RESTRepository) Register(ctx context.Context, data models.UserData) error {
	req := RegisterRequest{
		Identifier:  data.Identifier,
		Secret:      string(data.Secret),
		DisplayName: data.DisplayName,
		Phone:       data.Phone,
	}
	return r.do(ctx, http.MethodPost, PathRegister, "", req, nil)
}

func (r *RESTRepository) SendResetCode(ctx context.Context, email string) (bool, error) {
	var resp ForgotResponse
	if err := r.do(ctx, http.MethodPost, PathForgot, "", ForgotRequest{Email: email}, &resp); err != nil {
		return false, err
	}
	return resp.Sent, nil
}

func (r *RESTRepository) VerifyResetCode(ctx context.Context, email, code string) (string, error) {
	var resp VerifyCodeResponse
	if err := r.do(ctx, http.MethodPost, PathVerifyCode, "", VerifyCodeRequest{Email: email, Code: code}, &resp); err != nil {
		return "", err
	}
	if resp.ResetToken == "" {
		return "", malformed("POST "+PathVerifyCode, "empty reset token")
	}
	return resp.ResetToken, nil
}

func (r *RESTRepository) ChangePassword(ctx context.Context, email, newPassword, resetToken string) error {
	req := ResetPasswordRequest{Email: email, NewPassword: newPassword, ResetToken: resetToken}
	return r.do(ctx, http.MethodPost, PathResetPassword, "", req, nil)
}

func (r *RESTRepository) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	var resp UserResponse
	if err := r.do(ctx, http.MethodGet, PathCurrentUser, token, nil, &resp); err != nil {
		return nil, err
	}
	if resp.ID == 0 {
		return nil, malformed("GET "+PathCurrentUser, "missing user id")
	}
	return resp.toModel(), nil
}

func (r *RESTRepository) CheckAuthStatus(ctx context.Context) (*models.User, error) {
	return r.session.restore(ctx, r.CurrentUser)
}

func (r *RESTRepository) SignOut(ctx context.Context) error {
	return r.session.signOut(ctx, func(ctx context.Context, token string) error {
		return r.do(ctx, http.MethodPost, PathLogout, token, nil, nil)
	})
}

func (r *RESTRepository) HandleError(err error) error {
	return classifyError(defaultRESTScope, err)
}

func (r *RESTRepository) Close() error {
	r.http.CloseIdleConnections()
	return nil
}

// do performs one request. in and out may be nil. Every error it returns
// has been through HandleError.
func (r *RESTRepository) do(ctx context.Context, method, path, token string, in, out any) error {
	op := method + " " + path

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return r.HandleError(&NetworkError{Op: op, Err: fmt.Errorf("encode request: %w", err)})
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return r.HandleError(&NetworkError{Op: op, Err: err})
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(common.RequestIDHeaderName, requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}

	log := r.log.With("op", op, "request_id", requestID)
	started := time.Now()

	resp, err := r.http.Do(req)
	if err != nil {
		log.Debug(ctx, "request failed", "error", err)
		return r.HandleError(err)
	}
	defer resp.Body.Close()

	log.Debug(ctx, "request finished", "status", resp.StatusCode, "elapsed", time.Since(started))

	if resp.StatusCode >= http.StatusBadRequest {
		return r.HandleError(decodeHTTPError(resp))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return r.HandleError(&NetworkError{Op: op, Err: fmt.Errorf("malformed response: %w", err)})
	}
	return nil
}

func decodeHTTPError(resp *http.Response) *HTTPError {
	he := &HTTPError{Status: resp.StatusCode}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(b) == 0 {
		return he
	}

	var payload ErrorResponse
	if err := json.Unmarshal(b, &payload); err != nil {
		he.Message = strings.TrimSpace(string(b))
		return he
	}
	he.Code = payload.Code
	he.Message = payload.Message
	return he
}

// malformed reports a 2xx response whose body lacks a required field.
func malformed(op, what string) error {
	return &NetworkError{Op: op, Err: fmt.Errorf("malformed response: %s", what)}
}
