package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authsession/internal/client/models"
	"github.com/dmitrijs2005/authsession/internal/client/repositories/tokens"
	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/logging"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// gRPC surface of the identity backend. Requests and responses are
// google.protobuf.Struct messages whose field names match the REST DTOs.
const (
	GRPCServiceName = "authsession.v1.Identity"

	MethodLogin           = "/authsession.v1.Identity/Login"
	MethodRegister        = "/authsession.v1.Identity/Register"
	MethodSendResetCode   = "/authsession.v1.Identity/SendResetCode"
	MethodVerifyResetCode = "/authsession.v1.Identity/VerifyResetCode"
	MethodChangePassword  = "/authsession.v1.Identity/ChangePassword"
	MethodCurrentUser     = "/authsession.v1.Identity/CurrentUser"
	MethodLogout          = "/authsession.v1.Identity/Logout"

	// ErrorCodeTrailer carries the machine-readable rejection code.
	ErrorCodeTrailer = "error-code"

	defaultGRPCScope = "grpc"
)

type GRPCRepository struct {
	endpointURL string
	conn        *grpc.ClientConn
	timeout     time.Duration
	dialOpts    []grpc.DialOption
	log         logging.Logger
	session     tokenSession
}

type GRPCOption func(*GRPCRepository)

// WithDialOptions appends dial options, e.g. a bufconn dialer in tests.
func WithDialOptions(opts ...grpc.DialOption) GRPCOption {
	return func(g *GRPCRepository) { g.dialOpts = append(g.dialOpts, opts...) }
}

func WithGRPCLogger(l logging.Logger) GRPCOption {
	return func(g *GRPCRepository) { g.log = l }
}

// NewGRPCRepository creates the client connection. grpc connects lazily, so
// an unreachable endpoint surfaces as a NetworkError on the first call.
func NewGRPCRepository(endpointURL string, store tokens.Store, timeout time.Duration, opts ...GRPCOption) (*GRPCRepository, error) {
	g := &GRPCRepository{endpointURL: endpointURL, timeout: timeout, log: logging.Nop()}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With("backend", defaultGRPCScope)
	g.session = tokenSession{tokens: store, log: g.log}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(g.requestIDInterceptor),
	}, g.dialOpts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("grpc client for %s: %w", endpointURL, err)
	}
	g.conn = conn
	return g, nil
}

// requestIDInterceptor tags each call with a request id and logs its outcome.
func (g *GRPCRepository) requestIDInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	requestID := uuid.NewString()
	ctx = metadata.AppendToOutgoingContext(ctx, common.RequestIDHeaderName, requestID)

	started := time.Now()
	err := invoker(ctx, method, req, reply, cc, opts...)

	g.log.Debug(ctx, "rpc finished", "method", method, "request_id", requestID,
		"elapsed", time.Since(started), "error", err)
	return err
}

func (g *GRPCRepository) Login(ctx context.Context, creds models.Credentials) (string, error) {
	resp, err := g.invoke(ctx, MethodLogin, "", map[string]any{
		"identifier": creds.Identifier,
		"secret":     string(creds.Secret),
	})
	if err != nil {
		return "", err
	}

	token := stringField(resp, "token")
	if token == "" {
		return "", malformed(MethodLogin, "empty token")
	}
	return token, nil
}

func (g *GRPCRepository) Register(ctx context.Context, data models.UserData) error {
	_, err := g.invoke(ctx, MethodRegister, "", map[string]any{
		"identifier":   data.Identifier,
		"secret":       string(data.Secret),
		"display_name": data.DisplayName,
		"phone":        data.Phone,
	})
	return err
}

func (g *GRPCRepository) SendResetCode(ctx context.Context, email string) (bool, error) {
	resp, err := g.invoke(ctx, MethodSendResetCode, "", map[string]any{"email": email})
	if err != nil {
		return false, err
	}
	return resp.GetFields()["sent"].GetBoolValue(), nil
}

func (g *GRPCRepository) VerifyResetCode(ctx context.Context, email, code string) (string, error) {
	resp, err := g.invoke(ctx, MethodVerifyResetCode, "", map[string]any{"email": email, "code": code})
	if err != nil {
		return "", err
	}
	resetToken := stringField(resp, "reset_token")
	if resetToken == "" {
		return "", malformed(MethodVerifyResetCode, "empty reset token")
	}
	return resetToken, nil
}

func (g *GRPCRepository) ChangePassword(ctx context.Context, email, newPassword, resetToken string) error {
	_, err := g.invoke(ctx, MethodChangePassword, "", map[string]any{
		"email":        email,
		"new_password": newPassword,
		"reset_token":  resetToken,
	})
	return err
}

func (g *GRPCRepository) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	resp, err := g.invoke(ctx, MethodCurrentUser, token, nil)
	if err != nil {
		return nil, err
	}

	user, err := UserFromStruct(resp)
	if err != nil {
		return nil, g.HandleError(&NetworkError{Op: MethodCurrentUser, Err: err})
	}
	return user, nil
}

func (g *GRPCRepository) CheckAuthStatus(ctx context.Context) (*models.User, error) {
	return g.session.restore(ctx, g.CurrentUser)
}

func (g *GRPCRepository) SignOut(ctx context.Context) error {
	return g.session.signOut(ctx, func(ctx context.Context, token string) error {
		_, err := g.invoke(ctx, MethodLogout, token, nil)
		return err
	})
}

func (g *GRPCRepository) HandleError(err error) error {
	return classifyError(defaultGRPCScope, err)
}

func (g *GRPCRepository) Close() error {
	return g.conn.Close()
}

func (g *GRPCRepository) invoke(ctx context.Context, method, token string, fields map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, g.HandleError(&NetworkError{Op: method, Err: fmt.Errorf("encode request: %w", err)})
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	if token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, common.AuthorizationHeaderName, common.BearerPrefix+token)
	}

	var trailer metadata.MD
	out := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, method, in, out, grpc.Trailer(&trailer)); err != nil {
		err = g.HandleError(err)

		var he *HTTPError
		if errors.As(err, &he) {
			if v := trailer.Get(ErrorCodeTrailer); len(v) > 0 {
				he.Code = v[0]
			}
		}
		return nil, err
	}
	return out, nil
}

// UserToStruct converts a user to its gRPC wire form.
func UserToStruct(u *models.User) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":           float64(u.ID),
		"identifier":   u.Identifier,
		"display_name": u.DisplayName,
		"phone":        u.Phone,
		"created_at":   u.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// UserFromStruct is the inverse of UserToStruct.
func UserFromStruct(s *structpb.Struct) (*models.User, error) {
	f := s.GetFields()
	idValue, ok := f["id"]
	if !ok {
		return nil, errors.New("malformed response: missing user id")
	}

	u := &models.User{
		ID:          int64(idValue.GetNumberValue()),
		Identifier:  stringField(s, "identifier"),
		DisplayName: stringField(s, "display_name"),
		Phone:       stringField(s, "phone"),
	}
	if raw := stringField(s, "created_at"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("malformed response: created_at: %w", err)
		}
		u.CreatedAt = t
	}
	return u, nil
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}
