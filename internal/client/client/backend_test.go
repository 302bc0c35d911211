package client

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/authsession/internal/client/mockidentity"
	"github.com/dmitrijs2005/authsession/internal/client/models"
	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	testEmail    = "alice@example.com"
	testPassword = "correct-horse"
)

// outbox remembers the last reset code sent per address.
type outbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (o *outbox) SendResetCode(_ context.Context, email, code string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.codes == nil {
		o.codes = make(map[string]string)
	}
	o.codes[email] = code
	return nil
}

func (o *outbox) code(email string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.codes[email]
}

func newDirectory(t *testing.T) (*mockidentity.Directory, *outbox) {
	t.Helper()
	box := &outbox{}
	dir := mockidentity.NewDirectory(mockidentity.Config{Secret: []byte("test-secret"), Outbox: box})
	_, err := dir.Register(context.Background(), models.UserData{
		Identifier:  testEmail,
		Secret:      []byte(testPassword),
		DisplayName: "Alice",
	})
	require.NoError(t, err)
	return dir, box
}

// REST test backend

func newRESTBackend(dir *mockidentity.Directory) http.Handler {
	r := chi.NewRouter()

	r.Post(PathLogin, func(w http.ResponseWriter, req *http.Request) {
		var in LoginRequest
		if !decodeBody(w, req, &in) {
			return
		}
		token, err := dir.Login(req.Context(), in.Identifier, []byte(in.Secret))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, LoginResponse{Token: token})
	})

	r.Post(PathRegister, func(w http.ResponseWriter, req *http.Request) {
		var in RegisterRequest
		if !decodeBody(w, req, &in) {
			return
		}
		u, err := dir.Register(req.Context(), models.UserData{
			Identifier:  in.Identifier,
			Secret:      []byte(in.Secret),
			DisplayName: in.DisplayName,
			Phone:       in.Phone,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, UserToResponse(u))
	})

	r.Post(PathForgot, func(w http.ResponseWriter, req *http.Request) {
		var in ForgotRequest
		if !decodeBody(w, req, &in) {
			return
		}
		sent, err := dir.SendResetCode(req.Context(), in.Email)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ForgotResponse{Sent: sent})
	})

	r.Post(PathVerifyCode, func(w http.ResponseWriter, req *http.Request) {
		var in VerifyCodeRequest
		if !decodeBody(w, req, &in) {
			return
		}
		token, err := dir.VerifyResetCode(req.Context(), in.Email, in.Code)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, VerifyCodeResponse{ResetToken: token})
	})

	r.Post(PathResetPassword, func(w http.ResponseWriter, req *http.Request) {
		var in ResetPasswordRequest
		if !decodeBody(w, req, &in) {
			return
		}
		if err := dir.ChangePassword(req.Context(), in.Email, in.NewPassword, in.ResetToken); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get(PathCurrentUser, func(w http.ResponseWriter, req *http.Request) {
		u, err := dir.UserByToken(req.Context(), bearer(req.Header.Get(common.AuthorizationHeaderName)))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, UserToResponse(u))
	})

	r.Post(PathLogout, func(w http.ResponseWriter, req *http.Request) {
		if err := dir.Logout(req.Context(), bearer(req.Header.Get(common.AuthorizationHeaderName))); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

func bearer(v string) string {
	return strings.TrimPrefix(v, common.BearerPrefix)
}

func decodeBody(w http.ResponseWriter, req *http.Request, v any) bool {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: "bad_request", Message: err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var de *mockidentity.Error
	if errors.As(err, &de) {
		writeJSON(w, de.Status, ErrorResponse{Code: de.Code, Message: de.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: err.Error()})
}

// gRPC test backend

type identityServer struct {
	dir *mockidentity.Directory
}

type structHandler func(s *identityServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unary(name string, fn structHandler) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
			in := &structpb.Struct{}
			if err := dec(in); err != nil {
				return nil, err
			}
			out, err := fn(srv.(*identityServer), ctx, in)
			if err != nil {
				return nil, toStatus(ctx, err)
			}
			return out, nil
		},
	}
}

var identityServiceDesc = grpc.ServiceDesc{
	ServiceName: GRPCServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		unary("Login", func(s *identityServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			token, err := s.dir.Login(ctx, stringField(in, "identifier"), []byte(stringField(in, "secret")))
			if err != nil {
				return nil, err
			}
			return structpb.NewStruct(map[string]any{"token": token})
		}),
		unary("Register", func(s *identityServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			u, err := s.dir.Register(ctx, models.UserData{
				Identifier:  stringField(in, "identifier"),
				Secret:      []byte(stringField(in, "secret")),
				DisplayName: stringField(in, "display_name"),
				Phone:       stringField(in, "phone"),
			})
			if err != nil {
				return nil, err
			}
			return UserToStruct(u)
		}),
		unary("SendResetCode", func(s *identityServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			sent, err := s.dir.SendResetCode(ctx, stringField(in, "email"))
			if err != nil {
				return nil, err
			}
			return structpb.NewStruct(map[string]any{"sent": sent})
		}),
		unary("VerifyResetCode", func(s *identityServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			token, err := s.dir.VerifyResetCode(ctx, stringField(in, "email"), stringField(in, "code"))
			if err != nil {
				return nil, err
			}
			return structpb.NewStruct(map[string]any{"reset_token": token})
		}),
		unary("ChangePassword", func(s *identityServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			err := s.dir.ChangePassword(ctx, stringField(in, "email"), stringField(in, "new_password"), stringField(in, "reset_token"))
			if err != nil {
				return nil, err
			}
			return &structpb.Struct{}, nil
		}),
		unary("CurrentUser", func(s *identityServer, ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
			u, err := s.dir.UserByToken(ctx, incomingToken(ctx))
			if err != nil {
				return nil, err
			}
			return UserToStruct(u)
		}),
		unary("Logout", func(s *identityServer, ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
			if err := s.dir.Logout(ctx, incomingToken(ctx)); err != nil {
				return nil, err
			}
			return &structpb.Struct{}, nil
		}),
	},
}

func incomingToken(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	v := md.Get(common.AuthorizationHeaderName)
	if len(v) == 0 {
		return ""
	}
	return bearer(v[0])
}

func toStatus(ctx context.Context, err error) error {
	var de *mockidentity.Error
	if !errors.As(err, &de) {
		return status.Error(codes.Internal, err.Error())
	}
	_ = grpc.SetTrailer(ctx, metadata.Pairs(ErrorCodeTrailer, de.Code))
	return status.Error(codeFromHTTPStatus(de.Status), de.Message)
}

func codeFromHTTPStatus(s int) codes.Code {
	switch s {
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusUnprocessableEntity:
		return codes.FailedPrecondition
	case http.StatusUnauthorized:
		return codes.Unauthenticated
	case http.StatusForbidden:
		return codes.PermissionDenied
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusConflict:
		return codes.AlreadyExists
	case http.StatusTooManyRequests:
		return codes.ResourceExhausted
	case http.StatusNotImplemented:
		return codes.Unimplemented
	default:
		return codes.Internal
	}
}

// startGRPCBackend serves dir over an in-memory listener and returns a dial
// option that reaches it.
func startGRPCBackend(t *testing.T, dir *mockidentity.Directory) (*grpc.Server, grpc.DialOption) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(&identityServiceDesc, &identityServer{dir: dir})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
	return srv, dialer
}
