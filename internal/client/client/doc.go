// Package client implements the AuthRepository contract the session layer
// talks to, once per backend:
//
//   - RESTRepository: JSON over HTTP.
//   - GRPCRepository: google.protobuf.Struct messages over gRPC, with the
//     rejection code carried in the "error-code" trailer.
//   - MemoryRepository: an in-process mockidentity.Directory.
//
// # Error Handling
//
// Every error a repository returns has been through its HandleError and is
// one of two kinds. *HTTPError means the backend answered and rejected the
// request; errors.Is(err, ErrUnauthorized) holds for 401 and 403.
// *NetworkError means the exchange did not complete; errors.Is(err,
// ErrUnavailable) holds for all of them.
//
// All repositories read the persisted session token from a tokens.Store in
// CheckAuthStatus and SignOut, and are safe for concurrent use.
package client
