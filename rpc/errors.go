package rpc

import (
	"errors"
	"fmt"

	"github.com/sourcegraph/jsonrpc2"
)

// Application error codes carried in JSON-RPC error responses, allocated
// below the range reserved by the JSON-RPC 2.0 spec.
const (
	CodeUnauthorized   int64 = -32001
	CodeNotFound       int64 = -32002
	CodeNotParticipant int64 = -32003
	CodeInvalidMessage int64 = -32004
)

// Error is an application-level RPC failure as seen by callers of the Go
// client. Transport and protocol failures are not wrapped in this type.
type Error struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// FromCallError converts an error returned by jsonrpc2.Conn.Call into an
// *Error when the server replied with a JSON-RPC error object. Other errors
// (transport failures, context cancellation) are returned unchanged.
func FromCallError(err error) error {
	if err == nil {
		return nil
	}
	var jerr *jsonrpc2.Error
	if errors.As(err, &jerr) {
		return &Error{Code: jerr.Code, Message: jerr.Message}
	}
	return err
}

// IsNotFound reports whether err is an RPC error with CodeNotFound.
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

// IsUnauthorized reports whether err is an RPC error with CodeUnauthorized.
func IsUnauthorized(err error) bool { return hasCode(err, CodeUnauthorized) }

// IsNotParticipant reports whether err is an RPC error with CodeNotParticipant.
func IsNotParticipant(err error) bool { return hasCode(err, CodeNotParticipant) }

func hasCode(err error, code int64) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
