package mcp

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/parleychat/parley/rpc"
)

type ErrorCode string

const (
	ErrNotFound     ErrorCode = "not_found"
	ErrValidation   ErrorCode = "validation"
	ErrUnauthorized ErrorCode = "unauthorized"
	ErrInternal     ErrorCode = "internal"
)

type ToolError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e ToolError) ToResult() *mcp.CallToolResult {
	data, _ := json.Marshal(e)
	return mcp.NewToolResultError(string(data))
}

func NotFound(resource, id string) *mcp.CallToolResult {
	return ToolError{
		Code:    ErrNotFound,
		Message: resource + " not found",
		Details: map[string]any{resource + "_id": id},
	}.ToResult()
}

func ValidationError(msg string) *mcp.CallToolResult {
	return ToolError{
		Code:    ErrValidation,
		Message: msg,
	}.ToResult()
}

func Unauthorized(msg string) *mcp.CallToolResult {
	return ToolError{
		Code:    ErrUnauthorized,
		Message: msg,
	}.ToResult()
}

func InternalError(err error) *mcp.CallToolResult {
	return ToolError{
		Code:    ErrInternal,
		Message: err.Error(),
	}.ToResult()
}

// toolError maps a failed client call onto the tool error vocabulary.
// resource and id name what the call was addressing, for not-found details.
func toolError(err error, resource, id string) *mcp.CallToolResult {
	var rerr *rpc.Error
	if !errors.As(err, &rerr) {
		return InternalError(err)
	}
	switch rerr.Code {
	case rpc.CodeNotFound:
		return NotFound(resource, id)
	case rpc.CodeInvalidMessage:
		return ValidationError(rerr.Message)
	case rpc.CodeUnauthorized, rpc.CodeNotParticipant:
		return Unauthorized(rerr.Message)
	default:
		return InternalError(err)
	}
}
