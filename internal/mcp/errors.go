// Package mcp exposes textdex indices to MCP clients over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"

	txerrors "github.com/Aman-CERP/textdex/internal/errors"
)

// Custom MCP error codes for textdex.
const (
	// ErrCodeIndexNotFound indicates the named index does not exist.
	ErrCodeIndexNotFound = -32001

	// ErrCodeIndexUnavailable indicates the index is being removed.
	ErrCodeIndexUnavailable = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeSchema indicates the index has no usable mapping for the request.
	ErrCodeSchema = -32004

	// ErrCodeIndexExists indicates an index with that name already exists.
	ErrCodeIndexExists = -32005

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// ErrResourceNotFound indicates the requested resource does not exist.
var ErrResourceNotFound = errors.New("resource not found")

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	case errors.Is(err, txerrors.ErrQuerySyntax):
		return &MCPError{Code: ErrCodeInvalidParams, Message: err.Error()}
	case errors.Is(err, ErrResourceNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "Resource not found."}
	}

	var txErr *txerrors.Error
	if errors.As(err, &txErr) {
		return mapTextdexError(txErr)
	}
	return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

func mapTextdexError(e *txerrors.Error) *MCPError {
	message := e.Message
	if e.Suggestion != "" {
		message = fmt.Sprintf("%s %s", e.Message, e.Suggestion)
	}

	switch e.Code {
	case txerrors.ErrCodeIndexNotFound:
		return &MCPError{Code: ErrCodeIndexNotFound, Message: message}
	case txerrors.ErrCodeIndexUnavailable, txerrors.ErrCodeAlreadyUnloading:
		return &MCPError{Code: ErrCodeIndexUnavailable, Message: message}
	case txerrors.ErrCodeIndexExists:
		return &MCPError{Code: ErrCodeIndexExists, Message: message}
	case txerrors.ErrCodeInvalidSchema:
		return &MCPError{Code: ErrCodeSchema, Message: message}
	}

	switch e.Category {
	case txerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
