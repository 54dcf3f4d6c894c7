package server

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by Editor calls while no host is attached.
	ErrNotConnected = errors.New("host editor not connected")

	// ErrClosed is returned when writing to a closed connection.
	ErrClosed = errors.New("connection closed")
)

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeRequestCancelled answers a request cancelled by $/cancelRequest.
	CodeRequestCancelled = -32800
)
