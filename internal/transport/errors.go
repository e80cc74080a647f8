package transport

import (
	"errors"
	"fmt"

	"github.com/dshills/cellstorm/internal/protocol"
	"github.com/dshills/cellstorm/internal/service"
)

var (
	// ErrClosed is returned by calls on a closed client and by a closed server.
	ErrClosed = errors.New("transport closed")

	// ErrMethodNotFound is returned for a request with an unknown method.
	ErrMethodNotFound = errors.New("method not found")
)

// Error codes. The JSON-RPC codes are reused where they fit.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeEditorNotFound = -32001
	CodeActionNotFound = -32002
	CodeEditorExists   = -32003
	CodeServiceClosed  = -32004
)

// codeErrors maps codes to the sentinel a client error unwraps to.
var codeErrors = map[int]error{
	CodeParseError:     protocol.ErrInvalidMessage,
	CodeInvalidRequest: protocol.ErrInvalidMessage,
	CodeInvalidParams:  protocol.ErrInvalidMessage,
	CodeMethodNotFound: ErrMethodNotFound,
	CodeEditorNotFound: protocol.ErrEditorNotFound,
	CodeActionNotFound: protocol.ErrActionNotFound,
	CodeEditorExists:   service.ErrEditorExists,
	CodeServiceClosed:  service.ErrClosed,
}

// RPCError is an error reported by the other side of a connection.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Unwrap returns the sentinel error of the code, so callers can use
// errors.Is across the connection.
func (e *RPCError) Unwrap() error { return codeErrors[e.Code] }

// errorCode returns the code that reports err.
func errorCode(err error) int {
	for _, code := range []int{
		CodeEditorNotFound, CodeActionNotFound, CodeEditorExists,
		CodeServiceClosed, CodeMethodNotFound, CodeInvalidParams,
	} {
		if errors.Is(err, codeErrors[code]) {
			return code
		}
	}
	return CodeInternalError
}
