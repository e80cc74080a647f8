package transport

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/protocol"
)

// Methods.
const (
	methodOpenNode                    = "openNode"
	methodCloseEditor                 = "closeEditor"
	methodNavigateTab                 = "navigateTab"
	methodExecuteDelete               = "executeDelete"
	methodExecuteInsert               = "executeInsert"
	methodProcessTypedText            = "processTypedText"
	methodReplaceText                 = "replaceText"
	methodTriggerCodeCompletion       = "triggerCodeCompletion"
	methodUpdateCodeCompletionActions = "updateCodeCompletionActions"
	methodHasCodeCompletionActions    = "hasCodeCompletionActions"
	methodExecuteCodeCompletionAction = "executeCodeCompletionAction"
	methodResetState                  = "resetState"
	methodFlush                       = "flush"

	// Server notifications.
	methodUpdate = "update"
	methodClosed = "closed"
)

// params holds the arguments of every method; each uses a subset.
type params struct {
	Editor            protocol.EditorID `json:"editor"`
	Node              string            `json:"node,omitempty"`
	Cell              celltree.ID       `json:"cell,omitempty"`
	Forward           bool              `json:"forward,omitempty"`
	Range             *textRange        `json:"range,omitempty"`
	Text              string            `json:"text,omitempty"`
	TriggerCompletion bool              `json:"triggerCompletion,omitempty"`
	Caret             int               `json:"caret,omitempty"`
	Pattern           string            `json:"pattern,omitempty"`
	ID                int               `json:"id,omitempty"`
}

type textRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func toRange(r protocol.Range) *textRange { return &textRange{Start: r.Start, End: r.End} }

func (p params) textRange() protocol.Range {
	if p.Range == nil {
		return protocol.Range{}
	}
	return protocol.Range{Start: p.Range.Start, End: p.Range.End}
}

// envelope builds a message with sjson, keeping the first error.
type envelope struct {
	data []byte
	err  error
}

func newEnvelope() *envelope { return &envelope{data: []byte("{}")} }

func (e *envelope) set(path string, v any) *envelope {
	if e.err == nil {
		e.data, e.err = sjson.SetBytes(e.data, path, v)
	}
	return e
}

func (e *envelope) raw(path string, v []byte) *envelope {
	if e.err == nil {
		e.data, e.err = sjson.SetRawBytes(e.data, path, v)
	}
	return e
}

func (e *envelope) bytes() ([]byte, error) { return e.data, e.err }

func encodeRequest(id int64, method string, p params) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return newEnvelope().set("id", id).set("method", method).raw("params", raw).bytes()
}

func encodeResult(id int64, result []byte) ([]byte, error) {
	if result == nil {
		result = []byte("null")
	}
	return newEnvelope().set("id", id).raw("result", result).bytes()
}

func encodeError(id int64, code int, msg string) ([]byte, error) {
	return newEnvelope().set("id", id).set("error.code", code).set("error.message", msg).bytes()
}

func encodeUpdate(editor protocol.EditorID, u *protocol.EditorUpdate) ([]byte, error) {
	raw, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}
	return newEnvelope().set("method", methodUpdate).set("editor", string(editor)).raw("update", raw).bytes()
}

func encodeClosed(editor protocol.EditorID) ([]byte, error) {
	return newEnvelope().set("method", methodClosed).set("editor", string(editor)).bytes()
}

// message is a decoded frame. The fields are peeked with gjson; params and
// results stay raw until the handler knows their shape.
type message struct {
	id     int64
	hasID  bool
	method string
	v      gjson.Result
}

func decodeMessage(data []byte) (message, error) {
	if !gjson.ValidBytes(data) {
		return message{}, fmt.Errorf("%w: malformed frame", protocol.ErrInvalidMessage)
	}
	v := gjson.ParseBytes(data)
	if !v.IsObject() {
		return message{}, fmt.Errorf("%w: frame is not an object", protocol.ErrInvalidMessage)
	}
	id := v.Get("id")
	return message{
		id:     id.Int(),
		hasID:  id.Exists() && id.Type == gjson.Number,
		method: v.Get("method").String(),
		v:      v,
	}, nil
}

func (m message) params() (params, error) {
	var p params
	raw := m.v.Get("params")
	if !raw.Exists() {
		return p, fmt.Errorf("%w: missing params", protocol.ErrInvalidMessage)
	}
	if err := json.Unmarshal([]byte(raw.Raw), &p); err != nil {
		return p, fmt.Errorf("%w: %v", protocol.ErrInvalidMessage, err)
	}
	return p, nil
}

// rpcError returns the error of a response, or nil.
func (m message) rpcError() *RPCError {
	e := m.v.Get("error")
	if !e.Exists() || e.Type == gjson.Null {
		return nil
	}
	return &RPCError{Code: int(e.Get("code").Int()), Message: e.Get("message").String()}
}

func (m message) isResponse() bool {
	return m.hasID && m.method == "" && (m.v.Get("result").Exists() || m.v.Get("error").Exists())
}
