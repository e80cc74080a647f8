// Package transport carries the editor service over a websocket.
//
// Every message is a JSON text frame. Requests and responses are
//
//	{"id": 7, "method": "replaceText", "params": {...}}
//	{"id": 7, "result": ...}
//	{"id": 7, "error": {"code": -32001, "message": "..."}}
//
// and the server pushes the update streams of open editors as
//
//	{"method": "update", "editor": "...", "update": {...}}
//	{"method": "closed", "editor": "..."}
//
// A connection handles its requests in order, so the updates returned by
// calls keep their sequence relative to each other. Editors opened by a
// connection are closed when it goes away.
package transport
