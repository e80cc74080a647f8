// Package frontend is the client side of an editor session.
//
// An Editor mirrors the backend cell tree of one open node, lays it out
// with a per-cell cache and keeps the caret, the cell selection and the
// completion menu. Keyboard and mouse input goes through a bounded queue
// that drops the oldest event when full and is handled by a single worker.
// Updates, whether pushed by the backend or returned by a request, are
// applied by a second worker in the order the backend produced them.
//
// Every interaction with the backend goes through protocol.Service, so the
// same Editor runs in-process or over the websocket transport.
package frontend
