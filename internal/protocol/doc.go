// Package protocol defines the messages exchanged between an editor
// backend and its frontends.
//
// A backend owns the authoritative cell tree and streams EditorUpdate values
// to each open editor. An update carries the ordered cell tree ops, an
// optional caret position policy and an optional completion menu. Caret
// policies are descriptions, not positions: the frontend resolves them
// against its mirrored tree after the ops were applied, so they stay valid
// across rebuilds of the cells they name.
//
// Frontends call the backend through the Service interface. The package
// also provides the JSON encoding used by the websocket transport.
package protocol
