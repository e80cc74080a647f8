package service

import (
	"context"
	"sync"

	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/engine"
	"github.com/dshills/cellstorm/internal/logging"
	"github.com/dshills/cellstorm/internal/protocol"
)

// updateBuffer is the number of pushed updates a slow frontend may lag
// behind before pushes wait for it.
const updateBuffer = 16

// UpdateChannel connects one editor component to its frontend. Pushed
// updates and request handling hold the same lock, so a request never
// sees a half-pushed tree and a push never interleaves with a request.
type UpdateChannel struct {
	editor    protocol.EditorID
	component *engine.Component
	logger    *logging.Logger

	mu     sync.Mutex
	out    chan *protocol.EditorUpdate
	closed bool
	seq    uint64

	// ctx ends with the editor session.
	ctx    context.Context
	cancel context.CancelFunc
}

func newUpdateChannel(ctx context.Context, editor protocol.EditorID, c *engine.Component, logger *logging.Logger) *UpdateChannel {
	ch := &UpdateChannel{
		editor:    editor,
		component: c,
		logger:    logger,
		out:       make(chan *protocol.EditorUpdate, updateBuffer),
	}
	ch.ctx, ch.cancel = context.WithCancel(ctx)
	return ch
}

// Editor returns the editor ID.
func (ch *UpdateChannel) Editor() protocol.EditorID { return ch.editor }

// Component returns the editor component.
func (ch *UpdateChannel) Component() *engine.Component { return ch.component }

// Updates returns the stream of pushed updates.
func (ch *UpdateChannel) Updates() <-chan *protocol.EditorUpdate { return ch.out }

// SendUpdate recomputes the cell tree and pushes the resulting ops. Nothing
// is pushed if there are none.
func (ch *UpdateChannel) SendUpdate(ctx context.Context) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return nil
	}
	ops, err := ch.component.Update()
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	return ch.push(ctx, ch.sequenced(ops))
}

// sequenced wraps ops in the next update of the session. Must run with ch.mu
// held.
func (ch *UpdateChannel) sequenced(ops []celltree.Op) *protocol.EditorUpdate {
	ch.seq++
	return &protocol.EditorUpdate{Seq: ch.seq, Changes: ops}
}

func (ch *UpdateChannel) push(ctx context.Context, u *protocol.EditorUpdate) error {
	select {
	case ch.out <- u:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-ch.ctx.Done():
		return nil
	}
}

// WithPausedUpdates runs fn while no update is pushed.
func (ch *UpdateChannel) WithPausedUpdates(fn func() error) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return protocol.ErrEditorNotFound
	}
	return fn()
}

// close ends the session. The update stream is closed once no push is in
// flight.
func (ch *UpdateChannel) close() {
	ch.cancel()
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return
	}
	ch.closed = true
	close(ch.out)
	ch.component.Close()
}

// createUpdate returns the ops since the last update. Must run with
// updates paused.
func (ch *UpdateChannel) createUpdate() (*protocol.EditorUpdate, error) {
	ops, err := ch.component.Update()
	if err != nil {
		return nil, err
	}
	return ch.sequenced(ops), nil
}

// createSelection is createUpdate with the caret moved by p.
func (ch *UpdateChannel) createSelection(p protocol.CaretPolicy) (*protocol.EditorUpdate, error) {
	u, err := ch.createUpdate()
	if err != nil {
		return nil, err
	}
	u.Selection = p
	return u, nil
}

// caretIn places the caret at offset of text cell c.
func (ch *UpdateChannel) caretIn(c *celltree.Cell, offset int) (*protocol.EditorUpdate, error) {
	return ch.createSelection(protocol.AtIndex(c.References(), offset))
}
