package frontend

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"

	"github.com/dshills/cellstorm/internal/input"
	"github.com/dshills/cellstorm/internal/logging"
	"github.com/dshills/cellstorm/internal/protocol"
)

// maxPendingUpdates is how many out-of-order updates are held back waiting
// for a missing one before the gap is skipped.
const maxPendingUpdates = 64

// Editor is the frontend of one editor session.
type Editor struct {
	id       protocol.EditorID
	service  protocol.Service
	logger   *logging.Logger
	onChange func()

	input   *InputQueue
	updates *taskQueue

	mu        sync.Mutex
	tree      *Tree
	selection Selection
	menu      *CompletionMenu
	open      bool

	// gen counts opened nodes; updates of an older stream are dropped.
	gen       uint64
	nextSeq   uint64
	pending   map[uint64]*protocol.EditorUpdate
	applied   uint64
	appliedCh chan struct{}

	runMu      sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	stopStream context.CancelFunc
	wg         sync.WaitGroup
}

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Editor) { e.logger = l }
}

// WithID sets the editor ID instead of a random one.
func WithID(id protocol.EditorID) Option {
	return func(e *Editor) { e.id = id }
}

// WithInputCapacity sets the size of the input queue.
func WithInputCapacity(n int) Option {
	return func(e *Editor) { e.input = NewInputQueue(n) }
}

// WithOnChange registers fn to run after the visible state changed. fn runs
// on a worker goroutine and must not block.
func WithOnChange(fn func()) Option {
	return func(e *Editor) { e.onChange = fn }
}

// New creates an editor talking to svc.
func New(svc protocol.Service, opts ...Option) *Editor {
	e := &Editor{
		id:        protocol.NewEditorID(),
		service:   svc,
		logger:    logging.Nop(),
		input:     NewInputQueue(DefaultInputCapacity),
		updates:   newTaskQueue(),
		tree:      NewTree(),
		nextSeq:   1,
		pending:   make(map[uint64]*protocol.EditorUpdate),
		appliedCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("frontend").WithField("editor", e.id)
	return e
}

// ID returns the editor ID.
func (e *Editor) ID() protocol.EditorID { return e.id }

// Start runs the input and update workers until ctx is done or Close is
// called.
func (e *Editor) Start(ctx context.Context) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.ctx != nil {
		return ErrAlreadyStarted
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.updates.run(e.ctx)
	}()
	go func() {
		defer e.wg.Done()
		e.inputLoop(e.ctx)
	}()
	return nil
}

func (e *Editor) running() (context.Context, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.ctx == nil {
		return nil, ErrNotStarted
	}
	if e.ctx.Err() != nil {
		return nil, ErrClosed
	}
	return e.ctx, nil
}

// Close ends the session and stops the workers.
func (e *Editor) Close() error {
	e.runMu.Lock()
	cancel, stop := e.cancel, e.stopStream
	e.stopStream = nil
	e.runMu.Unlock()
	if cancel == nil {
		return nil
	}
	e.input.Close()
	if stop != nil {
		stop()
	}
	cancel()
	e.wg.Wait()

	e.mu.Lock()
	wasOpen := e.open
	e.open = false
	e.mu.Unlock()
	if !wasOpen {
		return nil
	}
	err := e.service.CloseEditor(context.Background(), e.id)
	if errors.Is(err, protocol.ErrEditorNotFound) {
		return nil
	}
	return err
}

// Open shows node, replacing what the editor showed before. It returns once
// the first update is applied.
func (e *Editor) Open(ctx context.Context, node string) error {
	runCtx, err := e.running()
	if err != nil {
		return err
	}

	e.runMu.Lock()
	if e.stopStream != nil {
		e.stopStream()
		e.stopStream = nil
	}
	e.runMu.Unlock()

	e.mu.Lock()
	wasOpen := e.open
	e.gen++
	gen := e.gen
	e.tree = NewTree()
	e.selection, e.menu = nil, nil
	e.nextSeq, e.applied = 1, 0
	clear(e.pending)
	e.mu.Unlock()
	if wasOpen {
		if err := e.service.CloseEditor(ctx, e.id); err != nil && !errors.Is(err, protocol.ErrEditorNotFound) {
			e.logger.Warn("close previous session: %v", err)
		}
	}

	streamCtx, stop := context.WithCancel(runCtx)
	stream, err := e.service.OpenNode(streamCtx, e.id, node)
	if err != nil {
		stop()
		return err
	}
	e.runMu.Lock()
	e.stopStream = stop
	e.runMu.Unlock()
	e.mu.Lock()
	e.open = true
	e.mu.Unlock()

	first := make(chan struct{})
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.pump(streamCtx, gen, stream, first)
	}()
	select {
	case <-first:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-runCtx.Done():
		return ErrClosed
	}
}

// pump moves pushed updates to the update queue. first is closed once the
// first of them is applied or the stream ended.
func (e *Editor) pump(ctx context.Context, gen uint64, stream <-chan *protocol.EditorUpdate, first chan struct{}) {
	signaled := false
	signal := func() {
		if !signaled {
			signaled = true
			close(first)
		}
	}
	defer signal()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-stream:
			if !ok {
				e.logger.Debug("update stream closed")
				return
			}
			done := e.updates.push(func() { e.receive(gen, u) })
			if !signaled {
				select {
				case <-done:
				case <-ctx.Done():
					return
				}
				signal()
			}
		}
	}
}

// receive applies u in sequence order. Runs on the update worker.
func (e *Editor) receive(gen uint64, u *protocol.EditorUpdate) {
	defer e.changed()
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return
	}
	if u.Seq == 0 {
		e.apply(u)
		return
	}
	if u.Seq < e.nextSeq {
		e.logger.Warn("dropping stale update %d", u.Seq)
		return
	}
	e.pending[u.Seq] = u
	e.drainPending()
	if len(e.pending) > maxPendingUpdates {
		missing := e.nextSeq
		e.nextSeq = slices.Min(keys(e.pending))
		e.logger.Error("update %d never arrived, skipping to %d", missing, e.nextSeq)
		e.drainPending()
	}
}

func (e *Editor) drainPending() {
	for {
		u, ok := e.pending[e.nextSeq]
		if !ok {
			return
		}
		delete(e.pending, e.nextSeq)
		e.apply(u)
		e.applied = e.nextSeq
		e.nextSeq++
		close(e.appliedCh)
		e.appliedCh = make(chan struct{})
	}
}

func keys(m map[uint64]*protocol.EditorUpdate) []uint64 {
	out := make([]uint64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// apply replays u on the mirror, then moves the caret and the menu. Must
// run with e.mu held.
func (e *Editor) apply(u *protocol.EditorUpdate) {
	if err := e.tree.ApplyChanges(u.Changes); err != nil {
		e.logger.Error("apply update %d: %v", u.Seq, err)
	}
	if u.Selection != nil {
		if s, ok := e.tree.ResolvePolicy(u.Selection); ok {
			e.selection = s
		}
	}
	if e.selection != nil {
		e.selection = e.tree.revalidate(e.selection)
	}
	switch {
	case u.Menu != nil:
		if _, err := e.tree.Cell(u.Menu.Anchor); err == nil {
			e.menu = newCompletionMenu(u.Menu, u.Entries)
		}
	case u.Entries != nil && e.menu != nil:
		e.menu.Load(u.Entries)
	}
	if e.menu != nil {
		if _, err := e.tree.Cell(e.menu.Anchor); err != nil {
			e.menu = nil
		}
	}
}

// deliver queues an update returned by a request and waits until it is
// applied.
func (e *Editor) deliver(ctx context.Context, u *protocol.EditorUpdate) error {
	if u == nil {
		return nil
	}
	runCtx, err := e.running()
	if err != nil {
		return err
	}
	e.mu.Lock()
	gen := e.gen
	e.mu.Unlock()

	done := e.updates.push(func() { e.receive(gen, u) })
	if u.Seq == 0 {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for {
		e.mu.Lock()
		if e.gen != gen || e.applied >= u.Seq {
			e.mu.Unlock()
			return nil
		}
		wait := e.appliedCh
		e.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		case <-runCtx.Done():
			return ErrClosed
		}
	}
}

func (e *Editor) changed() {
	if e.onChange != nil {
		e.onChange()
	}
}

// Post queues ev for the input worker. The oldest queued event is dropped
// when the queue is full. It reports false after Close.
func (e *Editor) Post(ev input.Event) bool {
	return e.input.Post(ev)
}

func (e *Editor) inputLoop(ctx context.Context) {
	for {
		ev, ok := e.input.Next(ctx)
		if !ok {
			return
		}
		if err := e.handleSafely(ctx, ev); err != nil && ctx.Err() == nil {
			e.logger.Warn("%v: %v", ev, err)
		}
	}
}

func (e *Editor) handleSafely(ctx context.Context, ev input.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic handling %v: %v\n%s", ev, r, debug.Stack())
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.HandleEvent(ctx, ev)
}

// HandleEvent processes ev and waits until the resulting update is
// applied. Events without an applicable target are ignored.
func (e *Editor) HandleEvent(ctx context.Context, ev input.Event) error {
	if _, err := e.running(); err != nil {
		return err
	}
	switch ev := ev.(type) {
	case input.KeyEvent:
		return e.handleKey(ctx, ev)
	case input.MouseEvent:
		e.handleClick(ev)
		return nil
	default:
		return nil
	}
}

// Flush fetches and applies the changes the backend has not pushed yet.
func (e *Editor) Flush(ctx context.Context) error {
	if err := e.requireOpen(); err != nil {
		return err
	}
	u, err := e.service.Flush(ctx, e.id)
	if err != nil {
		return err
	}
	return e.deliver(ctx, u)
}

// ResetState drops typed text that did not become a model change yet.
func (e *Editor) ResetState(ctx context.Context) error {
	if err := e.requireOpen(); err != nil {
		return err
	}
	u, err := e.service.ResetState(ctx, e.id)
	if err != nil {
		return err
	}
	return e.deliver(ctx, u)
}

func (e *Editor) requireOpen() error {
	if _, err := e.running(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return ErrNotOpen
	}
	return nil
}

// Selection returns the current selection, or nil.
func (e *Editor) Selection() Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selection
}

// Select replaces the selection and closes the completion menu.
func (e *Editor) Select(s Selection) {
	e.mu.Lock()
	e.selectLocked(s)
	e.mu.Unlock()
	e.changed()
}

func (e *Editor) selectLocked(s Selection) {
	e.selection = s
	e.menu = nil
}

// Menu returns a copy of the open completion menu, or nil.
func (e *Editor) Menu() *CompletionMenu {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.menu == nil {
		return nil
	}
	m := *e.menu
	return &m
}

// CloseMenu closes the completion menu.
func (e *Editor) CloseMenu() {
	e.mu.Lock()
	e.menu = nil
	e.mu.Unlock()
	e.changed()
}

// Text renders the document.
func (e *Editor) Text() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tree.String()
}

// SelectedText returns the text covered by the selection.
func (e *Editor) SelectedText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selection == nil {
		return ""
	}
	return e.tree.selectedText(e.selection)
}

// ClearLayoutCache drops all cached layouts. The next render lays out the
// whole tree again.
func (e *Editor) ClearLayoutCache() {
	e.mu.Lock()
	e.tree.ClearLayoutCache()
	e.mu.Unlock()
	e.changed()
}

// WithTree runs fn with the mirror tree while no update is applied.
func (e *Editor) WithTree(fn func(*Tree)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.tree)
}
