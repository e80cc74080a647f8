package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/logging"
	"github.com/dshills/cellstorm/internal/protocol"
)

// streamBuffer is the number of pushed updates buffered per editor.
const streamBuffer = 64

// Client is a protocol.Service backed by a websocket connection.
type Client struct {
	conn   *websocket.Conn
	logger *logging.Logger

	writeMu sync.Mutex
	mu      sync.Mutex
	nextID  atomic.Int64
	pending map[int64]chan message
	streams map[protocol.EditorID]*stream

	closed atomic.Bool
	done   chan struct{}
}

var _ protocol.Service = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the logger.
func WithClientLogger(l *logging.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// Dial connects to the server at url, e.g. ws://127.0.0.1:7070/ws.
func Dial(ctx context.Context, url string, opts ...ClientOption) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewClient(conn, opts...), nil
}

// NewClient starts a client on an established connection.
func NewClient(conn *websocket.Conn, opts ...ClientOption) *Client {
	c := &Client{
		conn:    conn,
		logger:  logging.Nop(),
		pending: make(map[int64]chan message),
		streams: make(map[protocol.EditorID]*stream),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("client")
	go c.readLoop()
	return c
}

// Done is closed when the connection has ended.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close ends the connection and every update stream.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) readLoop() {
	defer c.shutdown()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.logger.Warn("connection lost: %v", err)
			}
			return
		}
		msg, err := decodeMessage(data)
		if err != nil {
			c.logger.Warn("dropping frame: %v", err)
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg message) {
	if msg.isResponse() {
		c.mu.Lock()
		ch, ok := c.pending[msg.id]
		delete(c.pending, msg.id)
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
		return
	}

	editor := protocol.EditorID(msg.v.Get("editor").String())
	c.mu.Lock()
	st := c.streams[editor]
	c.mu.Unlock()
	if st == nil {
		return
	}
	switch msg.method {
	case methodUpdate:
		u := &protocol.EditorUpdate{}
		if err := u.UnmarshalJSON([]byte(msg.v.Get("update").Raw)); err != nil {
			c.logger.Warn("dropping update for %s: %v", editor, err)
			return
		}
		st.push(u, c.done)
	case methodClosed:
		c.endStream(editor, st)
	}
}

func (c *Client) shutdown() {
	c.closed.Store(true)
	c.mu.Lock()
	streams := c.streams
	c.streams = make(map[protocol.EditorID]*stream)
	c.pending = make(map[int64]chan message)
	c.mu.Unlock()
	for _, st := range streams {
		st.end()
	}
	close(c.done)
}

func (c *Client) endStream(editor protocol.EditorID, st *stream) {
	c.mu.Lock()
	if c.streams[editor] == st {
		delete(c.streams, editor)
	}
	c.mu.Unlock()
	st.end()
}

// call sends a request and waits for its response.
func (c *Client) call(ctx context.Context, method string, p params) (gjson.Result, error) {
	if c.closed.Load() {
		return gjson.Result{}, ErrClosed
	}
	id := c.nextID.Add(1)
	ch := make(chan message, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	data, err := encodeRequest(id, method, p)
	if err != nil {
		return gjson.Result{}, err
	}
	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err = c.conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		return gjson.Result{}, fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return gjson.Result{}, ctx.Err()
	case <-c.done:
		return gjson.Result{}, ErrClosed
	case resp := <-ch:
		if e := resp.rpcError(); e != nil {
			return gjson.Result{}, e
		}
		return resp.v.Get("result"), nil
	}
}

func (c *Client) callUpdate(ctx context.Context, method string, p params) (*protocol.EditorUpdate, error) {
	res, err := c.call(ctx, method, p)
	if err != nil {
		return nil, err
	}
	if !res.IsObject() {
		return nil, nil
	}
	u := &protocol.EditorUpdate{}
	if err := u.UnmarshalJSON([]byte(res.Raw)); err != nil {
		return nil, err
	}
	return u, nil
}

// OpenNode implements protocol.Service. The stream ends when ctx is done,
// the editor is closed or the connection ends.
func (c *Client) OpenNode(ctx context.Context, editor protocol.EditorID, node string) (<-chan *protocol.EditorUpdate, error) {
	st := newStream()
	c.mu.Lock()
	if c.streams[editor] != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("open %s: editor already open", editor)
	}
	c.streams[editor] = st
	c.mu.Unlock()

	if _, err := c.call(ctx, methodOpenNode, params{Editor: editor, Node: node}); err != nil {
		c.endStream(editor, st)
		return nil, err
	}
	go func() {
		select {
		case <-ctx.Done():
			closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			_, _ = c.call(closeCtx, methodCloseEditor, params{Editor: editor})
			cancel()
			c.endStream(editor, st)
		case <-st.done:
		}
	}()
	return st.out, nil
}

// CloseEditor implements protocol.Service.
func (c *Client) CloseEditor(ctx context.Context, editor protocol.EditorID) error {
	_, err := c.call(ctx, methodCloseEditor, params{Editor: editor})
	c.mu.Lock()
	st := c.streams[editor]
	c.mu.Unlock()
	if st != nil {
		c.endStream(editor, st)
	}
	return err
}

// NavigateTab implements protocol.Service.
func (c *Client) NavigateTab(ctx context.Context, editor protocol.EditorID, cell celltree.ID, forward bool) (*protocol.EditorUpdate, error) {
	return c.callUpdate(ctx, methodNavigateTab, params{Editor: editor, Cell: cell, Forward: forward})
}

// ExecuteDelete implements protocol.Service.
func (c *Client) ExecuteDelete(ctx context.Context, editor protocol.EditorID, cell celltree.ID, forward bool) (*protocol.EditorUpdate, error) {
	return c.callUpdate(ctx, methodExecuteDelete, params{Editor: editor, Cell: cell, Forward: forward})
}

// ExecuteInsert implements protocol.Service.
func (c *Client) ExecuteInsert(ctx context.Context, editor protocol.EditorID, cell celltree.ID) (*protocol.EditorUpdate, error) {
	return c.callUpdate(ctx, methodExecuteInsert, params{Editor: editor, Cell: cell})
}

// ProcessTypedText implements protocol.Service.
func (c *Client) ProcessTypedText(ctx context.Context, editor protocol.EditorID, cell celltree.ID, r protocol.Range, text string) (*protocol.EditorUpdate, error) {
	return c.callUpdate(ctx, methodProcessTypedText, params{Editor: editor, Cell: cell, Range: toRange(r), Text: text})
}

// ReplaceText implements protocol.Service.
func (c *Client) ReplaceText(ctx context.Context, editor protocol.EditorID, cell celltree.ID, r protocol.Range, text string, triggerCompletion bool) (protocol.ServiceResult, error) {
	res, err := c.call(ctx, methodReplaceText, params{
		Editor: editor, Cell: cell, Range: toRange(r), Text: text, TriggerCompletion: triggerCompletion,
	})
	if err != nil {
		return protocol.ServiceResult{}, err
	}
	var out protocol.ServiceResult
	if err := out.UnmarshalJSON([]byte(res.Raw)); err != nil {
		return protocol.ServiceResult{}, err
	}
	return out, nil
}

// TriggerCodeCompletion implements protocol.Service.
func (c *Client) TriggerCodeCompletion(ctx context.Context, editor protocol.EditorID, cell celltree.ID, caret int) (*protocol.EditorUpdate, error) {
	return c.callUpdate(ctx, methodTriggerCodeCompletion, params{Editor: editor, Cell: cell, Caret: caret})
}

// UpdateCodeCompletionActions implements protocol.Service.
func (c *Client) UpdateCodeCompletionActions(ctx context.Context, editor protocol.EditorID, cell celltree.ID, pattern string) (*protocol.EditorUpdate, error) {
	return c.callUpdate(ctx, methodUpdateCodeCompletionActions, params{Editor: editor, Cell: cell, Pattern: pattern})
}

// HasCodeCompletionActions implements protocol.Service.
func (c *Client) HasCodeCompletionActions(ctx context.Context, editor protocol.EditorID, cell celltree.ID, pattern string) (bool, error) {
	res, err := c.call(ctx, methodHasCodeCompletionActions, params{Editor: editor, Cell: cell, Pattern: pattern})
	if err != nil {
		return false, err
	}
	return res.Bool(), nil
}

// ExecuteCodeCompletionAction implements protocol.Service.
func (c *Client) ExecuteCodeCompletionAction(ctx context.Context, editor protocol.EditorID, id int) (*protocol.EditorUpdate, error) {
	return c.callUpdate(ctx, methodExecuteCodeCompletionAction, params{Editor: editor, ID: id})
}

// ResetState implements protocol.Service.
func (c *Client) ResetState(ctx context.Context, editor protocol.EditorID) (*protocol.EditorUpdate, error) {
	return c.callUpdate(ctx, methodResetState, params{Editor: editor})
}

// Flush implements protocol.Service.
func (c *Client) Flush(ctx context.Context, editor protocol.EditorID) (*protocol.EditorUpdate, error) {
	return c.callUpdate(ctx, methodFlush, params{Editor: editor})
}

// stream delivers the pushed updates of one editor. The reader loop hands
// updates to in; a forwarding goroutine owns out and closes it when the
// stream ends.
type stream struct {
	in   chan *protocol.EditorUpdate
	out  chan *protocol.EditorUpdate
	done chan struct{}
	once sync.Once
}

func newStream() *stream {
	s := &stream{
		in:   make(chan *protocol.EditorUpdate, streamBuffer),
		out:  make(chan *protocol.EditorUpdate),
		done: make(chan struct{}),
	}
	go s.forward()
	return s
}

func (s *stream) push(u *protocol.EditorUpdate, stop <-chan struct{}) {
	select {
	case s.in <- u:
	case <-s.done:
	case <-stop:
	}
}

func (s *stream) end() { s.once.Do(func() { close(s.done) }) }

func (s *stream) forward() {
	defer close(s.out)
	for {
		select {
		case u := <-s.in:
			select {
			case s.out <- u:
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}
