package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dshills/cellstorm/internal/logging"
	"github.com/dshills/cellstorm/internal/protocol"
)

const writeTimeout = 10 * time.Second

// Server serves a protocol.Service to websocket clients.
type Server struct {
	svc      protocol.Service
	logger   *logging.Logger
	upgrader websocket.Upgrader

	wg     sync.WaitGroup
	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger.
func WithServerLogger(l *logging.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithCheckOrigin replaces the same-origin check of the upgrade.
func WithCheckOrigin(fn func(*http.Request) bool) ServerOption {
	return func(s *Server) { s.upgrader.CheckOrigin = fn }
}

// NewServer returns a server for svc.
func NewServer(svc protocol.Service, opts ...ServerOption) *Server {
	s := &Server{
		svc:    svc,
		logger: logging.Nop(),
		conns:  make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 32 * 1024,
			CheckOrigin:     sameOrigin,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("transport")
	return s
}

func sameOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	return strings.Contains(origin, "://"+strings.TrimSpace(r.Host))
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		http.Error(w, ErrClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed: %v", err)
		return
	}
	if !s.track(conn) {
		_ = conn.Close()
		return
	}
	defer s.untrack(conn)

	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		srv:     s,
		conn:    conn,
		ctx:     ctx,
		editors: make(map[protocol.EditorID]bool),
		logger:  s.logger.WithField("remote", r.RemoteAddr),
	}
	sess.logger.Info("connected")
	sess.serve()
	cancel()
	sess.closeEditors()
	sess.streams.Wait()
	_ = conn.Close()
	sess.logger.Info("disconnected")
}

func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
}

// Close drops every connection, which closes their editors, and refuses
// new ones. It waits until the connections have ended.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

// Wait blocks until every connection has ended.
func (s *Server) Wait() { s.wg.Wait() }

// session is one websocket connection.
type session struct {
	srv    *Server
	conn   *websocket.Conn
	ctx    context.Context
	logger *logging.Logger

	writeMu sync.Mutex
	mu      sync.Mutex
	editors map[protocol.EditorID]bool
	streams sync.WaitGroup
}

func (s *session) serve() {
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("read: %v", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		s.handle(data)
	}
}

func (s *session) handle(data []byte) {
	msg, err := decodeMessage(data)
	if err != nil {
		s.fail(0, CodeParseError, err)
		return
	}
	if !msg.hasID || msg.method == "" {
		s.fail(msg.id, CodeInvalidRequest, errors.New("request needs an id and a method"))
		return
	}
	h, ok := handlers[msg.method]
	if !ok {
		s.fail(msg.id, CodeMethodNotFound, ErrMethodNotFound)
		return
	}
	p, err := msg.params()
	if err != nil {
		s.fail(msg.id, CodeInvalidParams, err)
		return
	}
	result, err := h(s, p)
	if err != nil {
		s.logger.Debug("%s: %v", msg.method, err)
		s.fail(msg.id, errorCode(err), err)
		return
	}
	out, err := encodeResult(msg.id, result)
	if err != nil {
		s.fail(msg.id, CodeInternalError, err)
		return
	}
	s.write(out)
}

func (s *session) fail(id int64, code int, err error) {
	out, encErr := encodeError(id, code, err.Error())
	if encErr != nil {
		s.logger.Error("encode error response: %v", encErr)
		return
	}
	s.write(out)
}

func (s *session) write(data []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Debug("write: %v", err)
	}
}

// forward pushes the updates of editor until its stream ends.
func (s *session) forward(editor protocol.EditorID, updates <-chan *protocol.EditorUpdate) {
	defer s.streams.Done()
	for u := range updates {
		out, err := encodeUpdate(editor, u)
		if err != nil {
			s.logger.Error("encode update: %v", err)
			continue
		}
		s.write(out)
	}
	s.mu.Lock()
	delete(s.editors, editor)
	s.mu.Unlock()
	if s.ctx.Err() == nil {
		if out, err := encodeClosed(editor); err == nil {
			s.write(out)
		}
	}
}

func (s *session) closeEditors() {
	s.mu.Lock()
	editors := make([]protocol.EditorID, 0, len(s.editors))
	for id := range s.editors {
		editors = append(editors, id)
	}
	s.mu.Unlock()
	for _, id := range editors {
		_ = s.srv.svc.CloseEditor(context.Background(), id)
	}
}

type handler func(s *session, p params) ([]byte, error)

func updateResult(u *protocol.EditorUpdate, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, nil
	}
	return json.Marshal(u)
}

var handlers = map[string]handler{
	methodOpenNode: func(s *session, p params) ([]byte, error) {
		updates, err := s.srv.svc.OpenNode(s.ctx, p.Editor, p.Node)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.editors[p.Editor] = true
		s.mu.Unlock()
		s.streams.Add(1)
		go s.forward(p.Editor, updates)
		return nil, nil
	},
	methodCloseEditor: func(s *session, p params) ([]byte, error) {
		return nil, s.srv.svc.CloseEditor(s.ctx, p.Editor)
	},
	methodNavigateTab: func(s *session, p params) ([]byte, error) {
		return updateResult(s.srv.svc.NavigateTab(s.ctx, p.Editor, p.Cell, p.Forward))
	},
	methodExecuteDelete: func(s *session, p params) ([]byte, error) {
		return updateResult(s.srv.svc.ExecuteDelete(s.ctx, p.Editor, p.Cell, p.Forward))
	},
	methodExecuteInsert: func(s *session, p params) ([]byte, error) {
		return updateResult(s.srv.svc.ExecuteInsert(s.ctx, p.Editor, p.Cell))
	},
	methodProcessTypedText: func(s *session, p params) ([]byte, error) {
		return updateResult(s.srv.svc.ProcessTypedText(s.ctx, p.Editor, p.Cell, p.textRange(), p.Text))
	},
	methodReplaceText: func(s *session, p params) ([]byte, error) {
		res, err := s.srv.svc.ReplaceText(s.ctx, p.Editor, p.Cell, p.textRange(), p.Text, p.TriggerCompletion)
		if err != nil {
			return nil, err
		}
		return json.Marshal(res)
	},
	methodTriggerCodeCompletion: func(s *session, p params) ([]byte, error) {
		return updateResult(s.srv.svc.TriggerCodeCompletion(s.ctx, p.Editor, p.Cell, p.Caret))
	},
	methodUpdateCodeCompletionActions: func(s *session, p params) ([]byte, error) {
		return updateResult(s.srv.svc.UpdateCodeCompletionActions(s.ctx, p.Editor, p.Cell, p.Pattern))
	},
	methodHasCodeCompletionActions: func(s *session, p params) ([]byte, error) {
		ok, err := s.srv.svc.HasCodeCompletionActions(s.ctx, p.Editor, p.Cell, p.Pattern)
		if err != nil {
			return nil, err
		}
		return json.Marshal(ok)
	},
	methodExecuteCodeCompletionAction: func(s *session, p params) ([]byte, error) {
		return updateResult(s.srv.svc.ExecuteCodeCompletionAction(s.ctx, p.Editor, p.ID))
	},
	methodResetState: func(s *session, p params) ([]byte, error) {
		return updateResult(s.srv.svc.ResetState(s.ctx, p.Editor))
	},
	methodFlush: func(s *session, p params) ([]byte, error) {
		return updateResult(s.srv.svc.Flush(s.ctx, p.Editor))
	},
}
