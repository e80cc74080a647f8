package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/cellstorm/internal/celltree"
	"github.com/dshills/cellstorm/internal/completion"
	"github.com/dshills/cellstorm/internal/engine"
	"github.com/dshills/cellstorm/internal/layout"
	"github.com/dshills/cellstorm/internal/logging"
	"github.com/dshills/cellstorm/internal/model"
	"github.com/dshills/cellstorm/internal/protocol"
	"github.com/dshills/cellstorm/internal/textutil"
)

// Service implements protocol.Service on top of an engine and a model.
type Service struct {
	engine *engine.Engine
	model  model.Model
	logger *logging.Logger
	shadow completion.ShadowFunc
	delay  time.Duration

	mu       sync.RWMutex
	channels map[protocol.EditorID]*UpdateChannel
	closed   bool

	validator   *Validator
	unsubscribe func()
	cancel      context.CancelFunc
}

var _ protocol.Service = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithShadow replaces the shadowing relation used to deduplicate
// completion entries.
func WithShadow(fn completion.ShadowFunc) Option {
	return func(s *Service) { s.shadow = fn }
}

// WithValidatorDelay delays the push that follows a model change.
func WithValidatorDelay(d time.Duration) Option {
	return func(s *Service) { s.delay = d }
}

// New creates a service and starts pushing model changes to the editors it
// opens. Close stops it.
func New(e *engine.Engine, m model.Model, opts ...Option) *Service {
	s := &Service{
		engine:   e,
		model:    m,
		logger:   logging.Nop(),
		channels: make(map[protocol.EditorID]*UpdateChannel),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("service")

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.validator = NewValidator(s.sendUpdates,
		WithDelay(s.delay),
		WithValidatorLogger(s.logger.WithComponent("validator")))
	_ = s.validator.Start(ctx)
	s.unsubscribe = m.Subscribe(s.modelChanged)
	return s
}

func (s *Service) modelChanged(changes []model.Change) {
	n := s.engine.Invalidate(changes)
	s.logger.Debug("%d model changes invalidated %d specs", len(changes), n)
	s.validator.Invalidate()
}

// TriggerUpdates makes every editor recompute and push its changes.
func (s *Service) TriggerUpdates() { s.validator.Invalidate() }

// sendUpdates pushes the pending changes of every editor concurrently.
func (s *Service) sendUpdates(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, ch := range s.snapshot() {
		g.Go(func() error {
			if err := ch.SendUpdate(ctx); err != nil {
				return fmt.Errorf("editor %s: %w", ch.editor, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Service) snapshot() []*UpdateChannel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*UpdateChannel, 0, len(s.channels))
	for _, ch := range s.channels {
		out = append(out, ch)
	}
	return out
}

// Editors returns the IDs of the open editors.
func (s *Service) Editors() []protocol.EditorID {
	chs := s.snapshot()
	out := make([]protocol.EditorID, len(chs))
	for i, ch := range chs {
		out[i] = ch.editor
	}
	return out
}

// Channel returns the update channel of editor.
func (s *Service) Channel(editor protocol.EditorID) (*UpdateChannel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[editor]
	if !ok {
		return nil, fmt.Errorf("%w: %s", protocol.ErrEditorNotFound, editor)
	}
	return ch, nil
}

// Close closes every editor and stops reacting to model changes.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	chs := s.channels
	s.channels = make(map[protocol.EditorID]*UpdateChannel)
	s.mu.Unlock()

	s.unsubscribe()
	s.validator.Stop()
	s.cancel()
	for _, ch := range chs {
		ch.close()
	}
	return nil
}

// OpenNode implements protocol.Service. The first update pushed builds the
// whole tree.
func (s *Service) OpenNode(ctx context.Context, editor protocol.EditorID, node string) (<-chan *protocol.EditorUpdate, error) {
	id := model.NodeID(node)
	if err := s.model.Read(func() error {
		_, err := s.model.Node(id)
		return err
	}); err != nil {
		return nil, newOpError("open", editor, err)
	}

	c := s.engine.Open(s.model, id, engine.WithComponentLogger(s.logger.WithField("editor", editor)))
	ch := newUpdateChannel(ctx, editor, c, s.logger.WithField("editor", editor))

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		c.Close()
		return nil, newOpError("open", editor, ErrClosed)
	case s.channels[editor] != nil:
		s.mu.Unlock()
		c.Close()
		return nil, newOpError("open", editor, ErrEditorExists)
	}
	s.channels[editor] = ch
	s.mu.Unlock()

	go func() {
		<-ch.ctx.Done()
		s.remove(ch)
	}()
	if err := ch.SendUpdate(ctx); err != nil {
		s.remove(ch)
		return nil, newOpError("open", editor, err)
	}
	s.logger.Info("opened %s in editor %s", node, editor)
	return ch.Updates(), nil
}

func (s *Service) remove(ch *UpdateChannel) {
	s.mu.Lock()
	if s.channels[ch.editor] == ch {
		delete(s.channels, ch.editor)
	}
	s.mu.Unlock()
	ch.close()
}

// CloseEditor implements protocol.Service.
func (s *Service) CloseEditor(_ context.Context, editor protocol.EditorID) error {
	ch, err := s.Channel(editor)
	if err != nil {
		return newOpError("close", editor, err)
	}
	s.remove(ch)
	s.logger.Info("closed editor %s", editor)
	return nil
}

// withEditor runs fn on editor's channel with updates paused.
func withEditor[R any](s *Service, op string, editor protocol.EditorID, fn func(*UpdateChannel) (R, error)) (R, error) {
	var out R
	ch, err := s.Channel(editor)
	if err != nil {
		return out, newOpError(op, editor, err)
	}
	err = ch.WithPausedUpdates(func() error {
		var err error
		out, err = fn(ch)
		return err
	})
	if err != nil {
		var zero R
		return zero, newOpError(op, editor, err)
	}
	return out, nil
}

// withCell is withEditor for a request about one cell of the editor.
func withCell[R any](s *Service, op string, editor protocol.EditorID, id celltree.ID, fn func(*UpdateChannel, *celltree.Cell) (R, error)) (R, error) {
	return withEditor(s, op, editor, func(ch *UpdateChannel) (R, error) {
		c, err := ch.component.Tree().Cell(id)
		if err != nil {
			var zero R
			return zero, err
		}
		return fn(ch, c)
	})
}

// execute runs a model-changing action in a write scope.
func (s *Service) execute(ctx context.Context, run func(context.Context) (protocol.CaretPolicy, error)) (protocol.CaretPolicy, error) {
	var policy protocol.CaretPolicy
	err := s.model.Write(func() error {
		var err error
		policy, err = run(ctx)
		return err
	})
	return policy, err
}

// flatten expands providers for pattern in a read scope.
func (s *Service) flatten(pattern string, providers []completion.Provider) ([]completion.Action, error) {
	var actions []completion.Action
	err := s.model.Read(func() error {
		var err error
		actions, err = completion.Flatten(completion.NewParams(pattern), providers...)
		return err
	})
	return actions, err
}

// NavigateTab implements protocol.Service.
func (s *Service) NavigateTab(ctx context.Context, editor protocol.EditorID, cell celltree.ID, forward bool) (*protocol.EditorUpdate, error) {
	return withCell(s, "navigate tab", editor, cell, func(ch *UpdateChannel, c *celltree.Cell) (*protocol.EditorUpdate, error) {
		cells := celltree.PreviousCells(c)
		if forward {
			cells = celltree.NextCells(c)
		}
		for n := range cells {
			if celltree.Get(n, celltree.TabTargetKey) && n.Type() == celltree.TypeText {
				return ch.caretIn(n, 0)
			}
			show, ok := celltree.Lookup(n, engine.ShowKey)
			if !ok || show == nil || forceShownAncestor(n) {
				// A nested optional would disappear with its parent.
				continue
			}
			ch.component.State().ForceShown.Clear()
			actions, err := s.flatten("", []completion.Provider{show})
			if err != nil {
				return nil, err
			}
			if len(actions) == 0 {
				continue
			}
			policy, err := s.execute(ctx, actions[0].Execute)
			if err != nil {
				return nil, err
			}
			return ch.createSelection(policy)
		}
		return ch.createUpdate()
	})
}

func forceShownAncestor(c *celltree.Cell) bool {
	for a := range celltree.Ancestors(c, true) {
		if celltree.Get(a, celltree.ForceShownKey) {
			return true
		}
	}
	return false
}

// ExecuteDelete implements protocol.Service. The delete action of the
// nearest ancestor wins; a cell outside any node falls back to the leaf
// before it, or after it when forward is set.
func (s *Service) ExecuteDelete(ctx context.Context, editor protocol.EditorID, cell celltree.ID, forward bool) (*protocol.EditorUpdate, error) {
	return withCell(s, "delete", editor, cell, func(ch *UpdateChannel, c *celltree.Cell) (*protocol.EditorUpdate, error) {
		action := nearestAction(c, engine.DeleteKey)
		if action == nil {
			var adjacent *celltree.Cell
			if forward {
				adjacent = celltree.NextLeaf(c, layout.IsVisible)
			} else {
				adjacent = celltree.PreviousLeaf(c, layout.IsVisible)
			}
			if adjacent != nil {
				action = nearestAction(adjacent, engine.DeleteKey)
			}
		}
		if action == nil {
			return ch.createUpdate()
		}
		policy, err := s.execute(ctx, action.Execute)
		if err != nil {
			return nil, err
		}
		return ch.createSelection(policy)
	})
}

func nearestAction(c *celltree.Cell, key celltree.Key[engine.CellAction]) engine.CellAction {
	for a := range celltree.Ancestors(c, true) {
		if action, ok := celltree.Lookup(a, key); ok && action != nil {
			return action
		}
	}
	return nil
}

// ExecuteInsert implements protocol.Service. It tries the cells that end
// with cell, then the cells that start at each following visible leaf.
func (s *Service) ExecuteInsert(ctx context.Context, editor protocol.EditorID, cell celltree.ID) (*protocol.EditorUpdate, error) {
	return withCell(s, "insert", editor, cell, func(ch *UpdateChannel, c *celltree.Cell) (*protocol.EditorUpdate, error) {
		action := edgeAction(c, lastVisible)
		for leaf := celltree.NextLeaf(c, layout.IsVisible); leaf != nil && action == nil; leaf = celltree.NextLeaf(leaf, layout.IsVisible) {
			action = edgeAction(leaf, firstVisible)
		}
		if action == nil {
			return ch.createUpdate()
		}
		policy, err := s.execute(ctx, action.Execute)
		if err != nil {
			return nil, err
		}
		return ch.createSelection(policy)
	})
}

// edgeAction returns the insert action of the nearest ancestor of leaf
// whose edge, as found by edge, is leaf.
func edgeAction(leaf *celltree.Cell, edge func(*celltree.Cell) *celltree.Cell) engine.CellAction {
	for a := range celltree.Ancestors(leaf, true) {
		if edge(a) != leaf {
			return nil
		}
		if ins, ok := celltree.Lookup(a, engine.InsertKey); ok && ins != nil {
			return ins
		}
	}
	return nil
}

func firstVisible(c *celltree.Cell) *celltree.Cell {
	for d := range celltree.Descendants(c, true) {
		if layout.IsVisible(d) {
			return d
		}
	}
	return nil
}

func lastVisible(c *celltree.Cell) *celltree.Cell {
	var last *celltree.Cell
	for d := range celltree.Descendants(c, true) {
		if layout.IsVisible(d) {
			last = d
		}
	}
	return last
}

// ProcessTypedText implements protocol.Service. Text typed at the start or
// end of a cell is first matched against the side transforms there: a
// single exact match runs, several matches open a menu. Otherwise the text
// replaces r.
func (s *Service) ProcessTypedText(ctx context.Context, editor protocol.EditorID, cell celltree.ID, r protocol.Range, text string) (*protocol.EditorUpdate, error) {
	return withCell(s, "type", editor, cell, func(ch *UpdateChannel, c *celltree.Cell) (*protocol.EditorUpdate, error) {
		r = r.Normalize()
		old, _ := layout.SelectableText(c)
		left := r.IsEmpty() && r.Start == 0
		right := r.IsEmpty() && r.Start == textutil.Len(old)
		if left || right {
			pos := protocol.CompletionRight
			providers := engine.ActionsAfter(c)
			if left {
				pos = protocol.CompletionLeft
				providers = engine.ActionsBefore(c)
			}
			actions, err := s.flatten(text, providers)
			if err != nil {
				return nil, err
			}
			matching := completion.Filter(actions, text, s.shadow)
			if len(matching) == 1 && completion.Pattern(matching[0]) == text {
				policy, err := s.execute(ctx, matching[0].Execute)
				if err != nil {
					return nil, err
				}
				return ch.createSelection(policy)
			}
			if len(matching) > 0 {
				return s.openMenu(ch, c, pos, providers, text, textutil.Len(text))
			}
		}
		u, ok, err := s.replaceText(ctx, ch, c, r, text, true)
		if err != nil || ok {
			return u, err
		}
		return ch.createUpdate()
	})
}

// openMenu opens a completion menu over providers anchored at c.
func (s *Service) openMenu(ch *UpdateChannel, c *celltree.Cell, pos protocol.CompletionPosition, providers []completion.Provider, pattern string, caret int) (*protocol.EditorUpdate, error) {
	entries, err := ch.component.LoadCompletionEntries(providers, pattern)
	if err != nil {
		return nil, err
	}
	u, err := ch.createUpdate()
	if err != nil {
		return nil, err
	}
	u.Menu = &protocol.CompletionMenuTrigger{
		Anchor:        c.ID(),
		Position:      pos,
		Pattern:       pattern,
		CaretPosition: caret,
	}
	u.Entries = menuEntries(entries)
	return u, nil
}

func menuEntries(actions []completion.Action) []protocol.CompletionEntry {
	out := make([]protocol.CompletionEntry, len(actions))
	for i, a := range actions {
		out[i] = protocol.CompletionEntry{ID: i, MatchingText: a.MatchingText(), Description: a.Description()}
	}
	return out
}

// replaceText applies the text edit. With triggerCompletion a single
// substitution that consumes the whole new text runs instead. ok is false
// if no action took the edit.
func (s *Service) replaceText(ctx context.Context, ch *UpdateChannel, c *celltree.Cell, r protocol.Range, replacement string, triggerCompletion bool) (*protocol.EditorUpdate, bool, error) {
	old, _ := layout.SelectableText(c)
	r = protocol.Range{Start: textutil.Clamp(old, r.Start), End: textutil.Clamp(old, r.End)}
	newText := textutil.ReplaceRange(old, r.Start, r.End, replacement)
	state := ch.component.State()

	if triggerCompletion {
		actions, err := s.flatten(newText, engine.SubstituteProviders(c))
		if err != nil {
			return nil, false, err
		}
		if a, ok := completion.AutoApply(actions, newText, s.shadow); ok {
			policy, err := s.execute(ctx, func(ctx context.Context) (protocol.CaretPolicy, error) {
				p, err := a.Execute(ctx)
				state.ClearTextReplacement(c)
				return p, err
			})
			if err != nil {
				return nil, false, err
			}
			u, err := ch.createSelection(policy)
			return u, true, err
		}
	}

	caret := protocol.AtIndex(c.References(), r.Start+textutil.Len(replacement))
	for _, a := range engine.CenterAlignedHierarchy(c) {
		action, ok := celltree.Lookup(a, engine.ReplaceTextKey)
		if !ok || action == nil || !action.Valid(newText) {
			continue
		}
		var taken bool
		err := s.model.Write(func() error {
			var err error
			taken, err = action.ReplaceText(ctx, r, replacement, newText)
			return err
		})
		if err != nil {
			return nil, false, err
		}
		if taken {
			u, err := ch.createSelection(caret)
			return u, true, err
		}
	}
	return nil, false, nil
}

// ReplaceText implements protocol.Service.
func (s *Service) ReplaceText(ctx context.Context, editor protocol.EditorID, cell celltree.ID, r protocol.Range, text string, triggerCompletion bool) (protocol.ServiceResult, error) {
	return withCell(s, "replace text", editor, cell, func(ch *UpdateChannel, c *celltree.Cell) (protocol.ServiceResult, error) {
		u, ok, err := s.replaceText(ctx, ch, c, r.Normalize(), text, triggerCompletion)
		if err != nil {
			return protocol.ServiceResult{}, err
		}
		return protocol.ServiceResult{Result: ok, Update: u}, nil
	})
}

// TriggerCodeCompletion implements protocol.Service.
func (s *Service) TriggerCodeCompletion(_ context.Context, editor protocol.EditorID, cell celltree.ID, caret int) (*protocol.EditorUpdate, error) {
	return withCell(s, "complete", editor, cell, func(ch *UpdateChannel, c *celltree.Cell) (*protocol.EditorUpdate, error) {
		text, _ := layout.SelectableText(c)
		caret = textutil.Clamp(text, caret)
		pattern := textutil.Slice(text, 0, caret)
		return s.openMenu(ch, c, protocol.CompletionCenter, engine.SubstituteProviders(c), pattern, caret)
	})
}

// UpdateCodeCompletionActions implements protocol.Service.
func (s *Service) UpdateCodeCompletionActions(_ context.Context, editor protocol.EditorID, cell celltree.ID, pattern string) (*protocol.EditorUpdate, error) {
	return withCell(s, "update completion", editor, cell, func(ch *UpdateChannel, c *celltree.Cell) (*protocol.EditorUpdate, error) {
		entries, err := ch.component.LoadCompletionEntries(engine.SubstituteProviders(c), pattern)
		if err != nil {
			return nil, err
		}
		u, err := ch.createUpdate()
		if err != nil {
			return nil, err
		}
		u.Entries = menuEntries(entries)
		return u, nil
	})
}

// HasCodeCompletionActions implements protocol.Service.
func (s *Service) HasCodeCompletionActions(_ context.Context, editor protocol.EditorID, cell celltree.ID, pattern string) (bool, error) {
	return withCell(s, "has completion", editor, cell, func(ch *UpdateChannel, _ *celltree.Cell) (bool, error) {
		menu := ch.component.CompletionMenu()
		if menu == nil {
			return false, nil
		}
		var found bool
		err := s.model.Read(func() error {
			entries, err := menu.Compute(pattern)
			found = len(entries) > 0
			return err
		})
		return found, err
	})
}

// ExecuteCodeCompletionAction implements protocol.Service.
func (s *Service) ExecuteCodeCompletionAction(ctx context.Context, editor protocol.EditorID, id int) (*protocol.EditorUpdate, error) {
	return withEditor(s, "execute completion", editor, func(ch *UpdateChannel) (*protocol.EditorUpdate, error) {
		menu := ch.component.CompletionMenu()
		if menu == nil {
			return nil, fmt.Errorf("%w: no open menu", protocol.ErrActionNotFound)
		}
		action, err := menu.Entry(id)
		if errors.Is(err, completion.ErrNoSuchEntry) {
			return nil, fmt.Errorf("%w: %v", protocol.ErrActionNotFound, err)
		}
		if err != nil {
			return nil, err
		}
		policy, err := s.execute(ctx, action.Execute)
		if err != nil {
			return nil, err
		}
		return ch.createSelection(policy)
	})
}

// ResetState implements protocol.Service.
func (s *Service) ResetState(_ context.Context, editor protocol.EditorID) (*protocol.EditorUpdate, error) {
	return withEditor(s, "reset", editor, func(ch *UpdateChannel) (*protocol.EditorUpdate, error) {
		ch.component.State().Reset()
		return ch.createUpdate()
	})
}

// Flush implements protocol.Service.
func (s *Service) Flush(_ context.Context, editor protocol.EditorID) (*protocol.EditorUpdate, error) {
	return withEditor(s, "flush", editor, func(ch *UpdateChannel) (*protocol.EditorUpdate, error) {
		return ch.createUpdate()
	})
}
