package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/cellstorm/internal/logging"
)

// Validator runs a validation function after Invalidate, coalescing
// invalidations that arrive while a run is pending or in progress into a
// single further run. Runs never overlap.
type Validator struct {
	validate func(context.Context) error
	delay    time.Duration
	logger   *logging.Logger

	// signal holds at most one pending run.
	signal chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithDelay waits d after an invalidation before running, so a burst of
// changes is handled by one run.
func WithDelay(d time.Duration) ValidatorOption {
	return func(v *Validator) { v.delay = d }
}

// WithValidatorLogger sets the logger for failed runs.
func WithValidatorLogger(l *logging.Logger) ValidatorOption {
	return func(v *Validator) { v.logger = l }
}

// NewValidator creates a stopped validator calling validate.
func NewValidator(validate func(context.Context) error, opts ...ValidatorOption) *Validator {
	v := &Validator{
		validate: validate,
		logger:   logging.Nop(),
		signal:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Invalidate requests a run. It never blocks.
func (v *Validator) Invalidate() {
	select {
	case v.signal <- struct{}{}:
	default:
	}
}

// Start runs the validation loop until ctx is done or Stop is called.
func (v *Validator) Start(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.done != nil {
		return ErrAlreadyStarted
	}
	ctx, v.cancel = context.WithCancel(ctx)
	v.done = make(chan struct{})
	go v.loop(ctx, v.done)
	return nil
}

// Stop ends the loop and waits for a running validation to return.
func (v *Validator) Stop() {
	v.mu.Lock()
	cancel, done := v.cancel, v.done
	v.cancel, v.done = nil, nil
	v.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (v *Validator) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-v.signal:
		}
		if v.delay > 0 {
			t := time.NewTimer(v.delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
		if err := v.run(ctx); err != nil && ctx.Err() == nil {
			v.logger.Error("validation failed: %v", err)
		}
	}
}

func (v *Validator) run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return v.validate(ctx)
}
