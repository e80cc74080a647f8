package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestValidatorCoalesces(t *testing.T) {
	started := make(chan struct{}, 10)
	release := make(chan struct{})
	var runs atomic.Int32
	v := NewValidator(func(context.Context) error {
		runs.Add(1)
		started <- struct{}{}
		<-release
		return nil
	})
	if err := v.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	v.Invalidate()
	<-started
	for range 5 {
		v.Invalidate()
	}
	close(release)
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("second run did not start")
	}
	v.Stop()

	if got := runs.Load(); got != 2 {
		t.Errorf("runs = %d, want 2", got)
	}
}

func TestValidatorStart(t *testing.T) {
	v := NewValidator(func(context.Context) error { return nil })
	if err := v.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := v.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start: err = %v, want ErrAlreadyStarted", err)
	}
	v.Stop()
	v.Stop()
	if err := v.Start(context.Background()); err != nil {
		t.Errorf("Start after Stop: %v", err)
	}
	v.Stop()
}

func TestValidatorSurvivesFailures(t *testing.T) {
	ran := make(chan int, 3)
	var n atomic.Int32
	v := NewValidator(func(context.Context) error {
		i := int(n.Add(1))
		ran <- i
		switch i {
		case 1:
			panic("broken")
		case 2:
			return errors.New("failed")
		}
		return nil
	})
	if err := v.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer v.Stop()

	for want := 1; want <= 3; want++ {
		v.Invalidate()
		select {
		case got := <-ran:
			if got != want {
				t.Fatalf("run %d, want %d", got, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("run %d did not happen", want)
		}
	}
}

func TestValidatorDelay(t *testing.T) {
	ran := make(chan time.Time, 1)
	v := NewValidator(func(context.Context) error {
		ran <- time.Now()
		return nil
	}, WithDelay(20*time.Millisecond))
	if err := v.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer v.Stop()

	start := time.Now()
	v.Invalidate()
	select {
	case at := <-ran:
		if at.Sub(start) < 20*time.Millisecond {
			t.Errorf("ran after %v, want at least 20ms", at.Sub(start))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no run")
	}
}
