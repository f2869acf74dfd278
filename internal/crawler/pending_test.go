package crawler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// TestPendingWork tests termination detection.
func TestPendingWork(t *testing.T) {
	t.Parallel()

	t.Run("completes when every party arrives", func(t *testing.T) {
		t.Parallel()

		p := newPendingWork()
		var wg sync.WaitGroup
		for range 100 {
			p.register()
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.arrive()
			}()
		}
		p.arrive()

		if err := p.wait(context.Background()); err != nil {
			t.Fatalf("wait failed: %v", err)
		}
		wg.Wait()
		if p.count() != 0 {
			t.Errorf("expected 0 pending, got %d", p.count())
		}
	})

	t.Run("nested registration", func(t *testing.T) {
		t.Parallel()

		p := newPendingWork()
		p.register()
		go func() {
			defer p.arrive()
			p.register()
			go func() {
				time.Sleep(5 * time.Millisecond)
				p.arrive()
			}()
		}()
		p.arrive()

		if err := p.wait(context.Background()); err != nil {
			t.Fatalf("wait failed: %v", err)
		}
	})

	t.Run("wait honours the context", func(t *testing.T) {
		t.Parallel()

		p := newPendingWork()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := p.wait(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("register after completion panics", func(t *testing.T) {
		t.Parallel()

		p := newPendingWork()
		p.arrive()

		defer func() {
			if recover() == nil {
				t.Error("expected a panic")
			}
		}()
		p.register()
	})
}
