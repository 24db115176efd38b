package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestDo(t *testing.T) {
	p := New(2)
	got, err := Do(context.Background(), p, func(context.Context) (int, error) { return 42, nil })
	if err != nil || got != 42 {
		t.Fatalf("Do: got %d, %v", got, err)
	}

	boom := errors.New("boom")
	if _, err := Do(context.Background(), p, func(context.Context) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Errorf("Do error: got %v, want boom", err)
	}

	if _, err := Do(context.Background(), p, func(context.Context) (int, error) { panic("bad") }); err == nil {
		t.Error("panic should surface as an error")
	}
	// The panicking job released its slot.
	if _, err := Do(context.Background(), p, func(context.Context) (struct{}, error) { return struct{}{}, nil }); err != nil {
		t.Errorf("Do after panic failed: %v", err)
	}
}

func TestDoBoundsConcurrency(t *testing.T) {
	p := New(3)
	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = Do(context.Background(), p, func(context.Context) (int, error) {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return 0, nil
			})
		}()
	}
	wg.Wait()
	if peak.Load() > 3 {
		t.Errorf("peak concurrency: got %d, want <= 3", peak.Load())
	}
}

func TestDoCancelled(t *testing.T) {
	p := New(1)
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = Do(context.Background(), p, func(context.Context) (int, error) {
			close(started)
			<-release
			return 0, nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := Do(ctx, p, func(context.Context) (int, error) { return 1, nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do with a full pool: got %v, want deadline exceeded", err)
	}
	close(release)

	if New(0).Size() != 1 {
		t.Error("New(0) should have one slot")
	}
}
