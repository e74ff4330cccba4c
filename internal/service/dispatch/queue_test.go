package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestQueue_RunsInOrder(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	var (
		mu    sync.Mutex
		order []int
	)
	for i := 0; i < 50; i++ {
		i := i
		q.Async(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := q.Sync(ctx, func() {}); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 50 {
		t.Fatalf("Expected 50 runs, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("Expected order[%d] = %d, got %d", i, i, v)
		}
	}
}

func TestQueue_SerialExecution(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	var (
		mu      sync.Mutex
		running int
		overlap bool
		wg      sync.WaitGroup
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go q.Async(func() {
			defer wg.Done()
			mu.Lock()
			running++
			if running > 1 {
				overlap = true
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
		})
	}
	wg.Wait()

	if overlap {
		t.Error("Expected queued functions to never overlap")
	}
}

func TestQueue_CloseDrainsPending(t *testing.T) {
	q := NewQueue()

	ran := 0
	for i := 0; i < 10; i++ {
		q.Async(func() { ran++ })
	}
	q.Close()

	if ran != 10 {
		t.Errorf("Expected 10 drained functions, got %d", ran)
	}

	q.Async(func() { ran++ })
	if ran != 10 {
		t.Error("Expected Async after Close to be dropped")
	}
	if err := q.Sync(context.Background(), func() {}); err != ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestQueue_SyncHonoursContext(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	release := make(chan struct{})
	q.Async(func() { <-release })
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := q.Sync(ctx, func() {}); err != context.DeadlineExceeded {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}
