package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()

	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("loop run: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("timed out waiting for loop to stop")
		}
	})
	return loop, cancel
}

func TestLoopRunsPostedCallbacksInOrder(t *testing.T) {
	t.Parallel()

	loop, _ := startLoop(t)
	got := make(chan int, 3)
	for i := 1; i <= 3; i++ {
		i := i
		loop.Post(func() { got <- i })
	}

	for want := 1; want <= 3; want++ {
		select {
		case value := <-got:
			if value != want {
				t.Fatalf("callback order = %d, want %d", value, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for posted callback")
		}
	}
}

func TestLoopAfterFires(t *testing.T) {
	t.Parallel()

	loop, _ := startLoop(t)
	fired := make(chan struct{})
	loop.After(20*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delayed task")
	}
}

func TestLoopCancelledAfterNeverRuns(t *testing.T) {
	t.Parallel()

	loop, _ := startLoop(t)
	var ran atomic.Bool
	task := loop.After(20*time.Millisecond, func() { ran.Store(true) })
	task.Cancel()
	task.Cancel()

	time.Sleep(100 * time.Millisecond)
	if ran.Load() {
		t.Fatal("cancelled task ran")
	}
}

func TestLoopCancelBeforeQueuedCallbackRuns(t *testing.T) {
	t.Parallel()

	loop, _ := startLoop(t)
	var ran atomic.Bool
	blocked := make(chan struct{})
	release := make(chan struct{})

	// Hold the loop so the timer fires and queues while we still own it.
	loop.Post(func() {
		close(blocked)
		<-release
	})
	<-blocked

	task := loop.After(time.Millisecond, func() { ran.Store(true) })
	time.Sleep(50 * time.Millisecond)
	loop.Post(task.Cancel)
	close(release)

	done := make(chan struct{})
	loop.Post(func() { close(done) })
	<-done
	if ran.Load() {
		t.Fatal("task cancelled on the loop ran after its timer fired")
	}
}

func TestLoopEveryTicksUntilCancelled(t *testing.T) {
	t.Parallel()

	loop, _ := startLoop(t)
	var ticks atomic.Int32
	task := loop.Every(10*time.Millisecond, func() { ticks.Add(1) })

	deadline := time.Now().Add(2 * time.Second)
	for ticks.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for ticks")
		}
		time.Sleep(5 * time.Millisecond)
	}

	stopped := make(chan int32)
	loop.Post(func() {
		task.Cancel()
		stopped <- ticks.Load()
	})
	atCancel := <-stopped

	time.Sleep(60 * time.Millisecond)
	if got := ticks.Load(); got != atCancel {
		t.Fatalf("ticks after cancel = %d, want %d", got, atCancel)
	}
}

func TestLoopRunTwiceFails(t *testing.T) {
	t.Parallel()

	loop, _ := startLoop(t)
	started := make(chan struct{})
	loop.Post(func() { close(started) })
	<-started

	if err := loop.Run(context.Background()); !errors.Is(err, ErrLoopAlreadyRunning) {
		t.Fatalf("second run error = %v, want %v", err, ErrLoopAlreadyRunning)
	}
}
