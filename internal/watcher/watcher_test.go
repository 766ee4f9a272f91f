package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "registry.db")
	var calls atomic.Int32
	w := NewWatcher([]string{db}, func() { calls.Add(1) }, WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(db+"-wal", []byte{byte(i)}, 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !waitFor(t, 2*time.Second, func() bool { return calls.Load() >= 1 }) {
		t.Fatal("onChange was not called")
	}
	time.Sleep(250 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("onChange called %d times, want 1", got)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	w := NewWatcher([]string{filepath.Join(dir, "registry.db")}, func() { calls.Add(1) }, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("onChange called %d times for unrelated file", got)
	}
}

func TestWatcher_AddFileAndStop(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	w := NewWatcher(nil, func() { calls.Add(1) }, WithDebounce(50*time.Millisecond))
	other := filepath.Join(dir, "nested", "other.db")
	if err := w.AddFile(other); err == nil {
		t.Error("AddFile before Start should fail")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := w.AddFile(other); err != nil {
		t.Fatal(err)
	}
	if err := w.AddFile(other); err != nil {
		t.Fatal(err)
	}
	if files := w.Files(); len(files) != 1 || files[0] != other {
		t.Errorf("Files() = %v", files)
	}
	if err := os.WriteFile(other, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return calls.Load() == 1 }) {
		t.Fatal("onChange was not called")
	}

	w.Stop()
	w.Stop()
	if err := os.WriteFile(other, []byte("y"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("onChange after Stop: calls = %d", got)
	}
}

func TestWatcher_TimerFiringAfterStopIsIgnored(t *testing.T) {
	var calls atomic.Int32
	w := NewWatcher([]string{filepath.Join(t.TempDir(), "registry.db")}, func() { calls.Add(1) })
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()

	// A timer that went off just before Stop cancelled it still calls fire.
	w.fire()
	if got := calls.Load(); got != 0 {
		t.Errorf("onChange ran after Stop: calls = %d", got)
	}
}

func TestWatcher_StopWaitsForRunningCallback(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	w := NewWatcher([]string{filepath.Join(t.TempDir(), "registry.db")}, func() {
		close(entered)
		<-release
	})
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	go w.fire()
	<-entered

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned while onChange was running")
	case <-time.After(100 * time.Millisecond):
	}
	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after onChange finished")
	}
}
