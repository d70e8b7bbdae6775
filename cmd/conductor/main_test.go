package main

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/aristath/conductor/internal/config"
	"github.com/aristath/conductor/internal/persistence"
	"github.com/aristath/conductor/internal/reasoning"
)

// TestProcessManagerKillAllOnShutdown verifies that ProcessManager.KillAll()
// correctly terminates tracked runner processes during simulated shutdown.
func TestProcessManagerKillAllOnShutdown(t *testing.T) {
	pm := reasoning.NewProcessManager()

	// Start a long-running subprocess
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "sleep", "60")
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true, // Process group isolation
	}

	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start subprocess: %v", err)
	}

	pm.Track(cmd)

	if count := pm.Count(); count != 1 {
		t.Errorf("Expected 1 tracked process, got %d", count)
	}

	// Simulate shutdown: kill all processes
	if err := pm.KillAll(); err != nil {
		t.Errorf("KillAll() failed: %v", err)
	}

	// Wait for process to terminate (should be killed)
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected process to be killed (non-zero exit), got nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Process did not terminate after KillAll()")
	}

	// KillAll doesn't untrack; that happens in executeCommand's defer
	if count := pm.Count(); count != 1 {
		t.Errorf("Expected process to still be tracked after KillAll, got count=%d", count)
	}

	pm.Untrack(cmd)

	if count := pm.Count(); count != 0 {
		t.Errorf("Expected 0 tracked processes after Untrack, got %d", count)
	}
}

// TestSignalContextCancellation verifies that signal.NotifyContext produces
// a context that cancels correctly when a signal is received.
func TestSignalContextCancellation(t *testing.T) {
	// Use SIGUSR1 as a safe test signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGUSR1)
	defer stop()

	if err := syscall.Kill(os.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("Failed to send SIGUSR1: %v", err)
	}

	select {
	case <-ctx.Done():
		// Success - context cancelled
	case <-time.After(1 * time.Second):
		t.Fatal("Context did not cancel after SIGUSR1")
	}

	if err := ctx.Err(); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

// TestOpenStoreSelectsBackend verifies the DBPath setting picks the
// persistence backend.
func TestOpenStoreSelectsBackend(t *testing.T) {
	ctx := context.Background()

	mem, err := openStore(ctx, &config.Config{})
	if err != nil {
		t.Fatalf("openStore() with empty DBPath failed: %v", err)
	}
	defer mem.Close()
	if _, ok := mem.(*persistence.MemoryStore); !ok {
		t.Errorf("Expected *persistence.MemoryStore, got %T", mem)
	}

	dbPath := t.TempDir() + "/conductor.db"
	sq, err := openStore(ctx, &config.Config{DBPath: dbPath})
	if err != nil {
		t.Fatalf("openStore() with DBPath failed: %v", err)
	}
	defer sq.Close()
	if _, ok := sq.(*persistence.SQLiteStore); !ok {
		t.Errorf("Expected *persistence.SQLiteStore, got %T", sq)
	}
}

// TestShutdownTimeout verifies the timeout pattern works correctly.
func TestShutdownTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Simulate waiting for a channel that never receives
	blockChan := make(chan struct{})

	start := time.Now()
	select {
	case <-blockChan:
		t.Fatal("Unexpected receive from blockChan")
	case <-ctx.Done():
		elapsed := time.Since(start)
		if elapsed < 50*time.Millisecond {
			t.Errorf("Timeout fired too early: %v", elapsed)
		}
		if elapsed > 100*time.Millisecond {
			t.Errorf("Timeout fired too late: %v", elapsed)
		}
	}

	if err := ctx.Err(); err != context.DeadlineExceeded {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
}
