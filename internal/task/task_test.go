package task

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestTokenCancelOnce(t *testing.T) {
	tok := NewToken()
	if tok.Cancelled() {
		t.Error("new token should not be cancelled")
	}
	tok.Cancel()
	if !tok.Cancelled() {
		t.Error("token should be cancelled after Cancel")
	}
	// Repeated cancel stays cancelled.
	tok.Cancel()
	if !tok.Cancelled() {
		t.Error("token should remain cancelled")
	}
}

func TestRegistryCancel(t *testing.T) {
	r := NewRegistry()
	tok := r.CreateToken("job-1")

	if !r.Cancel("job-1") {
		t.Error("Cancel should report true for a registered id")
	}
	if !tok.Cancelled() {
		t.Error("token should observe cancellation")
	}
	// Cancel is idempotent while the token stays registered.
	if !r.Cancel("job-1") {
		t.Error("repeated Cancel should still report true")
	}
}

func TestRegistryCancelUnknown(t *testing.T) {
	r := NewRegistry()
	if r.Cancel("no-such-job") {
		t.Error("Cancel should report false for an unknown id")
	}
}

func TestRegistryReplaceToken(t *testing.T) {
	r := NewRegistry()
	old := r.CreateToken("job-1")
	fresh := r.CreateToken("job-1")

	r.Cancel("job-1")
	if old.Cancelled() {
		t.Error("replaced token should not be cancelled")
	}
	if !fresh.Cancelled() {
		t.Error("current token should be cancelled")
	}
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	tok := r.CreateToken("job-1")
	r.Remove("job-1")

	if r.Cancel("job-1") {
		t.Error("Cancel should report false after Remove")
	}
	if tok.Cancelled() {
		t.Error("Remove should not cancel the token")
	}
}

func TestRegistryClearAll(t *testing.T) {
	r := NewRegistry()
	t1 := r.CreateToken("a")
	t2 := r.CreateToken("b")

	r.ClearAll()

	if !t1.Cancelled() || !t2.Cancelled() {
		t.Error("ClearAll should cancel every token")
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d after ClearAll, want 0", r.Len())
	}
	if r.Cancel("a") {
		t.Error("cleared ids should no longer be cancellable")
	}
}

func TestWaitOrCancelCompletes(t *testing.T) {
	tok := NewToken()
	start := time.Now()
	err := WaitOrCancel(tok, 30*time.Millisecond, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitOrCancel returned %v, want nil", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("returned after %v, want at least 30ms", elapsed)
	}
}

func TestWaitOrCancelObservesCancellation(t *testing.T) {
	tok := NewToken()

	var wg sync.WaitGroup
	wg.Add(1)
	var err error
	start := time.Now()
	go func() {
		defer wg.Done()
		err = WaitOrCancel(tok, 5*time.Second, 10*time.Millisecond)
	}()

	time.Sleep(20 * time.Millisecond)
	tok.Cancel()
	wg.Wait()

	if err != context.Canceled {
		t.Fatalf("WaitOrCancel returned %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation observed after %v, want well under the full delay", elapsed)
	}
}

func TestWaitOrCancelAlreadyCancelled(t *testing.T) {
	tok := NewToken()
	tok.Cancel()
	if err := WaitOrCancel(tok, time.Hour, 0); err != context.Canceled {
		t.Fatalf("WaitOrCancel returned %v, want context.Canceled", err)
	}
}
