package filelock

import (
	"testing"
	"time"
)

func TestAcquire_SerializesSameFile(t *testing.T) {
	r := New()

	release := r.Acquire("file-1")

	acquired := make(chan struct{})
	go func() {
		release2 := r.Acquire("file-1")
		close(acquired)
		release2()
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire for the same file_id returned before the first released")
	case <-time.After(50 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Acquire did not unblock after release")
	}
}

func TestAcquire_DoesNotSerializeDifferentFiles(t *testing.T) {
	r := New()
	release := r.Acquire("file-1")
	defer release()

	done := make(chan struct{})
	go func() {
		release2 := r.Acquire("file-2")
		release2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Acquire for a different file_id was blocked")
	}
}

func TestTryAcquire_FailsWhileHeld(t *testing.T) {
	r := New()
	release, ok := r.TryAcquire("file-1")
	if !ok {
		t.Fatal("expected first TryAcquire to succeed")
	}

	if _, ok := r.TryAcquire("file-1"); ok {
		t.Error("expected second TryAcquire for the same file to fail while held")
	}

	release()

	release2, ok := r.TryAcquire("file-1")
	if !ok {
		t.Error("expected TryAcquire to succeed after release")
	}
	release2()
}
