package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/docbox-nz/docbox/internal/docboxerr"
)

func TestDerivationPool_ReserveRefusesWhenSaturated(t *testing.T) {
	pool := NewDerivationPool(1, 1)

	release, ok := pool.Reserve()
	if !ok {
		t.Fatal("expected first Reserve to succeed on an empty pool")
	}
	if _, ok := pool.Reserve(); ok {
		t.Error("expected second Reserve to fail while the only slot is held")
	}

	release()
	if _, ok := pool.Reserve(); !ok {
		t.Error("expected Reserve to succeed again after release")
	}
}

func TestDerivationPool_RunReleasesReservation(t *testing.T) {
	pool := NewDerivationPool(2, 2)

	release, ok := pool.Reserve()
	if !ok {
		t.Fatal("Reserve failed on an empty pool")
	}

	done := make(chan struct{})
	pool.Run(release, func(ctx context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool never ran the submitted work")
	}

	// The reservation frees once the work finishes; poll briefly since
	// release happens after fn returns.
	deadline := time.After(time.Second)
	for {
		if r, ok := pool.Reserve(); ok {
			r()
			return
		}
		select {
		case <-deadline:
			t.Fatal("reservation was never released after Run completed")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestDerivationPool_ReserveWaitHonorsContext(t *testing.T) {
	pool := NewDerivationPool(1, 1)
	release, _ := pool.Reserve()
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := pool.ReserveWait(ctx); err == nil {
		t.Error("expected ReserveWait to fail once the context expires")
	}
}

func TestUploadDirect_TooBusyWhenPoolSaturated(t *testing.T) {
	pool := NewDerivationPool(1, 1)
	held, ok := pool.Reserve()
	if !ok {
		t.Fatal("could not saturate the pool")
	}
	defer held()

	ing := &Ingestion{
		Files:       newFakeFileRepo(),
		EditHistory: &fakeEditHistoryRepo{},
		Store:       newFakeStore(),
		Pipeline:    &fakePipeline{},
		Pool:        pool,
	}

	_, err := ing.UploadDirect(context.Background(), DirectUploadInput{
		DocumentBox: "box1",
		FolderID:    "folder-1",
		Name:        "x.txt",
		Mime:        "text/plain",
	}, bytes.NewReader([]byte("data")))
	if !docboxerr.Is(err, docboxerr.TooBusy) {
		t.Fatalf("expected TooBusy when the derivation queue is full, got %v", err)
	}
}
