package service

import (
	"context"
	"log/slog"
	"time"
)

// PresignSweeper periodically reclaims expired Pending
// PresignedUploadTasks: a ticker-driven cleanup goroutine with a
// stopCh for graceful shutdown.
type PresignSweeper struct {
	Ingestion *Ingestion
	Interval  time.Duration

	stopCh chan struct{}
}

// Start launches the background sweep loop. Callers must call Stop to
// halt it.
func (s *PresignSweeper) Start() {
	s.stopCh = make(chan struct{})
	go s.run()
}

// Stop halts the background sweep goroutine.
func (s *PresignSweeper) Stop() {
	if s.stopCh != nil {
		close(s.stopCh)
	}
}

func (s *PresignSweeper) run() {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n, err := s.Ingestion.SweepExpired(context.Background())
			if err != nil {
				slog.Error("presign sweeper: sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("presign sweeper: reclaimed expired tasks", "count", n)
			}
		case <-s.stopCh:
			return
		}
	}
}
