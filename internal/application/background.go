package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wms-platform/task-engine/pkg/logging"
)

// loop runs a job on a fixed interval until stopped
type loop struct {
	name     string
	interval time.Duration
	job      func(ctx context.Context) error
	logger   *logging.Logger

	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

func newLoop(name string, interval time.Duration, job func(ctx context.Context) error, logger *logging.Logger) *loop {
	return &loop{name: name, interval: interval, job: job, logger: logger}
}

// Start launches the loop in the background
func (l *loop) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return fmt.Errorf("%s is already running", l.name)
	}
	if l.interval <= 0 {
		l.mu.Unlock()
		return fmt.Errorf("%s interval must be positive", l.name)
	}
	l.running = true
	l.stopChan = make(chan struct{})
	l.done = make(chan struct{})
	l.mu.Unlock()

	go l.run(ctx)
	l.logger.Info("Background loop started", "loop", l.name, "interval", l.interval.String())
	return nil
}

// Stop halts the loop and waits for an in-flight run to return
func (l *loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	close(l.stopChan)
	l.running = false
	done := l.done
	l.mu.Unlock()

	<-done
	l.logger.Info("Background loop stopped", "loop", l.name)
}

// IsRunning returns whether the loop is running
func (l *loop) IsRunning() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.running
}

func (l *loop) run(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopChan:
			return
		case <-ticker.C:
			if err := l.job(ctx); err != nil {
				l.logger.WithError(err).Error("Background run failed", "loop", l.name)
			}
		}
	}
}
