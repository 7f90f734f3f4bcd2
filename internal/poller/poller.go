package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/flor3z/invite-role-bot/internal/dispatch"
)

// Submitter accepts events for the dispatcher
type Submitter interface {
	Submit(ctx context.Context, ev dispatch.Event) error
}

// Poller periodically requests an invite resync through the dispatcher
type Poller struct {
	queue    Submitter
	interval time.Duration

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a new Poller
func New(queue Submitter, intervalSeconds int) *Poller {
	return &Poller{
		queue:    queue,
		interval: time.Duration(intervalSeconds) * time.Second,
		stopChan: make(chan struct{}),
	}
}

// Enabled reports whether a positive interval was configured
func (p *Poller) Enabled() bool {
	return p.interval > 0
}

// Start begins the polling loop. It returns immediately when disabled.
func (p *Poller) Start(ctx context.Context) {
	if !p.Enabled() {
		slog.Debug("Invite resync poller disabled")
		return
	}

	slog.Info("Starting invite resync poller", "interval", p.interval)

	p.wg.Add(1)
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Poller stopped (context cancelled)")
			return
		case <-p.stopChan:
			slog.Info("Poller stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// Stop signals the poller to stop
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	p.wg.Wait()
}

func (p *Poller) poll(ctx context.Context) {
	err := p.queue.Submit(ctx, dispatch.Resync("interval"))
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, dispatch.ErrStopped) {
		slog.Error("Failed to queue invite resync", "error", err)
	}
}
