package scan

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CycleRunner is what the poller drives once per tick or trigger.
type CycleRunner interface {
	RunCycle(ctx context.Context) error
}

// Poller runs scan cycles on a fixed interval and accepts manual rescan
// requests. Cycles never overlap: a rescan arriving while a cycle is active
// is coalesced into a single pending follow-up run.
type Poller struct {
	runner   CycleRunner
	interval time.Duration
	log      *zap.SugaredLogger

	// triggerCh has capacity 1: at most one follow-up cycle is ever queued.
	triggerCh chan struct{}
	stopCh    chan struct{}

	mu      sync.Mutex
	running bool
}

// NewPoller creates a poller driving runner every interval.
func NewPoller(runner CycleRunner, interval time.Duration, log *zap.SugaredLogger) *Poller {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Poller{
		runner:    runner,
		interval:  interval,
		log:       log,
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Rescan requests an immediate cycle. Requests arriving while a cycle is in
// flight collapse into one pending run.
func (p *Poller) Rescan() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A run is already pending; coalesce.
	}
}

// Stop halts the polling loop.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	close(p.stopCh)
	p.running = false
}

// Run executes an initial cycle immediately, then loops on the interval and
// manual triggers until the context is cancelled or Stop is called. Cycle
// errors are logged; the loop always continues with the next interval.
func (p *Poller) Run(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.cycle(ctx)
		case <-p.triggerCh:
			p.log.Infow("manual rescan triggered")
			p.cycle(ctx)
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	if err := p.runner.RunCycle(ctx); err != nil {
		p.log.Warnw("scan cycle failed, retrying next interval", "error", err)
	}
}
