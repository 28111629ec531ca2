package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one iteration of a recurring background job.
type Task func(context.Context) error

// PeriodicConfig configures a recurring runner.
type PeriodicConfig struct {
	Interval   time.Duration
	RunOnStart bool
	Logger     *zap.Logger
}

// Periodic runs a task on a fixed interval until stopped. Iterations never
// overlap; a slow iteration delays the next tick rather than stacking up.
type Periodic struct {
	name     string
	task     Task
	interval time.Duration
	runFirst bool
	logger   *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewPeriodic builds a recurring runner for the given task.
func NewPeriodic(name string, task Task, cfg PeriodicConfig) *Periodic {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Periodic{
		name:     name,
		task:     task,
		interval: cfg.Interval,
		runFirst: cfg.RunOnStart,
		logger:   cfg.Logger,
	}
}

// Start launches the runner loop. Safe to call once.
func (p *Periodic) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.loop()
	p.started = true
	p.logger.Sugar().Infow("periodic runner started", "runner", p.name, "interval", p.interval)
}

// Stop cancels the loop and waits for the current iteration to finish.
func (p *Periodic) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.cancel()
	p.mu.Unlock()
	p.wg.Wait()
	p.logger.Sugar().Infow("periodic runner stopped", "runner", p.name)
}

func (p *Periodic) loop() {
	defer p.wg.Done()

	if p.runFirst {
		p.runOnce()
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.runOnce()
		}
	}
}

func (p *Periodic) runOnce() {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Sugar().Errorw("periodic task panicked", "runner", p.name, "panic", r)
		}
	}()

	start := time.Now()
	if err := p.task(p.ctx); err != nil {
		p.logger.Sugar().Warnw("periodic task failed", "runner", p.name, "error", err, "duration", time.Since(start))
		return
	}
	p.logger.Sugar().Debugw("periodic task completed", "runner", p.name, "duration", time.Since(start))
}
