package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/parallelkit/taskrunner/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// RunnerSnapshotProvider provides current runner stats snapshots.
type RunnerSnapshotProvider interface {
	Stats() core.RunnerStats
}

// SnapshotPoller periodically exports runner Stats() snapshots into
// Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	runnersMu sync.RWMutex
	runners   map[string]RunnerSnapshotProvider

	runnerPending  *prom.GaugeVec
	runnerOverflow *prom.GaugeVec
	runnerDelayed  *prom.GaugeVec
	runnerWorkers  *prom.GaugeVec
	runnerRunning  *prom.GaugeVec
	runnerExecuted *prom.GaugeVec
	runnerPanicked *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	labels := []string{"runner", "type"}

	runnerPending := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskrunner",
		Name:      "runner_pending",
		Help:      "Ready tasks per runner, ring plus overflow.",
	}, labels)
	runnerOverflow := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskrunner",
		Name:      "runner_overflow",
		Help:      "Overflow list length per runner.",
	}, labels)
	runnerDelayed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskrunner",
		Name:      "runner_delayed",
		Help:      "Delayed tasks waiting to become due per runner.",
	}, labels)
	runnerWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskrunner",
		Name:      "runner_workers",
		Help:      "Dispatch loops currently attached per runner.",
	}, labels)
	runnerRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskrunner",
		Name:      "runner_running",
		Help:      "Runner running state (1=running, 0=stopped).",
	}, labels)
	runnerExecuted := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskrunner",
		Name:      "runner_executed_total",
		Help:      "Executed task count snapshot per runner.",
	}, labels)
	runnerPanicked := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskrunner",
		Name:      "runner_panicked_total",
		Help:      "Panicked task count snapshot per runner.",
	}, labels)

	var err error
	if runnerPending, err = registerCollector(reg, runnerPending); err != nil {
		return nil, err
	}
	if runnerOverflow, err = registerCollector(reg, runnerOverflow); err != nil {
		return nil, err
	}
	if runnerDelayed, err = registerCollector(reg, runnerDelayed); err != nil {
		return nil, err
	}
	if runnerWorkers, err = registerCollector(reg, runnerWorkers); err != nil {
		return nil, err
	}
	if runnerRunning, err = registerCollector(reg, runnerRunning); err != nil {
		return nil, err
	}
	if runnerExecuted, err = registerCollector(reg, runnerExecuted); err != nil {
		return nil, err
	}
	if runnerPanicked, err = registerCollector(reg, runnerPanicked); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:       interval,
		runners:        make(map[string]RunnerSnapshotProvider),
		runnerPending:  runnerPending,
		runnerOverflow: runnerOverflow,
		runnerDelayed:  runnerDelayed,
		runnerWorkers:  runnerWorkers,
		runnerRunning:  runnerRunning,
		runnerExecuted: runnerExecuted,
		runnerPanicked: runnerPanicked,
	}, nil
}

// AddRunner adds or replaces a runner snapshot provider by name.
func (p *SnapshotPoller) AddRunner(name string, provider RunnerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "runner")
	p.runnersMu.Lock()
	p.runners[name] = provider
	p.runnersMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.runnersMu.RLock()
	defer p.runnersMu.RUnlock()

	for name, provider := range p.runners {
		stats := provider.Stats()
		typeLabel := normalizeLabel(stats.Type, "unknown")
		p.runnerPending.WithLabelValues(name, typeLabel).Set(float64(stats.Pending))
		p.runnerOverflow.WithLabelValues(name, typeLabel).Set(float64(stats.Overflow))
		p.runnerDelayed.WithLabelValues(name, typeLabel).Set(float64(stats.Delayed))
		p.runnerWorkers.WithLabelValues(name, typeLabel).Set(float64(stats.Workers))
		if stats.Running {
			p.runnerRunning.WithLabelValues(name, typeLabel).Set(1)
		} else {
			p.runnerRunning.WithLabelValues(name, typeLabel).Set(0)
		}
		p.runnerExecuted.WithLabelValues(name, typeLabel).Set(float64(stats.Executed))
		p.runnerPanicked.WithLabelValues(name, typeLabel).Set(float64(stats.Panicked))
	}
}
