package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/execfabric/go-executors/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExecutorSnapshotProvider provides current executor stats snapshots.
type ExecutorSnapshotProvider interface {
	Stats() core.ExecutorStats
}

// PoolSnapshotProvider provides current dispatch pool stats snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// SnapshotPoller periodically exports executor/pool Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	executorsMu sync.RWMutex
	executors   map[string]ExecutorSnapshotProvider

	poolsMu sync.RWMutex
	pools   map[string]PoolSnapshotProvider

	executorPending  *prom.GaugeVec
	executorRunning  *prom.GaugeVec
	executorRejected *prom.GaugeVec
	executorClosed   *prom.GaugeVec

	poolQueued  *prom.GaugeVec
	poolActive  *prom.GaugeVec
	poolWorkers *prom.GaugeVec
	poolRunning *prom.GaugeVec

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

	executorPending := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "executors",
		Name:      "executor_pending",
		Help:      "Number of pending jobs per executor.",
	}, []string{"executor", "type"})
	executorRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "executors",
		Name:      "executor_running",
		Help:      "Number of running jobs per executor.",
	}, []string{"executor", "type"})
	executorRejected := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "executors",
		Name:      "executor_rejected_total",
		Help:      "Executor dropped job count snapshot.",
	}, []string{"executor", "type"})
	executorClosed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "executors",
		Name:      "executor_closed",
		Help:      "Executor closed state (1=closed, 0=open).",
	}, []string{"executor", "type"})

	poolQueued := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "executors",
		Name:      "pool_queued",
		Help:      "Queued jobs per dispatch pool.",
	}, []string{"pool"})
	poolActive := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "executors",
		Name:      "pool_active",
		Help:      "Active jobs per dispatch pool.",
	}, []string{"pool"})
	poolWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "executors",
		Name:      "pool_workers",
		Help:      "Worker count per dispatch pool.",
	}, []string{"pool"})
	poolRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "executors",
		Name:      "pool_running",
		Help:      "Dispatch pool running state (1=running, 0=stopped).",
	}, []string{"pool"})

	var err error
	if executorPending, err = registerCollector(reg, executorPending); err != nil {
		return nil, err
	}
	if executorRunning, err = registerCollector(reg, executorRunning); err != nil {
		return nil, err
	}
	if executorRejected, err = registerCollector(reg, executorRejected); err != nil {
		return nil, err
	}
	if executorClosed, err = registerCollector(reg, executorClosed); err != nil {
		return nil, err
	}
	if poolQueued, err = registerCollector(reg, poolQueued); err != nil {
		return nil, err
	}
	if poolActive, err = registerCollector(reg, poolActive); err != nil {
		return nil, err
	}
	if poolWorkers, err = registerCollector(reg, poolWorkers); err != nil {
		return nil, err
	}
	if poolRunning, err = registerCollector(reg, poolRunning); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:         interval,
		executors:        make(map[string]ExecutorSnapshotProvider),
		pools:            make(map[string]PoolSnapshotProvider),
		executorPending:  executorPending,
		executorRunning:  executorRunning,
		executorRejected: executorRejected,
		executorClosed:   executorClosed,
		poolQueued:       poolQueued,
		poolActive:       poolActive,
		poolWorkers:      poolWorkers,
		poolRunning:      poolRunning,
	}, nil
}

// AddExecutor adds or replaces an executor snapshot provider by name.
func (p *SnapshotPoller) AddExecutor(name string, provider ExecutorSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "executor")
	p.executorsMu.Lock()
	p.executors[name] = provider
	p.executorsMu.Unlock()
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	p.pools[name] = provider
	p.poolsMu.Unlock()
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
	p.executorsMu.RLock()
	for name, provider := range p.executors {
		stats := provider.Stats()
		typeLabel := normalizeLabel(stats.Type, "unknown")
		p.executorPending.WithLabelValues(name, typeLabel).Set(float64(stats.Pending))
		p.executorRunning.WithLabelValues(name, typeLabel).Set(float64(stats.Running))
		p.executorRejected.WithLabelValues(name, typeLabel).Set(float64(stats.Rejected))
		if stats.Closed {
			p.executorClosed.WithLabelValues(name, typeLabel).Set(1)
		} else {
			p.executorClosed.WithLabelValues(name, typeLabel).Set(0)
		}
	}
	p.executorsMu.RUnlock()

	p.poolsMu.RLock()
	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.poolActive.WithLabelValues(name).Set(float64(stats.Active))
		p.poolWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		if stats.Running {
			p.poolRunning.WithLabelValues(name).Set(1)
		} else {
			p.poolRunning.WithLabelValues(name).Set(0)
		}
	}
	p.poolsMu.RUnlock()
}
