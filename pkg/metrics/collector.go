package metrics

import (
	"time"

	"github.com/windflowlabs/windflow/pkg/storage"
	"github.com/windflowlabs/windflow/pkg/types"
)

// ConnectionCounter reports open WebSocket connections. Satisfied by
// the ws registry.
type ConnectionCounter interface {
	ConnectionCount() int
}

var deploymentStatuses = []types.DeploymentStatus{
	types.StatusPending,
	types.StatusDeploying,
	types.StatusRunning,
	types.StatusFailed,
	types.StatusStopped,
	types.StatusRollingBack,
}

var targetStatuses = []types.TargetStatus{
	types.TargetStatusNew,
	types.TargetStatusScanning,
	types.TargetStatusReady,
	types.TargetStatusUnreachable,
}

// Collector polls the store and keeps the inventory gauges current.
type Collector struct {
	store       storage.Store
	connections ConnectionCounter
	interval    time.Duration
	stopCh      chan struct{}
}

// NewCollector creates a collector over store. connections may be nil.
func NewCollector(store storage.Store, connections ConnectionCounter) *Collector {
	return &Collector{
		store:       store,
		connections: connections,
		interval:    15 * time.Second,
		stopCh:      make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectDeploymentMetrics()
	c.collectStackMetrics()
	c.collectTargetMetrics()

	if c.connections != nil {
		WSConnections.Set(float64(c.connections.ConnectionCount()))
	}
}

func (c *Collector) collectDeploymentMetrics() {
	// Every status is set each pass so emptied buckets drop to zero.
	for _, status := range deploymentStatuses {
		rows, err := c.store.ListDeploymentsByStatus(status)
		if err != nil {
			return
		}
		DeploymentsTotal.WithLabelValues(string(status)).Set(float64(len(rows)))
	}
}

func (c *Collector) collectStackMetrics() {
	stacks, err := c.store.ListStacks()
	if err != nil {
		return
	}
	StacksTotal.Set(float64(len(stacks)))
}

func (c *Collector) collectTargetMetrics() {
	targets, err := c.store.ListTargets()
	if err != nil {
		return
	}

	counts := make(map[types.TargetStatus]int)
	for _, target := range targets {
		counts[target.Status]++
	}
	for _, status := range targetStatuses {
		TargetsTotal.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
