package datasource

import (
	"context"
	"time"

	"github.com/intellisql/intellisql/internal/catalog"
	"github.com/intellisql/intellisql/internal/connector"
)

// runHealthLoop probes source on its configured interval until the Manager
// is closed. N consecutive failures (source's configured threshold, default
// 3) transition the source to Unhealthy; the next success clears it
// immediately -- all via catalog.Source.MarkProbe's lock-free atomic state.
func (m *Manager) runHealthLoop(source *catalog.Source, conn connector.Connector, pool connector.Pool) {
	defer m.wg.Done()

	interval := time.Duration(source.Config.HealthCheckIntervalSeconds) * time.Second
	timeout := time.Duration(source.Config.HealthCheckTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	threshold := source.Config.HealthCheckFailureThreshold
	if threshold <= 0 {
		threshold = 3
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(context.Background(), timeout)
			err := conn.HealthProbe(probeCtx, pool, int(timeout.Seconds()))
			cancel()
			source.MarkProbe(err == nil, time.Now().UnixNano(), threshold)
		}
	}
}
