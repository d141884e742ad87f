package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncSearchCount increments the search counter.
	IncSearchCount(success bool)

	// ObserveSearchDuration records search duration.
	ObserveSearchDuration(duration time.Duration)

	// SetSnapshotItems sets the number of indexed items.
	SetSnapshotItems(count int)

	// SetSnapshotCollections sets the number of indexed collections.
	SetSnapshotCollections(count int)

	// IncIndexBuilds increments the index build counter.
	IncIndexBuilds(success bool)

	// ObserveIndexBuildDuration records index build duration.
	ObserveIndexBuildDuration(duration time.Duration)

	// IncStorageOperations increments storage operation counter.
	IncStorageOperations(operation string, success bool)

	// ObserveStorageDuration records storage operation duration.
	ObserveStorageDuration(operation string, duration time.Duration)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncSearchCount implements MetricsCollector.
func (n *NoOpMetrics) IncSearchCount(_ bool) {}

// ObserveSearchDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveSearchDuration(_ time.Duration) {}

// SetSnapshotItems implements MetricsCollector.
func (n *NoOpMetrics) SetSnapshotItems(_ int) {}

// SetSnapshotCollections implements MetricsCollector.
func (n *NoOpMetrics) SetSnapshotCollections(_ int) {}

// IncIndexBuilds implements MetricsCollector.
func (n *NoOpMetrics) IncIndexBuilds(_ bool) {}

// ObserveIndexBuildDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveIndexBuildDuration(_ time.Duration) {}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_ string, _ bool) {}

// ObserveStorageDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}
