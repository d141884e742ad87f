package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jobrunner/stratum/internal/domain"
	"github.com/jobrunner/stratum/internal/ports/output"
)

func TestRefresherTrigger(t *testing.T) {
	builder := &mockBuilder{snap: snapshotWithItems("a", "b")}
	cache := NewSnapshotCache(builder, &output.NoOpMetrics{}, testLogger(), CacheConfig{})
	refresher := NewRefresher(cache, time.Hour, testLogger())

	result, err := refresher.TriggerRefresh(context.Background())
	if err != nil {
		t.Fatalf("TriggerRefresh() error = %v", err)
	}
	if result.Items != 2 {
		t.Errorf("Items = %d, want 2", result.Items)
	}
	if result.RefreshedAt.IsZero() {
		t.Error("RefreshedAt should be set")
	}
}

func TestRefresherRateLimit(t *testing.T) {
	builder := &mockBuilder{snap: snapshotWithItems("a")}
	cache := NewSnapshotCache(builder, &output.NoOpMetrics{}, testLogger(), CacheConfig{})
	refresher := NewRefresher(cache, time.Hour, testLogger())

	if _, err := refresher.TriggerRefresh(context.Background()); err != nil {
		t.Fatalf("first trigger error = %v", err)
	}
	if _, err := refresher.TriggerRefresh(context.Background()); !errors.Is(err, ErrRateLimited) {
		t.Errorf("second trigger error = %v, want ErrRateLimited", err)
	}
	if builder.calls != 1 {
		t.Errorf("builder.calls = %d, want 1", builder.calls)
	}
}

func TestRefresherTriggerPropagatesError(t *testing.T) {
	cache := NewSnapshotCache(&mockBuilder{err: domain.ErrSourceUnavailable}, &output.NoOpMetrics{}, testLogger(), CacheConfig{})
	refresher := NewRefresher(cache, time.Hour, testLogger())

	if _, err := refresher.TriggerRefresh(context.Background()); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Errorf("error = %v, want ErrSourceUnavailable", err)
	}
}

func TestRefresherPeriodicRuns(t *testing.T) {
	builder := &mockBuilder{snap: snapshotWithItems("a")}
	cache := NewSnapshotCache(builder, &output.NoOpMetrics{}, testLogger(), CacheConfig{})
	refresher := NewRefresher(cache, 20*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	refresher.Start(ctx)
	time.Sleep(70 * time.Millisecond)
	refresher.Stop()

	if builder.calls == 0 {
		t.Error("periodic refresh never ran")
	}
	if _, ok := cache.Current(); !ok {
		t.Error("snapshot should be installed by the periodic loop")
	}
}

func TestRefresherStopsOnContextCancel(t *testing.T) {
	cache := NewSnapshotCache(&mockBuilder{snap: snapshotWithItems("a")}, &output.NoOpMetrics{}, testLogger(), CacheConfig{})
	refresher := NewRefresher(cache, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	refresher.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		refresher.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop after context cancel")
	}
}

func TestRefresherInterval(t *testing.T) {
	refresher := NewRefresher(nil, 42*time.Minute, testLogger())
	if refresher.Interval() != 42*time.Minute {
		t.Errorf("Interval() = %v", refresher.Interval())
	}
}
