package application

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/jobrunner/stratum/internal/domain"
	"github.com/jobrunner/stratum/internal/ports/output"
)

// mockStorage implements output.ObjectStorage for testing. Documents are
// held in memory keyed by object key.
type mockStorage struct {
	documents map[string]string
	listErr   error
	getErr    error
}

func (m *mockStorage) List(_ context.Context) ([]output.StorageObject, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	objects := make([]output.StorageObject, 0, len(m.documents))
	for key, body := range m.documents {
		objects = append(objects, output.StorageObject{
			Key:  key,
			Size: int64(len(body)),
		})
	}
	return objects, nil
}

func (m *mockStorage) Download(_ context.Context, _, _ string) error {
	return nil
}

func (m *mockStorage) GetReader(_ context.Context, key string) (io.ReadCloser, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	body, ok := m.documents[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader([]byte(body))), nil
}

func (m *mockStorage) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.documents[key]
	return ok, nil
}

// mockBuilder implements SnapshotBuilder for testing.
type mockBuilder struct {
	snap   *domain.Snapshot
	report *BuildReport
	err    error
	calls  int
}

func (m *mockBuilder) Build(_ context.Context) (*domain.Snapshot, *BuildReport, error) {
	m.calls++
	report := m.report
	if report == nil {
		report = &BuildReport{}
	}
	return m.snap, report, m.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCache(snap *domain.Snapshot) *SnapshotCache {
	cache := NewSnapshotCache(&mockBuilder{snap: snap}, &output.NoOpMetrics{}, testLogger(), CacheConfig{})
	if snap != nil {
		cache.Install(snap, time.Now())
	}
	return cache
}
