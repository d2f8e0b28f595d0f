package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"booking_etl/internal/metrics"
	"booking_etl/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepository is a simple mock implementation of BatchWriter
type mockRepository struct {
	mu      sync.Mutex
	batches [][]models.RejectedRecord
	errors  []error
}

func (m *mockRepository) InsertBatch(records []models.RejectedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.errors) > 0 {
		err := m.errors[0]
		m.errors = m.errors[1:]
		if err != nil {
			return err
		}
	}
	m.batches = append(m.batches, append([]models.RejectedRecord(nil), records...))
	return nil
}

func (m *mockRepository) records() []models.RejectedRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.RejectedRecord
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

func (m *mockRepository) batchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

func rejected(raw string) models.RejectedRecord {
	return models.RejectedRecord{Entity: models.EntityBooking, Raw: raw, Reason: models.ReasonMalformedInput}
}

func TestNewCollector(t *testing.T) {
	repo := &mockRepository{}
	recordChan := make(chan models.RejectedRecord, 10)

	collector := NewCollector[models.RejectedRecord]("bookings_quarantine", repo, recordChan)

	require.NotNil(t, collector)
	assert.Equal(t, 100, collector.batchSize)
	assert.Equal(t, 1*time.Second, collector.flushInterval)
	assert.Equal(t, 5*time.Second, collector.drainTimeout)
}

func TestNewCollectorWithConfig(t *testing.T) {
	repo := &mockRepository{}
	recordChan := make(chan models.RejectedRecord, 10)

	collector := NewCollectorWithConfig[models.RejectedRecord]("bookings_quarantine", repo, recordChan, 50, 500*time.Millisecond)
	assert.Equal(t, 50, collector.batchSize)
	assert.Equal(t, 500*time.Millisecond, collector.flushInterval)

	// Non positive settings keep the defaults
	collector = NewCollectorWithConfig[models.RejectedRecord]("bookings_quarantine", repo, recordChan, 0, 0)
	assert.Equal(t, 100, collector.batchSize)
	assert.Equal(t, 1*time.Second, collector.flushInterval)
}

func TestCollector_BatchFlush(t *testing.T) {
	repo := &mockRepository{}
	recordChan := make(chan models.RejectedRecord, 100)
	collector := NewCollectorWithConfig[models.RejectedRecord]("q", repo, recordChan, 5, time.Hour)

	done := make(chan error, 1)
	go func() { done <- collector.Start(context.Background()) }()

	for i := 0; i < 5; i++ {
		recordChan <- rejected("full batch")
	}

	assert.Eventually(t, func() bool { return repo.batchCount() == 1 }, time.Second, 10*time.Millisecond)

	close(recordChan)
	require.NoError(t, <-done)
	assert.Len(t, repo.records(), 5)
}

func TestCollector_FlushOnInterval(t *testing.T) {
	repo := &mockRepository{}
	recordChan := make(chan models.RejectedRecord, 100)
	collector := NewCollectorWithConfig[models.RejectedRecord]("q", repo, recordChan, 100, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = collector.Start(ctx) }()

	recordChan <- rejected("lonely")

	assert.Eventually(t, func() bool { return len(repo.records()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestCollector_FlushOnClose(t *testing.T) {
	repo := &mockRepository{}
	recordChan := make(chan models.RejectedRecord, 100)
	collector := NewCollectorWithConfig[models.RejectedRecord]("q", repo, recordChan, 100, time.Hour)

	for i := 0; i < 7; i++ {
		recordChan <- rejected("partial batch")
	}
	close(recordChan)

	require.NoError(t, collector.Start(context.Background()))
	assert.Len(t, repo.records(), 7)
}

func TestCollector_FlushOnCancel(t *testing.T) {
	repo := &mockRepository{}
	recordChan := make(chan models.RejectedRecord, 100)
	collector := NewCollectorWithConfig[models.RejectedRecord]("q", repo, recordChan, 100, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- collector.Start(ctx) }()

	recordChan <- rejected("before cancel")
	assert.Eventually(t, func() bool { return len(recordChan) == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	close(recordChan)
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Len(t, repo.records(), 1)
}

func TestCollector_DrainsBufferedRecordsOnCancel(t *testing.T) {
	repo := &mockRepository{}
	recordChan := make(chan models.RejectedRecord, 100)
	collector := NewCollectorWithConfig[models.RejectedRecord]("q", repo, recordChan, 4, time.Hour)

	for i := 0; i < 10; i++ {
		recordChan <- rejected("buffered")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// the producer hands over two more records before it notices the cancellation
	go func() {
		recordChan <- rejected("late")
		recordChan <- rejected("late")
		close(recordChan)
	}()

	assert.ErrorIs(t, collector.Start(ctx), context.Canceled)
	assert.Len(t, repo.records(), 12, "records handed over before the channel closed are written")
}

func TestCollector_DrainTimeout(t *testing.T) {
	repo := &mockRepository{}
	recordChan := make(chan models.RejectedRecord, 100)
	collector := NewCollectorWithConfig[models.RejectedRecord]("q", repo, recordChan, 100, time.Hour)
	collector.drainTimeout = 20 * time.Millisecond

	recordChan <- rejected("a")
	recordChan <- rejected("b")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// the channel is never closed
	assert.ErrorIs(t, collector.Start(ctx), context.Canceled)
	assert.Len(t, repo.records(), 2)
}

func TestCollector_WriteErrorStopsCollector(t *testing.T) {
	writeErr := errors.New("disk full")
	repo := &mockRepository{errors: []error{writeErr}}
	recordChan := make(chan models.RejectedRecord, 100)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	collector := NewCollectorWithConfig[models.RejectedRecord]("bookings_quarantine", repo, recordChan, 2, time.Hour).WithMetrics(m)

	recordChan <- rejected("a")
	recordChan <- rejected("b")

	err := collector.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, writeErr)
	assert.Empty(t, repo.records())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchWrites.WithLabelValues("bookings_quarantine", "error")))
}
