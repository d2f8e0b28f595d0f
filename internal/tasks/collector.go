package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"booking_etl/internal/metrics"
)

// BatchWriter persists one batch of records to a destination
type BatchWriter[T any] interface {
	InsertBatch(records []T) error
}

// Collector collects records from a channel and writes them to one destination in batches
type Collector[T any] struct {
	name          string // destination name used in logs and metrics
	writer        BatchWriter[T]
	recordChan    <-chan T
	batchSize     int           // maximum number of records in a batch before writing
	flushInterval time.Duration // time to flush batch even if not full
	drainTimeout  time.Duration // how long to wait for the producer to close the channel after cancellation
	metrics       *metrics.Metrics
}

// Default batch size is 100 records, flush interval is 1 second and drain timeout is 5 seconds
func NewCollector[T any](name string, writer BatchWriter[T], recordChan <-chan T) *Collector[T] {
	return &Collector[T]{
		name:          name,
		writer:        writer,
		recordChan:    recordChan,
		batchSize:     100,
		flushInterval: 1 * time.Second,
		drainTimeout:  5 * time.Second,
	}
}

// NewCollectorWithConfig creates a collector with custom batch settings
func NewCollectorWithConfig[T any](name string, writer BatchWriter[T], recordChan <-chan T, batchSize int, flushInterval time.Duration) *Collector[T] {
	c := NewCollector(name, writer, recordChan)
	if batchSize > 0 {
		c.batchSize = batchSize
	}
	if flushInterval > 0 {
		c.flushInterval = flushInterval
	}
	return c
}

// WithMetrics counts flushed batches on m
func (c *Collector[T]) WithMetrics(m *metrics.Metrics) *Collector[T] {
	c.metrics = m
	return c
}

// Start collects records until the channel is closed or the context is cancelled.
// Batches are flushed when they reach batchSize or flushInterval has passed since the last write.
// A failed write stops the collector and returns the error: records are never dropped silently.
// After cancellation, records already handed over are still written until the producer
// closes the channel or the drain timeout expires.
func (c *Collector[T]) Start(ctx context.Context) error {
	batch := make([]T, 0, c.batchSize)
	written := 0

	flushBatch := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := c.writer.InsertBatch(batch)
		c.metrics.IncrementBatchWrite(c.name, err)
		if err != nil {
			return fmt.Errorf("failed to write batch of %d records to %s: %w", len(batch), c.name, err)
		}
		written += len(batch)
		slog.Debug("Wrote batch", "destination", c.name, "batch_size", len(batch), "total", written)
		batch = batch[:0] // Reset slice but keep capacity
		return nil
	}

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := c.drain(&batch, flushBatch); err != nil {
				return err
			}
			slog.Info("Collector stopped", "destination", c.name, "records", written)
			return ctx.Err()

		case <-ticker.C:
			if err := flushBatch(); err != nil {
				return err
			}

		case record, ok := <-c.recordChan:
			if !ok {
				if err := flushBatch(); err != nil {
					return err
				}
				slog.Info("Collector finished", "destination", c.name, "records", written)
				return ctx.Err()
			}

			batch = append(batch, record)
			if len(batch) >= c.batchSize {
				if err := flushBatch(); err != nil {
					return err
				}
			}
		}
	}
}

// drain appends everything still buffered in the channel to batch and flushes it
func (c *Collector[T]) drain(batch *[]T, flushBatch func() error) error {
	timeout := time.NewTimer(c.drainTimeout)
	defer timeout.Stop()

	for {
		select {
		case record, ok := <-c.recordChan:
			if !ok {
				return flushBatch()
			}
			*batch = append(*batch, record)
			if len(*batch) >= c.batchSize {
				if err := flushBatch(); err != nil {
					return err
				}
			}

		case <-timeout.C:
			slog.Warn("Collector drain timed out, producer did not close its channel", "destination", c.name, "pending", len(c.recordChan))
			return flushBatch()
		}
	}
}
