// Package workers runs the background side of the hub: queue-driven workers
// feeding uploaded documents through the ingestion pipeline.
package workers

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Worker is a background queue consumer owned by the pool.
type Worker interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Name() string
	IsRunning() bool
	Stats() IngestionStats
}

// IngestionStats counts what a worker has pushed through the pipeline.
// A document is processed once per attempt, so retries show up in both
// DocumentsFailed and Retries.
type IngestionStats struct {
	WorkerName         string        `json:"worker_name"`
	DocumentsProcessed int64         `json:"documents_processed"`
	DocumentsSucceeded int64         `json:"documents_succeeded"`
	DocumentsFailed    int64         `json:"documents_failed"`
	Retries            int64         `json:"retries"`
	AverageIngestTime  time.Duration `json:"average_ingest_time"`
	LastDocumentAt     time.Time     `json:"last_document_at,omitempty"`
	Uptime             time.Duration `json:"uptime"`
	IsRunning          bool          `json:"is_running"`
}

// WorkerConfig tunes a queue worker.
type WorkerConfig struct {
	// WorkerName is a unique identifier for this worker instance
	WorkerName string

	// Concurrency is the number of documents to ingest concurrently
	Concurrency int

	// PollInterval is how often to check the queue for new jobs
	PollInterval time.Duration

	// ShutdownTimeout is how long to wait for in-flight documents on stop
	ShutdownTimeout time.Duration

	// MaxRetries bounds the attempts per document when the job itself
	// carries no budget
	MaxRetries int

	// RetryDelay is the pause before a failed job is requeued
	RetryDelay time.Duration

	// EnableRecovery converts a panic during ingestion into a job failure
	EnableRecovery bool
}

// DefaultWorkerConfig returns a worker configuration with sensible defaults
func DefaultWorkerConfig(workerName string) WorkerConfig {
	return WorkerConfig{
		WorkerName:      workerName,
		Concurrency:     3,
		PollInterval:    2 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		MaxRetries:      3,
		RetryDelay:      5 * time.Second,
		EnableRecovery:  true,
	}
}

// BaseWorker carries the running state and ingestion counters shared by
// queue workers.
type BaseWorker struct {
	config  WorkerConfig
	running bool
	mu      sync.RWMutex

	documentsProcessed int64
	documentsSucceeded int64
	documentsFailed    int64
	retries            int64
	totalIngestTime    time.Duration
	startTime          time.Time
	lastDocumentAt     time.Time
	statsMu            sync.RWMutex
}

func NewBaseWorker(config WorkerConfig) *BaseWorker {
	return &BaseWorker{config: config}
}

func (w *BaseWorker) Name() string {
	return w.config.WorkerName
}

func (w *BaseWorker) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *BaseWorker) setRunning(running bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = running
	if running {
		w.startTime = time.Now()
	}
}

// Stats returns a snapshot of the worker's ingestion counters.
func (w *BaseWorker) Stats() IngestionStats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()

	var avgIngestTime time.Duration
	if w.documentsProcessed > 0 {
		avgIngestTime = w.totalIngestTime / time.Duration(w.documentsProcessed)
	}

	var uptime time.Duration
	if !w.startTime.IsZero() {
		uptime = time.Since(w.startTime)
	}

	return IngestionStats{
		WorkerName:         w.config.WorkerName,
		DocumentsProcessed: w.documentsProcessed,
		DocumentsSucceeded: w.documentsSucceeded,
		DocumentsFailed:    w.documentsFailed,
		Retries:            w.retries,
		AverageIngestTime:  avgIngestTime,
		LastDocumentAt:     w.lastDocumentAt,
		Uptime:             uptime,
		IsRunning:          w.IsRunning(),
	}
}

func (w *BaseWorker) recordIngestStart() time.Time {
	return time.Now()
}

func (w *BaseWorker) recordIngestSuccess(startTime time.Time) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()

	w.documentsProcessed++
	w.documentsSucceeded++
	w.totalIngestTime += time.Since(startTime)
	w.lastDocumentAt = time.Now()
}

func (w *BaseWorker) recordIngestFailure(startTime time.Time) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()

	w.documentsProcessed++
	w.documentsFailed++
	w.totalIngestTime += time.Since(startTime)
	w.lastDocumentAt = time.Now()
}

func (w *BaseWorker) recordRetry() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.retries++
}

// Config returns the worker configuration
func (w *BaseWorker) Config() WorkerConfig {
	return w.config
}

// WorkerPool manages the lifecycle of the background workers.
type WorkerPool struct {
	workers []Worker
	mu      sync.RWMutex
}

func NewWorkerPool() *WorkerPool {
	return &WorkerPool{workers: make([]Worker, 0)}
}

func (p *WorkerPool) AddWorker(worker Worker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.workers = append(p.workers, worker)
}

// StartAll starts every worker; the first start failure aborts.
func (p *WorkerPool) StartAll(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, worker := range p.workers {
		if err := worker.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// StopAll stops all workers concurrently and returns the first stop error.
func (p *WorkerPool) StopAll(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var wg sync.WaitGroup
	errChan := make(chan error, len(p.workers))

	for _, worker := range p.workers {
		wg.Add(1)
		go func(w Worker) {
			defer wg.Done()
			if err := w.Stop(ctx); err != nil {
				errChan <- err
			}
		}(worker)
	}

	wg.Wait()
	close(errChan)

	select {
	case err := <-errChan:
		return err
	default:
		return nil
	}
}

// Stats returns the ingestion counters of every worker in the pool.
func (p *WorkerPool) Stats() []IngestionStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := make([]IngestionStats, 0, len(p.workers))
	for _, worker := range p.workers {
		stats = append(stats, worker.Stats())
	}
	return stats
}

func (p *WorkerPool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.workers)
}

// runRecovered invokes the pipeline converting a panic into an error, so one
// poisoned document cannot kill the poll loop.
func runRecovered(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during ingestion: %v", r)
		}
	}()
	return fn()
}

// WorkerError wraps a failure of the worker lifecycle itself, as opposed to
// a failed document.
type WorkerError struct {
	WorkerName string
	Operation  string
	Err        error
	Message    string
}

func (e *WorkerError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	prefix := e.WorkerName + ":" + e.Operation
	if e.Err != nil {
		return prefix + ": " + e.Err.Error()
	}
	return prefix + ": unknown error"
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

func NewWorkerError(workerName, operation string, err error, message string) *WorkerError {
	return &WorkerError{
		WorkerName: workerName,
		Operation:  operation,
		Err:        err,
		Message:    message,
	}
}
