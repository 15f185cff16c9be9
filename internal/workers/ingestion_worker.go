package workers

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/fathmn/jokari-knowledge-hub/internal/repositories"
	"github.com/fathmn/jokari-knowledge-hub/internal/services"
)

// IngestionWorker drains the ingestion queue and runs the document pipeline.
// Each job gets a bounded retry budget; a job that exhausts it marks its
// document extraction_failed.
type IngestionWorker struct {
	*BaseWorker

	jobRepo   repositories.JobRepository
	ingestion *services.IngestionService
	logger    *log.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestionWorker(
	config WorkerConfig,
	jobRepo repositories.JobRepository,
	ingestion *services.IngestionService,
	logger *log.Logger,
) *IngestionWorker {
	return &IngestionWorker{
		BaseWorker: NewBaseWorker(config),
		jobRepo:    jobRepo,
		ingestion:  ingestion,
		logger:     logger,
	}
}

// Start launches the polling goroutines.
func (w *IngestionWorker) Start(ctx context.Context) error {
	if w.IsRunning() {
		return NewWorkerError(w.Name(), "start", nil, "worker already running")
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.setRunning(true)

	concurrency := w.Config().Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.pollLoop(workerCtx)
	}

	w.logger.Printf("[WORKER] %s started with concurrency %d", w.Name(), concurrency)
	return nil
}

// Stop shuts the worker down, waiting up to the shutdown timeout for
// in-flight jobs.
func (w *IngestionWorker) Stop(ctx context.Context) error {
	if !w.IsRunning() {
		return nil
	}

	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	timeout := w.Config().ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	select {
	case <-done:
	case <-time.After(timeout):
		w.logger.Printf("[WORKER] %s shutdown timed out after %s", w.Name(), timeout)
	case <-ctx.Done():
	}

	w.setRunning(false)
	w.logger.Printf("[WORKER] %s stopped", w.Name())
	return nil
}

func (w *IngestionWorker) pollLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.Config().PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drainQueue(ctx)
		}
	}
}

// drainQueue processes jobs until the queue is empty.
func (w *IngestionWorker) drainQueue(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.jobRepo.Dequeue(ctx)
		if err != nil {
			w.logger.Printf("[WORKER] %s failed to dequeue: %v", w.Name(), err)
			return
		}
		if job == nil {
			return
		}

		w.processJob(ctx, job)
	}
}

func (w *IngestionWorker) processJob(ctx context.Context, job *repositories.IngestionJob) {
	startTime := w.recordIngestStart()
	w.logger.Printf("[WORKER] %s processing job %s (document %s, attempt %d)",
		w.Name(), job.ID, job.DocumentID, job.RetryCount+1)

	var err error
	if w.Config().EnableRecovery {
		err = runRecovered(func() error {
			return w.ingestion.Ingest(ctx, job.DocumentID)
		})
	} else {
		err = w.ingestion.Ingest(ctx, job.DocumentID)
	}

	if err == nil {
		now := time.Now()
		job.Status = repositories.JobStatusCompleted
		job.CompletedAt = &now
		job.Message = ""
		if updateErr := w.jobRepo.Update(ctx, job); updateErr != nil {
			w.logger.Printf("[WORKER] %s failed to mark job %s completed: %v", w.Name(), job.ID, updateErr)
		}
		w.recordIngestSuccess(startTime)
		return
	}

	w.recordIngestFailure(startTime)
	w.logger.Printf("[WORKER] %s job %s failed: %v", w.Name(), job.ID, err)

	maxRetries := job.MaxRetries
	if maxRetries <= 0 {
		maxRetries = w.Config().MaxRetries
	}

	if job.RetryCount < maxRetries {
		job.RetryCount++
		job.Message = err.Error()
		w.recordRetry()

		// The retry delay runs before requeue so the next dequeue does not
		// immediately replay a failing upstream call.
		select {
		case <-time.After(w.Config().RetryDelay):
		case <-ctx.Done():
			return
		}

		if enqueueErr := w.jobRepo.Enqueue(ctx, job); enqueueErr != nil {
			w.logger.Printf("[WORKER] %s failed to requeue job %s: %v", w.Name(), job.ID, enqueueErr)
		}
		return
	}

	now := time.Now()
	job.Status = repositories.JobStatusFailed
	job.Message = err.Error()
	job.CompletedAt = &now
	if updateErr := w.jobRepo.Update(ctx, job); updateErr != nil {
		w.logger.Printf("[WORKER] %s failed to mark job %s failed: %v", w.Name(), job.ID, updateErr)
	}
	w.ingestion.MarkExtractionFailed(ctx, job.DocumentID, err)
}
