package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ahsanj/local-log-analyzer/internal/logger"
	"github.com/ahsanj/local-log-analyzer/internal/models"
	"github.com/google/uuid"
)

var (
	ErrQueueFull    = errors.New("analysis queue is full")
	ErrQueueStopped = errors.New("analysis queue is stopped")
)

const (
	defaultQueueWorkers = 2
	defaultQueueSize    = 100
	maxTrackedJobs      = 1000
)

type fileAnalyzer interface {
	Analyze(ctx context.Context, fileID string) (*models.LogAnalysis, error)
}

// AnalysisQueue runs analyses in the background so results are usually
// cached before the first read.
type AnalysisQueue struct {
	analyzer    fileAnalyzer
	jobQueue    chan string
	workerCount int
	stopChan    chan struct{}
	wg          sync.WaitGroup
	stopOnce    sync.Once

	mu    sync.RWMutex
	jobs  map[string]*models.Job
	order []string
}

// NewAnalysisQueue creates the queue and starts its workers.
func NewAnalysisQueue(analyzer fileAnalyzer, workers, size int) *AnalysisQueue {
	if workers <= 0 {
		workers = defaultQueueWorkers
	}
	if size <= 0 {
		size = defaultQueueSize
	}
	q := &AnalysisQueue{
		analyzer:    analyzer,
		jobQueue:    make(chan string, size),
		workerCount: workers,
		stopChan:    make(chan struct{}),
		jobs:        make(map[string]*models.Job),
	}

	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	return q
}

// Enqueue schedules an analysis. It never blocks; a full queue is
// reported as ErrQueueFull.
func (q *AnalysisQueue) Enqueue(fileID string) (*models.Job, error) {
	job := &models.Job{
		ID:        uuid.New().String(),
		LogFileID: fileID,
		Status:    models.JobStatusPending,
		QueuedAt:  time.Now().UTC(),
	}

	select {
	case <-q.stopChan:
		return nil, ErrQueueStopped
	default:
	}

	snapshot := *job
	q.track(job)
	select {
	case q.jobQueue <- job.ID:
		logger.WithJob(job.ID, fileID).Debug("Analysis job queued")
		return &snapshot, nil
	default:
		q.untrack(job.ID)
		logger.WithJob(job.ID, fileID).Warn("Analysis queue full, skipping background analysis")
		return nil, ErrQueueFull
	}
}

// Job returns a copy of a tracked job.
func (q *AnalysisQueue) Job(id string) (*models.Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

// Stop stops the workers after their current job. Jobs still queued are
// dropped; their files are analyzed on demand instead.
func (q *AnalysisQueue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopChan)
	})
	q.wg.Wait()
}

func (q *AnalysisQueue) worker(id int) {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopChan:
			logger.Info("Worker stopping", map[string]interface{}{"worker_id": id})
			return
		case jobID := <-q.jobQueue:
			q.process(id, jobID)
		}
	}
}

func (q *AnalysisQueue) process(workerID int, jobID string) {
	fileID, ok := q.start(jobID)
	if !ok {
		return
	}
	log := logger.WithJob(jobID, fileID).WithField("worker_id", workerID)
	log.Info("Worker processing job")

	_, err := q.analyzer.Analyze(context.Background(), fileID)
	q.finish(jobID, err)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Info("Log file removed before analysis")
			return
		}
		log.WithField("error", err.Error()).Error("Background analysis failed")
		return
	}
	log.Info("Background analysis completed")
}

func (q *AnalysisQueue) track(job *models.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[job.ID] = job
	q.order = append(q.order, job.ID)
	for len(q.order) > maxTrackedJobs {
		delete(q.jobs, q.order[0])
		q.order = q.order[1:]
	}
}

func (q *AnalysisQueue) untrack(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.jobs, id)
	for i, jid := range q.order {
		if jid == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

func (q *AnalysisQueue) start(jobID string) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return "", false
	}
	now := time.Now().UTC()
	job.Status = models.JobStatusRunning
	job.StartedAt = &now
	return job.LogFileID, true
}

func (q *AnalysisQueue) finish(jobID string, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return
	}
	now := time.Now().UTC()
	job.CompletedAt = &now
	if err != nil {
		job.Status = models.JobStatusFailed
		job.Error = err.Error()
		return
	}
	job.Status = models.JobStatusCompleted
}
