// Package worker runs periodic maintenance tasks for the API server.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/ohscentric/internal/metrics"
)

// Worker runs each registered task on a fixed interval in its own goroutine.
type Worker struct {
	tasks  map[string]Task
	config Config
	logger *slog.Logger

	// Synchronization
	wg     sync.WaitGroup
	stopCh chan struct{}
	once   sync.Once
}

// New creates a new Worker with the given configuration.
// The worker must be started with Start() and stopped with Stop().
func New(config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		tasks:  make(map[string]Task),
		config: config,
		logger: logger,
		stopCh: make(chan struct{}),
	}, nil
}

// Register adds a task to the worker. Call this before Start().
func (w *Worker) Register(task Task) {
	name := task.Name()
	if _, exists := w.tasks[name]; exists {
		w.logger.Warn("Overwriting existing task", "task", name)
	}
	w.tasks[name] = task
	w.logger.Debug("Registered maintenance task", "task", name)
}

// Start schedules every registered task. The first run happens one
// interval after Start.
func (w *Worker) Start(ctx context.Context) {
	for _, task := range w.tasks {
		w.wg.Add(1)
		go w.runTask(ctx, task)
	}

	w.logger.Info("Worker started", "tasks", len(w.tasks), "interval", w.config.Interval)
}

// Stop signals all tasks to stop and waits for them to finish.
// It respects the configured ShutdownTimeout.
func (w *Worker) Stop() {
	w.once.Do(func() {
		w.logger.Info("Stopping worker...")
		close(w.stopCh)
	})

	// Wait for tasks with timeout
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Worker stopped gracefully")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("Worker shutdown timeout exceeded, some tasks may still be running")
	}
}

// RunOnce runs every registered task immediately and returns the first
// error encountered.
func (w *Worker) RunOnce(ctx context.Context) error {
	var first error
	for _, task := range w.tasks {
		if err := w.execute(ctx, task, w.logger.With("task", task.Name())); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// runTask is the main loop for one task goroutine.
func (w *Worker) runTask(ctx context.Context, task Task) {
	defer w.wg.Done()

	logger := w.logger.With("task", task.Name())

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			logger.Debug("Task stopping")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := w.execute(ctx, task, logger)
			if IsPermanent(err) {
				logger.Warn("Task failed with permanent error, will not run again", "error", err)
				return
			}
		}
	}
}

// execute runs one pass of task with a timeout context.
func (w *Worker) execute(ctx context.Context, task Task, logger *slog.Logger) error {
	taskCtx, cancel := context.WithTimeout(ctx, w.config.TaskTimeout)
	defer cancel()

	start := time.Now()
	n, err := task.Run(taskCtx)
	if err != nil {
		metrics.TaskFailed(task.Name())
		logger.Error("Task failed", "error", err, "duration", time.Since(start))
		return fmt.Errorf("%s: %w", task.Name(), err)
	}

	metrics.TaskCompleted(task.Name(), time.Since(start), n)
	if n > 0 {
		logger.Info("Task completed", "affected", n, "duration", time.Since(start))
	} else {
		logger.Debug("Task completed", "affected", n, "duration", time.Since(start))
	}
	return nil
}
