package metrics

import "time"

// TaskCompleted records a successful maintenance run
func TaskCompleted(task string, duration time.Duration, deleted int64) {
	MaintenanceRunsTotal.WithLabelValues(task, "completed").Inc()
	MaintenanceDuration.WithLabelValues(task).Observe(duration.Seconds())
	if deleted > 0 {
		MaintenanceRowsDeleted.WithLabelValues(task).Add(float64(deleted))
	}
}

// TaskFailed records a failed maintenance run
func TaskFailed(task string) {
	MaintenanceRunsTotal.WithLabelValues(task, "failed").Inc()
}
