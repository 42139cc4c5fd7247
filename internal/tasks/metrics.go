package tasks

import "github.com/prometheus/client_golang/prometheus"

var (
	taskMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_mutations_total",
			Help: "Persisted task writes by operation",
		},
		[]string{"op"},
	)

	taskUpdatesSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "task_updates_skipped_total",
			Help: "Updates that matched the stored task and were not written",
		},
	)
)

func init() {
	prometheus.MustRegister(taskMutations, taskUpdatesSkipped)
}
