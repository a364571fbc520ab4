package scheduler

import "github.com/prometheus/client_golang/prometheus"

var (
	buildsStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "homu_builds_started_total",
		Help: "Number of gated or try builds started, by repository.",
	}, []string{"repo"})

	buildsSucceeded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "homu_builds_succeeded_total",
		Help: "Number of builds that finished with every builder passing, by repository.",
	}, []string{"repo"})

	buildsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "homu_builds_failed_total",
		Help: "Number of builds that finished with at least one builder failing, by repository.",
	}, []string{"repo"})
)

func init() {
	prometheus.MustRegister(buildsStarted, buildsSucceeded, buildsFailed)
}
