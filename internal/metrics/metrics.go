package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EndpointResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mc_endpoint_responses_total",
		Help: "The total number of metrics endpoint responses",
	}, []string{"endpoint", "status_code"})

	// Allocation metrics
	MCAllocTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mc_alloc_total",
		Help: "Total number of allocation requests by component and outcome",
	}, []string{"component", "status"})

	MCAllocBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mc_alloc_bytes_total",
		Help: "Total number of bytes successfully allocated",
	}, []string{"component"})

	MCFreeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mc_free_total",
		Help: "Total number of free requests by component and outcome",
	}, []string{"component", "status"})

	// Transfer metrics
	MCMemcpyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mc_memcpy_total",
		Help: "Total number of completed copies by transfer mode",
	}, []string{"component", "mode"})

	MCMemcpyBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mc_memcpy_bytes_total",
		Help: "Total number of bytes copied by transfer mode",
	}, []string{"component", "mode"})

	MCReduceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mc_reduce_total",
		Help: "Total number of completed reductions by operation",
	}, []string{"component", "op"})

	MCErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mc_errors_total",
		Help: "Total number of failed operations by error kind",
	}, []string{"component", "op", "kind"})

	// Reduction launch shape chosen at init
	MCReduceNumBlocks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mc_reduce_num_blocks",
		Help: "Effective number of reduction thread blocks, 0 when derived per launch",
	}, []string{"component"})

	MCReduceNumThreads = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mc_reduce_num_threads",
		Help: "Threads per block used for reductions",
	}, []string{"component"})
)

// Status labels.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Outcome maps an error onto a status label.
func Outcome(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}
