package progress

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	filesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blindmark_files_processed_total",
		Help: "Files dispatched to a watermark codec, by file type.",
	}, []string{"type"})

	imagesMarked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blindmark_images_marked_total",
		Help: "Images that received a blind watermark.",
	})

	filesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blindmark_files_skipped_total",
		Help: "Files passed through unmarked, by skip reason.",
	}, []string{"reason"})

	jobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blindmark_jobs_completed_total",
		Help: "Embed jobs that finished successfully.",
	})

	jobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blindmark_jobs_failed_total",
		Help: "Embed jobs that ended in the error state.",
	})
)

// MetricsHandler exposes the default Prometheus registry; the binaries mount
// it when a metrics listen address is configured.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
