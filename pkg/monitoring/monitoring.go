package monitoring

/*
 * The monitoring package provides a common set of prometheus labels, collectors, and metric writing methods
 * for a consistent implementation of metrics across all log shipper components.
 */

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"xaas-logging.log-shipper/pkg/cli"
	"xaas-logging.log-shipper/pkg/logging"
)

const (
	//Prometheus Metric Labels
	PROM_LABEL_COMPONENT        = "component"
	PROM_LABEL_COMPONENT_INPUT  = "input"
	PROM_LABEL_COMPONENT_OUTPUT = "output"

	PROM_LABEL_SOURCE  = "source"
	PROM_LABEL_SINK    = "sink"
	PROM_LABEL_STAGE   = "stage"
	PROM_LABEL_STATUS  = "status"
	PROM_LABEL_MESSAGE = "message"

	// Standard stage values
	PROM_STAGE_DECODE  = "decode"
	PROM_STAGE_ENCODE  = "encode"
	PROM_STAGE_READ    = "read"
	PROM_STAGE_DELIVER = "deliver"

	// Standard status values
	PROM_STATUS_SUCCESS = "success"
	PROM_STATUS_FAILED  = "failed"

	// Prometheus metric names
	SHIPPER_LINES_READ      = "shipper_lines_read_total"
	SHIPPER_LINES_READ_HELP = "the number of complete lines read from an input source"

	SHIPPER_RECORDS_ENQUEUED      = "shipper_records_enqueued_total"
	SHIPPER_RECORDS_ENQUEUED_HELP = "the number of encoded records pushed onto the pipeline queue"

	SHIPPER_RECORDS_DELIVERED      = "shipper_records_delivered_total"
	SHIPPER_RECORDS_DELIVERED_HELP = "the number of records delivered to a sink"

	SHIPPER_ERRORS      = "shipper_errors_total"
	SHIPPER_ERRORS_HELP = "errors generated in a log shipper component"

	SHIPPER_QUEUE_DEPTH      = "shipper_queue_depth"
	SHIPPER_QUEUE_DEPTH_HELP = "the number of records waiting in the pipeline queue"

	SHIPPER_BATCH_SIZE      = "shipper_batch_size"
	SHIPPER_BATCH_SIZE_HELP = "the number of records submitted in one sink send"

	SHIPPER_SEND_DURATION_SECONDS      = "shipper_send_duration_seconds"
	SHIPPER_SEND_DURATION_SECONDS_HELP = "time spent waiting for a sink to acknowledge a send"
)

var (
	// Instantiations of prometheus metric collectors
	LinesReadCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: SHIPPER_LINES_READ,
		Help: SHIPPER_LINES_READ_HELP,
	}, []string{
		PROM_LABEL_SOURCE,
	})

	RecordsEnqueuedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: SHIPPER_RECORDS_ENQUEUED,
		Help: SHIPPER_RECORDS_ENQUEUED_HELP,
	}, []string{
		PROM_LABEL_SOURCE,
	})

	RecordsDeliveredCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: SHIPPER_RECORDS_DELIVERED,
		Help: SHIPPER_RECORDS_DELIVERED_HELP,
	}, []string{
		PROM_LABEL_SINK,
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: SHIPPER_ERRORS,
		Help: SHIPPER_ERRORS_HELP,
	}, []string{
		PROM_LABEL_COMPONENT,
		PROM_LABEL_STAGE,
		PROM_LABEL_MESSAGE,
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: SHIPPER_QUEUE_DEPTH,
		Help: SHIPPER_QUEUE_DEPTH_HELP,
	})

	BatchSizeHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    SHIPPER_BATCH_SIZE,
		Help:    SHIPPER_BATCH_SIZE_HELP,
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{
		PROM_LABEL_SINK,
	})

	SendDurationHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: SHIPPER_SEND_DURATION_SECONDS,
		Help: SHIPPER_SEND_DURATION_SECONDS_HELP,
	}, []string{
		PROM_LABEL_SINK,
		PROM_LABEL_STATUS,
	})
)

var once sync.Once
var reg *prometheus.Registry

// Initialize prometheus registry and collectors
func init() {
	// Create a new registry.
	reg = prometheus.NewRegistry()

	Register(LinesReadCounter)
	Register(RecordsEnqueuedCounter)
	Register(RecordsDeliveredCounter)
	Register(Errors)
	Register(QueueDepth)
	Register(BatchSizeHistogram)
	Register(SendDurationHistogram)
}

// Helper methods that wrap / simplify calling methods of underlying collectors
func Register(collector interface{}) {
	if reg != nil {
		reg.Register(collector.(prometheus.Collector))
	}
}

func IncCounter(counter *prometheus.CounterVec, lvs ...string) {
	counter.WithLabelValues(lvs...).Inc()
}

func AddCounter(counter *prometheus.CounterVec, increment float64, lvs ...string) {
	if increment > 0 {
		counter.WithLabelValues(lvs...).Add(increment)
	}
}

func Observe(histogram *prometheus.HistogramVec, val float64, lvs ...string) {
	histogram.WithLabelValues(lvs...).Observe(val)
}

// isMonitoringEnabled checks to see if we're running in k8s or if env var SHIPPER_ENABLE_MONITORING exists
func isMonitoringEnabled() bool {
	if _, found := os.LookupEnv("KUBERNETES_PORT"); found {
		return true
	}

	if _, found := os.LookupEnv("SHIPPER_ENABLE_MONITORING"); found {
		return true
	}
	return false
}

// Start() needs to be called once by the process that wants metrics to be exposed
func Start() {
	// Ensure we only start the monitor one time...
	once.Do(func() {

		// Monitoring is disabled by default when not running in k8s. To enable monitoring when not running in k8s,
		// be sure to set env var SHIPPER_ENABLE_MONITORING
		if !isMonitoringEnabled() {
			logging.Debugf("Monitoring is disabled")
			return
		}
		logging.Debugf("Initializing ..")

		// Add Go module build info.
		reg.MustRegister(collectors.NewBuildInfoCollector())
		reg.MustRegister(collectors.NewGoCollector())

		mux := http.NewServeMux()

		// Expose the registered metrics via HTTP.
		mux.Handle("/metrics", promhttp.HandlerFor(
			reg,
			promhttp.HandlerOpts{
				// Opt into OpenMetrics to support exemplars.
				EnableOpenMetrics: true,
			},
		))

		// liveness + readiness probes
		mux.HandleFunc("/ping", func(rw http.ResponseWriter, req *http.Request) {
			rw.WriteHeader(http.StatusOK)
		})

		go func() {
			srv := &http.Server{
				Addr:         fmt.Sprintf(":%v", cli.Args.Port),
				Handler:      mux,
				ReadTimeout:  60 * time.Second,
				WriteTimeout: 60 * time.Second,
			}
			logging.Fatal(srv.ListenAndServe())
		}()
	})
}
