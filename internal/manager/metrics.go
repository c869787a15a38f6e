package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llmd",
			Subsystem: "manager",
			Name:      "loads_total",
			Help:      "Provider load attempts by result",
		},
		[]string{"model", "result"},
	)

	unloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llmd",
			Subsystem: "manager",
			Name:      "unloads_total",
			Help:      "Provider unloads",
		},
		[]string{"model"},
	)

	switchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llmd",
			Subsystem: "manager",
			Name:      "switches_total",
			Help:      "SwitchTo calls by result",
		},
		[]string{"result"},
	)

	loadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "llmd",
			Subsystem: "manager",
			Name:      "load_duration_seconds",
			Help:      "Duration of provider loads in seconds",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 60, 300, 1200},
		},
		[]string{"model"},
	)

	currentModelGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "llmd",
			Subsystem: "manager",
			Name:      "current_model",
			Help:      "1 for the current model, 0 otherwise",
		},
		[]string{"model"},
	)

	downloadProgress = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "llmd",
			Subsystem: "manager",
			Name:      "download_progress_percent",
			Help:      "Weights download/load progress of hub models",
		},
		[]string{"model"},
	)

	streamsInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "llmd",
			Subsystem: "manager",
			Name:      "streams_inflight",
			Help:      "Open generation streams",
		},
		[]string{"model"},
	)
)

func init() {
	prometheus.MustRegister(loadsTotal, unloadsTotal, switchesTotal, loadDuration, currentModelGauge, downloadProgress, streamsInflight)
}
