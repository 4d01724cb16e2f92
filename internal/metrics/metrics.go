package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	eventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "connmon_events_total",
			Help: "Number of connection records decoded from the event channel.",
		},
	)

	lostTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "connmon_events_lost_total",
			Help: "Number of connection records dropped because the event channel was full.",
		},
	)

	duplicatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "connmon_events_duplicate_total",
			Help: "Number of connection records suppressed as duplicates of the same 4-tuple.",
		},
	)

	decodeErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "connmon_decode_errors_total",
			Help: "Number of samples that could not be decoded as connection records.",
		},
	)

	hooksAttached = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "connmon_hook_attached",
			Help: "Whether a kernel hook is attached (1) or not (0), labelled by hook.",
		},
		[]string{"hook"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(eventsTotal, lostTotal, duplicatesTotal, decodeErrorsTotal, hooksAttached)
}

func IncEvent() {
	eventsTotal.Inc()
}

func AddLost(n uint64) {
	lostTotal.Add(float64(n))
}

func IncDuplicate() {
	duplicatesTotal.Inc()
}

func IncDecodeError() {
	decodeErrorsTotal.Inc()
}

func SetHookAttached(hook string, attached bool) {
	v := 0.0
	if attached {
		v = 1
	}
	hooksAttached.WithLabelValues(hook).Set(v)
}
