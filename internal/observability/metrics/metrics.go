package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking core.
type BookingMetrics struct {
	slotLatency      *prometheus.HistogramVec
	conflictsTotal   *prometheus.CounterVec
	reschedulesTotal *prometheus.CounterVec
	syncTotal        *prometheus.CounterVec
	reconcileTotal   *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		slotLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "serenbook",
			Subsystem: "scheduling",
			Name:      "slot_generation_seconds",
			Help:      "Latency of slot list generation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"cache"}),
		conflictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "serenbook",
			Subsystem: "availability",
			Name:      "conflicts_total",
			Help:      "Total block writes rejected for overlap",
		}, []string{"block_type"}),
		reschedulesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "serenbook",
			Subsystem: "scheduling",
			Name:      "reschedules_total",
			Help:      "Total reschedule attempts by outcome",
		}, []string{"result"}),
		syncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "serenbook",
			Subsystem: "calendarsync",
			Name:      "events_total",
			Help:      "Total calendar sync operations",
		}, []string{"direction", "outcome"}),
		reconcileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "serenbook",
			Subsystem: "payments",
			Name:      "reconcile_total",
			Help:      "Total payment reconciliation outcomes",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.slotLatency, m.conflictsTotal, m.reschedulesTotal, m.syncTotal, m.reconcileTotal)
	return m
}

func (m *BookingMetrics) ObserveSlotLatency(cacheStatus string, seconds float64) {
	if m == nil {
		return
	}
	m.slotLatency.WithLabelValues(cacheStatus).Observe(seconds)
}

func (m *BookingMetrics) ObserveConflict(blockType string) {
	if m == nil {
		return
	}
	m.conflictsTotal.WithLabelValues(blockType).Inc()
}

// ObserveReschedule records a reschedule outcome: "success" or the rejection
// reason code.
func (m *BookingMetrics) ObserveReschedule(result string) {
	if m == nil {
		return
	}
	m.reschedulesTotal.WithLabelValues(result).Inc()
}

func (m *BookingMetrics) ObserveSync(direction, outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.syncTotal.WithLabelValues(direction, outcome).Add(float64(count))
}

func (m *BookingMetrics) ObserveReconcile(outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.reconcileTotal.WithLabelValues(outcome).Add(float64(count))
}
