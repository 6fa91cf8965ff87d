package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)
	m.ObserveSlotLatency("hit", 0.01)
	m.ObserveConflict("weekly_range")
	m.ObserveReschedule("success")
	m.ObserveReschedule("past_cutoff")
	m.ObserveSync("push", "created", 3)
	m.ObserveReconcile("corrected", 1)
}

func TestBookingMetricsZeroCountNoOp(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)
	m.ObserveSync("pull", "created", 0)
	m.ObserveReconcile("flagged", -1)
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveSlotLatency("miss", 0.1)
	m.ObserveConflict("full_day")
	m.ObserveReschedule("slot_unavailable")
	m.ObserveSync("push", "failed", 1)
	m.ObserveReconcile("corrected", 2)
}
