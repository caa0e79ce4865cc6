package core

import (
	"time"

	"github.com/deskl0/freqrelay/internal/freqbus"
)

// HealthStatus is the aggregated health report published on the health
// topic and logged on demand.
type HealthStatus struct {
	Status         string        `json:"status"` // "healthy", "degraded", "failsafe"
	State          string        `json:"state"`
	UptimeSeconds  int64         `json:"uptime_seconds"`
	CurrentHz      float64       `json:"current_hz"`
	LoadStatus     uint16        `json:"load_status"`
	Fault          bool          `json:"fault"`
	OverrideActive bool          `json:"override_active"`
	SampleStats    freqbus.Stats `json:"sample_stats"`
	MQTTConnected  bool          `json:"mqtt_connected"`
	HistoryLen     int           `json:"history_len"`
}

// Health returns the relay's current health status.
func (r *Relay) Health() HealthStatus {
	snap := r.state.Snapshot()
	dec := r.state.Decision()
	act := r.state.ActuatorState()

	h := HealthStatus{
		Status:         "healthy",
		State:          r.state.SystemState().String(),
		UptimeSeconds:  int64(time.Since(r.started).Seconds()),
		CurrentHz:      snap.Current,
		LoadStatus:     uint16(dec.Load),
		Fault:          act.Fault,
		OverrideActive: r.state.OverrideActive(),
		SampleStats:    r.samples.Stats(),
		HistoryLen:     r.history.Len(),
	}

	if r.emitter != nil {
		h.MQTTConnected = r.emitter.Connected()
	}

	switch {
	case r.state.FailsafeActive():
		h.Status = "failsafe"
	case r.emitter != nil && !h.MQTTConnected:
		h.Status = "degraded"
	}

	return h
}
