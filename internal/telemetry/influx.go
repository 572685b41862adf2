package telemetry

import (
	"context"
	"time"

	"github.com/onehud/registrar/internal/registration"
)

// MeasurementAttempts is the InfluxDB measurement for attempts.
const MeasurementAttempts = "registration_attempts"

// PointWriter is the part of influxdb.Client the recorder needs.
type PointWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time)
}

// InfluxRecorder writes one point per finished attempt. Writes are batched
// by the client, so Record never blocks on the network.
type InfluxRecorder struct {
	w PointWriter
}

// NewInfluxRecorder wraps w.
func NewInfluxRecorder(w PointWriter) *InfluxRecorder {
	return &InfluxRecorder{w: w}
}

// Record implements registration.Recorder.
func (r *InfluxRecorder) Record(_ context.Context, a registration.Attempt) error {
	tags := map[string]string{
		"outcome": string(a.Outcome),
	}
	if a.Outcome == registration.OutcomeFailed {
		tags["kind"] = a.Kind.String()
	}
	if a.Chip != "" {
		tags["chip"] = a.Chip
	}

	success := 0
	if a.Outcome == registration.OutcomeSucceeded {
		success = 1
	}
	fields := map[string]any{
		"duration_ms": a.Duration.Milliseconds(),
		"success":     success,
	}
	if a.DeviceID != "" {
		fields["device_id"] = a.DeviceID
	}

	r.w.WritePoint(MeasurementAttempts, tags, fields, a.StartedAt)
	return nil
}
