// Package telemetry turns finished registration attempts into metrics and
// events. Each type here implements registration.Recorder:
//
//   - Metrics counts attempts and durations for Prometheus (/metrics)
//   - InfluxRecorder writes one point per attempt to InfluxDB
//   - MQTTPublisher announces successful registrations on the broker
//
// Email addresses are never exported by any of them.
package telemetry
