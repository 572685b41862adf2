package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/onehud/registrar/internal/registration"
)

var started = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func succeeded() registration.Attempt {
	return registration.Attempt{
		ID:        "a-1",
		Email:     "user@example.com",
		DeviceID:  "AA:BB:CC:DD:EE:FF",
		Chip:      "ESP32-S3",
		Port:      "/dev/ttyUSB0",
		Outcome:   registration.OutcomeSucceeded,
		StartedAt: started,
		Duration:  2500 * time.Millisecond,
	}
}

func failed(kind registration.Kind) registration.Attempt {
	return registration.Attempt{
		ID:        "a-2",
		Email:     "user@example.com",
		Outcome:   registration.OutcomeFailed,
		Kind:      kind,
		StartedAt: started,
		Duration:  time.Second,
	}
}

// counterValue finds the attempts counter sample with the given labels.
func counterValue(t *testing.T, m *Metrics, outcome, kind string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != "onehud_registration_attempts_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			if labelsMatch(metric, map[string]string{"outcome": outcome, "kind": kind}) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	for _, lp := range m.GetLabel() {
		if v, ok := want[lp.GetName()]; ok && v != lp.GetValue() {
			return false
		}
	}
	return true
}

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()

	_ = m.Record(ctx, succeeded())
	_ = m.Record(ctx, failed(registration.DeviceReadError))
	_ = m.Record(ctx, failed(registration.DeviceReadError))
	_ = m.Record(ctx, failed(registration.DeliveryError))

	tests := []struct {
		outcome, kind string
		want          float64
	}{
		{"succeeded", "", 1},
		{"failed", "device_read", 2},
		{"failed", "delivery", 1},
		{"failed", "invalid_email", 0},
	}
	for _, tt := range tests {
		if got := counterValue(t, m, tt.outcome, tt.kind); got != tt.want {
			t.Errorf("attempts{outcome=%q,kind=%q} = %v, want %v", tt.outcome, tt.kind, got, tt.want)
		}
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	_ = m.Record(context.Background(), succeeded())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		"onehud_registration_attempts_total",
		"onehud_registration_duration_seconds_bucket",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("/metrics missing %s", want)
		}
	}
	if strings.Contains(string(body), "user@example.com") {
		t.Error("/metrics leaks email")
	}
}

type point struct {
	measurement string
	tags        map[string]string
	fields      map[string]any
	ts          time.Time
}

type fakeWriter struct{ points []point }

func (f *fakeWriter) WritePoint(m string, tags map[string]string, fields map[string]any, ts time.Time) {
	f.points = append(f.points, point{m, tags, fields, ts})
}

func TestInfluxRecorder(t *testing.T) {
	w := &fakeWriter{}
	r := NewInfluxRecorder(w)

	if err := r.Record(context.Background(), succeeded()); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := r.Record(context.Background(), failed(registration.DeliveryError)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if len(w.points) != 2 {
		t.Fatalf("points = %d, want 2", len(w.points))
	}

	ok := w.points[0]
	if ok.measurement != MeasurementAttempts || !ok.ts.Equal(started) {
		t.Errorf("point = %+v", ok)
	}
	if ok.tags["outcome"] != "succeeded" || ok.tags["chip"] != "ESP32-S3" {
		t.Errorf("tags = %v", ok.tags)
	}
	if _, has := ok.tags["kind"]; has {
		t.Error("successful point should not carry a kind tag")
	}
	if ok.fields["duration_ms"] != int64(2500) || ok.fields["success"] != 1 {
		t.Errorf("fields = %v", ok.fields)
	}

	bad := w.points[1]
	if bad.tags["kind"] != "delivery" || bad.fields["success"] != 0 {
		t.Errorf("failed point = %+v", bad)
	}
	for _, p := range w.points {
		for _, v := range p.fields {
			if v == "user@example.com" {
				t.Error("influx point leaks email")
			}
		}
	}
}

type fakePublisher struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
	calls    int
	err      error
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.calls++
	f.topic, f.payload, f.qos, f.retained = topic, payload, qos, retained
	return f.err
}

func (f *fakePublisher) QoS() byte { return 1 }

func TestMQTTPublisher(t *testing.T) {
	pub := &fakePublisher{}
	p := NewMQTTPublisher(pub)

	if err := p.Record(context.Background(), failed(registration.DeviceReadError)); err != nil {
		t.Fatalf("Record(failed) error = %v", err)
	}
	if pub.calls != 0 {
		t.Fatal("failed attempts must not be published")
	}

	if err := p.Record(context.Background(), succeeded()); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if pub.topic != "onehud/registration/aa-bb-cc-dd-ee-ff" {
		t.Errorf("topic = %q", pub.topic)
	}
	if pub.qos != 1 || pub.retained {
		t.Errorf("qos=%d retained=%v, want 1/false", pub.qos, pub.retained)
	}

	var ev map[string]any
	if err := json.Unmarshal(pub.payload, &ev); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if ev["device_id"] != "AA:BB:CC:DD:EE:FF" || ev["registered_at"] != "2026-03-01T09:00:02.5Z" {
		t.Errorf("payload = %v", ev)
	}
	if _, has := ev["email"]; has {
		t.Error("payload leaks email")
	}
}

func TestMQTTPublisher_Error(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	if err := NewMQTTPublisher(pub).Record(context.Background(), succeeded()); err == nil {
		t.Error("Record() should surface publish errors")
	}
}
