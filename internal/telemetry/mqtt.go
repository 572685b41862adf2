package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/onehud/registrar/internal/infrastructure/mqtt"
	"github.com/onehud/registrar/internal/registration"
)

// Publisher is the part of mqtt.Client the publisher needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	QoS() byte
}

// registrationEvent is the JSON payload announced for a delivered registration.
type registrationEvent struct {
	ID           string    `json:"id"`
	DeviceID     string    `json:"device_id"`
	Chip         string    `json:"chip,omitempty"`
	Port         string    `json:"port,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

// MQTTPublisher announces successful registrations on
// onehud/registration/{mac}. Failures are not published.
type MQTTPublisher struct {
	pub    Publisher
	topics mqtt.Topics
}

// NewMQTTPublisher wraps pub.
func NewMQTTPublisher(pub Publisher) *MQTTPublisher {
	return &MQTTPublisher{pub: pub}
}

// Record implements registration.Recorder.
func (p *MQTTPublisher) Record(_ context.Context, a registration.Attempt) error {
	if a.Outcome != registration.OutcomeSucceeded {
		return nil
	}

	payload, err := json.Marshal(registrationEvent{
		ID:           a.ID,
		DeviceID:     a.DeviceID,
		Chip:         a.Chip,
		Port:         a.Port,
		RegisteredAt: a.StartedAt.Add(a.Duration).UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding registration event: %w", err)
	}

	if err := p.pub.Publish(p.topics.Registration(a.DeviceID), payload, p.pub.QoS(), false); err != nil {
		return fmt.Errorf("publishing registration event: %w", err)
	}
	return nil
}
