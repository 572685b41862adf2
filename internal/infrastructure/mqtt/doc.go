// Package mqtt publishes registrar events to an MQTT broker.
//
// The registrar only publishes: delivered registrations go to
// onehud/registration/{mac} and the process announces itself on
// onehud/registrar/status (retained, with a Last Will for crashes).
//
// # Connection
//
// Connect blocks until the broker accepts the session or the connect
// timeout expires. paho then reconnects in the background with the
// configured delay bounds; Publish fails fast with ErrNotConnected while
// the link is down rather than queueing.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Publish(mqtt.Topics{}.Registration(mac), payload, 1, false)
package mqtt
