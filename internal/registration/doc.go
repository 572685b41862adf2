// Package registration runs the OneHUD device registration workflow.
//
// A Controller takes an email address through a fixed sequence:
//
//	idle → validating → acquiring_identifier → submitting → succeeded | failed
//
// It validates the address, reads the device's MAC over a serial transport
// it acquires, opens and always closes, then delivers one notification
// carrying both. Success locks the controller for the rest of the session;
// a failure reports a localized reason and returns to idle so the user can
// start over, including a fresh device read.
//
// # Errors
//
// Submit returns nil or an *Error whose Kind is one of InvalidEmail,
// TransportUnavailable, DeviceReadError or DeliveryError. errors.Is matches
// the sentinels ErrInvalidEmail, ErrTransportUnavailable, ErrDeviceRead and
// ErrDelivery. Calls made while a run is in flight return ErrBusy; calls
// after a success return ErrLocked. Neither touches the device or network.
//
// # Observation
//
// Front ends subscribe with OnStatus to receive every status change.
// Recorders receive an Attempt once a run finishes (ledger, metrics, MQTT).
package registration
