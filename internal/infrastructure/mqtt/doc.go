// Package mqtt wraps paho.mqtt.golang as Hearth Core's outbound notification
// transport.
//
// The notification service (a separate process) subscribes to the
// hearth/notify/# topic tree and turns events into emails and push
// notifications. Core only publishes: guest-invite dispatches, security
// alerts, and its own online/offline status via Last Will and Testament.
//
// Delivery is best-effort. A dropped invite notification never fails the
// invite itself; the owner can re-share the token out of band.
package mqtt
