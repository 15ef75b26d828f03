// Package bridge implements the device state synchronization and
// notification-suppression engine.
//
// The engine sits between the MQTT transport and the presentation
// layers (chat bot, dashboard). Inbound device events flow through a
// single parsed-event boundary into handlers that mutate the registry;
// operator commands flow out through the control paths, which mark
// suppression windows before publishing so the confirming echoes do
// not come back as notifications.
//
// Three timing windows govern behaviour (all configurable):
//   - sync delay (500 ms): wait before sending a sync request to a
//     freshly connected device, so it has subscribed to its command
//     topic
//   - sync window (1000 ms): echoes after a sync are replays, not news
//   - control window (2000 ms): echoes confirming an operator command
//     are expected, not news
//
// Suppression affects only chat notifications. The registry and the
// dashboard channel see every echo.
package bridge
