// Package influxdb records relay and connectivity transitions in a
// time-series backend, wrapping the official influxdb-client-go v2
// library.
//
// Telemetry is optional: Connect returns ErrDisabled when switched off
// in configuration and the bridge runs without it. Writes are batched
// and non-blocking, so a slow or absent backend never delays event
// handling.
package influxdb
