package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// The write methods implement the engine's Telemetry interface.
// Suppression never applies here; every state transition is recorded.

// WriteRelayState records one relay transition.
func (c *Client) WriteRelayState(deviceID string, relay int, on bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"relay_state",
		map[string]string{
			"device_id": deviceID,
			"relay":     strconv.Itoa(relay),
		},
		map[string]interface{}{
			"state": boolValue(on),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteOnlineState records a connectivity transition.
func (c *Client) WriteOnlineState(deviceID string, online bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_online",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"online": boolValue(online),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// boolValue stores booleans as 0/1 so dashboards can graph them.
func boolValue(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
