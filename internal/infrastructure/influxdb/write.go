package influxdb

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// MeasurementVacuumState is the measurement vacuum state points are written to.
const MeasurementVacuumState = "vacuum_state"

// WriteVacuumState queues one vacuum state sample tagged with the device
// id and, when known, the activity.
//
// Fields the device has not reported must be left out of fields rather
// than written as zero. A sample with no fields is dropped.
//
//	client.WriteVacuumState("hallway", "cleaning", map[string]any{"battery": 81}, time.Now())
func (c *Client) WriteVacuumState(deviceID, activity string, fields map[string]any, ts time.Time) {
	if len(fields) == 0 || !c.IsConnected() {
		return
	}

	point := influxdb2.NewPointWithMeasurement(MeasurementVacuumState).
		AddTag("device_id", deviceID).
		SetTime(ts)
	if activity != "" {
		point.AddTag("activity", activity)
	}
	for name, value := range fields {
		point.AddField(name, value)
	}

	c.writeAPI.WritePoint(point)
}
