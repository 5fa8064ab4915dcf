// Package influxdb provides InfluxDB connectivity for vacuum telemetry.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health checks.
//
// Each state publish can be recorded as a vacuum_state point: battery
// level, consumable remaining life and reachability as fields, the device
// id and activity as tags.
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteVacuumState("hallway", "docked", map[string]any{"battery": 100}, time.Now())
//
// Write errors arrive asynchronously through SetOnError.
package influxdb
