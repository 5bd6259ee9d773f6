// Package influxdb provides InfluxDB connectivity for wsn-deviceutils.
//
// It wraps the official influxdb-client-go v2 library and records two
// measurements:
//   - device_events: one point per observer event (tags kind, type, port, reference)
//   - frames: one point per captured frame (tags type, port; fields size, payload)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteFrame("telosb", "/dev/ttyUSB0", frame, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Writes are non-blocking and batched (batch_size, flush_interval);
// write errors are delivered to the SetOnError callback.
package influxdb
