// Package influxdb writes registrar time-series data to InfluxDB v2.
//
// The registrar records one point per registration attempt so operators can
// chart success rates and device read times per port and chip. Points are
// written through the non-blocking, batched write API; write failures are
// reported asynchronously through SetOnError.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePoint("registration_attempts", tags, fields, time.Now())
package influxdb
