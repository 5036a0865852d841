// Package influxdb records coordinator link telemetry in InfluxDB.
//
// It wraps influxdb-client-go v2 with connection management, a batched
// non-blocking writer and health checks. Two measurements are written:
//
//	edgelink_link        periodic statistics snapshots (counters, queue depth)
//	edgelink_link_event  one point per connect, disconnect or attempt
//
// Both are tagged with site and transport_id.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteLinkSample(influxdb.LinkSample{Site: "site-7", ...})
//
// Write errors are asynchronous and reported through SetOnError.
package influxdb
