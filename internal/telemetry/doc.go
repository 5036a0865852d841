// Package telemetry exports coordinator link health.
//
// The Reporter writes a statistics snapshot to InfluxDB on a fixed
// interval and one point per lifecycle event. RegisterMetrics exposes the
// same counters to Prometheus; values are read at scrape time, so nothing
// is cached between the two outputs.
package telemetry
