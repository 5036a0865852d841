package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by edgelink.
const (
	MeasurementLink      = "edgelink_link"
	MeasurementLinkEvent = "edgelink_link_event"
)

// LinkSample is one snapshot of coordinator link statistics.
type LinkSample struct {
	Site        string
	TransportID string
	State       string

	// Fields holds the numeric counters and gauges of the snapshot.
	Fields map[string]any

	Time time.Time
}

// LinkEvent is a single lifecycle transition of the link.
type LinkEvent struct {
	Site        string
	TransportID string
	Event       string
	Attempt     int
	Err         string
	Time        time.Time
}

// WriteLinkSample queues a statistics snapshot. Non-blocking; dropped
// when not connected.
func (c *Client) WriteLinkSample(s LinkSample) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(linkSamplePoint(s))
}

// WriteLinkEvent queues a lifecycle event point.
func (c *Client) WriteLinkEvent(e LinkEvent) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(linkEventPoint(e))
}

// WritePoint queues a custom point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func linkSamplePoint(s LinkSample) *write.Point {
	tags := map[string]string{
		"site":         s.Site,
		"transport_id": s.TransportID,
	}
	fields := make(map[string]any, len(s.Fields)+1)
	for k, v := range s.Fields {
		fields[k] = v
	}
	// State is a field so a gap in the series is never confused with a
	// state change.
	fields["state"] = s.State

	return write.NewPoint(MeasurementLink, tags, fields, stamp(s.Time))
}

func linkEventPoint(e LinkEvent) *write.Point {
	tags := map[string]string{
		"site":         e.Site,
		"transport_id": e.TransportID,
		"event":        e.Event,
	}
	fields := map[string]any{"attempt": e.Attempt}
	if e.Err != "" {
		fields["error"] = e.Err
	}
	return write.NewPoint(MeasurementLinkEvent, tags, fields, stamp(e.Time))
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
