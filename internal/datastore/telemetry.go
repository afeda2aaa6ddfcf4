package datastore

import (
	"time"

	"github.com/anodyne74/obdclient/internal/pidreg"
)

// NewTelemetrySample flattens a decoded PID sample into its storage
// projection.
func NewTelemetrySample(vin string, s pidreg.PidSample) TelemetrySample {
	name, unit := "", ""
	var service, pid byte
	if s.Definition != nil {
		name = s.Definition.Name
		unit = s.Definition.Unit
		service = s.Definition.Service
		pid = s.Definition.PID
	}
	return TelemetrySample{
		Timestamp: s.Timestamp,
		VIN:       vin,
		Service:   service,
		PID:       pid,
		Name:      name,
		Unit:      unit,
		Value:     s.Value,
		Status:    s.Status.String(),
	}
}

// TelemetrySamplesFrom converts a batch of decoded PID reads into their
// storage projection, stamping them all with now if their own timestamp is
// zero.
func TelemetrySamplesFrom(vin string, samples []pidreg.PidSample, now time.Time) []TelemetrySample {
	out := make([]TelemetrySample, 0, len(samples))
	for _, s := range samples {
		if s.Timestamp.IsZero() {
			s.Timestamp = now
		}
		out = append(out, NewTelemetrySample(vin, s))
	}
	return out
}
