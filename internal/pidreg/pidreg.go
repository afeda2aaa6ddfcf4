// Package pidreg is the process-wide, append-only registry mapping a
// (service, PID) pair to its decoding formula, physical unit, value range,
// warning/critical thresholds, and bit-layout. Formulas are pure functions
// over a byte slice of the definition's declared payload width.
package pidreg

import (
	"fmt"
	"time"

	"github.com/anodyne74/obdclient/internal/obdtypes"
)

// Formula decodes a byte slice (always exactly PayloadBytes long) into a
// physical scalar value.
type Formula func(b []byte) float64

// Direction says which side of a threshold is unsafe.
type Direction int

const (
	DirectionAbove Direction = iota
	DirectionBelow
)

// Thresholds gates the derived ValueStatus of a PidSample.
type Thresholds struct {
	Direction   Direction
	Warning     float64
	HasCritical bool
	Critical    float64
}

// BitFlag names one bit of a bit-encoded PID.
type BitFlag struct {
	ByteIndex  int
	BitIndex   uint
	Name       string
	ActiveHigh bool
}

// Key uniquely identifies a PidDefinition.
type Key struct {
	Service byte
	PID     byte
}

// PidDefinition is immutable once registered.
type PidDefinition struct {
	Service      byte
	PID          byte
	Name         string
	PayloadBytes int
	Unit         string
	Min, Max     float64
	Decode       Formula
	Thresholds   *Thresholds
	Category     string
	Bits         []BitFlag
}

func (d *PidDefinition) Key() Key {
	return Key{Service: d.Service, PID: d.PID}
}

// ActiveFlags decodes the set of active bit-encoded flags for a bit-layout
// PidDefinition.
func (d *PidDefinition) ActiveFlags(raw []byte) []string {
	var out []string
	for _, f := range d.Bits {
		if f.ByteIndex >= len(raw) {
			continue
		}
		bit := (raw[f.ByteIndex]>>f.BitIndex)&0x01 == 1
		if bit == f.ActiveHigh {
			out = append(out, f.Name)
		}
	}
	return out
}

var registry = map[Key]*PidDefinition{}

// Register adds a definition to the process-wide table. It panics on a
// duplicate (service, pid) key, since the table is append-only by design.
func Register(d PidDefinition) *PidDefinition {
	k := d.Key()
	if _, exists := registry[k]; exists {
		panic(fmt.Sprintf("pidreg: duplicate registration for service $%02X pid $%02X", d.Service, d.PID))
	}
	def := d
	registry[k] = &def
	return &def
}

// Lookup finds a definition by (service, pid).
func Lookup(service, pid byte) (*PidDefinition, bool) {
	d, ok := registry[Key{Service: service, PID: pid}]
	return d, ok
}

// DeriveStatus computes the ValueStatus of a decoded value against a
// definition's thresholds. A definition without thresholds is always Normal.
func DeriveStatus(d *PidDefinition, value float64) obdtypes.ValueStatus {
	t := d.Thresholds
	if t == nil {
		return obdtypes.StatusNormal
	}
	switch t.Direction {
	case DirectionAbove:
		if t.HasCritical && value >= t.Critical {
			return obdtypes.StatusCritical
		}
		if value >= t.Warning {
			return obdtypes.StatusWarning
		}
	case DirectionBelow:
		if t.HasCritical && value <= t.Critical {
			return obdtypes.StatusCritical
		}
		if value <= t.Warning {
			return obdtypes.StatusWarning
		}
	}
	return obdtypes.StatusNormal
}

// PidSample is a single decoded reading.
type PidSample struct {
	Definition *PidDefinition
	Value      float64
	Raw        []byte
	Timestamp  time.Time
	EcuAddress uint32
	Status     obdtypes.ValueStatus
}

// NewSample decodes raw against def, validating the payload width invariant
// (a PidSample's raw-byte length must equal definition.PayloadBytes).
func NewSample(def *PidDefinition, raw []byte, ecuAddress uint32, now time.Time) (PidSample, error) {
	if len(raw) != def.PayloadBytes {
		return PidSample{}, obdtypes.ParseError(fmt.Sprintf(
			"pid $%02X: expected %d payload bytes, got %d", def.PID, def.PayloadBytes, len(raw)))
	}
	value := def.Decode(raw)
	return PidSample{
		Definition: def,
		Value:      value,
		Raw:        append([]byte(nil), raw...),
		Timestamp:  now,
		EcuAddress: ecuAddress,
		Status:     DeriveStatus(def, value),
	}, nil
}

// Stale reports whether the sample is older than budget relative to now.
func (s PidSample) Stale(budget time.Duration, now time.Time) bool {
	return now.Sub(s.Timestamp) > budget
}

// Conversion is an alternative-unit conversion tuple: v' = v*Factor + Offset.
type Conversion struct {
	From, To string
	Factor   float64
	Offset   float64
}

// Apply converts a value in Conversion.From units to Conversion.To units.
func (c Conversion) Apply(v float64) float64 {
	return v*c.Factor + c.Offset
}

// Reverse converts a value in Conversion.To units back to Conversion.From.
func (c Conversion) Reverse(v float64) float64 {
	return (v - c.Offset) / c.Factor
}

var conversions = map[[2]string]Conversion{}

// RegisterConversion adds a unit conversion tuple to the process-wide table.
func RegisterConversion(c Conversion) {
	conversions[[2]string{c.From, c.To}] = c
}

// LookupConversion finds a registered conversion between two units.
func LookupConversion(from, to string) (Conversion, bool) {
	c, ok := conversions[[2]string{from, to}]
	return c, ok
}
