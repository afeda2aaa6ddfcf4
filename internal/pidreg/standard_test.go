package pidreg

import (
	"testing"
	"time"
)

func TestRpmDecode(t *testing.T) {
	def, ok := Lookup(0x01, 0x0C)
	if !ok {
		t.Fatal("PID $0C not registered")
	}
	sample, err := NewSample(def, []byte{0x1A, 0xF8}, 0x7E8, time.Now())
	if err != nil {
		t.Fatalf("NewSample: %v", err)
	}
	if sample.Value != 1726.0 {
		t.Errorf("RPM = %v, want 1726.0", sample.Value)
	}
	if sample.Status != 0 {
		t.Errorf("status = %v, want Normal", sample.Status)
	}
}

func TestCoolantCritical(t *testing.T) {
	def, ok := Lookup(0x01, 0x05)
	if !ok {
		t.Fatal("PID $05 not registered")
	}
	sample, err := NewSample(def, []byte{0x96}, 0x7E8, time.Now())
	if err != nil {
		t.Fatalf("NewSample: %v", err)
	}
	if sample.Value != 110 {
		t.Errorf("coolant = %v, want 110", sample.Value)
	}
	if sample.Status.String() != "critical" {
		t.Errorf("status = %v, want critical", sample.Status)
	}
}

func TestNewSampleRejectsWrongWidth(t *testing.T) {
	def, _ := Lookup(0x01, 0x0C)
	_, err := NewSample(def, []byte{0x00}, 0x7E8, time.Now())
	if err == nil {
		t.Fatal("expected error for wrong payload width")
	}
}

func TestStandardPidsDecodeWithinRange(t *testing.T) {
	for _, k := range []Key{
		{0x01, 0x04}, {0x01, 0x05}, {0x01, 0x06}, {0x01, 0x0A}, {0x01, 0x0B},
		{0x01, 0x0C}, {0x01, 0x0D}, {0x01, 0x0E}, {0x01, 0x0F}, {0x01, 0x10},
		{0x01, 0x11}, {0x01, 0x1F}, {0x01, 0x21}, {0x01, 0x2F}, {0x01, 0x33},
		{0x01, 0x3C}, {0x01, 0x42}, {0x01, 0x46}, {0x01, 0x5C}, {0x01, 0x5E},
	} {
		def, ok := Lookup(k.Service, k.PID)
		if !ok {
			t.Fatalf("missing definition for %v", k)
		}
		zero := make([]byte, def.PayloadBytes)
		max := make([]byte, def.PayloadBytes)
		for i := range max {
			max[i] = 0xFF
		}
		for _, raw := range [][]byte{zero, max} {
			v := def.Decode(raw)
			const eps = 1e-6
			if v < def.Min-eps || v > def.Max+eps {
				t.Errorf("%s: decode(%v) = %v, out of range [%v,%v]", def.Name, raw, v, def.Min, def.Max)
			}
		}
	}
}

func TestConversionRoundTrip(t *testing.T) {
	c, ok := LookupConversion("°C", "°F")
	if !ok {
		t.Fatal("missing °C->°F conversion")
	}
	f := c.Apply(100)
	if f != 212 {
		t.Errorf("100°C = %v°F, want 212", f)
	}
	if back := c.Reverse(f); back != 100 {
		t.Errorf("reverse(%v) = %v, want 100", f, back)
	}
}
