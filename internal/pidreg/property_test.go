package pidreg

import (
	"testing"

	"pgregory.net/rapid"
)

// TestStandardPidsDeterministicAndInRange checks the quantified invariant
// from the testable properties section: for every standard PidDefinition
// and every byte slice of the right width, decode is deterministic and the
// result falls within [min, max] (within floating tolerance).
func TestStandardPidsDeterministicAndInRange(t *testing.T) {
	defs := make([]*PidDefinition, 0, len(registry))
	for _, d := range registry {
		if d.Category == "support-bitmap" || d.Category == "diagnostic" && d.PID == 0x01 {
			continue // bit-encoded, not a scalar range claim
		}
		defs = append(defs, d)
	}

	rapid.Check(t, func(rt *rapid.T) {
		idx := rapid.IntRange(0, len(defs)-1).Draw(rt, "defIdx")
		def := defs[idx]
		raw := rapid.SliceOfN(rapid.Byte(), def.PayloadBytes, def.PayloadBytes).Draw(rt, "raw")

		v1 := def.Decode(raw)
		v2 := def.Decode(raw)
		if v1 != v2 {
			t.Fatalf("%s: decode not deterministic: %v != %v", def.Name, v1, v2)
		}

		const eps = 1e-6
		if v1 < def.Min-eps || v1 > def.Max+eps {
			t.Fatalf("%s: decode(%v) = %v, out of range [%v,%v]", def.Name, raw, v1, def.Min, def.Max)
		}
	})
}
