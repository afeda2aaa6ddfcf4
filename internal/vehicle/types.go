package vehicle

import (
	"time"

	"github.com/anodyne74/obdclient/internal/dtcdecode"
	"github.com/anodyne74/obdclient/internal/pidreg"
)

const mode01 = 0x01

// Standard mode-01 PIDs the anomaly detector and dashboards key off.
const (
	PidEngineLoad  byte = 0x04
	PidCoolantTemp byte = 0x05
	PidRPM         byte = 0x0C
	PidSpeed       byte = 0x0D
	PidThrottle    byte = 0x11
	PidFuelLevel   byte = 0x2F
	PidOdometer    byte = 0xA6
)

// Vehicle represents a connected vehicle with its capabilities and state.
type Vehicle struct {
	VIN          string
	Make         string
	Model        string
	Year         int
	Info         dtcdecode.VehicleInfo
	Capabilities Capabilities
	State        State
	Maintenance  Maintenance
	LastUpdated  time.Time
}

// Capabilities represents what the vehicle can report and control, derived
// from the mode-01 support bitmap probe.
type Capabilities struct {
	SupportedPIDs   map[byte]bool // mode-01 PIDs confirmed supported
	ProtocolVersion string
	HasCAN          bool
	ExtendedPIDs    bool
	RealTimePIDs    []byte
	ControlSystems  []string
}

// State is the vehicle's most recently observed snapshot: the latest sample
// for every PID read this cycle, plus the trouble codes read in the most
// recent diagnostic pass.
type State struct {
	EngineRunning  bool
	Samples        []pidreg.PidSample
	Dtcs           []dtcdecode.Dtc
	LastDiagnostic time.Time
}

// Sample returns the most recent sample for (service, pid), if any.
func (s State) Sample(service, pid byte) (pidreg.PidSample, bool) {
	for _, smp := range s.Samples {
		if smp.Definition != nil && smp.Definition.Service == service && smp.Definition.PID == pid {
			return smp, true
		}
	}
	return pidreg.PidSample{}, false
}

// Value returns the decoded physical value for (service, pid), if known.
func (s State) Value(service, pid byte) (float64, bool) {
	smp, ok := s.Sample(service, pid)
	if !ok {
		return 0, false
	}
	return smp.Value, true
}

// Merge folds freshly read samples into the state, replacing any stale
// sample for the same (service, pid) pair.
func (s *State) Merge(samples []pidreg.PidSample) {
	for _, fresh := range samples {
		if fresh.Definition == nil {
			continue
		}
		replaced := false
		for i, existing := range s.Samples {
			if existing.Definition != nil &&
				existing.Definition.Service == fresh.Definition.Service &&
				existing.Definition.PID == fresh.Definition.PID {
				s.Samples[i] = fresh
				replaced = true
				break
			}
		}
		if !replaced {
			s.Samples = append(s.Samples, fresh)
		}
	}
}

// Profile represents vehicle-specific configurations and thresholds.
type Profile struct {
	MaxRPM           float64
	RedlineRPM       float64
	IdleRPM          float64
	OptimalShiftRPM  float64
	FuelType         string
	TransmissionType string
	GearRatios       []float64
	WeightKg         float64
	EngineSize       float64 // in liters
	CustomThresholds map[byte]float64 // mode-01 PID -> warning threshold
}

// Alert represents a vehicle alert condition.
type Alert struct {
	Type      string
	Severity  string // "info", "warning", "critical"
	Message   string
	Timestamp time.Time
	Value     float64
	Threshold float64
	Pids      []byte // mode-01 PIDs that triggered the alert
}
