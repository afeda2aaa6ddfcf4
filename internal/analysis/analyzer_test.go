package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/anodyne74/obdclient/internal/capture"
	"github.com/anodyne74/obdclient/internal/dtcdecode"
	"github.com/anodyne74/obdclient/internal/pidreg"
)

func sample(t *testing.T, pid byte, value float64, at time.Time) pidreg.PidSample {
	t.Helper()
	def, ok := pidreg.Lookup(mode01, pid)
	if !ok {
		t.Fatalf("pid $%02X not registered", pid)
	}
	return pidreg.PidSample{Definition: def, Value: value, Timestamp: at}
}

func TestAnalyzer(t *testing.T) {
	now := time.Now()
	session := &capture.Session{
		StartTime: now,
		EndTime:   now.Add(10 * time.Second),
		Vehicle:   dtcdecode.VehicleInfo{VIN: "TEST12345"},
		Frames: []capture.Frame{
			{
				Type:      "OBD2",
				Timestamp: now,
				Samples: []pidreg.PidSample{
					sample(t, pidRPM, 800.0, now),
					sample(t, pidSpeed, 0.0, now),
					sample(t, pidCoolantTemp, 90.0, now),
				},
			},
			{
				Type:      "OBD2",
				Timestamp: now.Add(2 * time.Second),
				Samples: []pidreg.PidSample{
					sample(t, pidRPM, 2500.0, now.Add(2*time.Second)),
					sample(t, pidSpeed, 20.0, now.Add(2*time.Second)),
					sample(t, pidCoolantTemp, 92.0, now.Add(2*time.Second)),
				},
			},
			{
				Type:      "OBD2",
				Timestamp: now.Add(4 * time.Second),
				Samples: []pidreg.PidSample{
					sample(t, pidRPM, 2000.0, now.Add(4*time.Second)),
					sample(t, pidSpeed, 60.0, now.Add(4*time.Second)),
					sample(t, pidCoolantTemp, 95.0, now.Add(4*time.Second)),
				},
			},
			{
				Type:      "OBD2",
				Timestamp: now.Add(6 * time.Second),
				Samples: []pidreg.PidSample{
					sample(t, pidRPM, 1500.0, now.Add(6*time.Second)),
					sample(t, pidSpeed, 30.0, now.Add(6*time.Second)),
					sample(t, pidCoolantTemp, 93.0, now.Add(6*time.Second)),
				},
			},
			{
				Type:      "CAN",
				Timestamp: now.Add(8 * time.Second),
				ID:        0x7E8,
				Data:      []byte{0x02, 0x41, 0x0D, 0x45, 0x00, 0x00, 0x00, 0x00},
			},
		},
	}

	analyzer := NewAnalyzer(session, DefaultOptions())

	analysis, err := analyzer.Analyze()
	if err != nil {
		t.Fatalf("Analysis failed: %v", err)
	}

	if analysis.SessionInfo.Duration != 10*time.Second {
		t.Errorf("Expected duration 10s, got %v", analysis.SessionInfo.Duration)
	}
	if analysis.SessionInfo.TotalFrames != 5 {
		t.Errorf("Expected 5 frames, got %d", analysis.SessionInfo.TotalFrames)
	}

	if analysis.Performance.Speed.Max != 60.0 {
		t.Errorf("Expected max speed 60.0, got %f", analysis.Performance.Speed.Max)
	}
	if analysis.Performance.RPM.Min != 800.0 {
		t.Errorf("Expected min RPM 800.0, got %f", analysis.Performance.RPM.Min)
	}

	if analysis.DrivingBehavior.RapidAccel == 0 {
		t.Error("Expected at least one rapid acceleration")
	}
	if analysis.DrivingBehavior.RapidDecel == 0 {
		t.Error("Expected at least one rapid deceleration")
	}

	if analysis.CANActivity.UniqueIDs != 1 {
		t.Errorf("Expected 1 unique CAN ID, got %d", analysis.CANActivity.UniqueIDs)
	}
}

func TestCalculateStats(t *testing.T) {
	values := []float64{1.0, 2.0, 3.0, 4.0, 5.0}
	stats := CalculateStats(values)

	expected := Stats{
		Min:    1.0,
		Max:    5.0,
		Mean:   3.0,
		StdDev: 1.5811388300841898,
	}

	if stats.Min != expected.Min {
		t.Errorf("Expected min %f, got %f", expected.Min, stats.Min)
	}
	if stats.Max != expected.Max {
		t.Errorf("Expected max %f, got %f", expected.Max, stats.Max)
	}
	if stats.Mean != expected.Mean {
		t.Errorf("Expected mean %f, got %f", expected.Mean, stats.Mean)
	}
	if math.Abs(stats.StdDev-expected.StdDev) > 0.0001 {
		t.Errorf("Expected stddev %f, got %f", expected.StdDev, stats.StdDev)
	}
}
