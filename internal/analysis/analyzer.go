package analysis

import (
	"fmt"
	"math"
	"time"

	"github.com/anodyne74/obdclient/internal/capture"
)

// Mode-01 PIDs this package reads out of a frame's samples. Duplicated from
// the vehicle package's constants (not imported, to avoid an analysis <->
// vehicle import cycle: vehicle.Manager drives Analyzer).
const (
	mode01         = 0x01
	pidCoolantTemp = 0x05
	pidRPM         = 0x0C
	pidSpeed       = 0x0D
)

// Analyzer processes capture sessions to generate analysis results.
type Analyzer struct {
	session  *capture.Session
	analysis *Analysis
	options  AnalyzerOptions
}

// AnalyzerOptions configures the analysis process.
type AnalyzerOptions struct {
	RapidAccelThreshold float64       // km/h/s for rapid acceleration detection
	RapidDecelThreshold float64       // km/h/s for rapid deceleration detection
	IdleSpeedThreshold  float64       // km/h below which is considered idle
	CruiseThreshold     float64       // km/h/s variance for cruise detection
	MinPhaseTime        time.Duration // minimum duration for a driving phase
}

// DefaultOptions returns sensible default analyzer options.
func DefaultOptions() AnalyzerOptions {
	return AnalyzerOptions{
		RapidAccelThreshold: 10.0, // 10 km/h per second
		RapidDecelThreshold: -8.0, // -8 km/h per second
		IdleSpeedThreshold:  3.0,  // 3 km/h
		CruiseThreshold:     2.0,  // 2 km/h/s variance
		MinPhaseTime:        3 * time.Second,
	}
}

// NewAnalyzer creates a new analyzer instance.
func NewAnalyzer(session *capture.Session, options AnalyzerOptions) *Analyzer {
	return &Analyzer{
		session:  session,
		analysis: &Analysis{},
		options:  options,
	}
}

// Analyze processes the session and returns analysis results.
func (a *Analyzer) Analyze() (*Analysis, error) {
	if err := a.analyzeSessionInfo(); err != nil {
		return nil, fmt.Errorf("session info analysis failed: %w", err)
	}

	if err := a.analyzePerformance(); err != nil {
		return nil, fmt.Errorf("performance analysis failed: %w", err)
	}

	if err := a.analyzeDrivingBehavior(); err != nil {
		return nil, fmt.Errorf("driving behavior analysis failed: %w", err)
	}

	if err := a.analyzeCANActivity(); err != nil {
		return nil, fmt.Errorf("CAN activity analysis failed: %w", err)
	}

	if err := a.analyzeDiagnostics(); err != nil {
		return nil, fmt.Errorf("diagnostics analysis failed: %w", err)
	}

	return a.analysis, nil
}

func (a *Analyzer) analyzeSessionInfo() error {
	a.analysis.SessionInfo.StartTime = a.session.StartTime
	a.analysis.SessionInfo.EndTime = a.session.EndTime
	a.analysis.SessionInfo.Duration = a.session.EndTime.Sub(a.session.StartTime)
	a.analysis.SessionInfo.VIN = a.session.Vehicle.VIN
	a.analysis.SessionInfo.TotalFrames = len(a.session.Frames)
	return nil
}

func (a *Analyzer) analyzePerformance() error {
	var rpmValues, speedValues, tempValues []float64

	for _, frame := range a.session.Frames {
		if frame.Type != "OBD2" {
			continue
		}
		for _, smp := range frame.Samples {
			if smp.Definition == nil {
				continue
			}
			switch {
			case smp.Definition.Service == mode01 && smp.Definition.PID == pidRPM:
				rpmValues = append(rpmValues, smp.Value)
			case smp.Definition.Service == mode01 && smp.Definition.PID == pidSpeed:
				speedValues = append(speedValues, smp.Value)
			case smp.Definition.Service == mode01 && smp.Definition.PID == pidCoolantTemp:
				tempValues = append(tempValues, smp.Value)
			}
		}
	}

	a.analysis.Performance.RPM = CalculateStats(rpmValues)
	a.analysis.Performance.Speed = CalculateStats(speedValues)
	a.analysis.Performance.Temperature = CalculateStats(tempValues)

	duration := a.analysis.SessionInfo.Duration.Seconds()
	if duration > 0 {
		a.analysis.Performance.DataRate = float64(len(a.session.Frames)) / duration
	}

	return nil
}

func (a *Analyzer) speedAt(frame capture.Frame) (float64, bool) {
	for _, smp := range frame.Samples {
		if smp.Definition != nil && smp.Definition.Service == mode01 && smp.Definition.PID == pidSpeed {
			return smp.Value, true
		}
	}
	return 0, false
}

func (a *Analyzer) analyzeDrivingBehavior() error {
	var currentPhase *DrivingPhase
	var phaseSpeedSum float64
	var phaseSpeedCount int
	var lastSpeed float64
	var lastTime time.Time

	closePhase := func(endTime time.Time) {
		if currentPhase == nil {
			return
		}
		currentPhase.EndTime = endTime
		currentPhase.Duration = currentPhase.EndTime.Sub(currentPhase.StartTime)
		if phaseSpeedCount > 0 {
			currentPhase.Stats["avg_speed"] = phaseSpeedSum / float64(phaseSpeedCount)
		}
		if currentPhase.Duration >= a.options.MinPhaseTime {
			a.analysis.DrivingBehavior.Phases = append(a.analysis.DrivingBehavior.Phases, *currentPhase)
		}
	}

	for _, frame := range a.session.Frames {
		if frame.Type != "OBD2" {
			continue
		}

		speed, ok := a.speedAt(frame)
		if !ok {
			continue
		}

		if !lastTime.IsZero() {
			timeDiff := frame.Timestamp.Sub(lastTime).Seconds()
			if timeDiff > 0 {
				acceleration := (speed - lastSpeed) / timeDiff

				phaseType := a.detectPhaseType(speed, acceleration)

				if currentPhase == nil || currentPhase.Type != phaseType {
					closePhase(frame.Timestamp)

					currentPhase = &DrivingPhase{
						Type:      phaseType,
						StartTime: frame.Timestamp,
						Stats:     make(map[string]float64),
					}
					phaseSpeedSum, phaseSpeedCount = 0, 0
				}

				if acceleration >= a.options.RapidAccelThreshold {
					a.analysis.DrivingBehavior.RapidAccel++
				} else if acceleration <= a.options.RapidDecelThreshold {
					a.analysis.DrivingBehavior.RapidDecel++
				}
			}
		}

		if currentPhase != nil {
			phaseSpeedSum += speed
			phaseSpeedCount++
		}

		lastSpeed = speed
		lastTime = frame.Timestamp
	}
	closePhase(lastTime)

	var idleTime time.Duration
	for _, phase := range a.analysis.DrivingBehavior.Phases {
		if phase.Type == "idle" {
			idleTime += phase.Duration
			a.analysis.DrivingBehavior.StopCount++
		}
	}

	totalDuration := a.analysis.SessionInfo.Duration
	if totalDuration > 0 {
		a.analysis.DrivingBehavior.IdleTime = float64(idleTime) / float64(totalDuration) * 100
	}

	return nil
}

func (a *Analyzer) detectPhaseType(speed, acceleration float64) string {
	if speed < a.options.IdleSpeedThreshold {
		return "idle"
	}
	if acceleration >= a.options.RapidAccelThreshold {
		return "acceleration"
	}
	if acceleration <= a.options.RapidDecelThreshold {
		return "deceleration"
	}
	if math.Abs(acceleration) < a.options.CruiseThreshold {
		return "cruise"
	}
	return "unknown"
}

func (a *Analyzer) analyzeCANActivity() error {
	idCounts := make(map[uint32]int)

	for _, frame := range a.session.Frames {
		if frame.Type == "CAN" {
			idCounts[frame.ID]++
		}
	}

	a.analysis.CANActivity.UniqueIDs = len(idCounts)
	a.analysis.CANActivity.IDCounts = idCounts

	totalBits := 0
	for _, frame := range a.session.Frames {
		if frame.Type == "CAN" {
			// standard CAN frame overhead (arbitration + control + CRC + ACK)
			totalBits += 108 + len(frame.Data)*8
		}
	}

	duration := a.analysis.SessionInfo.Duration.Seconds()
	if duration > 0 {
		bitsPerSecond := float64(totalBits) / duration
		a.analysis.CANActivity.BusLoad = bitsPerSecond / 1_000_000 * 100 // percentage of 1Mbps
	}

	return nil
}

// analyzeDiagnostics tallies how often each trouble code appeared across the
// session. A code seen more than once is recorded as a recurring pattern
// (e.g. "P0301 (3x)") rather than a one-off: a DTC that clears and comes
// back is a stronger maintenance signal than a single occurrence.
func (a *Analyzer) analyzeDiagnostics() error {
	dtcs := make(map[string]int)

	for _, frame := range a.session.Frames {
		if frame.Type != "OBD2" {
			continue
		}
		for _, dtc := range frame.Dtcs {
			dtcs[dtc.Code]++
		}
	}

	a.analysis.Diagnostics.DTCCount = len(dtcs)
	for code, count := range dtcs {
		a.analysis.Diagnostics.UniqueDTCs = append(a.analysis.Diagnostics.UniqueDTCs, code)
		if count > 1 {
			a.analysis.Diagnostics.DTCPatterns = append(a.analysis.Diagnostics.DTCPatterns,
				fmt.Sprintf("%s (%dx)", code, count))
		}
	}

	return nil
}
