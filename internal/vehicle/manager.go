package vehicle

import (
	"fmt"
	"sync"
	"time"

	"github.com/anodyne74/obdclient/internal/analysis"
	"github.com/anodyne74/obdclient/internal/dtcdecode"
	"github.com/anodyne74/obdclient/internal/pidreg"
)

// Manager handles vehicle registration and state management.
type Manager struct {
	vehicles map[string]*Vehicle // VIN -> Vehicle mapping
	profiles map[string]*Profile // make/model -> Profile mapping
	mu       sync.RWMutex
}

// NewManager creates a new vehicle manager instance.
func NewManager() *Manager {
	return &Manager{
		vehicles: make(map[string]*Vehicle),
		profiles: make(map[string]*Profile),
	}
}

// RegisterVehicle adds a new vehicle to the manager.
func (m *Manager) RegisterVehicle(vin, make, model string, year int) (*Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.vehicles[vin]; exists {
		return nil, fmt.Errorf("vehicle with VIN %s already registered", vin)
	}

	v := &Vehicle{
		VIN:   vin,
		Make:  make,
		Model: model,
		Year:  year,
		Capabilities: Capabilities{
			SupportedPIDs: make(map[byte]bool),
		},
		LastUpdated: time.Now(),
	}

	m.vehicles[vin] = v
	return v, nil
}

// GetVehicle retrieves a vehicle by VIN.
func (m *Manager) GetVehicle(vin string) (*Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, exists := m.vehicles[vin]
	if !exists {
		return nil, fmt.Errorf("vehicle with VIN %s not found", vin)
	}
	return v, nil
}

// SetCapabilities records the supported-PID bitmap and protocol discovered
// during the adapter's support probe.
func (m *Manager) SetCapabilities(vin string, caps Capabilities) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, exists := m.vehicles[vin]
	if !exists {
		return fmt.Errorf("vehicle with VIN %s not found", vin)
	}
	v.Capabilities = caps
	v.LastUpdated = time.Now()
	return nil
}

// SetVehicleInfo records the decoded mode-09 vehicle information (VIN,
// calibration IDs, ECU names).
func (m *Manager) SetVehicleInfo(vin string, info dtcdecode.VehicleInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, exists := m.vehicles[vin]
	if !exists {
		return fmt.Errorf("vehicle with VIN %s not found", vin)
	}
	v.Info = info
	v.LastUpdated = time.Now()
	return nil
}

// MergeSamples merges freshly read PID samples into the vehicle's state.
func (m *Manager) MergeSamples(vin string, samples []pidreg.PidSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, exists := m.vehicles[vin]
	if !exists {
		return fmt.Errorf("vehicle with VIN %s not found", vin)
	}

	v.State.Merge(samples)
	if rpm, ok := v.State.Value(mode01, PidRPM); ok {
		v.State.EngineRunning = rpm > 0
	}
	if odo, ok := v.State.Value(mode01, PidOdometer); ok {
		v.Maintenance.Mileage = odo
	}
	v.LastUpdated = time.Now()
	return nil
}

// RecordService appends a completed service to the vehicle's maintenance
// history and advances LastService/Mileage from it.
func (m *Manager) RecordService(vin string, record ServiceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, exists := m.vehicles[vin]
	if !exists {
		return fmt.Errorf("vehicle with VIN %s not found", vin)
	}

	v.Maintenance.ServiceHistory = append(v.Maintenance.ServiceHistory, record)
	v.Maintenance.LastService = record.Date
	if record.Mileage > v.Maintenance.Mileage {
		v.Maintenance.Mileage = record.Mileage
	}
	v.LastUpdated = time.Now()
	return nil
}

// DueServices compares the vehicle's current mileage and service history
// against schedule, returning the items due either by mileage or by time
// since the last occurrence of that service. It also refreshes the
// vehicle's PendingServices for later retrieval via GetVehicle.
func (m *Manager) DueServices(vin string, schedule ServiceSchedule) ([]ServiceItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, exists := m.vehicles[vin]
	if !exists {
		return nil, fmt.Errorf("vehicle with VIN %s not found", vin)
	}

	lastOfType := func(name string) (time.Time, float64, bool) {
		var latest ServiceRecord
		found := false
		for _, rec := range v.Maintenance.ServiceHistory {
			if rec.Type != name {
				continue
			}
			if !found || rec.Date.After(latest.Date) {
				latest = rec
				found = true
			}
		}
		return latest.Date, latest.Mileage, found
	}

	var due []ServiceItem
	names := make([]string, 0, len(schedule.Items))
	for _, item := range schedule.Items {
		lastDate, lastMileage, found := lastOfType(item.Name)
		if !found {
			due = append(due, item)
			names = append(names, item.Name)
			continue
		}
		milesSince := v.Maintenance.Mileage - lastMileage
		monthsSince := time.Since(lastDate).Hours() / (24 * 30)
		if milesSince >= item.IntervalMiles || monthsSince >= float64(item.IntervalMonths) {
			due = append(due, item)
			names = append(names, item.Name)
		}
	}

	v.Maintenance.PendingServices = names
	return due, nil
}

// RecordDiagnostics stores the most recently read trouble codes.
func (m *Manager) RecordDiagnostics(vin string, dtcs []dtcdecode.Dtc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, exists := m.vehicles[vin]
	if !exists {
		return fmt.Errorf("vehicle with VIN %s not found", vin)
	}

	v.State.Dtcs = dtcs
	v.State.LastDiagnostic = time.Now()
	v.LastUpdated = time.Now()
	return nil
}

// RegisterProfile adds or updates a vehicle profile.
func (m *Manager) RegisterProfile(make, model string, profile Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf("%s-%s", make, model)
	m.profiles[key] = &profile
}

// GetProfile retrieves a vehicle profile by make and model.
func (m *Manager) GetProfile(make, model string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := fmt.Sprintf("%s-%s", make, model)
	profile, exists := m.profiles[key]
	if !exists {
		return nil, fmt.Errorf("profile for %s %s not found", make, model)
	}
	return profile, nil
}

// DetectAnomalies checks vehicle state against its profile and outstanding
// trouble codes, returning any alerts raised.
func (m *Manager) DetectAnomalies(vin string) ([]Alert, error) {
	v, err := m.GetVehicle(vin)
	if err != nil {
		return nil, err
	}

	profile, err := m.GetProfile(v.Make, v.Model)
	if err != nil {
		return nil, err
	}

	var alerts []Alert
	now := time.Now()

	if rpm, ok := v.State.Value(mode01, PidRPM); ok && rpm > profile.RedlineRPM {
		alerts = append(alerts, Alert{
			Type:      "RPM",
			Severity:  "critical",
			Message:   fmt.Sprintf("Engine RPM exceeds redline (%.0f > %.0f)", rpm, profile.RedlineRPM),
			Timestamp: now,
			Value:     rpm,
			Threshold: profile.RedlineRPM,
			Pids:      []byte{PidRPM},
		})
	}

	if temp, ok := v.State.Value(mode01, PidCoolantTemp); ok && temp > 105 {
		alerts = append(alerts, Alert{
			Type:      "Temperature",
			Severity:  "warning",
			Message:   fmt.Sprintf("Engine temperature too high: %.1f°C", temp),
			Timestamp: now,
			Value:     temp,
			Threshold: 105,
			Pids:      []byte{PidCoolantTemp},
		})
	}

	if load, ok := v.State.Value(mode01, PidEngineLoad); ok && load > 90 {
		alerts = append(alerts, Alert{
			Type:      "Load",
			Severity:  "warning",
			Message:   fmt.Sprintf("High engine load: %.1f%%", load),
			Timestamp: now,
			Value:     load,
			Threshold: 90,
			Pids:      []byte{PidEngineLoad},
		})
	}

	for pid, threshold := range profile.CustomThresholds {
		if value, ok := v.State.Value(mode01, pid); ok && value > threshold {
			alerts = append(alerts, Alert{
				Type:      "Custom",
				Severity:  "warning",
				Message:   fmt.Sprintf("Custom threshold exceeded for PID $%02X: %.1f > %.1f", pid, value, threshold),
				Timestamp: now,
				Value:     value,
				Threshold: threshold,
				Pids:      []byte{pid},
			})
		}
	}

	for _, dtc := range v.State.Dtcs {
		if dtc.Severity != dtcdecode.SeverityCritical {
			continue
		}
		alerts = append(alerts, Alert{
			Type:      "DTC",
			Severity:  "critical",
			Message:   fmt.Sprintf("%s: %s", dtc.Code, dtc.Description),
			Timestamp: now,
		})
	}

	return alerts, nil
}

// AnalyzePerformance performs a detailed analysis of vehicle performance
// over a captured drive.
func (m *Manager) AnalyzePerformance(analyzer *analysis.Analyzer) (*PerformanceReport, error) {
	results, err := analyzer.Analyze()
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	report := &PerformanceReport{
		Timestamp: time.Now(),
		Duration:  results.SessionInfo.Duration,
		Stats: PerformanceStats{
			AverageSpeed:    results.Performance.Speed.Mean,
			MaxSpeed:        results.Performance.Speed.Max,
			AverageRPM:      results.Performance.RPM.Mean,
			MaxRPM:          results.Performance.RPM.Max,
			IdleTimePercent: results.DrivingBehavior.IdleTime,
			RapidAccels:     results.DrivingBehavior.RapidAccel,
			RapidDecels:     results.DrivingBehavior.RapidDecel,
		},
		Alerts: make([]Alert, 0),
	}

	if results.Performance.Speed.Mean > 0 {
		report.Stats.EfficiencyScore = calculateEfficiencyScore(results)
	}

	return report, nil
}

// calculateEfficiencyScore generates a 0-100 score based on idle time and
// harsh driving events.
func calculateEfficiencyScore(results *analysis.Analysis) float64 {
	score := 100.0

	if results.DrivingBehavior.IdleTime > 20 {
		score -= (results.DrivingBehavior.IdleTime - 20) * 0.5
	}

	score -= float64(results.DrivingBehavior.RapidAccel) * 2
	score -= float64(results.DrivingBehavior.RapidDecel) * 2

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return score
}
