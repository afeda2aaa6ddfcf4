package vehicle

import (
	"testing"
	"time"

	"github.com/anodyne74/obdclient/internal/dtcdecode"
	"github.com/anodyne74/obdclient/internal/pidreg"
)

func pidSample(t *testing.T, pid byte, value float64) pidreg.PidSample {
	t.Helper()
	def, ok := pidreg.Lookup(mode01, pid)
	if !ok {
		t.Fatalf("pid $%02X not registered", pid)
	}
	return pidreg.PidSample{Definition: def, Value: value, Timestamp: time.Now()}
}

func TestVehicleManager(t *testing.T) {
	manager := NewManager()

	vin := "1HGCM82633A123456"
	v, err := manager.RegisterVehicle(vin, "Honda", "Accord", 2023)
	if err != nil {
		t.Fatalf("Failed to register vehicle: %v", err)
	}
	if v.VIN != vin {
		t.Errorf("Expected VIN %s, got %s", vin, v.VIN)
	}

	_, err = manager.RegisterVehicle(vin, "Honda", "Accord", 2023)
	if err == nil {
		t.Error("Expected error on duplicate registration")
	}

	v2, err := manager.GetVehicle(vin)
	if err != nil {
		t.Fatalf("Failed to get vehicle: %v", err)
	}
	if v2.VIN != vin {
		t.Errorf("Expected VIN %s, got %s", vin, v2.VIN)
	}

	samples := []pidreg.PidSample{
		pidSample(t, PidSpeed, 60.0),
		pidSample(t, PidRPM, 2500.0),
		pidSample(t, PidThrottle, 25.0),
		pidSample(t, PidEngineLoad, 40.0),
		pidSample(t, PidCoolantTemp, 85.0),
	}
	if err := manager.MergeSamples(vin, samples); err != nil {
		t.Fatalf("Failed to merge samples: %v", err)
	}

	v3, _ := manager.GetVehicle(vin)
	if speed, ok := v3.State.Value(mode01, PidSpeed); !ok || speed != 60.0 {
		t.Errorf("Expected speed 60.0, got %v (ok=%v)", speed, ok)
	}

	profile := Profile{
		MaxRPM:           6500,
		RedlineRPM:       6000,
		IdleRPM:          800,
		OptimalShiftRPM:  2500,
		FuelType:         "gasoline",
		TransmissionType: "automatic",
		GearRatios:       []float64{2.995, 1.759, 1.171, 0.870, 0.707},
		WeightKg:         1500,
		EngineSize:       2.0,
		CustomThresholds: map[byte]float64{
			PidCoolantTemp: 100.0,
		},
	}
	manager.RegisterProfile("Honda", "Accord", profile)

	p, err := manager.GetProfile("Honda", "Accord")
	if err != nil {
		t.Fatalf("Failed to get profile: %v", err)
	}
	if p.MaxRPM != profile.MaxRPM {
		t.Errorf("Expected MaxRPM %.1f, got %.1f", profile.MaxRPM, p.MaxRPM)
	}

	if err := manager.MergeSamples(vin, []pidreg.PidSample{pidSample(t, PidRPM, 6200.0)}); err != nil {
		t.Fatalf("Failed to merge samples: %v", err)
	}
	if err := manager.RecordDiagnostics(vin, []dtcdecode.Dtc{
		{Code: "P0301", Category: 'P', Severity: dtcdecode.SeverityCritical, Description: "Cylinder 1 misfire detected"},
	}); err != nil {
		t.Fatalf("Failed to record diagnostics: %v", err)
	}

	alerts, err := manager.DetectAnomalies(vin)
	if err != nil {
		t.Fatalf("Failed to detect anomalies: %v", err)
	}
	if len(alerts) == 0 {
		t.Error("Expected at least one alert for high RPM")
	}

	foundRPM, foundDTC := false, false
	for _, alert := range alerts {
		if alert.Type == "RPM" && alert.Severity == "critical" {
			foundRPM = true
		}
		if alert.Type == "DTC" {
			foundDTC = true
		}
	}
	if !foundRPM {
		t.Error("Expected critical RPM alert")
	}
	if !foundDTC {
		t.Error("Expected alert for critical DTC")
	}
}

func TestServiceSchedule(t *testing.T) {
	schedule := DefaultServiceSchedule()
	if len(schedule.Items) == 0 {
		t.Error("Expected default service schedule to have items")
	}

	var oilChange *ServiceItem
	for i := range schedule.Items {
		if schedule.Items[i].Name == "Oil Change" {
			oilChange = &schedule.Items[i]
			break
		}
	}

	if oilChange == nil {
		t.Fatal("Expected to find oil change service")
	}

	if oilChange.IntervalMiles != 5000 {
		t.Errorf("Expected oil change interval of 5000 miles, got %.1f", oilChange.IntervalMiles)
	}

	if oilChange.Priority != "required" {
		t.Errorf("Expected oil change priority 'required', got '%s'", oilChange.Priority)
	}
}

func TestManagerMaintenanceTracking(t *testing.T) {
	manager := NewManager()
	vin := "1HGCM82633A654321"
	if _, err := manager.RegisterVehicle(vin, "Honda", "Accord", 2023); err != nil {
		t.Fatalf("Failed to register vehicle: %v", err)
	}

	if err := manager.MergeSamples(vin, []pidreg.PidSample{pidSample(t, PidOdometer, 4800.0)}); err != nil {
		t.Fatalf("Failed to merge odometer sample: %v", err)
	}
	v, _ := manager.GetVehicle(vin)
	if v.Maintenance.Mileage != 4800.0 {
		t.Errorf("Expected mileage 4800.0 from odometer PID, got %.1f", v.Maintenance.Mileage)
	}

	schedule := DefaultServiceSchedule()
	due, err := manager.DueServices(vin, schedule)
	if err != nil {
		t.Fatalf("Failed to compute due services: %v", err)
	}
	if len(due) != len(schedule.Items) {
		t.Errorf("Expected every schedule item due with no service history, got %d of %d", len(due), len(schedule.Items))
	}

	if err := manager.RecordService(vin, ServiceRecord{
		Date:    time.Now(),
		Type:    "Oil Change",
		Mileage: 4800.0,
	}); err != nil {
		t.Fatalf("Failed to record service: %v", err)
	}

	v, _ = manager.GetVehicle(vin)
	if len(v.Maintenance.ServiceHistory) != 1 {
		t.Fatalf("Expected one service history entry, got %d", len(v.Maintenance.ServiceHistory))
	}

	due, err = manager.DueServices(vin, schedule)
	if err != nil {
		t.Fatalf("Failed to compute due services: %v", err)
	}
	for _, item := range due {
		if item.Name == "Oil Change" {
			t.Error("Oil change was just serviced and should not be due again immediately")
		}
	}
}
