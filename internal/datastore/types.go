package datastore

import (
	"time"

	"github.com/anodyne74/obdclient/internal/dtcdecode"
	"github.com/anodyne74/obdclient/internal/vehicle"
)

// Store is the persistence boundary: vehicle/profile registration and
// maintenance history in SQLite, PID telemetry time series in InfluxDB.
type Store interface {
	SaveVehicle(v *vehicle.Vehicle) error
	GetVehicle(vin string) (*vehicle.Vehicle, error)
	ListVehicles() ([]*vehicle.Vehicle, error)
	DeleteVehicle(vin string) error

	SaveProfile(make, model string, profile *vehicle.Profile) error
	GetProfile(make, model string) (*vehicle.Profile, error)
	ListProfiles() (map[string]*vehicle.Profile, error)

	SaveTelemetry(vin string, samples []TelemetrySample) error
	GetTelemetry(vin string, start, end time.Time) ([]TelemetrySample, error)
	GetLatestTelemetry(vin string) ([]TelemetrySample, error)

	SavePerformanceReport(vin string, report *vehicle.PerformanceReport) error
	GetPerformanceReports(vin string, start, end time.Time) ([]*vehicle.PerformanceReport, error)

	SaveServiceRecord(vin string, record *vehicle.ServiceRecord) error
	GetServiceHistory(vin string) ([]*vehicle.ServiceRecord, error)

	SaveAlert(vin string, alert *vehicle.Alert) error
	GetAlerts(vin string, start, end time.Time) ([]*vehicle.Alert, error)

	SaveDiagnostics(vin string, dtcs []dtcdecode.Dtc) error
	GetLatestDiagnostics(vin string) ([]dtcdecode.Dtc, error)

	Close() error
}

// TelemetrySample is the storage-friendly projection of a pidreg.PidSample:
// one row per (vin, service, pid, timestamp).
type TelemetrySample struct {
	Timestamp time.Time `json:"timestamp"`
	VIN       string    `json:"vin"`
	Service   byte      `json:"service"`
	PID       byte      `json:"pid"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit"`
	Value     float64   `json:"value"`
	Status    string    `json:"status"` // "normal", "warning", "critical"
}
