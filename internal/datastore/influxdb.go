package datastore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// measurement is the InfluxDB measurement name PID telemetry is written
// under; one point per (vin, service, pid, timestamp).
const measurement = "pid_sample"

// InfluxDBStore implements telemetry storage using InfluxDB.
type InfluxDBStore struct {
	client   influxdb2.Client
	org      string
	bucket   string
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
}

// NewInfluxDBStore creates a new InfluxDB-backed store.
func NewInfluxDBStore(url, token, org, bucket string) (*InfluxDBStore, error) {
	client := influxdb2.NewClient(url, token)

	store := &InfluxDBStore{
		client:   client,
		org:      org,
		bucket:   bucket,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		queryAPI: client.QueryAPI(org),
	}

	if _, err := client.Ping(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}

	return store, nil
}

func (s *InfluxDBStore) SaveTelemetry(vin string, samples []TelemetrySample) error {
	points := make([]*write.Point, 0, len(samples))
	for _, smp := range samples {
		points = append(points, influxdb2.NewPoint(
			measurement,
			map[string]string{
				"vin":     vin,
				"service": strconv.Itoa(int(smp.Service)),
				"pid":     strconv.Itoa(int(smp.PID)),
			},
			map[string]interface{}{
				"name":   smp.Name,
				"unit":   smp.Unit,
				"value":  smp.Value,
				"status": smp.Status,
			},
			smp.Timestamp,
		))
	}

	if err := s.writeAPI.WritePoint(context.Background(), points...); err != nil {
		return fmt.Errorf("failed to write telemetry samples: %w", err)
	}

	return nil
}

func (s *InfluxDBStore) queryTelemetry(query string) ([]TelemetrySample, error) {
	result, err := s.queryAPI.Query(context.Background(), query)
	if err != nil {
		return nil, fmt.Errorf("failed to query telemetry: %w", err)
	}
	defer result.Close()

	var samples []TelemetrySample
	for result.Next() {
		record := result.Record()
		service, _ := strconv.Atoi(fmt.Sprintf("%v", record.ValueByKey("service")))
		pid, _ := strconv.Atoi(fmt.Sprintf("%v", record.ValueByKey("pid")))
		samples = append(samples, TelemetrySample{
			Timestamp: record.Time(),
			VIN:       fmt.Sprintf("%v", record.ValueByKey("vin")),
			Service:   byte(service),
			PID:       byte(pid),
			Name:      fmt.Sprintf("%v", record.ValueByKey("name")),
			Unit:      fmt.Sprintf("%v", record.ValueByKey("unit")),
			Value:     record.ValueByKey("value").(float64),
			Status:    fmt.Sprintf("%v", record.ValueByKey("status")),
		})
	}
	return samples, result.Err()
}

func (s *InfluxDBStore) GetTelemetry(vin string, start, end time.Time) ([]TelemetrySample, error) {
	query := fmt.Sprintf(`
		from(bucket:"%s")
			|> range(start: %s, stop: %s)
			|> filter(fn: (r) => r["_measurement"] == "%s" and r["vin"] == "%s")
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
	`, s.bucket, start.Format(time.RFC3339), end.Format(time.RFC3339), measurement, vin)

	return s.queryTelemetry(query)
}

func (s *InfluxDBStore) GetLatestTelemetry(vin string) ([]TelemetrySample, error) {
	query := fmt.Sprintf(`
		from(bucket:"%s")
			|> range(start: -1h)
			|> filter(fn: (r) => r["_measurement"] == "%s" and r["vin"] == "%s")
			|> group(columns: ["pid"])
			|> last()
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
	`, s.bucket, measurement, vin)

	return s.queryTelemetry(query)
}

func (s *InfluxDBStore) Close() error {
	s.client.Close()
	return nil
}
