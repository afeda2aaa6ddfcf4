// Package capture records a drive as a sequence of timestamped frames - OBD-II
// PID samples, diagnostic trouble codes, and raw CAN traffic - so it can be
// replayed or analyzed offline.
package capture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/anodyne74/obdclient/internal/dtcdecode"
	"github.com/anodyne74/obdclient/internal/pidreg"
)

// Frame represents one captured unit of traffic.
type Frame struct {
	Timestamp time.Time          `json:"timestamp"`
	Type      string             `json:"type"`          // "OBD2" or "CAN"
	ID        uint32             `json:"id,omitempty"`  // CAN arbitration ID, if applicable
	Raw       string             `json:"raw,omitempty"` // raw adapter response line(s)
	Data      []byte             `json:"data,omitempty"`
	Samples   []pidreg.PidSample `json:"samples,omitempty"`
	Dtcs      []dtcdecode.Dtc    `json:"dtcs,omitempty"`
}

// Session represents a capture session: everything read from one vehicle
// between connect and disconnect.
type Session struct {
	StartTime time.Time             `json:"start_time"`
	EndTime   time.Time             `json:"end_time,omitempty"`
	Vehicle   dtcdecode.VehicleInfo `json:"vehicle"`
	Frames    []Frame               `json:"frames"`
	Metadata  map[string]string     `json:"metadata,omitempty"`
	filePath  string                // path where session will be saved
}

// NewSession creates a new capture session.
func NewSession(vehicle dtcdecode.VehicleInfo) *Session {
	return &Session{
		StartTime: time.Now(),
		Vehicle:   vehicle,
		Frames:    make([]Frame, 0),
		Metadata:  make(map[string]string),
	}
}

// AddFrame adds a frame to the session.
func (s *Session) AddFrame(frame Frame) {
	s.Frames = append(s.Frames, frame)
}

// SetMetadata adds or updates metadata.
func (s *Session) SetMetadata(key, value string) {
	s.Metadata[key] = value
}

// Save writes the session to disk as indented JSON.
func (s *Session) Save() error {
	if s.filePath == "" {
		timestamp := time.Now().Format("20060102_150405")
		s.filePath = filepath.Join("captures", fmt.Sprintf("session_%s.json", timestamp))
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	s.EndTime = time.Now()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.WriteFile(s.filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	return nil
}

// Load reads a session back from disk, for replay or re-analysis.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	s.filePath = path
	return &s, nil
}
