package capture

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anodyne74/obdclient/internal/dtcdecode"
)

var testVehicle = dtcdecode.VehicleInfo{VIN: "1HGCM82633A004352"}

func TestNewSession(t *testing.T) {
	session := NewSession(testVehicle)

	if session.Vehicle.VIN != testVehicle.VIN {
		t.Errorf("Expected vehicle VIN %s, got %s", testVehicle.VIN, session.Vehicle.VIN)
	}

	if session.StartTime.IsZero() {
		t.Error("Expected start time to be set")
	}

	if len(session.Frames) != 0 {
		t.Error("Expected empty frames slice")
	}
}

func TestAddFrame(t *testing.T) {
	session := NewSession(testVehicle)
	frame := Frame{
		Timestamp: time.Now(),
		Type:      "TEST",
		Data:      []byte{0x01, 0x02, 0x03},
	}

	session.AddFrame(frame)

	if len(session.Frames) != 1 {
		t.Error("Expected one frame in session")
	}

	if session.Frames[0].Type != frame.Type {
		t.Errorf("Expected frame type %s, got %s", frame.Type, session.Frames[0].Type)
	}
}

func TestSaveSession(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "capture_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	session := NewSession(testVehicle)
	session.filePath = filepath.Join(tempDir, "test_session.json")

	session.AddFrame(Frame{
		Timestamp: time.Now(),
		Type:      "TEST",
		Data:      []byte{0x01, 0x02, 0x03},
	})

	if err := session.Save(); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	if _, err := os.Stat(session.filePath); os.IsNotExist(err) {
		t.Error("Expected session file to exist")
	}

	loaded, err := Load(session.filePath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Frames) != 1 {
		t.Errorf("loaded frames = %d, want 1", len(loaded.Frames))
	}
}

func TestRecorder(t *testing.T) {
	recorder := NewRecorder(testVehicle)

	if err := recorder.Start(); err != nil {
		t.Fatalf("Failed to start recorder: %v", err)
	}

	if !recorder.IsRunning() {
		t.Error("Expected recorder to be running")
	}

	frame := Frame{
		Timestamp: time.Now(),
		Type:      "TEST",
		Data:      []byte{0x01, 0x02, 0x03},
	}

	if err := recorder.Record(frame); err != nil {
		t.Errorf("Failed to record frame: %v", err)
	}

	if err := recorder.Stop(); err != nil {
		t.Errorf("Failed to stop recorder: %v", err)
	}

	if recorder.IsRunning() {
		t.Error("Expected recorder to be stopped")
	}
}

func TestReplayerPlay(t *testing.T) {
	session := NewSession(testVehicle)
	base := time.Now()
	session.AddFrame(Frame{Timestamp: base, Type: "TEST", Data: []byte{0x01}})
	session.AddFrame(Frame{Timestamp: base.Add(5 * time.Millisecond), Type: "TEST", Data: []byte{0x02}})

	replayer := NewReplayer(session)
	replayer.SetSpeed(100) // collapse the delay so the test runs fast

	var seen []byte
	if err := replayer.Play(func(f Frame) {
		seen = append(seen, f.Data...)
	}); err != nil {
		t.Fatalf("Play: %v", err)
	}

	if len(seen) != 2 || seen[0] != 0x01 || seen[1] != 0x02 {
		t.Errorf("seen = %v, want [1 2]", seen)
	}
	if replayer.Progress() != 1.0 {
		t.Errorf("Progress = %v, want 1.0", replayer.Progress())
	}
}
