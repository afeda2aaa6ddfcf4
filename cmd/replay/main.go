// Command replay plays a recorded capture session back at adjustable
// speed, printing each frame as it would have arrived live.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/anodyne74/obdclient/internal/capture"
)

func main() {
	var (
		captureFile string
		speed       float64
		list        bool
	)

	flag.StringVar(&captureFile, "file", "", "Capture file to replay")
	flag.Float64Var(&speed, "speed", 1.0, "Replay speed multiplier (1.0 = real-time)")
	flag.BoolVar(&list, "list", false, "List available capture files")
	flag.Parse()

	if list {
		listCaptureFiles()
		return
	}

	if captureFile == "" {
		fmt.Println("Please specify a capture file with -file")
		os.Exit(1)
	}

	session, err := capture.Load(captureFile)
	if err != nil {
		log.Fatalf("Failed to load session: %v", err)
	}

	replayer := capture.NewReplayer(session)
	replayer.SetSpeed(speed)

	fmt.Printf("Replaying session from %s\n", session.StartTime)
	fmt.Printf("Vehicle: %s\n", session.Vehicle.VIN)
	fmt.Printf("Total frames: %d\n", len(session.Frames))

	if err := replayer.Play(func(f capture.Frame) {
		switch {
		case len(f.Samples) > 0:
			for _, s := range f.Samples {
				fmt.Printf("[%s] %s = %.2f %s\n", f.Timestamp.Format(time.RFC3339), s.Definition.Name, s.Value, s.Definition.Unit)
			}
		case len(f.Dtcs) > 0:
			for _, d := range f.Dtcs {
				fmt.Printf("[%s] DTC %s: %s\n", f.Timestamp.Format(time.RFC3339), d.Code, d.Description)
			}
		default:
			fmt.Printf("[%s] %s id=0x%X % X\n", f.Timestamp.Format(time.RFC3339), f.Type, f.ID, f.Data)
		}
	}); err != nil {
		log.Fatalf("Replay failed: %v", err)
	}
}

func listCaptureFiles() {
	files, err := filepath.Glob("captures/*.json")
	if err != nil {
		log.Fatalf("Failed to list capture files: %v", err)
	}

	if len(files) == 0 {
		fmt.Println("No capture files found")
		return
	}

	fmt.Println("Available capture files:")
	for _, file := range files {
		session, err := capture.Load(file)
		if err != nil {
			fmt.Printf("  %s (error: %v)\n", file, err)
			continue
		}

		duration := session.EndTime.Sub(session.StartTime)
		fmt.Printf("  %s:\n", filepath.Base(file))
		fmt.Printf("    Date: %s\n", session.StartTime)
		fmt.Printf("    Duration: %s\n", duration)
		fmt.Printf("    Vehicle: %s\n", session.Vehicle.VIN)
		fmt.Printf("    Frames: %d\n", len(session.Frames))
		fmt.Println()
	}
}
