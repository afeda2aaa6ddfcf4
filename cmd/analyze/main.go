// Command analyze loads a recorded capture session and reports aggregate
// performance and driving-behavior statistics over it.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/anodyne74/obdclient/internal/analysis"
	"github.com/anodyne74/obdclient/internal/capture"
)

func main() {
	var (
		inputFile string
		exportCsv string
	)

	flag.StringVar(&inputFile, "file", "", "Capture file to analyze")
	flag.StringVar(&exportCsv, "export-csv", "", "Export driving phases to a CSV file")
	flag.Parse()

	if inputFile == "" {
		fmt.Println("Please specify a capture file with -file")
		os.Exit(1)
	}

	session, err := capture.Load(inputFile)
	if err != nil {
		log.Fatalf("Failed to load session: %v", err)
	}

	analyzer := analysis.NewAnalyzer(session, analysis.DefaultOptions())
	result, err := analyzer.Analyze()
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	fmt.Printf("\nSession Analysis for %s\n", filepath.Base(inputFile))
	fmt.Printf("=================================\n")
	fmt.Printf("Vehicle: %s\n", result.SessionInfo.VIN)
	fmt.Printf("Duration: %s\n", result.SessionInfo.Duration)
	fmt.Printf("Total Frames: %d\n", result.SessionInfo.TotalFrames)

	fmt.Printf("\nPerformance Metrics:\n")
	fmt.Printf("- Max RPM: %.2f (avg %.2f)\n", result.Performance.RPM.Max, result.Performance.RPM.Mean)
	fmt.Printf("- Max Speed: %.2f km/h (avg %.2f)\n", result.Performance.Speed.Max, result.Performance.Speed.Mean)
	fmt.Printf("- Coolant Temp range: %.1f - %.1f\n", result.Performance.Temperature.Min, result.Performance.Temperature.Max)
	fmt.Printf("- Data Rate: %.2f frames/sec\n", result.Performance.DataRate)

	fmt.Printf("\nDriving Behavior:\n")
	fmt.Printf("- Idle Time: %.1f%%\n", result.DrivingBehavior.IdleTime)
	fmt.Printf("- Rapid Accelerations: %d\n", result.DrivingBehavior.RapidAccel)
	fmt.Printf("- Rapid Decelerations: %d\n", result.DrivingBehavior.RapidDecel)
	fmt.Printf("- Driving Phases: %d\n", len(result.DrivingBehavior.Phases))

	if result.CANActivity.UniqueIDs > 0 {
		fmt.Printf("\nCAN Activity:\n")
		fmt.Printf("- Unique IDs: %d\n", result.CANActivity.UniqueIDs)
		fmt.Printf("- Bus Load: %.2f%%\n", result.CANActivity.BusLoad)
	}

	if result.Diagnostics.DTCCount > 0 {
		fmt.Printf("\nDiagnostics:\n")
		fmt.Printf("- Unique DTCs: %v\n", result.Diagnostics.UniqueDTCs)
		if len(result.Diagnostics.DTCPatterns) > 0 {
			fmt.Printf("- Recurring: %v\n", result.Diagnostics.DTCPatterns)
		}
	}

	if exportCsv != "" {
		fmt.Printf("\nExporting driving phases to %s...\n", exportCsv)
		if err := analysis.ExportCSV(result, exportCsv); err != nil {
			log.Fatalf("Failed to export CSV: %v", err)
		}
		fmt.Println("Export complete!")
	}
}
