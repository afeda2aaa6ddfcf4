// Command query performs a one-shot or continuous live read against a
// connected ELM327 adapter: VIN/ECU info, current PIDs, or stored DTCs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/anodyne74/obdclient/internal/client"
	"github.com/anodyne74/obdclient/internal/config"
	"github.com/anodyne74/obdclient/internal/service"
	"github.com/anodyne74/obdclient/internal/transport"
)

func main() {
	var (
		configFile string
		queryType  string
		continuous bool
		formatJSON bool
	)

	flag.StringVar(&configFile, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&queryType, "query", "info", "Type of query: info, dtc, live")
	flag.BoolVar(&continuous, "continuous", false, "Keep polling live PIDs until interrupted")
	flag.BoolVar(&formatJSON, "json", false, "Output in JSON format")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	conn, err := transport.New(cfg.TransportConfig())
	if err != nil {
		log.Fatalf("opening transport: %v", err)
	}
	defer conn.Close()

	c := client.New(conn)
	ctx := context.Background()

	if _, err := c.Initialize(ctx); err != nil {
		log.Fatalf("initializing adapter: %v", err)
	}
	defer c.Close(ctx)

	switch queryType {
	case "info":
		info, err := c.ReadVehicleInfo(ctx)
		if err != nil {
			log.Fatalf("reading vehicle info: %v", err)
		}
		output(info, formatJSON)

	case "dtc":
		dtcs, err := c.ReadStoredDtcs(ctx)
		if err != nil {
			log.Fatalf("reading stored DTCs: %v", err)
		}
		output(dtcs, formatJSON)

	case "live":
		pids := []byte{0x0C, 0x0D, 0x05} // RPM, speed, coolant temp
		for {
			samples, err := c.ReadPids(ctx, service.ModeCurrentData, pids)
			if err != nil {
				log.Printf("read error: %v", err)
			} else {
				output(samples, formatJSON)
			}
			if !continuous {
				return
			}
			time.Sleep(time.Second)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown query type %q\n", queryType)
		os.Exit(1)
	}
}

func output(data any, formatJSON bool) {
	if formatJSON {
		payload, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			log.Fatalf("marshaling output: %v", err)
		}
		fmt.Println(string(payload))
		return
	}
	fmt.Printf("%+v\n", data)
}
