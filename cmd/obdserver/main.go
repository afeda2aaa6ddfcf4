// Command obdserver runs the OBD-II client against a configured adapter
// and exposes its live telemetry over a WebSocket broadcast, matching the
// teacher's original wsHandler/broadcastTelemetry pattern but fed by the
// real ELM327 session engine instead of hand-parsed CAN frames.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/charmbracelet/log"

	"github.com/anodyne74/obdclient/internal/cadence"
	"github.com/anodyne74/obdclient/internal/capture"
	"github.com/anodyne74/obdclient/internal/client"
	"github.com/anodyne74/obdclient/internal/config"
	"github.com/anodyne74/obdclient/internal/datastore"
	"github.com/anodyne74/obdclient/internal/dtcdecode"
	"github.com/anodyne74/obdclient/internal/pidreg"
	"github.com/anodyne74/obdclient/internal/service"
	"github.com/anodyne74/obdclient/internal/transport"
	"github.com/anodyne74/obdclient/internal/vehicle"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Telemetry is one broadcast frame: the latest batch of decoded PID
// samples, plus any trouble codes read since the last frame.
type Telemetry struct {
	Samples []pidreg.PidSample `json:"samples,omitempty"`
	Dtcs    []dtcdecode.Dtc    `json:"dtcs,omitempty"`
	Alerts  []vehicle.Alert    `json:"alerts,omitempty"`
}

type hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func newHub() *hub { return &hub{clients: make(map[*websocket.Conn]bool)} }

func (h *hub) add(ws *websocket.Conn) {
	h.mu.Lock()
	h.clients[ws] = true
	h.mu.Unlock()
}

func (h *hub) remove(ws *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, ws)
	h.mu.Unlock()
	ws.Close()
}

func (h *hub) broadcast(t Telemetry) {
	payload, err := json.Marshal(t)
	if err != nil {
		log.Error("obdserver: marshaling telemetry", "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ws := range h.clients {
		if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Warn("obdserver: dropping client", "err", err)
			ws.Close()
			delete(h.clients, ws)
		}
	}
}

func main() {
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal("obdserver: loading config", "err", err)
	}

	store, err := datastore.NewStore(&datastore.Config{
		SQLitePath:     cfg.Datastore.SQLite.Path,
		InfluxDBURL:    cfg.Datastore.InfluxDB.URL,
		InfluxDBOrg:    cfg.Datastore.InfluxDB.Org,
		InfluxDBToken:  cfg.Datastore.InfluxDB.Token,
		InfluxDBBucket: cfg.Datastore.InfluxDB.Bucket,
	})
	if err != nil {
		log.Fatal("obdserver: opening datastore", "err", err)
	}
	defer store.Close()

	conn, err := transport.New(cfg.TransportConfig())
	if err != nil {
		log.Fatal("obdserver: opening transport", "err", err)
	}

	obd := client.New(conn)
	ctx, cancel := context.WithCancel(context.Background())

	info, err := obd.Initialize(ctx)
	if err != nil {
		log.Fatal("obdserver: initializing adapter", "err", err)
	}
	log.Info("obdserver: adapter ready", "protocol", info.Protocol)

	manager := vehicle.NewManager()
	vehicleInfo, err := obd.ReadVehicleInfo(ctx)
	if err != nil {
		log.Warn("obdserver: reading vehicle info", "err", err)
	}
	vin := vehicleInfo.VIN
	if vin == "" {
		vin = "unknown"
	}
	if _, err := manager.RegisterVehicle(vin, "", "", 0); err != nil {
		log.Warn("obdserver: registering vehicle", "err", err)
	} else if err := manager.SetVehicleInfo(vin, vehicleInfo); err != nil {
		log.Warn("obdserver: recording vehicle info", "err", err)
	}

	supported, err := obd.SupportedPids(ctx, service.ModeCurrentData)
	if err != nil || len(supported) == 0 {
		log.Warn("obdserver: support probe failed, falling back to common PIDs", "err", err)
		supported = []byte{0x0C, 0x0D, 0x05, 0x04, 0x11}
	}
	if len(supported) > service.MaxBatchPids {
		supported = supported[:service.MaxBatchPids]
	}

	recorder := capture.NewRecorder(vehicleInfo)
	if err := recorder.Start(); err != nil {
		log.Warn("obdserver: starting capture recorder", "err", err)
	}

	router := mux.NewRouter()
	clients := newHub()
	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("obdserver: websocket upgrade", "err", err)
			return
		}
		clients.add(ws)
		defer clients.remove(ws)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	})
	router.PathPrefix("/").Handler(http.FileServer(http.Dir("static")))

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Info("obdserver: starting web server", "addr", serverAddr)
		if err := http.ListenAndServe(serverAddr, router); err != nil {
			log.Fatal("obdserver: web server", "err", err)
		}
	}()

	sampler := cadence.New(obd, service.ModeCurrentData, supported, cfg.Cadence.Period.Duration())
	ticks := make(chan cadence.Tick, 8)
	go sampler.Run(ctx, ticks)

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				dtcs, err := obd.ReadStoredDtcs(ctx)
				if err != nil {
					log.Warn("obdserver: reading stored DTCs", "err", err)
					continue
				}
				if err := manager.RecordDiagnostics(vin, dtcs); err != nil {
					log.Warn("obdserver: recording diagnostics", "err", err)
				}
				if len(dtcs) > 0 {
					if err := store.SaveDiagnostics(vin, dtcs); err != nil {
						log.Warn("obdserver: saving diagnostics", "err", err)
					}
					if err := recorder.Record(capture.Frame{Timestamp: time.Now(), Type: "OBD2", Dtcs: dtcs}); err != nil {
						log.Warn("obdserver: recording diagnostics frame", "err", err)
					}
				}
				clients.broadcast(Telemetry{Dtcs: dtcs})
			}
		}
	}()

	go func() {
		for tick := range ticks {
			if tick.Dropped {
				continue
			}
			if tick.Err != nil {
				log.Warn("obdserver: sampler tick failed", "err", tick.Err)
				continue
			}
			if err := manager.MergeSamples(vin, tick.Samples); err != nil {
				log.Warn("obdserver: merging samples", "err", err)
			}
			if err := store.SaveTelemetry(vin, datastore.TelemetrySamplesFrom(vin, tick.Samples, tick.Acquired)); err != nil {
				log.Warn("obdserver: saving telemetry", "err", err)
			}
			if err := recorder.Record(capture.Frame{Timestamp: tick.Acquired, Type: "OBD2", Samples: tick.Samples}); err != nil {
				log.Warn("obdserver: recording telemetry frame", "err", err)
			}

			var alerts []vehicle.Alert
			if a, err := manager.DetectAnomalies(vin); err == nil {
				alerts = a
			}
			clients.broadcast(Telemetry{Samples: tick.Samples, Alerts: alerts})
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	<-sigs

	log.Info("obdserver: shutting down")
	cancel()
	if err := recorder.Stop(); err != nil {
		log.Warn("obdserver: saving capture session", "err", err)
	}
	obd.Close(context.Background())
	conn.Close()
}
