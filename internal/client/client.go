// Package client implements the OBD client facade of §4.8: the single
// point through which applications request PIDs, DTCs, and vehicle info,
// hiding the command queue, session engine, frame parser, and service
// layer behind a small set of blocking calls.
package client

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/anodyne74/obdclient/internal/cmdqueue"
	"github.com/anodyne74/obdclient/internal/dtcdecode"
	"github.com/anodyne74/obdclient/internal/frame"
	"github.com/anodyne74/obdclient/internal/obdtypes"
	"github.com/anodyne74/obdclient/internal/pidreg"
	"github.com/anodyne74/obdclient/internal/service"
	"github.com/anodyne74/obdclient/internal/session"
)

// Client is the facade described in §4.8. All state is reachable from a
// Client value: the session engine, the command queue, and the
// per-session supported-PID memoization.
type Client struct {
	engine *session.Engine
	queue  *cmdqueue.Queue

	runCancel context.CancelFunc
	runDone   chan struct{}

	mu            sync.Mutex
	supportedPids map[byte][]byte // service -> memoized supported PID list
}

// New constructs a Client over the given transport. The caller is
// responsible for establishing the transport connection before calling
// Initialize.
func New(transport session.Transport) *Client {
	queue := cmdqueue.New(cmdqueue.DefaultCapacity)
	engine := session.NewEngine(transport, queue, nil)
	return &Client{
		engine:        engine,
		queue:         queue,
		supportedPids: make(map[byte][]byte),
	}
}

// Initialize runs the adapter through its reset/configure/probe sequence
// and starts the session engine's command-serving loop. On failure the
// engine is left Disconnected and no loop is started.
func (c *Client) Initialize(ctx context.Context) (session.AdapterInfo, error) {
	info, err := c.engine.Initialize(ctx)
	if err != nil {
		return info, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.runCancel = cancel
	c.runDone = make(chan struct{})
	go func() {
		defer close(c.runDone)
		c.engine.Run(runCtx)
	}()
	return info, nil
}

// Close shuts down the session engine, completes all pending commands with
// ConnectionClosed, and stops the Run loop. It is idempotent.
func (c *Client) Close(ctx context.Context) {
	if c.runCancel == nil {
		return
	}
	c.engine.Shutdown(ctx)
	c.runCancel()
	<-c.runDone
	c.runCancel = nil
}

// do enqueues a command, waits for its completion, and returns the raw
// response lines.
func (c *Client) do(ctx context.Context, command string, timeout time.Duration) ([]string, error) {
	pc, err := c.queue.Enqueue(command, time.Now(), timeout)
	if err != nil {
		return nil, err
	}
	res, err := pc.Wait(ctx)
	if err != nil {
		c.queue.Cancel(pc)
		return nil, err
	}
	return res.Lines, res.Err
}

func (c *Client) parseResponses(lines []string) ([]frame.EcuResponse, error) {
	return frame.Parse(strings.Join(lines, "\n"))
}

// ReadPid issues a single-PID request and returns its decoded sample.
func (c *Client) ReadPid(ctx context.Context, svc, pid byte) (pidreg.PidSample, error) {
	samples, err := c.ReadPids(ctx, svc, []byte{pid})
	if err != nil {
		return pidreg.PidSample{}, err
	}
	if len(samples) == 0 {
		cmd, _ := service.EncodeMode01([]byte{pid})
		return pidreg.PidSample{}, obdtypes.NoData(cmd)
	}
	return samples[0], nil
}

// ReadPids issues a batched current-data request for up to
// service.MaxBatchPids PIDs and returns however many decoded successfully.
func (c *Client) ReadPids(ctx context.Context, svc byte, pids []byte) ([]pidreg.PidSample, error) {
	if svc != service.ModeCurrentData {
		return nil, obdtypes.InvalidRequest("ReadPids only supports mode $01")
	}
	cmd, err := service.EncodeMode01(pids)
	if err != nil {
		return nil, err
	}
	lines, err := c.do(ctx, cmd, session.DefaultCommandTimeout)
	if err != nil {
		return nil, err
	}
	resps, err := c.parseResponses(lines)
	if err != nil {
		return nil, err
	}
	if len(resps) == 0 {
		return nil, obdtypes.NoData(cmd)
	}

	now := time.Now()
	var out []pidreg.PidSample
	for _, r := range resps {
		samples, err := service.DecodeMode01(pids, r, now)
		if err != nil {
			continue
		}
		out = append(out, samples...)
	}
	return out, nil
}

// SupportedPids iterates the support-bitmap probe chain for the given
// service, memoizing the result for the lifetime of the Client.
func (c *Client) SupportedPids(ctx context.Context, svc byte) ([]byte, error) {
	c.mu.Lock()
	if cached, ok := c.supportedPids[svc]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	var all []byte
	for _, base := range service.SupportBitmapBases {
		cmd := service.EncodeSupportProbe(base)
		lines, err := c.do(ctx, cmd, session.DefaultCommandTimeout)
		if err != nil {
			break
		}
		resps, err := c.parseResponses(lines)
		if err != nil || len(resps) == 0 {
			break
		}
		supported, cont, err := service.DecodeSupportBitmap(base, resps[0])
		if err != nil {
			break
		}
		all = append(all, supported...)
		if !cont {
			break
		}
	}

	c.mu.Lock()
	c.supportedPids[svc] = all
	c.mu.Unlock()
	return all, nil
}

func (c *Client) readDtcs(ctx context.Context, mode byte, echo byte, timeout time.Duration) ([]dtcdecode.Dtc, error) {
	cmd := service.EncodeBareMode(mode)
	lines, err := c.do(ctx, cmd, timeout)
	if err != nil {
		return nil, err
	}
	resps, err := c.parseResponses(lines)
	if err != nil {
		return nil, err
	}
	var all []dtcdecode.Dtc
	for _, r := range resps {
		dtcs, err := service.DecodeDtcResponse(echo, r)
		if err != nil {
			continue
		}
		all = append(all, dtcs...)
	}
	return all, nil
}

// ReadStoredDtcs issues a service $03 request.
func (c *Client) ReadStoredDtcs(ctx context.Context) ([]dtcdecode.Dtc, error) {
	return c.readDtcs(ctx, service.ModeStoredDtcs, 0x43, session.DefaultCommandTimeout)
}

// ReadPendingDtcs issues a service $07 request.
func (c *Client) ReadPendingDtcs(ctx context.Context) ([]dtcdecode.Dtc, error) {
	return c.readDtcs(ctx, service.ModePendingDtcs, 0x47, session.DefaultCommandTimeout)
}

// ReadPermanentDtcs issues a service $0A request.
func (c *Client) ReadPermanentDtcs(ctx context.Context) ([]dtcdecode.Dtc, error) {
	return c.readDtcs(ctx, service.ModePermanentDtcs, 0x4A, session.DefaultCommandTimeout)
}

// ClearDtcs issues a service $04 request, succeeding iff the adapter
// acknowledges with a $44 echo or an "OK" response.
func (c *Client) ClearDtcs(ctx context.Context) error {
	cmd := service.EncodeBareMode(service.ModeClearDtcs)
	lines, err := c.do(ctx, cmd, session.ClearDtcTimeout)
	if err != nil {
		return err
	}
	resps, _ := c.parseResponses(lines)
	rawLine := strings.Join(lines, " ")
	if len(resps) > 0 && service.ClearDtcsAcknowledged(resps[0], rawLine) {
		return nil
	}
	if service.ClearDtcsAcknowledged(frame.EcuResponse{}, rawLine) {
		return nil
	}
	return obdtypes.ClearDtcError("adapter did not acknowledge clear DTCs")
}

// ReadVehicleInfo is a best-effort read of VIN, calibration ID, and ECU
// name. A missing or unparseable VIN leaves the VIN field unset rather
// than failing the call, per §4.8.
func (c *Client) ReadVehicleInfo(ctx context.Context) (dtcdecode.VehicleInfo, error) {
	var info dtcdecode.VehicleInfo

	if ascii, err := c.readInfoString(ctx, 0x02); err == nil {
		if vin, verified, err := dtcdecode.DecodeVIN(ascii); err == nil {
			info.VIN = vin
			info.VinVerified = verified
			if mfr, country, ok := dtcdecode.LookupWMI(vin); ok {
				info.Manufacturer = mfr
				info.Country = country
			}
		}
	}
	if calID, err := c.readInfoString(ctx, 0x04); err == nil && calID != "" {
		info.CalibrationIDs = append(info.CalibrationIDs, calID)
	}
	if ecuName, err := c.readInfoString(ctx, 0x0A); err == nil && ecuName != "" {
		info.EcuNames = append(info.EcuNames, ecuName)
	}

	return info, nil
}

func (c *Client) readInfoString(ctx context.Context, infoType byte) (string, error) {
	cmd := service.EncodeMode09(infoType)
	lines, err := c.do(ctx, cmd, session.DefaultCommandTimeout)
	if err != nil {
		return "", err
	}
	resps, err := c.parseResponses(lines)
	if err != nil || len(resps) == 0 {
		return "", obdtypes.NoData(cmd)
	}
	return service.DecodeVehicleInfoString(infoType, resps[0])
}
