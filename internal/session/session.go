// Package session implements the ELM327 prompt-delimited session engine of
// §4.7: a single-threaded cooperative state machine that owns the
// transport, drives the adapter through its reset/configure/probe sequence,
// and serializes application commands behind the command queue.
package session

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/anodyne74/obdclient/internal/cmdqueue"
	"github.com/anodyne74/obdclient/internal/obdtypes"
)

// State is a session engine lifecycle state.
type State int

const (
	Disconnected State = iota
	Resetting
	Configuring
	Probing
	Ready
	Busy
	Error
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Resetting:
		return "Resetting"
	case Configuring:
		return "Configuring"
	case Probing:
		return "Probing"
	case Ready:
		return "Ready"
	case Busy:
		return "Busy"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// Default per-command deadlines, per §4.7.
const (
	DefaultCommandTimeout = 2 * time.Second
	InitCommandTimeout    = 5 * time.Second
	ClearDtcTimeout       = 5 * time.Second

	// ResyncTimeout bounds how long transact keeps draining the stream
	// after a command deadline expires, looking for the late prompt that
	// closes out the timed-out command (§5/§8 prompt re-synchronization).
	ResyncTimeout = 2 * time.Second
)

// Prompt is the byte the adapter emits to terminate every response.
const Prompt = '>'

// AdapterInfo is returned by Initialize: the identification banner, the
// auto-negotiated bus protocol, and (if available) supply voltage.
type AdapterInfo struct {
	Banner   string
	Protocol obdtypes.BusProtocol
	Voltage  string
}

// Transport is the byte-stream contract the session engine drives (§6). It
// deliberately does not require io.Closer here: lifecycle is managed by the
// caller that constructs the transport.
type Transport interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
}

// Engine is the single-threaded cooperative session owner. It must not be
// used from more than one goroutine concurrently except for Run, which owns
// the transport read loop and the command queue's Dequeue.
type Engine struct {
	transport Transport
	queue     *cmdqueue.Queue
	logger    *log.Logger

	state    State
	buf      []byte
	protocol obdtypes.BusProtocol
}

// NewEngine constructs a session engine over the given transport and
// command queue. logger may be nil, in which case a discard logger is used.
func NewEngine(transport Transport, queue *cmdqueue.Queue, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Engine{
		transport: transport,
		queue:     queue,
		logger:    logger,
		state:     Disconnected,
	}
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State { return e.state }

// Protocol returns the most recently detected bus protocol.
func (e *Engine) Protocol() obdtypes.BusProtocol { return e.protocol }

// Initialize runs the Resetting → Configuring → Probing sequence of §4.7,
// leaving the engine in Ready on success or Disconnected on failure.
func (e *Engine) Initialize(ctx context.Context) (AdapterInfo, error) {
	e.logger.Debug("initializing session", "state", e.state)
	e.state = Resetting
	banner, err := e.sendRaw(ctx, "ATZ", InitCommandTimeout)
	if err != nil {
		e.state = Disconnected
		e.logger.Error("reset failed", "err", err)
		return AdapterInfo{}, obdtypes.InitializationError("reset failed", err)
	}

	e.state = Configuring
	for _, cmd := range []string{"ATE0", "ATL0", "ATS0", "ATH1", "ATAT1"} {
		lines, err := e.sendRaw(ctx, cmd, InitCommandTimeout)
		if err != nil {
			e.state = Disconnected
			return AdapterInfo{}, obdtypes.InitializationError("configuration command "+cmd+" failed", err)
		}
		if containsQuestionMark(lines) {
			e.state = Error
			return AdapterInfo{}, obdtypes.InitializationError("adapter rejected "+cmd, nil)
		}
	}

	e.state = Probing
	if _, err := e.sendRaw(ctx, "ATSP0", InitCommandTimeout); err != nil {
		e.state = Disconnected
		return AdapterInfo{}, obdtypes.InitializationError("protocol auto-select failed", err)
	}
	if _, err := e.sendRaw(ctx, "0100", InitCommandTimeout); err != nil {
		e.state = Disconnected
		return AdapterInfo{}, obdtypes.InitializationError("negotiation probe failed", err)
	}
	dpnLines, err := e.sendRaw(ctx, "ATDPN", InitCommandTimeout)
	if err != nil {
		e.state = Disconnected
		return AdapterInfo{}, obdtypes.InitializationError("protocol readback failed", err)
	}
	e.protocol = obdtypes.ParseDPN(dpnProtocolDigit(firstNonEmpty(dpnLines)))

	voltage := ""
	if vLines, err := e.sendRaw(ctx, "ATRV", InitCommandTimeout); err == nil {
		voltage = firstNonEmpty(vLines)
	}

	e.state = Ready
	e.logger.Info("session ready", "protocol", e.protocol, "voltage", voltage)
	return AdapterInfo{
		Banner:   strings.Join(banner, " "),
		Protocol: e.protocol,
		Voltage:  voltage,
	}, nil
}

// Shutdown sends ATPC and transitions the engine to Disconnected,
// regardless of the command's outcome.
func (e *Engine) Shutdown(ctx context.Context) {
	_, _ = e.sendRaw(ctx, "ATPC", DefaultCommandTimeout)
	e.state = Disconnected
	e.queue.Shutdown()
}

// Run drains the command queue, sending each command's bytes and awaiting
// its prompt-terminated response, until ctx is cancelled or the queue is
// shut down. It is the engine's single-threaded cooperative owner loop and
// must run in exactly one goroutine for the lifetime of the engine.
func (e *Engine) Run(ctx context.Context) {
	for {
		pc, ok := e.queue.Dequeue(ctx)
		if !ok {
			return
		}
		e.state = Busy
		lines, err := e.transact(ctx, pc.Command, pc.Deadline)
		if err != nil {
			e.logger.Debug("command failed", "command", pc.Command, "err", err)
		}
		pc.Resolve(cmdqueue.Result{Lines: lines, Err: err})
		if e.state == Busy {
			e.state = Ready
		}
	}
}

// sendRaw transacts a single command with a deadline relative to now,
// bypassing the queue. Used only during Initialize/Shutdown, before the
// Run loop (or after it) owns the transport.
func (e *Engine) sendRaw(ctx context.Context, command string, timeout time.Duration) ([]string, error) {
	return e.transact(ctx, command, time.Now().Add(timeout))
}

// transact writes a command (plus CR terminator) to the transport and reads
// bytes, accumulating into the rolling buffer, until the prompt byte is
// seen or the deadline expires.
func (e *Engine) transact(ctx context.Context, command string, deadline time.Time) ([]string, error) {
	if _, err := e.transport.Write([]byte(command + "\r")); err != nil {
		return nil, obdtypes.AdapterError(command, err.Error())
	}

	for {
		if idx := indexByte(e.buf, Prompt); idx >= 0 {
			chunk := e.buf[:idx]
			e.buf = append([]byte(nil), e.buf[idx+1:]...)
			lines := splitResponseLines(string(chunk), command)
			return lines, classifyLines(command, lines)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, e.resyncAfterTimeout(ctx, command)
		}

		data, err := e.readWithTimeout(ctx, remaining)
		if err != nil {
			return nil, obdtypes.AdapterError(command, err.Error())
		}
		if len(data) > 0 {
			e.buf = append(e.buf, data...)
		}
	}
}

// resyncAfterTimeout is entered when a command's deadline expires with no
// prompt byte yet seen. Rather than returning with the timed-out command's
// bytes still possibly in flight, it keeps draining the transport — up to
// ResyncTimeout — until the late prompt that closes out the timed-out
// command arrives, discarding everything through it. Without this, those
// bytes would sit in e.buf (or arrive just after) and be misread as the
// *next* command's response, desynchronizing the stream (§5/§8). The
// timed-out command still reports Timeout either way.
func (e *Engine) resyncAfterTimeout(ctx context.Context, command string) error {
	deadline := time.Now().Add(ResyncTimeout)
	for {
		if idx := indexByte(e.buf, Prompt); idx >= 0 {
			e.buf = append([]byte(nil), e.buf[idx+1:]...)
			return obdtypes.Timeout(command)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			e.logger.Warn("resync deadline exceeded, dropping stream state", "command", command)
			e.buf = nil
			e.state = Error
			return obdtypes.Timeout(command)
		}

		data, err := e.readWithTimeout(ctx, remaining)
		if err != nil {
			e.buf = nil
			return obdtypes.Timeout(command)
		}
		if len(data) > 0 {
			e.buf = append(e.buf, data...)
		}
	}
}

// readWithTimeout performs a single transport Read into a buffer private to
// this call, bounded by whichever of ctx or the remaining deadline elapses
// first. The transport is expected to be non-blocking or to honor its own
// read-deadline configuration; this layer only guards against an
// engine-side deadline overrun. A private buffer (rather than a shared
// Engine field) is deliberate: if the deadline wins the race, the Read
// goroutine is abandoned but still running, and a shared buffer would let
// its eventual write race the next call's read into the same bytes.
func (e *Engine) readWithTimeout(ctx context.Context, remaining time.Duration) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		buf := make([]byte, 256)
		n, err := e.transport.Read(buf)
		ch <- result{data: buf[:n], err: err}
	}()

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.data, r.err
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func containsQuestionMark(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) == "?" {
			return true
		}
	}
	return false
}

func firstNonEmpty(lines []string) string {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return strings.TrimSpace(l)
		}
	}
	return ""
}

// dpnProtocolDigit extracts the numeric protocol digit from an ATDPN reply.
// The adapter prefixes the digit with "A" when the protocol was
// auto-selected (e.g. "A6"); that prefix is not itself a protocol digit.
func dpnProtocolDigit(s string) byte {
	s = strings.TrimPrefix(s, "A")
	if s == "" {
		return 0
	}
	return s[0]
}

func indexByte(b []byte, target byte) int {
	for i, c := range b {
		if c == target {
			return i
		}
	}
	return -1
}

// splitResponseLines splits a raw response chunk into trimmed, non-empty
// lines, dropping the command echo if the adapter's echo has not yet been
// disabled by ATE0.
func splitResponseLines(chunk, command string) []string {
	raw := strings.Split(strings.ReplaceAll(chunk, "\r", "\n"), "\n")
	var lines []string
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l == "" || l == command {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

// classifyLines maps the first line that matches a known error indicator to
// its typed error; a response with no error indicator classifies as nil.
func classifyLines(command string, lines []string) error {
	for _, l := range lines {
		if err := obdtypes.ClassifyResponse(command, l); err != nil {
			return err
		}
	}
	return nil
}
