package session

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anodyne74/obdclient/internal/cmdqueue"
	"github.com/anodyne74/obdclient/internal/obdtypes"
)

// fakeTransport is a minimal in-memory Transport that replies to known
// commands with canned adapter output, used to drive the engine through
// its state machine without a real serial or TCP connection.
type fakeTransport struct {
	mu       bytes.Buffer
	sent     []string
	scripted map[string]string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		scripted: map[string]string{
			"ATZ\r":   "ELM327 v1.5\r>",
			"ATE0\r":  "OK\r>",
			"ATL0\r":  "OK\r>",
			"ATS0\r":  "OK\r>",
			"ATH1\r":  "OK\r>",
			"ATAT1\r": "OK\r>",
			"ATSP0\r": "OK\r>",
			"0100\r":  "41 00 BE 1F A8 13\r>",
			"ATDPN\r": "A6\r>",
			"ATRV\r":  "12.6V\r>",
			"ATPC\r":  "OK\r>",
		},
	}
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	cmd := string(p)
	f.sent = append(f.sent, cmd)
	if resp, ok := f.scripted[cmd]; ok {
		f.mu.WriteString(resp)
	} else {
		f.mu.WriteString("?\r>")
	}
	return len(p), nil
}

func (f *fakeTransport) Read(p []byte) (int, error) {
	return f.mu.Read(p)
}

func TestInitializeReachesReady(t *testing.T) {
	tr := newFakeTransport()
	q := cmdqueue.New(4)
	eng := NewEngine(tr, q, nil)

	info, err := eng.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if eng.State() != Ready {
		t.Errorf("state = %v, want Ready", eng.State())
	}
	if !strings.Contains(info.Banner, "ELM327") {
		t.Errorf("banner = %q, missing ELM327 identification", info.Banner)
	}
	if info.Protocol != obdtypes.ProtocolCAN11Bit500k {
		t.Errorf("protocol = %v, want CAN11Bit500k (ATDPN 'A6')", info.Protocol)
	}
	if info.Voltage != "12.6V" {
		t.Errorf("voltage = %q, want 12.6V", info.Voltage)
	}
}

func TestInitializeFailsOnConfigQuestionMark(t *testing.T) {
	tr := newFakeTransport()
	delete(tr.scripted, "ATE0\r")
	tr.scripted["ATE0\r"] = "?\r>"
	q := cmdqueue.New(4)
	eng := NewEngine(tr, q, nil)

	_, err := eng.Initialize(context.Background())
	if err == nil {
		t.Fatal("expected initialization error on '?' response")
	}
	if eng.State() != Error && eng.State() != Disconnected {
		t.Errorf("state = %v, want Error or Disconnected", eng.State())
	}
}

func TestRunServesQueuedCommand(t *testing.T) {
	tr := newFakeTransport()
	q := cmdqueue.New(4)
	eng := NewEngine(tr, q, nil)

	if _, err := eng.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go eng.Run(ctx)
	defer cancel()

	pc, err := q.Enqueue("0100", time.Now(), DefaultCommandTimeout)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	res, err := pc.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if res.Err != nil {
		t.Fatalf("command result error: %v", res.Err)
	}
	if len(res.Lines) == 0 || !strings.Contains(res.Lines[0], "41 00") {
		t.Errorf("lines = %v, want mode 01 response", res.Lines)
	}
}

// silentTransport never writes a prompt, simulating a command whose
// response never arrives so a per-command deadline expires.
type silentTransport struct{}

func (silentTransport) Write(p []byte) (int, error) { return len(p), nil }
func (silentTransport) Read(p []byte) (int, error)  { return 0, nil }

func TestTimeoutWhenPromptNeverArrives(t *testing.T) {
	q := cmdqueue.New(4)
	eng := NewEngine(silentTransport{}, q, nil)

	_, err := eng.transact(context.Background(), "ATRV", time.Now().Add(10*time.Millisecond))
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if e, ok := err.(*obdtypes.Error); !ok || e.Kind != obdtypes.KindTimeout {
		t.Errorf("err = %v, want Timeout", err)
	}
}

// lateTransport simulates a slow adapter: a command's response keeps
// arriving after the engine has already given up on it. deliver pushes
// bytes into the read-side buffer independently of when they were
// requested, modeling a response landing after its deadline expired.
type lateTransport struct {
	mu      sync.Mutex
	sent    []string
	pending bytes.Buffer
}

func (t *lateTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, string(p))
	if string(p) == "0100\r" {
		go func() {
			time.Sleep(5 * time.Millisecond)
			t.deliver("41 00 BE 1F A8 13\r>")
		}()
	}
	return len(p), nil
}

func (t *lateTransport) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending.Len() == 0 {
		return 0, nil // nothing has arrived yet; the stream is still open
	}
	return t.pending.Read(p)
}

func (t *lateTransport) deliver(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending.WriteString(s)
}

// TestTimeoutResyncsBeforeNextCommand reuses a single engine across a
// timed-out command and a following real one. The first command's
// response arrives late — after its own deadline has already expired —
// and must be drained and discarded during resync rather than left in
// the rolling buffer to be misread as part of the second command's
// response.
func TestTimeoutResyncsBeforeNextCommand(t *testing.T) {
	tr := &lateTransport{}
	q := cmdqueue.New(4)
	eng := NewEngine(tr, q, nil)

	time.AfterFunc(30*time.Millisecond, func() { tr.deliver("12.6V\r>") })

	_, err := eng.transact(context.Background(), "ATRV", time.Now().Add(10*time.Millisecond))
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if e, ok := err.(*obdtypes.Error); !ok || e.Kind != obdtypes.KindTimeout {
		t.Errorf("err = %v, want Timeout", err)
	}

	lines, err := eng.transact(context.Background(), "0100", time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("transact after timeout scenario: %v", err)
	}
	if len(lines) == 0 || !strings.Contains(lines[0], "41 00") {
		t.Fatalf("lines = %v, want the 0100 response, not leftover ATRV bytes", lines)
	}
	for _, l := range lines {
		if strings.Contains(l, "12.6V") {
			t.Errorf("lines = %v, late ATRV response leaked into next command", lines)
		}
	}
}
