// Package mockadapter provides an in-memory ELM327 transport for tests,
// grounded on rzetterberg/elmobd's RawDevice/MockDevice pattern: a scripted
// command-to-response table substitutes for a real serial or TCP adapter so
// the session engine and facade can be exercised without hardware.
package mockadapter

import (
	"bytes"
	"sync"
)

// Adapter is a scripted, prompt-terminated byte-stream transport. Each
// command (without its trailing CR) maps to a canned response body (without
// the trailing prompt byte, which Adapter appends automatically).
type Adapter struct {
	mu       sync.Mutex
	script   map[string]string
	fallback string
	out      bytes.Buffer
	Sent     []string
}

// New constructs an Adapter with an empty script. Use Script to register
// command/response pairs before handing the adapter to a session engine.
func New() *Adapter {
	return &Adapter{
		script:   make(map[string]string),
		fallback: "?",
	}
}

// Script registers a canned response body for a command. The command is
// matched against the bytes written by the session engine with the
// trailing CR stripped.
func (a *Adapter) Script(command, response string) *Adapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.script[command] = response
	return a
}

// SetFallback overrides the response used for commands with no script
// entry. The default fallback is "?", matching an adapter's response to an
// unrecognized command.
func (a *Adapter) SetFallback(response string) *Adapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fallback = response
	return a
}

// Write implements the session engine's Transport contract: the incoming
// bytes are the command (plus trailing CR), and the adapter immediately
// queues the scripted response, terminated by the prompt byte.
func (a *Adapter) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cmd := string(bytes.TrimRight(p, "\r"))
	a.Sent = append(a.Sent, cmd)

	resp, ok := a.script[cmd]
	if !ok {
		resp = a.fallback
	}
	a.out.WriteString(resp)
	a.out.WriteByte('\r')
	a.out.WriteByte('>')
	return len(p), nil
}

// Read implements the session engine's Transport contract, draining the
// queued scripted output.
func (a *Adapter) Read(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.out.Read(p)
}
