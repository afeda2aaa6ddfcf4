// Package canbus implements the secondary CAN-native ingestion path of
// §10: a SocketCAN sniffer that demultiplexes raw OBD-II response traffic
// independently of the ELM327 adapter and command queue, reassembling it
// through the same ISO-TP logic internal/frame applies to adapter text
// responses. It exists to cross-check the frame parser against real bus
// traffic, not to replace the session engine.
package canbus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/brutella/can"
	"github.com/charmbracelet/log"

	"github.com/anodyne74/obdclient/internal/frame"
)

// FlushInterval is how often buffered per-header frames are handed to the
// frame parser for reassembly. ISO-TP consecutive frames on a healthy bus
// arrive within single-digit milliseconds of each other, so this window
// comfortably covers a whole multi-frame response without merging two
// unrelated requests together.
const FlushInterval = 50 * time.Millisecond

// Sniffer binds to a SocketCAN interface and accumulates frames per
// 11-bit header, flushing each window through frame.Parse.
type Sniffer struct {
	bus *can.Bus

	mu    sync.Mutex
	lines map[uint32][]string
	order []uint32
}

// Open binds a Sniffer to the named SocketCAN interface (e.g. "can0").
// The bus is not yet receiving frames; call Run to start it.
func Open(iface string) (*Sniffer, error) {
	bus, err := can.NewBusForInterfaceWithName(iface)
	if err != nil {
		return nil, fmt.Errorf("opening CAN interface %s: %w", iface, err)
	}
	return &Sniffer{bus: bus, lines: make(map[uint32][]string)}, nil
}

// Handle implements can.Handler, buffering one frame under its CAN ID.
func (s *Sniffer) Handle(f can.Frame) {
	line := formatLine(f)

	s.mu.Lock()
	if _, ok := s.lines[f.ID]; !ok {
		s.order = append(s.order, f.ID)
	}
	s.lines[f.ID] = append(s.lines[f.ID], line)
	s.mu.Unlock()
}

// formatLine renders a CAN frame the way an ELM327 adapter would print a
// header+payload response line, so frame.Parse can reassemble it with no
// changes: a 3-hex-digit header followed by the payload bytes in hex.
func formatLine(f can.Frame) string {
	n := int(f.Length)
	if n == 0 || n > len(f.Data) {
		n = len(f.Data)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%03X", f.ID)
	for _, by := range f.Data[:n] {
		fmt.Fprintf(&b, "%02X", by)
	}
	return b.String()
}

// Run subscribes the Sniffer to its bus and flushes reassembled responses
// to out every FlushInterval until ctx is cancelled. It blocks.
func (s *Sniffer) Run(ctx context.Context, out chan<- []frame.EcuResponse) {
	s.bus.Subscribe(s)

	// ConnectAndPublish starts the bus's blocking receive loop; without it
	// Subscribe registers a handler that never gets called.
	go func() {
		if err := s.bus.ConnectAndPublish(); err != nil {
			log.Error("canbus: bus connection ended", "err", err)
		}
	}()
	defer s.bus.Disconnect()

	ticker := time.NewTicker(FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flush(out)
		}
	}
}

func (s *Sniffer) flush(out chan<- []frame.EcuResponse) {
	s.mu.Lock()
	if len(s.order) == 0 {
		s.mu.Unlock()
		return
	}
	var block strings.Builder
	for _, id := range s.order {
		for _, line := range s.lines[id] {
			block.WriteString(line)
			block.WriteByte('\n')
		}
	}
	s.lines = make(map[uint32][]string)
	s.order = nil
	s.mu.Unlock()

	resps, err := frame.Parse(block.String())
	if err != nil {
		log.Warn("canbus: reassembly error", "err", err)
		return
	}
	if len(resps) == 0 {
		return
	}
	select {
	case out <- resps:
	case <-time.After(time.Second):
		log.Warn("canbus: dropped reassembled batch, consumer not reading")
	}
}
