package canbus

import (
	"strings"
	"testing"

	"github.com/brutella/can"

	"github.com/anodyne74/obdclient/internal/frame"
)

func TestFormatLineSingleFrame(t *testing.T) {
	f := can.Frame{
		ID:     0x7E8,
		Length: 4,
		Data:   [8]byte{0x03, 0x41, 0x0C, 0x1A, 0xF8, 0x00, 0x00, 0x00},
	}

	line := formatLine(f)
	if line != "7E803410C1A" {
		t.Fatalf("formatLine = %q", line)
	}

	resps, err := frame.Parse(line)
	if err != nil {
		t.Fatalf("frame.Parse: %v", err)
	}
	if len(resps) != 1 || resps[0].Header != 0x7E8 {
		t.Fatalf("resps = %+v", resps)
	}
}

func TestSnifferBuffersByHeader(t *testing.T) {
	s := &Sniffer{lines: make(map[uint32][]string)}

	s.Handle(can.Frame{ID: 0x7E8, Length: 3, Data: [8]byte{0x02, 0x41, 0x0C}})
	s.Handle(can.Frame{ID: 0x7E9, Length: 3, Data: [8]byte{0x02, 0x41, 0x0D}})

	if len(s.order) != 2 {
		t.Fatalf("expected two distinct headers buffered, got %d", len(s.order))
	}

	var block strings.Builder
	for _, id := range s.order {
		for _, line := range s.lines[id] {
			block.WriteString(line)
			block.WriteByte('\n')
		}
	}

	resps, err := frame.Parse(block.String())
	if err != nil {
		t.Fatalf("frame.Parse: %v", err)
	}
	if len(resps) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(resps))
	}
}
