// Package frame splits adapter response blocks into per-ECU header+payload
// records and reassembles ISO-TP-style multi-frame responses.
package frame

import (
	"strconv"
	"strings"

	"github.com/anodyne74/obdclient/internal/bytecodec"
	"github.com/anodyne74/obdclient/internal/obdtypes"
)

// EcuResponse is a single decoded response, attributed to the ECU that sent
// it where a header was present.
type EcuResponse struct {
	Header    uint32
	Is29Bit   bool
	HasHeader bool
	Role      string
	Payload   []byte
	RawLine   string
}

// Functional broadcast and standard response address range, per §6.
const (
	FunctionalBroadcast = 0x7DF
	responseBase        = 0x7E8
	requestBase         = 0x7E0
)

var roleByResponseHeader = map[uint32]string{
	0x7E8: "Engine",
	0x7E9: "Transmission",
	0x7EA: "ABS",
	0x7EB: "Airbag",
	0x7EC: "Body",
	0x7ED: "Climate",
}

// RoleFor returns the standard role name for a response header, or "" if the
// header is outside the documented table (the raw header value is retained
// by the caller in that case).
func RoleFor(header uint32) string {
	return roleByResponseHeader[header]
}

// Parse splits a decoded response block (everything the session engine
// collected up to the prompt) into EcuResponse values, performing ISO-TP
// reassembly per header.
func Parse(block string) ([]EcuResponse, error) {
	lines := splitLines(block)

	type group struct {
		header    uint32
		is29Bit   bool
		hasHeader bool
		records   []lineRecord
	}
	var order []uint32
	groups := map[uint32]*group{}
	var unheadered []lineRecord

	for _, line := range lines {
		rec := parseLine(line)
		if !rec.hasHeader {
			unheadered = append(unheadered, rec)
			continue
		}
		g, ok := groups[rec.header]
		if !ok {
			g = &group{header: rec.header, is29Bit: rec.is29Bit, hasHeader: true}
			groups[rec.header] = g
			order = append(order, rec.header)
		}
		g.records = append(g.records, rec)
	}

	var out []EcuResponse
	var lastErr error

	for _, h := range order {
		g := groups[h]
		payload, err := reassemble(g.records)
		if err != nil {
			lastErr = err
			continue
		}
		out = append(out, EcuResponse{
			Header:    g.header,
			Is29Bit:   g.is29Bit,
			HasHeader: true,
			Role:      RoleFor(g.header),
			Payload:   payload,
			RawLine:   g.records[0].raw,
		})
	}

	for _, rec := range unheadered {
		out = append(out, EcuResponse{
			Payload: rec.payload,
			RawLine: rec.raw,
		})
	}

	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

// splitLines drops blank lines, "OK", "SEARCHING...", and lines beginning
// with the prompt character, per §4.2 step 1.
func splitLines(block string) []string {
	raw := strings.FieldsFunc(block, func(r rune) bool {
		return r == '\r' || r == '\n'
	})
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l == "" || l == "OK" || l == "SEARCHING..." || strings.HasPrefix(l, ">") {
			continue
		}
		out = append(out, l)
	}
	return out
}

type lineRecord struct {
	hasHeader bool
	header    uint32
	is29Bit   bool
	payload   []byte
	raw       string
}

// parseLine attempts an 11-bit header, then a 29-bit header, then falls
// back to treating the whole line as payload with an unknown header.
func parseLine(line string) lineRecord {
	clean := bytecodec.CleanHex(line)

	if len(clean) >= 3 {
		if h, ok := parseHexUint(clean[:3], 11); ok && looksLikeResponseHeader(uint32(h)) {
			return lineRecord{
				hasHeader: true,
				header:    uint32(h),
				payload:   bytecodec.HexToBytes(clean[3:]),
				raw:       line,
			}
		}
	}

	if len(clean) >= 8 {
		if h, ok := parseHexUint(clean[:8], 32); ok && looksLike29BitHeader(uint32(h)) {
			return lineRecord{
				hasHeader: true,
				header:    uint32(h),
				is29Bit:   true,
				payload:   bytecodec.HexToBytes(clean[8:]),
				raw:       line,
			}
		}
	}

	return lineRecord{
		payload: bytecodec.HexToBytes(clean),
		raw:     line,
	}
}

func looksLikeResponseHeader(h uint32) bool {
	return h == FunctionalBroadcast || (h >= responseBase && h <= responseBase+7) || (h >= requestBase && h <= requestBase+7)
}

// iso15765ExtendedPrefix is the top byte ISO 15765-4 29-bit CAN identifiers
// carry for OBD-II diagnostic traffic (functional request 18DB33F1,
// physical responses 18DAF1xx). A headerless line of 8+ hex characters
// that doesn't start with this byte is not a 29-bit header — it is almost
// always a PCI-framed payload that happens to be long enough to look like
// one, which the 11-bit branch above didn't claim.
const iso15765ExtendedPrefix = 0x18

func looksLike29BitHeader(h uint32) bool {
	return h>>24 == iso15765ExtendedPrefix
}

func parseHexUint(s string, bits int) (uint64, bool) {
	v, err := strconv.ParseUint(s, 16, bits)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ErrMultiFrameIncomplete signals a missing consecutive frame within the
// adapter-driven inter-frame window.
var ErrMultiFrameIncomplete = obdtypes.ParseError("multi-frame response incomplete")

// ErrMultiFrameOutOfOrder signals an out-of-sequence consecutive frame; the
// whole reassembly for that ECU is discarded.
var ErrMultiFrameOutOfOrder = obdtypes.ParseError("multi-frame response out of order")

// reassemble applies ISO-TP single/first/consecutive framing across the
// records collected for one header, per §4.2 step 4.
func reassemble(records []lineRecord) ([]byte, error) {
	if len(records) == 0 {
		return nil, ErrMultiFrameIncomplete
	}

	first := records[0].payload
	if len(first) == 0 {
		return nil, obdtypes.ParseError("empty ISO-TP frame")
	}

	pci := first[0] >> 4

	switch pci {
	case 0x0: // single frame: length in low nibble
		length := int(first[0] & 0x0F)
		if length > len(first)-1 {
			length = len(first) - 1
		}
		return append([]byte(nil), first[1:1+length]...), nil

	case 0x1: // first frame: 12-bit length across first two bytes
		if len(first) < 2 {
			return nil, ErrMultiFrameIncomplete
		}
		length := int(first[0]&0x0F)<<8 | int(first[1])
		data := append([]byte(nil), first[2:]...)

		expectedSeq := byte(1)
		for _, rec := range records[1:] {
			if len(rec.payload) == 0 || rec.payload[0]>>4 != 0x2 {
				continue
			}
			seq := rec.payload[0] & 0x0F
			if seq != expectedSeq {
				return nil, ErrMultiFrameOutOfOrder
			}
			data = append(data, rec.payload[1:]...)
			expectedSeq = (expectedSeq + 1) % 16
			if len(data) >= length {
				break
			}
		}

		if len(data) < length {
			return nil, ErrMultiFrameIncomplete
		}
		return data[:length], nil

	default:
		// No recognizable ISO-TP PCI nibble (K-Line/ISO9141/J1850 style
		// responses carry no ISO-TP framing even with a header present).
		return append([]byte(nil), first...), nil
	}
}
