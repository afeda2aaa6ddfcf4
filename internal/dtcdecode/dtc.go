// Package dtcdecode decodes J2012 diagnostic trouble codes, freeze frames,
// and vehicle identification (VIN/CalID/ECU name), per §4.4.
package dtcdecode

import (
	"fmt"
	"time"

	"github.com/anodyne74/obdclient/internal/pidreg"
)

// Kind distinguishes the service a DTC was read from.
type Kind int

const (
	KindStored Kind = iota
	KindPending
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindPending:
		return "pending"
	case KindPermanent:
		return "permanent"
	default:
		return "stored"
	}
}

// Severity is a coarse derived indicator of how urgently a DTC should be
// surfaced to a user. Not part of J1979; a reasonable default ordering over
// Kind, used by front ends that need to sort/highlight DTCs.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

// StatusBits carries the 8 status bits a $07 ("pending", with status) or
// vendor extension response may supply. Known is false when the response
// didn't carry status bytes at all; in that case the individual bit fields
// are zero-value sentinels, not fabricated results, per §4.4.
type StatusBits struct {
	Known                      bool
	TestFailed                 bool
	TestFailedThisCycle        bool
	Pending                    bool
	Confirmed                  bool
	TestNotCompletedSinceClear bool
	TestFailedSinceClear       bool
	TestNotCompletedThisCycle  bool
	WarningIndicatorRequested  bool
}

func decodeStatusByte(b byte) StatusBits {
	return StatusBits{
		Known:                      true,
		TestFailed:                 b&0x01 != 0,
		TestFailedThisCycle:        b&0x02 != 0,
		Pending:                    b&0x04 != 0,
		Confirmed:                  b&0x08 != 0,
		TestNotCompletedSinceClear: b&0x10 != 0,
		TestFailedSinceClear:       b&0x20 != 0,
		TestNotCompletedThisCycle:  b&0x40 != 0,
		WarningIndicatorRequested:  b&0x80 != 0,
	}
}

// Dtc is a single decoded trouble code.
type Dtc struct {
	Code        string
	Category    byte // 'P', 'C', 'B', or 'U'
	Kind        Kind
	Status      StatusBits
	Description string
	Severity    Severity
}

var categoryLetter = [4]byte{'P', 'C', 'B', 'U'}

// DecodeWord converts a two-byte DTC word into a textual code, per §4.4.
// Word 0x0000 (and any all-zero word) is suppressed and returns ok=false.
func DecodeWord(hi, lo byte) (code string, ok bool) {
	if hi == 0 && lo == 0 {
		return "", false
	}
	category := categoryLetter[hi>>6]
	firstDigit := (hi >> 4) & 0x03
	digit2 := hi & 0x0F
	digit3 := lo >> 4
	digit4 := lo & 0x0F
	return fmt.Sprintf("%c%d%X%X%X", category, firstDigit, digit2, digit3, digit4), true
}

func severityFor(kind Kind, status StatusBits) Severity {
	switch {
	case kind == KindPermanent:
		return SeverityCritical
	case status.Known && status.Confirmed:
		return SeverityWarning
	case kind == KindPending:
		return SeverityInfo
	default:
		return SeverityWarning
	}
}

// ParseDtcResponse walks a service $03/$07/$0A payload two bytes per DTC,
// tolerating both the presence and absence of the leading count byte (an
// open question in the source ecosystem; this parser accepts both forms by
// trying with the count byte first and falling back to without it).
func ParseDtcResponse(payload []byte, kind Kind) ([]Dtc, error) {
	body := payload
	if len(body) > 0 && int(body[0]) == (len(body)-1)/2 && len(body)%2 == 1 {
		// Leading byte plausibly is a DTC count; drop it.
		body = body[1:]
	}

	if len(body)%2 != 0 {
		// Still odd: the count-byte guess above was wrong, or the adapter
		// padded oddly. Trim the trailing byte rather than failing outright.
		body = body[:len(body)-1]
	}

	var out []Dtc
	for i := 0; i+1 < len(body); i += 2 {
		code, ok := DecodeWord(body[i], body[i+1])
		if !ok {
			continue
		}
		status := StatusBits{}
		d := Dtc{
			Code:     code,
			Category: code[0],
			Kind:     kind,
			Status:   status,
		}
		d.Severity = severityFor(kind, status)
		out = append(out, d)
	}
	return out, nil
}

// FreezeFrame is a snapshot of PIDs captured at the moment a DTC matured.
type FreezeFrame struct {
	FrameIndex    int
	TriggeringDtc string
	Samples       []pidreg.PidSample
	Timestamp     time.Time
}
