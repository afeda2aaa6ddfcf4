// Package service implements the SAE J1979 service ($01-$0A) request
// encoders and response decoders described in §4.5, §4.8, and §6. Commands
// are returned without a trailing carriage return; the session engine
// appends the CR terminator at send time.
package service

import (
	"fmt"
	"strings"

	"github.com/anodyne74/obdclient/internal/obdtypes"
)

const (
	ModeCurrentData     = 0x01
	ModeFreezeFrameData = 0x02
	ModeStoredDtcs      = 0x03
	ModeClearDtcs       = 0x04
	ModePendingDtcs     = 0x07
	ModeVehicleInfo     = 0x09
	ModePermanentDtcs   = 0x0A

	MaxBatchPids = 6
)

// SupportBitmapBases are the PID values that probe a 32-PID support window.
var SupportBitmapBases = []byte{0x00, 0x20, 0x40, 0x60, 0x80, 0xA0, 0xC0, 0xE0}

// EncodeMode01 builds a batched current-data request for up to
// MaxBatchPids PIDs.
func EncodeMode01(pids []byte) (string, error) {
	if len(pids) == 0 {
		return "", obdtypes.InvalidRequest("no PIDs requested")
	}
	if len(pids) > MaxBatchPids {
		return "", obdtypes.InvalidRequest(fmt.Sprintf("at most %d PIDs per batch, got %d", MaxBatchPids, len(pids)))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%02X", ModeCurrentData)
	for _, p := range pids {
		fmt.Fprintf(&b, "%02X", p)
	}
	return b.String(), nil
}

// EncodeMode02 builds a freeze-frame request for a single PID and frame index.
func EncodeMode02(pid, frameIndex byte) string {
	return fmt.Sprintf("%02X%02X%02X", ModeFreezeFrameData, pid, frameIndex)
}

// EncodeBareMode builds a bare-mode request (service $03, $04, $07, $0A).
func EncodeBareMode(mode byte) string {
	return fmt.Sprintf("%02X", mode)
}

// EncodeMode09 builds a vehicle-info request for the given info type.
func EncodeMode09(infoType byte) string {
	return fmt.Sprintf("%02X%02X", ModeVehicleInfo, infoType)
}

// EncodeSupportProbe builds a support-bitmap probe for the given window
// base (one of SupportBitmapBases).
func EncodeSupportProbe(base byte) string {
	return fmt.Sprintf("%02X%02X", ModeCurrentData, base)
}

// StripHeader removes the response's mode-echo byte (and, for PID-addressed
// services, the PID-echo byte) leaving the raw data bytes.
func StripHeader(payload []byte, extraBytes int) []byte {
	if len(payload) <= 1+extraBytes {
		return nil
	}
	return payload[1+extraBytes:]
}
