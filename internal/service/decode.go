package service

import (
	"time"

	"github.com/anodyne74/obdclient/internal/bytecodec"
	"github.com/anodyne74/obdclient/internal/dtcdecode"
	"github.com/anodyne74/obdclient/internal/frame"
	"github.com/anodyne74/obdclient/internal/obdtypes"
	"github.com/anodyne74/obdclient/internal/pidreg"
)

// DecodeMode01 walks a batched current-data response, splitting it
// PID-by-PID using each PID's registered payload width. It requires the
// mode-echo byte ($41) at the front. PIDs that fail to decode (unknown PID,
// truncated payload) are omitted rather than failing the whole batch, per
// §4.8.
func DecodeMode01(requestedPids []byte, resp frame.EcuResponse, now time.Time) ([]pidreg.PidSample, error) {
	payload := resp.Payload
	if len(payload) == 0 || payload[0] != 0x41 {
		return nil, obdtypes.ParseError("mode $01 response missing $41 echo")
	}
	data := payload[1:]

	var out []pidreg.PidSample
	for _, pid := range requestedPids {
		if len(data) == 0 || data[0] != pid {
			continue
		}
		def, ok := pidreg.Lookup(ModeCurrentData, pid)
		if !ok {
			continue
		}
		data = data[1:]
		if len(data) < def.PayloadBytes {
			break
		}
		sample, err := pidreg.NewSample(def, data[:def.PayloadBytes], resp.Header, now)
		if err == nil {
			out = append(out, sample)
		}
		data = data[def.PayloadBytes:]
	}
	return out, nil
}

// DecodeSupportBitmap decodes a response to a support-bitmap probe at the
// given window base, returning the set of supported PIDs in base+1..base+32
// and whether probing should continue to the next window.
func DecodeSupportBitmap(base byte, resp frame.EcuResponse) (supported []byte, continueProbe bool, err error) {
	payload := resp.Payload
	if len(payload) < 6 || payload[0] != 0x41 || payload[1] != base {
		return nil, false, obdtypes.ParseError("malformed support bitmap response")
	}
	bitmap := payload[2:6]
	bits := uint32(bitmap[0])<<24 | uint32(bitmap[1])<<16 | uint32(bitmap[2])<<8 | uint32(bitmap[3])

	for i := 0; i < 32; i++ {
		// bit 31 (MSB) is base+1, bit 0 (LSB) is base+32.
		if bits&(1<<(31-uint(i))) != 0 {
			supported = append(supported, base+byte(i)+1)
		}
	}
	continueProbe = bits&0x01 != 0
	return supported, continueProbe, nil
}

// DecodeDtcResponse decodes a service $03/$07/$0A response.
func DecodeDtcResponse(service byte, resp frame.EcuResponse) ([]dtcdecode.Dtc, error) {
	var kind dtcdecode.Kind
	var echo byte
	switch service {
	case 0x43:
		kind, echo = dtcdecode.KindStored, 0x43
	case 0x47:
		kind, echo = dtcdecode.KindPending, 0x47
	case 0x4A:
		kind, echo = dtcdecode.KindPermanent, 0x4A
	default:
		return nil, obdtypes.ParseError("unrecognized DTC response service echo")
	}
	payload := resp.Payload
	if len(payload) == 0 || payload[0] != echo {
		return nil, obdtypes.ParseError("DTC response missing service echo")
	}
	return dtcdecode.ParseDtcResponse(payload[1:], kind)
}

// DecodeVehicleInfoString decodes a mode $09 response carrying a
// multi-string info item (VIN, CalID, ECU name) into its ASCII payload.
// The ELM327 format is "49 <infotype> <count> <data...>"; this decoder
// tolerates adapters that omit the count byte by extracting ASCII from
// whatever trails the info-type echo.
func DecodeVehicleInfoString(infoType byte, resp frame.EcuResponse) (string, error) {
	payload := resp.Payload
	if len(payload) < 2 || payload[0] != 0x49 || payload[1] != infoType {
		return "", obdtypes.ParseError("mode $09 response missing echo")
	}
	data := payload[2:]
	if len(data) > 0 && (data[0] < 32 || data[0] > 126) {
		// Drop a plausible leading count-of-items byte.
		data = data[1:]
	}
	return bytecodec.ExtractASCII(data), nil
}

// ClearDtcsAcknowledged reports whether a service $04 response indicates
// success: response head "44" or a body containing "OK".
func ClearDtcsAcknowledged(resp frame.EcuResponse, rawLine string) bool {
	if len(resp.Payload) > 0 && resp.Payload[0] == 0x44 {
		return true
	}
	return containsOK(rawLine)
}

func containsOK(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == 'O' && s[i+1] == 'K' {
			return true
		}
	}
	return false
}
