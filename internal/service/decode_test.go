package service

import (
	"testing"
	"time"

	"github.com/anodyne74/obdclient/internal/frame"
)

func TestDecodeMode01Rpm(t *testing.T) {
	// 41 0C 1A F8 -> RPM = ((0x1A*256)+0xF8)/4 = 1726.0
	resp := frame.EcuResponse{
		Header:  0x7E8,
		Payload: []byte{0x41, 0x0C, 0x1A, 0xF8},
	}
	samples, err := DecodeMode01([]byte{0x0C}, resp, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("DecodeMode01: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
	if samples[0].Value != 1726.0 {
		t.Errorf("rpm = %v, want 1726.0", samples[0].Value)
	}
}

func TestDecodeMode01PartialSuccessSkipsUnknownPid(t *testing.T) {
	// Batched request for $0C (RPM) and an unregistered PID $FF; the
	// unknown PID's echo doesn't match any lookup so it is skipped, but
	// the known PID still decodes.
	resp := frame.EcuResponse{
		Header:  0x7E8,
		Payload: []byte{0x41, 0x0C, 0x1A, 0xF8},
	}
	samples, err := DecodeMode01([]byte{0x0C, 0xFF}, resp, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("DecodeMode01: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
}

func TestDecodeMode01RejectsMissingEcho(t *testing.T) {
	resp := frame.EcuResponse{Payload: []byte{0x12, 0x34}}
	if _, err := DecodeMode01([]byte{0x0C}, resp, time.Unix(0, 0)); err == nil {
		t.Error("expected error for missing $41 echo")
	}
}

func TestDecodeSupportBitmapScenario(t *testing.T) {
	// Spec scenario 6: probe 0100, response 41 00 BE 1F A8 13 ->
	// PIDs 01,03,04,05,06,07,0C,0D,0E,0F,10,11,13,15,1C,1F,20 supported,
	// continue bit (LSB of last byte) set so probing continues to $20.
	resp := frame.EcuResponse{
		Payload: []byte{0x41, 0x00, 0xBE, 0x1F, 0xA8, 0x13},
	}
	supported, cont, err := DecodeSupportBitmap(0x00, resp)
	if err != nil {
		t.Fatalf("DecodeSupportBitmap: %v", err)
	}
	want := []byte{0x01, 0x03, 0x04, 0x05, 0x06, 0x07, 0x0C, 0x0D, 0x0E, 0x0F, 0x10, 0x11, 0x13, 0x15, 0x1C, 0x1F, 0x20}
	if len(supported) != len(want) {
		t.Fatalf("got %d supported PIDs, want %d: %v", len(supported), len(want), supported)
	}
	for i, p := range want {
		if supported[i] != p {
			t.Errorf("supported[%d] = %#02x, want %#02x", i, supported[i], p)
		}
	}
	if !cont {
		t.Error("expected continue-probe bit set for PID $20")
	}
}

func TestDecodeDtcResponseStored(t *testing.T) {
	resp := frame.EcuResponse{
		Header:  0x7E8,
		Payload: []byte{0x43, 0x01, 0x33, 0x02, 0x45},
	}
	dtcs, err := DecodeDtcResponse(0x43, resp)
	if err != nil {
		t.Fatalf("DecodeDtcResponse: %v", err)
	}
	if len(dtcs) != 2 || dtcs[0].Code != "P0133" || dtcs[1].Code != "P0245" {
		t.Errorf("unexpected DTCs: %+v", dtcs)
	}
}

func TestDecodeVehicleInfoStringVin(t *testing.T) {
	// 49 02 01 <17 ASCII bytes of the VIN>
	vinBytes := []byte("1HGBH41JXMN109186")
	payload := append([]byte{0x49, 0x02, 0x01}, vinBytes...)
	resp := frame.EcuResponse{Payload: payload}
	s, err := DecodeVehicleInfoString(0x02, resp)
	if err != nil {
		t.Fatalf("DecodeVehicleInfoString: %v", err)
	}
	if s != "1HGBH41JXMN109186" {
		t.Errorf("got %q, want VIN ASCII", s)
	}
}

func TestClearDtcsAcknowledged(t *testing.T) {
	resp := frame.EcuResponse{Payload: []byte{0x44}}
	if !ClearDtcsAcknowledged(resp, "44") {
		t.Error("expected $44 echo to acknowledge")
	}
	if !ClearDtcsAcknowledged(frame.EcuResponse{}, "OK") {
		t.Error("expected OK text to acknowledge")
	}
}
