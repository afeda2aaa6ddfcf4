package dtcdecode

import "testing"

func TestDecodeWordSuppressesZero(t *testing.T) {
	if _, ok := DecodeWord(0x00, 0x00); ok {
		t.Error("expected 0x0000 to be suppressed")
	}
}

func TestDecodeWordCategories(t *testing.T) {
	cases := []struct {
		hi, lo byte
		want   string
	}{
		{0x01, 0x33, "P0133"},
		{0x02, 0x45, "P0245"},
		{0x41, 0x00, "C0100"},
		{0x81, 0x00, "B0100"},
		{0xC1, 0x00, "U0100"},
	}
	for _, c := range cases {
		got, ok := DecodeWord(c.hi, c.lo)
		if !ok {
			t.Fatalf("DecodeWord(%02X,%02X) unexpectedly suppressed", c.hi, c.lo)
		}
		if got != c.want {
			t.Errorf("DecodeWord(%02X,%02X) = %q, want %q", c.hi, c.lo, got, c.want)
		}
	}
}

func TestParseDtcResponseTwoCodes(t *testing.T) {
	// 43 01 33 02 45 -> after stripping the 43 mode byte (done by the
	// service layer), payload is "01 33 02 45" with no count byte.
	payload := []byte{0x01, 0x33, 0x02, 0x45}
	dtcs, err := ParseDtcResponse(payload, KindStored)
	if err != nil {
		t.Fatalf("ParseDtcResponse: %v", err)
	}
	if len(dtcs) != 2 {
		t.Fatalf("got %d DTCs, want 2", len(dtcs))
	}
	if dtcs[0].Code != "P0133" || dtcs[1].Code != "P0245" {
		t.Errorf("codes = %q, %q", dtcs[0].Code, dtcs[1].Code)
	}
	for _, d := range dtcs {
		if d.Kind != KindStored {
			t.Errorf("kind = %v, want Stored", d.Kind)
		}
	}
}

func TestParseDtcResponseWithCountByte(t *testing.T) {
	// count byte (2) then two DTC words
	payload := []byte{0x02, 0x01, 0x33, 0x02, 0x45}
	dtcs, err := ParseDtcResponse(payload, KindStored)
	if err != nil {
		t.Fatalf("ParseDtcResponse: %v", err)
	}
	if len(dtcs) != 2 {
		t.Fatalf("got %d DTCs, want 2", len(dtcs))
	}
}

func TestDecodeVinValid(t *testing.T) {
	vin, verified, err := DecodeVIN("1HGBH41JXMN109186")
	if err != nil {
		t.Fatalf("DecodeVIN: %v", err)
	}
	if !verified {
		t.Error("expected VIN to verify")
	}
	manufacturer, country, ok := LookupWMI(vin)
	if !ok {
		t.Fatal("expected WMI lookup to succeed")
	}
	if manufacturer != "Honda" || country != "Japan" {
		t.Errorf("got %s/%s, want Honda/Japan", manufacturer, country)
	}
}

func TestDecodeVinBadChecksumUnverifiedNotRejected(t *testing.T) {
	// Flip the check digit of a valid VIN.
	corrupted := "1HGBH41J0MN109186"
	vin, verified, err := DecodeVIN(corrupted)
	if err != nil {
		t.Fatalf("DecodeVIN should not reject a corrupted checksum: %v", err)
	}
	if vin != corrupted {
		t.Errorf("expected VIN text preserved, got %q", vin)
	}
	if verified {
		t.Error("expected checksum mismatch to be unverified")
	}
}

func TestDecodeVinWrongLengthRejected(t *testing.T) {
	_, _, err := DecodeVIN("SHORT")
	if err == nil {
		t.Error("expected error for wrong-length VIN")
	}
}
