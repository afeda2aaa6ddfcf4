package dtcdecode

import "fmt"

// VIN decoding: hex-to-ASCII (done by the caller via bytecodec), ISO-3779
// check-digit validation, and a small WMI lookup table for manufacturer and
// country of origin.

var vinWeights = [17]int{8, 7, 6, 5, 4, 3, 2, 10, 0, 9, 8, 7, 6, 5, 4, 3, 2}

var vinTransliteration = map[byte]int{
	'0': 0, '1': 1, '2': 2, '3': 3, '4': 4, '5': 5, '6': 6, '7': 7, '8': 8, '9': 9,
	'A': 1, 'B': 2, 'C': 3, 'D': 4, 'E': 5, 'F': 6, 'G': 7, 'H': 8,
	'J': 1, 'K': 2, 'L': 3, 'M': 4, 'N': 5, 'P': 7, 'R': 9,
	'S': 2, 'T': 3, 'U': 4, 'V': 5, 'W': 6, 'X': 7, 'Y': 8, 'Z': 9,
}

// VehicleInfo is the decoded result of VIN/CalID/ECU-name queries (§3).
type VehicleInfo struct {
	VIN              string
	VinVerified      bool
	Manufacturer     string
	Country          string
	CalibrationIDs   []string
	CalVerificationN []string
	EcuNames         []string
}

// DecodeVIN validates length and the ISO-3779 check digit. A wrong-length or
// non-printable input is rejected outright (err != nil) so the caller can
// leave the vin field unset per §3/§4.8. A correct-length VIN with a failing
// checksum is still returned, flagged unverified, per §4.4/§8 — it is never
// silently discarded.
func DecodeVIN(ascii string) (vin string, verified bool, err error) {
	if len(ascii) != 17 {
		return "", false, vinError("VIN must be exactly 17 characters, got %d", len(ascii))
	}
	for i := 0; i < 17; i++ {
		c := ascii[i]
		if c == 'I' || c == 'O' || c == 'Q' {
			return "", false, vinError("VIN contains forbidden character %q", c)
		}
		if _, ok := vinTransliteration[c]; !ok {
			return "", false, vinError("VIN contains non-transliterable character %q", c)
		}
	}

	sum := 0
	for i := 0; i < 17; i++ {
		sum += vinTransliteration[ascii[i]] * vinWeights[i]
	}
	remainder := sum % 11
	var want byte
	if remainder == 10 {
		want = 'X'
	} else {
		want = byte('0' + remainder)
	}

	return ascii, ascii[8] == want, nil
}

func vinError(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
