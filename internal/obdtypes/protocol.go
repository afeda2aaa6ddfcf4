// Package obdtypes holds the small value types shared by every layer of the
// diagnostic engine: bus protocols, value status, and the ELM327 numeric
// protocol codes returned by ATDPN.
package obdtypes

// BusProtocol identifies the in-vehicle bus an adapter has negotiated.
type BusProtocol int

const (
	ProtocolUnknown BusProtocol = iota
	ProtocolJ1850PWM
	ProtocolJ1850VPW
	ProtocolISO9141_2
	ProtocolKWP5Baud
	ProtocolKWPFast
	ProtocolCAN11Bit500k
	ProtocolCAN29Bit500k
	ProtocolCAN11Bit250k
	ProtocolCAN29Bit250k
	ProtocolJ1939
)

func (p BusProtocol) String() string {
	switch p {
	case ProtocolJ1850PWM:
		return "J1850-PWM"
	case ProtocolJ1850VPW:
		return "J1850-VPW"
	case ProtocolISO9141_2:
		return "ISO-9141-2"
	case ProtocolKWP5Baud:
		return "KWP-5-baud"
	case ProtocolKWPFast:
		return "KWP-fast"
	case ProtocolCAN11Bit500k:
		return "CAN-11bit-500k"
	case ProtocolCAN29Bit500k:
		return "CAN-29bit-500k"
	case ProtocolCAN11Bit250k:
		return "CAN-11bit-250k"
	case ProtocolCAN29Bit250k:
		return "CAN-29bit-250k"
	case ProtocolJ1939:
		return "J1939"
	default:
		return "unknown"
	}
}

// IsCAN reports whether the protocol rides on a CAN physical layer.
func (p BusProtocol) IsCAN() bool {
	switch p {
	case ProtocolCAN11Bit500k, ProtocolCAN29Bit500k, ProtocolCAN11Bit250k, ProtocolCAN29Bit250k, ProtocolJ1939:
		return true
	default:
		return false
	}
}

// protocolFromDPN maps the single hex digit returned by ATDPN to a BusProtocol.
// See ELM327 data sheet, "ATDPN" — digit 1..9, A.
var protocolFromDPN = map[byte]BusProtocol{
	'1': ProtocolJ1850PWM,
	'2': ProtocolJ1850VPW,
	'3': ProtocolISO9141_2,
	'4': ProtocolKWP5Baud,
	'5': ProtocolKWPFast,
	'6': ProtocolCAN11Bit500k,
	'7': ProtocolCAN29Bit500k,
	'8': ProtocolCAN11Bit250k,
	'9': ProtocolCAN29Bit250k,
	'A': ProtocolJ1939,
}

// ParseDPN converts the (possibly "A"-prefixed automatic) ATDPN digit to a
// BusProtocol. The adapter prefixes the digit with "A" when the protocol was
// auto-detected rather than forced; callers pass the last character.
func ParseDPN(digit byte) BusProtocol {
	if p, ok := protocolFromDPN[digit]; ok {
		return p
	}
	return ProtocolUnknown
}

// ValueStatus is the derived severity of a PidSample relative to its
// PidDefinition's warning/critical thresholds.
type ValueStatus int

const (
	StatusNormal ValueStatus = iota
	StatusWarning
	StatusCritical
)

func (s ValueStatus) String() string {
	switch s {
	case StatusWarning:
		return "warning"
	case StatusCritical:
		return "critical"
	default:
		return "normal"
	}
}
