package pidreg

// Standard SAE J1979 mode $01 PID definitions, grounded in the formulas in
// §4.3 and in the per-PID SetValue implementations of rzetterberg/elmobd's
// commands.go (EngineRPM, CoolantTemperature, VehicleSpeed, etc).

const mode01 = 0x01

func byteA(b []byte) float64 { return float64(b[0]) }

func ab16(b []byte) float64 { return float64(b[0])*256 + float64(b[1]) }

func init() {
	Register(PidDefinition{
		Service: mode01, PID: 0x01, Name: "Monitor status since DTCs cleared",
		PayloadBytes: 4, Unit: "", Min: 0, Max: 1, Category: "diagnostic",
		Decode: func(b []byte) float64 {
			if b[0]&0x80 != 0 {
				return 1
			}
			return 0
		},
		Bits: []BitFlag{
			{ByteIndex: 0, BitIndex: 7, Name: "MIL on", ActiveHigh: true},
		},
	})

	Register(PidDefinition{
		Service: mode01, PID: 0x04, Name: "Calculated engine load", PayloadBytes: 1,
		Unit: "%", Min: 0, Max: 100, Category: "engine",
		Decode: func(b []byte) float64 { return byteA(b) * 100 / 255 },
	})

	Register(PidDefinition{
		Service: mode01, PID: 0x05, Name: "Engine coolant temperature", PayloadBytes: 1,
		Unit: "°C", Min: -40, Max: 215, Category: "engine",
		Decode:     func(b []byte) float64 { return byteA(b) - 40 },
		Thresholds: &Thresholds{Direction: DirectionAbove, Warning: 100, HasCritical: true, Critical: 110},
	})

	fuelTrim := func(b []byte) float64 { return (byteA(b) - 128) * 100 / 128 }
	Register(PidDefinition{Service: mode01, PID: 0x06, Name: "Short term fuel trim, bank 1", PayloadBytes: 1, Unit: "%", Min: -100, Max: 99.21875, Category: "fuel", Decode: fuelTrim})
	Register(PidDefinition{Service: mode01, PID: 0x07, Name: "Long term fuel trim, bank 1", PayloadBytes: 1, Unit: "%", Min: -100, Max: 99.21875, Category: "fuel", Decode: fuelTrim})
	Register(PidDefinition{Service: mode01, PID: 0x08, Name: "Short term fuel trim, bank 2", PayloadBytes: 1, Unit: "%", Min: -100, Max: 99.21875, Category: "fuel", Decode: fuelTrim})
	Register(PidDefinition{Service: mode01, PID: 0x09, Name: "Long term fuel trim, bank 2", PayloadBytes: 1, Unit: "%", Min: -100, Max: 99.21875, Category: "fuel", Decode: fuelTrim})

	Register(PidDefinition{
		Service: mode01, PID: 0x0A, Name: "Fuel pressure", PayloadBytes: 1,
		Unit: "kPa", Min: 0, Max: 765, Category: "fuel",
		Decode: func(b []byte) float64 { return byteA(b) * 3 },
	})

	Register(PidDefinition{
		Service: mode01, PID: 0x0B, Name: "Intake manifold absolute pressure", PayloadBytes: 1,
		Unit: "kPa", Min: 0, Max: 255, Category: "engine",
		Decode: byteA,
	})

	Register(PidDefinition{
		Service: mode01, PID: 0x0C, Name: "Engine RPM", PayloadBytes: 2,
		Unit: "rpm", Min: 0, Max: 16383.75, Category: "engine",
		Decode:     func(b []byte) float64 { return ab16(b) / 4 },
		Thresholds: &Thresholds{Direction: DirectionAbove, Warning: 6000, HasCritical: true, Critical: 7000},
	})

	Register(PidDefinition{
		Service: mode01, PID: 0x0D, Name: "Vehicle speed", PayloadBytes: 1,
		Unit: "km/h", Min: 0, Max: 255, Category: "vehicle",
		Decode: byteA,
	})

	Register(PidDefinition{
		Service: mode01, PID: 0x0E, Name: "Timing advance", PayloadBytes: 1,
		Unit: "°", Min: -64, Max: 63.5, Category: "engine",
		Decode: func(b []byte) float64 { return byteA(b)/2 - 64 },
	})

	Register(PidDefinition{
		Service: mode01, PID: 0x0F, Name: "Intake air temperature", PayloadBytes: 1,
		Unit: "°C", Min: -40, Max: 215, Category: "engine",
		Decode: func(b []byte) float64 { return byteA(b) - 40 },
	})

	Register(PidDefinition{
		Service: mode01, PID: 0x10, Name: "MAF air flow rate", PayloadBytes: 2,
		Unit: "g/s", Min: 0, Max: 655.35, Category: "engine",
		Decode: func(b []byte) float64 { return ab16(b) / 100 },
	})

	Register(PidDefinition{
		Service: mode01, PID: 0x11, Name: "Throttle position", PayloadBytes: 1,
		Unit: "%", Min: 0, Max: 100, Category: "engine",
		Decode: func(b []byte) float64 { return byteA(b) * 100 / 255 },
	})

	o2Voltage := func(b []byte) float64 { return byteA(b) / 200 }
	for pid := byte(0x14); pid <= 0x1B; pid++ {
		Register(PidDefinition{
			Service: mode01, PID: pid, Name: "Oxygen sensor voltage", PayloadBytes: 2,
			Unit: "V", Min: 0, Max: 1.275, Category: "emissions",
			Decode: o2Voltage,
		})
	}

	Register(PidDefinition{
		Service: mode01, PID: 0x1F, Name: "Run time since engine start", PayloadBytes: 2,
		Unit: "s", Min: 0, Max: 65535, Category: "engine",
		Decode: ab16,
	})

	Register(PidDefinition{
		Service: mode01, PID: 0x21, Name: "Distance traveled with MIL on", PayloadBytes: 2,
		Unit: "km", Min: 0, Max: 65535, Category: "diagnostic",
		Decode: ab16,
	})

	Register(PidDefinition{
		Service: mode01, PID: 0x2F, Name: "Fuel tank level input", PayloadBytes: 1,
		Unit: "%", Min: 0, Max: 100, Category: "fuel",
		Decode:     func(b []byte) float64 { return byteA(b) * 100 / 255 },
		Thresholds: &Thresholds{Direction: DirectionBelow, Warning: 15},
	})

	Register(PidDefinition{
		Service: mode01, PID: 0x33, Name: "Absolute barometric pressure", PayloadBytes: 1,
		Unit: "kPa", Min: 0, Max: 255, Category: "environment",
		Decode: byteA,
	})

	Register(PidDefinition{
		Service: mode01, PID: 0x3C, Name: "Catalyst temperature, bank 1, sensor 1", PayloadBytes: 2,
		Unit: "°C", Min: -40, Max: 6513.5, Category: "emissions",
		Decode:     func(b []byte) float64 { return ab16(b)/10 - 40 },
		Thresholds: &Thresholds{Direction: DirectionAbove, Warning: 800, HasCritical: true, Critical: 900},
	})

	Register(PidDefinition{
		Service: mode01, PID: 0x42, Name: "Control module voltage", PayloadBytes: 2,
		Unit: "V", Min: 0, Max: 65.535, Category: "electrical",
		Decode:     func(b []byte) float64 { return ab16(b) / 1000 },
		Thresholds: &Thresholds{Direction: DirectionBelow, Warning: 13, HasCritical: true, Critical: 11.5},
	})

	Register(PidDefinition{
		Service: mode01, PID: 0x46, Name: "Ambient air temperature", PayloadBytes: 1,
		Unit: "°C", Min: -40, Max: 215, Category: "environment",
		Decode: func(b []byte) float64 { return byteA(b) - 40 },
	})

	Register(PidDefinition{
		Service: mode01, PID: 0x5B, Name: "Hybrid battery pack remaining life", PayloadBytes: 1,
		Unit: "%", Min: 0, Max: 100, Category: "hybrid",
		Decode:     func(b []byte) float64 { return byteA(b) * 100 / 255 },
		Thresholds: &Thresholds{Direction: DirectionBelow, Warning: 20, HasCritical: true, Critical: 10},
	})

	Register(PidDefinition{
		Service: mode01, PID: 0x5C, Name: "Engine oil temperature", PayloadBytes: 1,
		Unit: "°C", Min: -40, Max: 215, Category: "engine",
		Decode:     func(b []byte) float64 { return byteA(b) - 40 },
		Thresholds: &Thresholds{Direction: DirectionAbove, Warning: 120, HasCritical: true, Critical: 140},
	})

	Register(PidDefinition{
		Service: mode01, PID: 0x5E, Name: "Engine fuel rate", PayloadBytes: 2,
		Unit: "L/h", Min: 0, Max: 3276.75, Category: "fuel",
		Decode: func(b []byte) float64 { return ab16(b) / 20 },
	})

	Register(PidDefinition{
		Service: mode01, PID: 0xA6, Name: "Odometer", PayloadBytes: 4,
		Unit: "km", Min: 0, Max: 429496729.5, Category: "diagnostic",
		Decode: func(b []byte) float64 {
			return (float64(b[0])*16777216 + float64(b[1])*65536 + float64(b[2])*256 + float64(b[3])) * 0.1
		},
	})

	// Support bitmaps (§4.5): PID $00, $20, $40, $60, $80, $A0, $C0, $E0.
	for _, pid := range []byte{0x00, 0x20, 0x40, 0x60, 0x80, 0xA0, 0xC0, 0xE0} {
		Register(PidDefinition{
			Service: mode01, PID: pid, Name: "Supported PIDs bitmap", PayloadBytes: 4,
			Unit: "", Min: 0, Max: 4294967295, Category: "support-bitmap",
			Decode: func(b []byte) float64 {
				return float64(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
			},
		})
	}

	RegisterConversion(Conversion{From: "°C", To: "°F", Factor: 9.0 / 5.0, Offset: 32})
	RegisterConversion(Conversion{From: "km/h", To: "mph", Factor: 0.621371, Offset: 0})
	RegisterConversion(Conversion{From: "kPa", To: "psi", Factor: 0.145038, Offset: 0})
	RegisterConversion(Conversion{From: "L/h", To: "gal/h", Factor: 0.264172, Offset: 0})
}
