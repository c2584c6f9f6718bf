package ec

import "math"

// Host interface ports.
const (
	CommandPort uint16 = 0x66
	DataPort    uint16 = 0x62
)

// Status and command bytes.
const (
	statusIBF = 1 // input buffer full bit index

	CmdRead  byte = 0x80
	CmdWrite byte = 0x99 // vendor fan command, not ACPI WR_EC
)

// RegFanDutyCommand is the sub-index the vendor write command takes for fan 1.
const RegFanDutyCommand byte = 0x01

// Register file layout as exposed by ec_sys.
const (
	RegisterFileSize = 0x100

	OffsetCPUTemp    = 0x07
	OffsetGPUTemp    = 0xCD
	OffsetFanDuty    = 0xCE
	OffsetFanRPMHigh = 0xD0
	OffsetFanRPMLow  = 0xD1
)

const (
	maxRaw     = 255
	maxPercent = 100

	// tachometer period to RPM
	rpmDivisor = 2156220
)

// RawToPercent converts an 8-bit duty register value to percent, rounding.
func RawToPercent(raw byte) int {
	return int(math.Round(float64(raw) / maxRaw * maxPercent))
}

// PercentToRaw converts a duty percent to the register value, truncating.
// Values outside [0,100] are clamped.
func PercentToRaw(pct int) byte {
	pct = max(0, min(pct, maxPercent))
	//nolint:gosec // G115: bounded above
	return byte(pct * maxRaw / maxPercent)
}

// rpmFromPeriod turns the tachometer period registers into RPM.
func rpmFromPeriod(high, low byte) int {
	period := int(high)<<8 | int(low)
	if period == 0 {
		return 0
	}

	return rpmDivisor / period
}
