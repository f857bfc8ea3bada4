package feed

import (
	"fmt"
	"time"
)

// FormatEstimate renders one accepted state estimate as a downstream text
// record:
//
//	$EST,<id hex>,<seq>,<yyyymmddHHMMSS.mmm>,<px>,<py>,<v>,<yaw>,<yawd>\r\n
//
// Positions in metres, yaw in radians. The timestamp is wall-clock derived
// from the measurement timestamp in microseconds.
func FormatEstimate(id uint32, tsUs int64, seq uint16, px, py, v, yaw, yawd float64) []byte {
	ts := time.UnixMicro(tsUs).UTC().Format("20060102150405.000")
	body := fmt.Sprintf("$EST,%08X,%d,%s,%.3f,%.3f,%.3f,%.4f,%.4f\r\n",
		id, seq, ts, px, py, v, yaw, yawd)
	return []byte(body)
}

// FormatWarning renders a filter fault record (rejected packet, numerical
// failure) so downstream consumers can see gaps in the estimate stream.
func FormatWarning(id uint32, tsUs int64, reason string) []byte {
	ts := time.UnixMicro(tsUs).UTC().Format("20060102150405.000")
	return []byte(fmt.Sprintf("$WRN,%08X,%s,%s\r\n", id, ts, reason))
}
