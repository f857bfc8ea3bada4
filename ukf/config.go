package ukf

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Config holds the fixed filter parameters. It is copied at construction;
// mutating a Config after NewFilter has no effect on the filter.
type Config struct {
	// Process noise standard deviations.
	StdA     float64 // longitudinal acceleration, m/s^2
	StdYawdd float64 // yaw acceleration, rad/s^2

	// Position sensor measurement noise.
	StdPosX float64
	StdPosY float64

	// Range/bearing/range-rate sensor measurement noise.
	StdRange     float64
	StdBearing   float64
	StdRangeRate float64

	// Per-sensor enables. A disabled sensor's packets still advance the
	// filter clock via prediction but produce no correction.
	UsePosition     bool
	UseRangeBearing bool
}

// DefaultConfig returns the stock tuning: tunable process noise defaults and
// the manufacturer measurement noise values, both sensors enabled.
func DefaultConfig() Config {
	return Config{
		StdA:            DefaultStdA,
		StdYawdd:        DefaultStdYawdd,
		StdPosX:         DefaultStdPosX,
		StdPosY:         DefaultStdPosY,
		StdRange:        DefaultStdRange,
		StdBearing:      DefaultStdBearing,
		StdRangeRate:    DefaultStdRangeRate,
		UsePosition:     true,
		UseRangeBearing: true,
	}
}

// Validate rejects configurations the filter cannot run with.
func (c Config) Validate() error {
	if c.StdA < 0 || c.StdYawdd < 0 {
		return fmt.Errorf("process noise std must be non-negative (std_a=%g std_yawdd=%g)", c.StdA, c.StdYawdd)
	}
	if c.StdPosX <= 0 || c.StdPosY <= 0 {
		return fmt.Errorf("position sensor noise std must be positive (x=%g y=%g)", c.StdPosX, c.StdPosY)
	}
	if c.StdRange <= 0 || c.StdBearing <= 0 || c.StdRangeRate <= 0 {
		return fmt.Errorf("range sensor noise std must be positive (r=%g phi=%g rd=%g)", c.StdRange, c.StdBearing, c.StdRangeRate)
	}
	if !c.UsePosition && !c.UseRangeBearing {
		return fmt.Errorf("at least one sensor must be enabled")
	}
	return nil
}

// LoadTuningXML reads a tuning file and overlays it on DefaultConfig.
// Elements and attributes omitted from the file keep their defaults:
//
//	<tuning>
//	  <process std_a="1.5" std_yawdd="2.0"/>
//	  <position enabled="true" std_x="0.15" std_y="0.15"/>
//	  <rangebearing enabled="true" std_range="0.3" std_bearing="0.03" std_rangerate="0.3"/>
//	</tuning>
func LoadTuningXML(path string) (Config, error) {
	cfg := DefaultConfig()
	dec, f, err := readXML(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		t, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch t.Name.Local {
		case "process":
			attrFloat(t, "std_a", &cfg.StdA)
			attrFloat(t, "std_yawdd", &cfg.StdYawdd)
		case "position":
			attrBool(t, "enabled", &cfg.UsePosition)
			attrFloat(t, "std_x", &cfg.StdPosX)
			attrFloat(t, "std_y", &cfg.StdPosY)
		case "rangebearing":
			attrBool(t, "enabled", &cfg.UseRangeBearing)
			attrFloat(t, "std_range", &cfg.StdRange)
			attrFloat(t, "std_bearing", &cfg.StdBearing)
			attrFloat(t, "std_rangerate", &cfg.StdRangeRate)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("tuning %s: %w", path, err)
	}
	return cfg, nil
}

func readXML(path string) (*xml.Decoder, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return xml.NewDecoder(bufio.NewReader(f)), f, nil
}

func attrValue(el xml.StartElement, name string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func attrFloat(el xml.StartElement, name string, dst *float64) {
	if s, ok := attrValue(el, name); ok {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			*dst = v
		}
	}
}

func attrBool(el xml.StartElement, name string, dst *bool) {
	if s, ok := attrValue(el, name); ok {
		if v, err := strconv.ParseBool(s); err == nil {
			*dst = v
		}
	}
}
