// Package measlog handles measurement persistence: parsing recorded text
// datasets and writing/reading binary measurement logs for record and
// replay of live sensor streams.
package measlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"tracker-go/ukf"
)

// Record is one dataset row: the measurement packet plus the ground-truth
// state [px, py, vx, vy, ...] recorded alongside it, when present.
type Record struct {
	Packet ukf.Packet
	Truth  []float64
}

// ParseDataset reads the interleaved text dataset format, one measurement
// per line:
//
//	L <px> <py> <timestamp_us> [ground truth...]
//	R <rho> <phi> <rho_dot> <timestamp_us> [ground truth...]
//
// Blank lines are skipped. A malformed line aborts the parse with its line
// number.
func ParseDataset(r io.Reader) ([]Record, error) {
	var records []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		rec, err := parseLine(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// LoadDataset parses the dataset file at path.
func LoadDataset(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	recs, err := ParseDataset(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

func parseLine(fields []string) (Record, error) {
	var (
		sensor ukf.SensorType
		nVal   int
	)
	switch fields[0] {
	case "L":
		sensor = ukf.SensorPosition
		nVal = 2
	case "R":
		sensor = ukf.SensorRangeBearing
		nVal = 3
	default:
		return Record{}, fmt.Errorf("unknown sensor tag %q", fields[0])
	}

	if len(fields) < 1+nVal+1 {
		return Record{}, fmt.Errorf("%s line needs %d values and a timestamp, got %d fields",
			fields[0], nVal, len(fields))
	}

	values := make([]float64, nVal)
	for i := 0; i < nVal; i++ {
		v, err := strconv.ParseFloat(fields[1+i], 64)
		if err != nil {
			return Record{}, fmt.Errorf("value %d: %w", i, err)
		}
		values[i] = v
	}

	ts, err := strconv.ParseInt(fields[1+nVal], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("timestamp: %w", err)
	}

	var truth []float64
	for _, s := range fields[2+nVal:] {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Record{}, fmt.Errorf("ground truth: %w", err)
		}
		truth = append(truth, v)
	}

	return Record{
		Packet: ukf.Packet{Sensor: sensor, Values: values, TimestampUs: ts},
		Truth:  truth,
	}, nil
}
