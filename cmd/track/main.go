package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"

	"tracker-go/measlog"
	"tracker-go/ukf"
)

func main() {
	dataPath := flag.String("data", "", "Input measurement dataset (text format)")
	outPath := flag.String("out", "estimates.csv", "Output CSV path")
	tuningPath := flag.String("tuning", "", "Optional tuning XML")
	stdA := flag.Float64("std-a", 0, "Override process noise std_a (m/s^2)")
	stdYawdd := flag.Float64("std-yawdd", 0, "Override process noise std_yawdd (rad/s^2)")
	noPosition := flag.Bool("no-position", false, "Disable the position sensor")
	noRange := flag.Bool("no-rangebearing", false, "Disable the range/bearing sensor")
	withNIS := flag.Bool("nis", false, "Include per-step NIS column")
	flag.Parse()

	if *dataPath == "" {
		fmt.Println("--data required")
		os.Exit(1)
	}

	cfg := ukf.DefaultConfig()
	if *tuningPath != "" {
		var err error
		cfg, err = ukf.LoadTuningXML(*tuningPath)
		if err != nil {
			fmt.Printf("load tuning failed: %v\n", err)
			os.Exit(1)
		}
	}
	if *stdA > 0 {
		cfg.StdA = *stdA
	}
	if *stdYawdd > 0 {
		cfg.StdYawdd = *stdYawdd
	}
	if *noPosition {
		cfg.UsePosition = false
	}
	if *noRange {
		cfg.UseRangeBearing = false
	}

	records, err := measlog.LoadDataset(*dataPath)
	if err != nil {
		fmt.Printf("load dataset failed: %v\n", err)
		os.Exit(1)
	}
	if len(records) == 0 {
		fmt.Println("dataset is empty")
		os.Exit(1)
	}

	f, err := ukf.NewFilter(cfg)
	if err != nil {
		fmt.Printf("filter: %v\n", err)
		os.Exit(1)
	}

	header := []string{"seq", "sensor", "timestamp_us", "px", "py", "v", "yaw", "yawd"}
	if *withNIS {
		header = append(header, "nis")
	}
	rows := [][]string{header}

	// accumulated squared residuals against ground truth [px py vx vy]
	var sqErr [4]float64
	scored := 0
	skipped := 0

	for i, rec := range records {
		if err := f.ProcessMeasurement(rec.Packet); err != nil {
			fmt.Printf("record %d skipped: %v\n", i+1, err)
			skipped++
			continue
		}

		x := f.State()
		row := []string{
			strconv.Itoa(i + 1),
			rec.Packet.Sensor.String(),
			strconv.FormatInt(rec.Packet.TimestampUs, 10),
			fmt.Sprintf("%.4f", x.AtVec(0)),
			fmt.Sprintf("%.4f", x.AtVec(1)),
			fmt.Sprintf("%.4f", x.AtVec(2)),
			fmt.Sprintf("%.4f", x.AtVec(3)),
			fmt.Sprintf("%.4f", x.AtVec(4)),
		}
		if *withNIS {
			if nis, _, ok := f.LastNIS(); ok {
				row = append(row, fmt.Sprintf("%.4f", nis))
			} else {
				row = append(row, "")
			}
		}
		rows = append(rows, row)

		if len(rec.Truth) >= 4 {
			vx, vy := f.Velocity()
			est := [4]float64{x.AtVec(0), x.AtVec(1), vx, vy}
			for k := 0; k < 4; k++ {
				d := est[k] - rec.Truth[k]
				sqErr[k] += d * d
			}
			scored++
		}
	}

	if err := writeCSV(*outPath, rows); err != nil {
		fmt.Printf("write %s failed: %v\n", *outPath, err)
		os.Exit(1)
	}
	fmt.Printf("written %d rows to %s (%d skipped)\n", len(rows)-1, *outPath, skipped)

	if scored > 0 {
		fmt.Printf("RMSE over %d ground-truth rows: px=%.4f py=%.4f vx=%.4f vy=%.4f\n",
			scored,
			math.Sqrt(sqErr[0]/float64(scored)),
			math.Sqrt(sqErr[1]/float64(scored)),
			math.Sqrt(sqErr[2]/float64(scored)),
			math.Sqrt(sqErr[3]/float64(scored)))
	}
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
