package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"tracker-go/measlog"
	"tracker-go/server"
	"tracker-go/ukf"
)

type objectStats struct {
	position     int
	rangeBearing int
	firstUs      int64
	lastUs       int64
}

func main() {
	logPath := flag.String("log", "", "Input measurement log")
	flag.Parse()

	if *logPath == "" {
		fmt.Println("--log required")
		os.Exit(1)
	}

	r, err := measlog.OpenLog(*logPath)
	if err != nil {
		fmt.Printf("open log failed: %v\n", err)
		os.Exit(1)
	}
	defer r.Close()

	stats := make(map[uint32]*objectStats)
	records := 0
	badPackets := 0

	for {
		_, payload, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Printf("read record failed: %v\n", err)
			os.Exit(1)
		}
		records++

		for len(payload) > 0 {
			m, n, err := server.ParseMeasurement(payload)
			if err != nil {
				badPackets++
				break
			}
			payload = payload[n:]

			st, ok := stats[m.ObjectID]
			if !ok {
				st = &objectStats{firstUs: m.Packet.TimestampUs}
				stats[m.ObjectID] = st
			}
			switch m.Packet.Sensor {
			case ukf.SensorPosition:
				st.position++
			case ukf.SensorRangeBearing:
				st.rangeBearing++
			}
			if m.Packet.TimestampUs < st.firstUs {
				st.firstUs = m.Packet.TimestampUs
			}
			if m.Packet.TimestampUs > st.lastUs {
				st.lastUs = m.Packet.TimestampUs
			}
		}
	}

	fmt.Printf("Scanned %d records in %s (%d bad packets)\n", records, *logPath, badPackets)

	ids := make([]uint32, 0, len(stats))
	for id := range stats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		st := stats[id]
		span := float64(st.lastUs-st.firstUs) / 1e6
		fmt.Printf("Object %08X: %d position, %d range/bearing, span %.1fs\n",
			id, st.position, st.rangeBearing, span)
	}
}
