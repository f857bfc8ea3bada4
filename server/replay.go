package server

import (
	"io"
	"log"
	"time"

	"tracker-go/measlog"
)

// Replay feeds a recorded measurement log through the live ingest path,
// pacing records by their original spacing scaled by speed (speed <= 0
// replays as fast as possible).
func (s *UdpServer) Replay(path string, speed float64) error {
	r, err := measlog.OpenLog(path)
	if err != nil {
		return err
	}
	defer r.Close()

	s.running = true
	log.Printf("Replaying %s at %.1fx speed...", path, speed)

	var firstTs int64
	var startReal time.Time
	count := 0

	for s.running {
		tsUs, payload, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		if count == 0 {
			firstTs = tsUs
			startReal = time.Now()
		} else if speed > 0 {
			elapsed := time.Duration(float64(tsUs-firstTs)/speed) * time.Microsecond
			if wait := time.Until(startReal.Add(elapsed)); wait > 0 {
				time.Sleep(wait)
			}
		}

		s.handleDatagram(payload)
		count++
	}

	log.Printf("Replay done: %d records", count)
	return nil
}
