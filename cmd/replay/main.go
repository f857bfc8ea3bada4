package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"tracker-go/measlog"
)

func main() {
	logPath := flag.String("log", "", "Input measurement log")
	destAddr := flag.String("dest", "127.0.0.1:44333", "Destination UDP address")
	speed := flag.Float64("speed", 1.0, "Replay speed multiplier (0 for max speed)")
	flag.Parse()

	if *logPath == "" {
		log.Fatal("--log required")
	}

	raddr, err := net.ResolveUDPAddr("udp", *destAddr)
	if err != nil {
		log.Fatalf("Invalid dest address: %v", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	r, err := measlog.OpenLog(*logPath)
	if err != nil {
		log.Fatalf("Open log failed: %v", err)
	}
	defer r.Close()

	log.Printf("Replaying %s to %s...", *logPath, *destAddr)

	var firstTs int64
	var startReal time.Time
	count := 0

	for {
		tsUs, payload, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Read record failed: %v", err)
		}
		if len(payload) == 0 {
			continue
		}

		if firstTs == 0 {
			firstTs = tsUs
			startReal = time.Now()
		} else if *speed > 0 {
			targetDelay := time.Duration(float64(tsUs-firstTs) / *speed * float64(time.Microsecond))
			elapsed := time.Since(startReal)
			if targetDelay > elapsed {
				time.Sleep(targetDelay - elapsed)
			}
		}

		if _, err := conn.Write(payload); err != nil {
			log.Printf("Write error: %v", err)
		}
		count++
		if count%1000 == 0 {
			fmt.Printf("\rSent %d packets...", count)
		}
	}
	fmt.Printf("\nDone. Sent %d packets.\n", count)
}
