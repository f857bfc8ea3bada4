package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tracker-go/feed"
	"tracker-go/measlog"
	"tracker-go/server"
	"tracker-go/ukf"
	"tracker-go/web"
)

func main() {
	port := flag.Int("port", server.DefaultPort, "UDP port to listen on")
	httpPort := flag.Int("http", 0, "HTTP/WebSocket port (e.g. 8080). 0 to disable.")
	tuningPath := flag.String("tuning", "", "Path to tuning XML (optional)")
	webDir := flag.String("web-dir", "", "Directory of static files for the HTTP server (optional)")
	recordPath := flag.String("record", "", "Path to output measurement log (optional)")
	feedUDP := flag.String("feed-udp", "", "Comma-separated UDP feed targets host:port")
	feedTCP := flag.String("feed-tcp", "", "Comma-separated TCP feed targets host:port")
	replayPath := flag.String("replay", "", "Feed a recorded measurement log through the ingest path instead of listening")
	replaySpeed := flag.Float64("replay-speed", 1.0, "Replay speed multiplier (0 for max speed)")
	flag.Parse()

	cfg := ukf.DefaultConfig()
	if *tuningPath != "" {
		var err error
		cfg, err = ukf.LoadTuningXML(*tuningPath)
		if err != nil {
			log.Fatalf("Failed to load tuning: %v", err)
		}
		log.Printf("Loaded tuning from %s", *tuningPath)
	}

	udpSvr, err := server.NewUdpServer(*port, cfg)
	if err != nil {
		log.Fatalf("Failed to create UDP server: %v", err)
	}

	if *httpPort > 0 {
		webSvr := web.NewServer()
		webSvr.Tracks = udpSvr.Tracks
		go webSvr.Start(*httpPort, *webDir)
		udpSvr.SetWebHub(webSvr.Hub)
	}

	if *feedUDP != "" || *feedTCP != "" {
		sender := feed.NewSender()
		for _, addr := range splitTargets(*feedUDP) {
			if err := sender.AddUDPTarget(addr, feed.FlagEstimate|feed.FlagWarning); err != nil {
				log.Fatalf("Bad feed target %s: %v", addr, err)
			}
			log.Printf("Added UDP feed target: %s", addr)
		}
		for _, addr := range splitTargets(*feedTCP) {
			sender.AddTCPTarget(addr, feed.FlagEstimate|feed.FlagWarning)
			log.Printf("Added TCP feed target: %s", addr)
		}
		if err := sender.Start(); err != nil {
			log.Fatalf("Failed to start feed sender: %v", err)
		}
		udpSvr.SetFeedSender(sender)
		defer sender.Stop()
	}

	if *recordPath != "" {
		path := *recordPath
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			path = fmt.Sprintf("%s/MEAS_%s.bin", path, time.Now().Format("20060102150405"))
		}
		lw, err := measlog.NewWriter(path)
		if err != nil {
			log.Fatalf("Failed to create measurement log: %v", err)
		}
		defer lw.Close()
		udpSvr.SetLogWriter(lw)
		log.Printf("Recording measurements to %s", path)
	}

	if *replayPath != "" {
		if err := udpSvr.Replay(*replayPath, *replaySpeed); err != nil {
			log.Fatalf("Replay failed: %v", err)
		}
		return
	}

	go udpSvr.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	udpSvr.Stop()
}

func splitTargets(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
