// ABOUTME: Entry point for the Chatterbox voice client
// ABOUTME: Parses CLI flags and starts the client application
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/chatterbox-go/internal/app"
	"github.com/harperreed/chatterbox-go/internal/config"
	"github.com/harperreed/chatterbox-go/internal/version"
)

var (
	configFile  = flag.String("config", "", "YAML config file")
	endpoint    = flag.String("endpoint", "", "Voice endpoint URL (skip mDNS)")
	transportFl = flag.String("transport", "", "Transport: http or ws")
	layout      = flag.String("layout", "", "Wire layout: v1 or compact")
	discover    = flag.Bool("discover", false, "Discover the voice server over mDNS")
	segmentsDir = flag.String("segments-dir", "", "Store audio segments as files in this directory")
	metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	outputKind  = flag.String("output", "", "Audio output: oto or null")
	volume      = flag.Int("volume", 100, "Initial volume (0-100)")
	logFile     = flag.String("log-file", "", "Log file path (default: chatterbox.log)")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, send every input and exit")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] input.wav [input2.mp3 ...]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.UserAgent())
		return
	}

	settings, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(settings)
	if err := settings.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(settings.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Streaming logs mode: log to both stdout and file
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("Starting %s %s", version.Product, version.Version)
	if settings.Debug {
		log.Printf("Debug logging enabled")
	}

	client := app.New(app.Config{
		Settings: settings,
		Inputs:   flag.Args(),
		UseTUI:   useTUI,
	})

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down...", sig)
		client.Stop()
	}()

	err = client.Start()
	client.Stop()
	if err != nil {
		log.Fatalf("Client error: %v", err)
	}
}

// applyFlags overrides settings with the flags given on the command line
func applyFlags(settings *config.Config) {
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "endpoint":
			settings.Client.Endpoint = *endpoint
		case "transport":
			settings.Client.Transport = *transportFl
		case "layout":
			settings.Wire.Layout = *layout
		case "discover":
			settings.Client.Discover = *discover
			if *discover {
				settings.Client.Endpoint = ""
			}
		case "segments-dir":
			settings.Client.SegmentsDir = *segmentsDir
		case "metrics-addr":
			settings.MetricsAddr = *metricsAddr
		case "output":
			settings.Playback.Output = *outputKind
		case "volume":
			settings.Playback.Volume = *volume
		case "log-file":
			settings.LogFile = *logFile
		case "debug":
			settings.Debug = *debug
		}
	})
}
