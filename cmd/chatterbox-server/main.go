// ABOUTME: Entry point for the Chatterbox reference voice server
// ABOUTME: Parses CLI flags and starts the server application
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/chatterbox-go/internal/config"
	"github.com/harperreed/chatterbox-go/internal/metrics"
	"github.com/harperreed/chatterbox-go/internal/server"
)

var (
	configFile = flag.String("config", "", "YAML config file")
	addr       = flag.String("addr", "", "Listen address (default :8000)")
	name       = flag.String("name", "", "Server friendly name (default: hostname-chatterbox)")
	backend    = flag.String("backend", "", "Response backend: tone or openai")
	layout     = flag.String("layout", "", "Wire layout: v1 or compact")
	baseURL    = flag.String("openai-base-url", "", "Override the OpenAI API base URL")
	logFile    = flag.String("log-file", "chatterbox-server.log", "Log file path")
	debug      = flag.Bool("debug", false, "Enable debug logging")
	noMDNS     = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
)

func main() {
	flag.Parse()

	settings, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(settings)
	if err := settings.Server.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if err := settings.Wire.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if err := settings.Server.RequireOpenAI(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-%s", hostname, settings.Server.Name)
	}

	var b server.Backend
	switch settings.Server.Backend {
	case "openai":
		b = server.NewOpenAIBackend(server.NewOpenAIClient(settings.Server.OpenAIKey, *baseURL), settings.Debug)
	default:
		b = server.NewToneBackend()
	}

	log.Printf("Starting Chatterbox Server: %s (%s backend)", serverName, settings.Server.Backend)
	if settings.Debug {
		log.Printf("Debug logging enabled")
	}
	log.Printf("Logging to: %s", *logFile)
	log.Printf("Press Ctrl-C to stop")

	srv, err := server.New(server.Config{
		Addr:      settings.Server.Addr,
		Name:      serverName,
		Advertise: settings.Server.Advertise,
		Debug:     settings.Debug,
		Backend:   b,
		Layout:    settings.Wire.WireLayout(),
		Metrics:   metrics.New(),
		UseTUI:    useTUI,
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	// Start server
	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Printf("Server stopped")
}

// applyFlags overrides settings with the flags given on the command line
func applyFlags(settings *config.Config) {
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "addr":
			settings.Server.Addr = *addr
		case "backend":
			settings.Server.Backend = *backend
		case "layout":
			settings.Wire.Layout = *layout
		case "debug":
			settings.Debug = *debug
		case "no-mdns":
			settings.Server.Advertise = !*noMDNS
		}
	})
}
