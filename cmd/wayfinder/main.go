package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/wayfinder/internal/actuator"
	"github.com/banshee-data/wayfinder/internal/capture"
	"github.com/banshee-data/wayfinder/internal/config"
	"github.com/banshee-data/wayfinder/internal/monitoring"
	"github.com/banshee-data/wayfinder/internal/pipeline"
	"github.com/banshee-data/wayfinder/internal/scheduler"
	"github.com/banshee-data/wayfinder/internal/serialmux"
	"github.com/banshee-data/wayfinder/internal/version"
)

var (
	devMode         = flag.Bool("dev", false, "Run in dev mode (simulated actuator board)")
	listen          = flag.String("listen", ":8080", "Listen address for the debug and metrics server")
	port            = flag.String("port", "", "Serial port of the actuator board (overrides the config file; ignored in dev mode)")
	configPath      = flag.String("config", "", "Path to a pipeline JSON config (defaults apply to unset fields)")
	audioInput      = flag.String("audio", "synthetic", "Audio input: synthetic or off")
	videoInput      = flag.String("video", "synthetic", "Depth input: synthetic or off")
	disableActuator = flag.Bool("disable-actuator", false, "Record commands without writing them to a board")
	verbose         = flag.Bool("verbose", false, "Log every command sent")
	listPorts       = flag.Bool("list-ports", false, "List serial ports and exit")
	showVersion     = flag.Bool("version", false, "Print the version and exit")
)

// loadConfig returns the config at path, or the built-in defaults when path
// is empty.
func loadConfig(path string) (*config.PipelineConfig, error) {
	if path == "" {
		return config.EmptyPipelineConfig(), nil
	}
	return config.LoadPipelineConfig(path)
}

// buildSources returns the capture sources selected by the -audio and -video
// flags. A nil source disables that modality.
func buildSources(audio, video string, cfg *config.PipelineConfig) (capture.AudioSource, capture.DepthSource, error) {
	var a capture.AudioSource
	switch audio {
	case "synthetic":
		mic := capture.NewSyntheticMic()
		mic.SampleRate = cfg.GetSampleRate()
		mic.BlockSize = cfg.GetBlockSize()
		a = mic
	case "off", "":
	default:
		return nil, nil, fmt.Errorf("unsupported audio input %q", audio)
	}

	var d capture.DepthSource
	switch video {
	case "synthetic":
		cam := capture.NewSyntheticDepth()
		cam.FrameRate = cfg.GetDepthFPS()
		d = capture.NewSmoothedDepth(cam, capture.NewZoneSmoother(cfg.GetSmoothWindow()))
	case "off", "":
	default:
		return nil, nil, fmt.Errorf("unsupported video input %q", video)
	}
	return a, d, nil
}

// openBoard picks the actuator link: nothing, a simulated board or the real
// serial port.
func openBoard(dev, disabled bool, path string, opts serialmux.PortOptions) (serialmux.SerialMuxInterface, error) {
	switch {
	case disabled:
		return serialmux.NewDisabledSerialMux(), nil
	case dev:
		return serialmux.NewSimulatedSerialMux(), nil
	case path == "":
		return nil, fmt.Errorf("no serial port configured; use -port, -dev or -disable-actuator")
	}
	m, err := serialmux.NewRealSerialMux(path, opts)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if *listPorts {
		ports, err := serialmux.ListPorts()
		if err != nil {
			log.Fatalf("failed to list serial ports: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	serialPath := cfg.GetSerialPort()
	if *port != "" {
		serialPath = *port
	}

	audioSrc, depthSrc, err := buildSources(*audioInput, *videoInput, cfg)
	if err != nil {
		log.Fatalf("invalid input selection: %v", err)
	}

	board, err := openBoard(*devMode, *disableActuator, serialPath, cfg.GetSerialOptions())
	if err != nil {
		log.Fatalf("failed to open actuator board: %v", err)
	}
	defer board.Close()

	if err := board.Initialize(); err != nil {
		log.Printf("failed to reset actuator board: %v", err)
	}

	var transport scheduler.Sink
	if !*disableActuator {
		transport = actuator.NewSerialSink(board)
	}
	p := pipeline.New(pipeline.Options{
		Config:          cfg,
		Audio:           audioSrc,
		Depth:           depthSrc,
		Transport:       transport,
		VerboseCommands: *verbose,
	})

	metrics := monitoring.NewMetrics()
	p.RegisterMetrics(metrics)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to follow what the board reports
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := board.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// the pipeline ends the process when the actuator link fails
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.Run(ctx); err != nil {
			log.Printf("pipeline stopped: %v", err)
			stop()
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only in dev mode or over Tailscale)
		board.AttachAdminRoutes(mux)
		p.AttachAdminRoutes(mux)
		mux.Handle("/metrics", metrics.Handler())

		server := &http.Server{
			Addr:    *listen,
			Handler: mux,
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("failed to start server: %v", err)
				stop()
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()

	// leave the motors off
	if !*disableActuator {
		if err := board.Initialize(); err != nil {
			log.Printf("failed to reset actuator board on exit: %v", err)
		}
	}
	log.Printf("Graceful shutdown complete")
}
