package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pilot-bridge/common"
	"pilot-bridge/config"
	"pilot-bridge/flightlog"
	"pilot-bridge/link"
	"pilot-bridge/mqtt"
	"pilot-bridge/pilotingitf"
	"pilot-bridge/server"
	"pilot-bridge/updater"
)

var logger = log.New(os.Stdout, "[Pilot-Bridge] ", log.LstdFlags|log.Lshortfile)

// deviceTransport: транспорт, которым управляет main
type deviceTransport interface {
	common.Transport
	Start(handler common.DeviceHandler) error
	Stop() error
}

func openFlightLog(ctx context.Context, cfg flightlog.Config) flightlog.Store {
	if cfg.DSN == "" {
		logger.Println("Flight log DSN not set, keeping flight records in memory")
		return flightlog.NewMemoryStore()
	}
	store, err := flightlog.NewPostgresStore(ctx, cfg.DSN)
	if err != nil {
		logger.Fatalf("Failed to open flight log: %v", err)
	}
	return store
}

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var transport deviceTransport
	var mqttClient *mqtt.Client
	switch cfg.Device.Transport {
	case config.TransportMQTT:
		mqttClient = mqtt.NewClient(cfg.MQTT)
		transport = mqttClient
	default:
		transport = link.NewAdapter(cfg.Device.Config, nil)
	}

	session := pilotingitf.NewSession(cfg.Piloting, transport)

	if mqttClient != nil {
		states, _ := session.Subscribe(64)
		mqttClient.PublishStates(states)
	}

	store := openFlightLog(ctx, cfg.FlightLog)
	flights, _ := session.Subscribe(64)
	recorder := flightlog.NewRecorder(store, flights)
	recorder.Start(ctx)

	// обратные вызовы загрузки выполняются в контексте сессии
	updates := updater.NewClient(cfg.Updater, nil, updater.Dispatcher(session.Post))

	srv := server.New(cfg.Server, session, server.Options{Flights: store, Updater: updates})
	if err := srv.Start(); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}

	session.Start(ctx)
	if err := transport.Start(session); err != nil {
		logger.Fatalf("Failed to start %s transport: %v", cfg.Device.Transport, err)
	}

	logger.Printf("Pilot bridge started (%s transport). Press Ctrl+C to stop.", cfg.Device.Transport)
	<-ctx.Done()
	logger.Println("Shutting down...")

	if err := transport.Stop(); err != nil {
		logger.Printf("Failed to stop transport: %v", err)
	}
	if err := srv.Stop(); err != nil {
		logger.Printf("Failed to stop server: %v", err)
	}
	session.Stop()
	recorder.Wait()
	store.Close()
	logger.Println("Pilot bridge stopped")
}
