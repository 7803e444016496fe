package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mythtv_control/internal/api"
	"mythtv_control/internal/backend"
	"mythtv_control/internal/command"
	"mythtv_control/internal/config"
	"mythtv_control/internal/frontend"
	"mythtv_control/internal/homeassistant"
	"mythtv_control/internal/mqtt"
	"mythtv_control/internal/sink"
	"mythtv_control/internal/websocket"
)

// app ties the frontends to the backend and to every state sink
type app struct {
	cfg       config.Config
	ctx       context.Context
	frontends *frontend.Manager
	backend   *backend.Backend
	hub       *websocket.Hub
	mqtt      *mqtt.Client
	mirror    *homeassistant.Mirror

	// slow sinks drain on their own goroutine so polls never wait on them
	mqttQueue   *sink.Queue[frontend.State]
	mirrorQueue *sink.Queue[frontend.State]
}

func stateKey(s frontend.State) string { return s.Name }

func main() {
	// Load .env file if present (for local dev)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{
		cfg:       cfg,
		ctx:       ctx,
		frontends: frontend.NewManager(),
		hub:       websocket.NewHub(),
	}
	go a.hub.Run()
	a.hub.SetWelcome(a.welcome)

	if cfg.HomeAssistantURL != "" && cfg.HomeAssistantToken != "" {
		a.mirror = homeassistant.NewMirror(homeassistant.NewClient(cfg.HomeAssistantURL, cfg.HomeAssistantToken))
		a.mirrorQueue = sink.NewQueue(stateKey, a.mirror.PublishFrontend)
		go a.mirrorQueue.Run(ctx)
		log.Printf("Home Assistant state mirror enabled for %s", cfg.HomeAssistantURL)
	} else {
		log.Println("Info: HA_URL/HA_TOKEN not set, Home Assistant mirror disabled (optional)")
	}

	if cfg.MQTTHost != "" {
		a.mqtt = mqtt.NewClient(mqtt.Config{
			Host:      cfg.MQTTHost,
			Port:      cfg.MQTTPort,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			ClientID:  "mythtv_control",
			BaseTopic: cfg.MQTTBaseTopic,
		})
		a.mqtt.SetCommandHandler(a.handleMQTTCommand)
		a.mqttQueue = sink.NewQueue(stateKey, a.mqtt.PublishFrontend)
		go a.mqttQueue.Run(ctx)
		go func() {
			if err := a.mqtt.Connect(); err != nil {
				log.Printf("Warning: MQTT connection failed: %v", err)
			}
		}()
		log.Printf("MQTT client connecting to %s:%d", cfg.MQTTHost, cfg.MQTTPort)
	} else {
		log.Println("Info: MQTT not configured (optional)")
	}

	if cfg.BackendHost != "" {
		a.backend = backend.New(cfg.BackendHost, cfg.BackendPort)
		log.Printf("MythTV backend at %s", a.backend.Client().Address())
	}

	for _, fc := range cfg.Frontends {
		f := a.addFrontend(fc)
		if a.backend != nil {
			a.backend.Register(f.Name(), fc.Host, f)
		}
	}

	if a.backend != nil {
		if cfg.Discovery {
			a.backend.OnDiscovered(a.discovered)
			a.backend.Start(cfg.DiscoveryInterval)
			log.Printf("Discovery: Polling every %s", cfg.DiscoveryInterval)
		}
		go a.pollTuners(cfg.DiscoveryInterval)
	}

	if len(cfg.Frontends) == 0 && !cfg.Discovery {
		log.Println("Warning: No frontends configured and discovery is off")
	}

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.NewServer(a.frontends, a.backend, a.hub, cfg.NotifyOrigin).Handler(),
	}
	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
	if a.backend != nil {
		a.backend.Stop()
	}
	if a.mqtt != nil {
		a.mqtt.Disconnect()
	}
	a.hub.Stop()
}

// addFrontend creates, wires and starts polling one frontend
func (a *app) addFrontend(fc frontend.Config) *frontend.Frontend {
	f := frontend.New(fc, nil)
	if !a.frontends.Add(f) {
		existing, _ := a.frontends.Get(fc.Name)
		return existing
	}

	if a.backend != nil {
		f.SetArtworkResolver(a.backend)
		f.OnUnreachable(a.backend.RequestRefresh)
	}
	f.OnChange(a.publish)

	go f.Run(a.ctx, a.cfg.PollInterval)
	log.Printf("MythTV: Frontend '%s' at %s:%d", f.Name(), fc.Host, fc.Port)
	return f
}

func (a *app) discovered(info backend.FrontendInfo) backend.Connector {
	fc := a.cfg.FrontendDefaults()
	fc.Name = info.Name
	fc.Host = info.IP
	if fc.Host == "" {
		fc.Host = info.Name
	}
	if info.Port != 0 {
		fc.Port = info.Port
	}
	return a.addFrontend(fc)
}

func (a *app) publish(s frontend.State) {
	a.hub.BroadcastFrontend(s)
	if a.mqttQueue != nil {
		a.mqttQueue.Push(s)
	}
	if a.mirrorQueue != nil {
		a.mirrorQueue.Push(s)
	}
}

func (a *app) welcome() []websocket.Event {
	var events []websocket.Event
	for _, s := range a.frontends.Snapshots() {
		events = append(events, websocket.Event{Type: websocket.EventFrontendState, Payload: s})
	}
	return events
}

func (a *app) handleMQTTCommand(slug, name string, value float64) {
	f, ok := a.frontends.Get(slug)
	if !ok {
		log.Printf("MQTT: Command %s for unknown frontend %s", name, slug)
		return
	}
	ctx, cancel := context.WithTimeout(a.ctx, 2*f.Config().Timeout)
	defer cancel()
	if err := command.Dispatch(ctx, f, name, value); err != nil {
		log.Printf("MQTT: Command %s on '%s' failed: %v", name, f.Name(), err)
	}
}

// pollTuners refreshes tuner connectivity and publishes it when it changes
func (a *app) pollTuners(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last []backend.Tuner
	for {
		ctx, cancel := context.WithTimeout(a.ctx, 2*backend.DefaultTimeout)
		tuners, err := a.backend.Tuners(ctx)
		cancel()
		if err != nil {
			log.Printf("MythTV: Failed to read tuners: %v", err)
		} else if !reflect.DeepEqual(tuners, last) {
			last = tuners
			a.hub.BroadcastTuners(tuners)
			if a.mqtt != nil {
				a.mqtt.PublishTuners(tuners)
			}
			if a.mirror != nil {
				a.mirror.PublishTuners(tuners)
			}
		}

		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
