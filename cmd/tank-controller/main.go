package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tank-controller/db"
	"github.com/thatsimonsguy/tank-controller/internal/adc"
	"github.com/thatsimonsguy/tank-controller/internal/api"
	"github.com/thatsimonsguy/tank-controller/internal/config"
	"github.com/thatsimonsguy/tank-controller/internal/controllers/buttoncontroller"
	"github.com/thatsimonsguy/tank-controller/internal/controllers/pumpcontroller"
	"github.com/thatsimonsguy/tank-controller/internal/datadog"
	"github.com/thatsimonsguy/tank-controller/internal/display"
	"github.com/thatsimonsguy/tank-controller/internal/env"
	"github.com/thatsimonsguy/tank-controller/internal/events"
	"github.com/thatsimonsguy/tank-controller/internal/gate"
	"github.com/thatsimonsguy/tank-controller/internal/gpio"
	"github.com/thatsimonsguy/tank-controller/internal/level"
	"github.com/thatsimonsguy/tank-controller/internal/logging"
	"github.com/thatsimonsguy/tank-controller/internal/metrics"
	"github.com/thatsimonsguy/tank-controller/internal/model"
	"github.com/thatsimonsguy/tank-controller/internal/mqtt"
	"github.com/thatsimonsguy/tank-controller/internal/network"
	"github.com/thatsimonsguy/tank-controller/internal/notifications"
	"github.com/thatsimonsguy/tank-controller/internal/presentation"
	"github.com/thatsimonsguy/tank-controller/internal/queue"
	"github.com/thatsimonsguy/tank-controller/internal/state"
	"github.com/thatsimonsguy/tank-controller/system/shutdown"
	"github.com/thatsimonsguy/tank-controller/system/startup"
)

func main() {
	installService := flag.Bool("install-service", false, "Write the boot script and systemd units, then exit")

	cfg := config.Load()
	env.Cfg = &cfg
	logging.Init(cfg.LogLevel, cfg.Log)

	if *installService {
		if err := startup.Install(); err != nil {
			log.Fatal().Err(err).Msg("Failed to install services")
		}
		log.Info().Str("unit", cfg.Service.UnitPath).Msg("Services installed")
		return
	}

	log.Info().
		Str("config_file", cfg.ConfigFile).
		Int("min", cfg.Limits.MinPercent).
		Int("max", cfg.Limits.MaxPercent).
		Msg("Starting tank controller")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// relay first, so it is parked before anything else can fail
	shutdown.SetFallbackPin(*cfg.GPIO.RelayPin, cfg.Pump.RelayActiveLow)
	startup.CheckRelayParked()
	relay, err := gpio.NewRealRelay(cfg.GPIO.Chip, *cfg.GPIO.RelayPin, cfg.Pump.RelayActiveLow)
	if err != nil {
		shutdown.ShutdownWithError(err, "Failed to claim pump relay line")
		return
	}
	shutdown.SetRelay(relay)

	initObservability(ctx, cfg)

	dbConn, err := db.Open(cfg.DBPath)
	if err != nil {
		shutdown.ShutdownWithError(err, "Failed to open event database")
		return
	}
	defer dbConn.Close()

	recorder, closeRecorder := buildRecorder(cfg, dbConn)
	defer closeRecorder()

	st := state.New()
	limits := model.Limits{MinPercent: cfg.Limits.MinPercent, MaxPercent: cfg.Limits.MaxPercent}
	if err := st.WriteLimits(limits); err != nil {
		log.Warn().Err(err).Msg("Configured limits rejected, keeping defaults")
	}

	bus := queue.NewBus(cfg.Pump.QueueDepth)
	pumpQueue := bus.Subscribe("pump")
	displayQueue := bus.Subscribe("display")
	matrixQueue := bus.Subscribe("matrix")
	ready := gate.NewLatch()

	panel := display.NewPanel(display.LogScreen{})
	link := network.NewHostLink(cfg.Network.Interface)

	startProducers(ctx, cfg, st, bus, ready)

	pumps := &pumpcontroller.Controller{
		State:     st,
		Queue:     pumpQueue,
		Relay:     relay,
		Indicator: &presentation.PumpIndicator{Indicator: openIndicator(cfg)},
		Recorder:  recorder,
		Ready:     ready,
		Cooldown:  cfg.Pump.Cooldown,
		PulseHold: cfg.Pump.PulseHold,
	}
	pumps.Start(ctx)

	if buttons := openButtons(cfg); buttons != nil {
		defer buttons.Close()
		buttoncontroller.Start(ctx, buttons, st)
	}

	displays := &presentation.DisplayConsumer{Queue: displayQueue, State: st, Link: link, Panel: panel}
	go runConsumer(ctx, "display", displays.Run)

	matrix := &presentation.MatrixConsumer{
		Queue:       matrixQueue,
		Matrix:      display.LogMatrix{},
		Ready:       ready,
		MinInterval: presentation.DefaultMatrixInterval,
	}
	go runConsumer(ctx, "matrix", matrix.Run)

	_, err = network.BringUp(ctx, link, panel, ready, network.BringUpOptions{
		Timeout:     cfg.Network.Timeout,
		ShowIPDelay: cfg.Network.ShowIPDelay,
	})
	if err != nil {
		notifications.Notify("Tank controller offline", "Network bring-up failed: "+err.Error())
	} else {
		server := api.NewServer(st, recorder, cfg.API)
		server.OnTransportFailure = func(err error) {
			if drawErr := panel.Draw("API => ERRO"); drawErr != nil {
				log.Warn().Err(drawErr).Msg("Failed to draw API failure")
			}
			notifications.Notify("Control API down", err.Error())
		}
		server.Start(ctx)
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down tank controller")
	shutdown.Release()
}

func initObservability(ctx context.Context, cfg config.Config) {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Warn().Err(err).Msg("Failed to register prometheus metrics")
	}
	if cfg.MetricsAddr != "" {
		metrics.Serve(ctx, cfg.MetricsAddr)
	}
	if cfg.EnableDatadog {
		datadog.InitMetrics()
	}
	notifications.Init()
}

// buildRecorder fans events out to the history table, the broker and both
// metrics backends.
func buildRecorder(cfg config.Config, dbConn *sql.DB) (events.Recorder, func()) {
	fanout := events.NewFanout().
		Add("db", &db.EventStore{DB: dbConn}).
		Add("prometheus", metrics.Recorder{})
	if cfg.EnableDatadog {
		fanout.Add("datadog", datadog.Recorder{})
	}

	closeFn := func() {}
	if cfg.MQTT.Broker != "" {
		pub, err := mqtt.NewRealPublisher(cfg.MQTT)
		if err != nil {
			log.Error().Err(err).Msg("MQTT disabled")
		} else {
			fanout.Add("mqtt", mqtt.Recorder(pub))
			closeFn = func() { _ = pub.Close() }
		}
	}
	return fanout, closeFn
}

func startProducers(ctx context.Context, cfg config.Config, st *state.ControlState, bus *queue.Bus, ready *gate.Latch) {
	observe := func(source string, percent int) {
		metrics.SetLevel(source, percent)
		datadog.LevelObserver(source, percent)
	}

	started := 0
	if cfg.Potentiometer.RawPath != "" {
		p := &level.Producer{
			Name: "potentiometer",
			Sampler: &level.PotentiometerSampler{
				Reader:   adc.NewSysfsReader(cfg.Potentiometer.RawPath),
				Samples:  cfg.Potentiometer.Samples,
				EmptyRaw: cfg.Potentiometer.EmptyRaw,
				FullRaw:  cfg.Potentiometer.FullRaw,
			},
			Period:  cfg.Potentiometer.Period,
			State:   st,
			Bus:     bus,
			Ready:   ready,
			Observe: observe,
		}
		p.Start(ctx)
		started++
	}

	if cfg.Ultrasonic.Enabled {
		ranger, err := gpio.NewRealRanger(cfg.GPIO.Chip, *cfg.GPIO.UltrasonicTrig, *cfg.GPIO.UltrasonicEcho)
		if err != nil {
			log.Error().Err(err).Msg("Ultrasonic sensor unavailable")
		} else {
			go func() {
				<-ctx.Done()
				_ = ranger.Close()
			}()
			p := &level.Producer{
				Name: "ultrasonic",
				Sampler: &level.UltrasonicSampler{
					Ranger:  ranger,
					EmptyCM: cfg.Ultrasonic.EmptyCM,
					FullCM:  cfg.Ultrasonic.FullCM,
					Timeout: cfg.Ultrasonic.Timeout,
				},
				Period:  cfg.Ultrasonic.Period,
				State:   st,
				Bus:     bus,
				Ready:   ready,
				Observe: observe,
			}
			p.Start(ctx)
			started++
		}
	}

	if started == 0 {
		log.Warn().Msg("No level source configured, pump will never be driven")
	}
}

// openIndicator returns nil unless all three indicator lines are configured.
func openIndicator(cfg config.Config) presentation.Indicator {
	g := cfg.GPIO
	if g.GreenLED == nil || g.YellowLED == nil || g.BuzzerPin == nil {
		log.Warn().Msg("Indicator lines not fully configured, LEDs and buzzer disabled")
		return nil
	}
	ind, err := gpio.NewRealIndicator(g.Chip, *g.GreenLED, *g.YellowLED, *g.BuzzerPin)
	if err != nil {
		log.Error().Err(err).Msg("Failed to claim indicator lines")
		return nil
	}
	return ind
}

func openButtons(cfg config.Config) gpio.Buttons {
	pins := map[gpio.Button]int{}
	for b, pin := range map[gpio.Button]*int{
		gpio.ButtonA:  cfg.GPIO.ButtonA,
		gpio.ButtonB:  cfg.GPIO.ButtonB,
		gpio.ButtonSW: cfg.GPIO.ButtonSW,
	} {
		if pin != nil {
			pins[b] = *pin
		}
	}
	buttons, err := gpio.NewRealButtons(cfg.GPIO.Chip, pins)
	if err != nil {
		log.Error().Err(err).Msg("Failed to claim button lines, reset button disabled")
		return nil
	}
	return buttons
}

func runConsumer(ctx context.Context, name string, run func(context.Context) error) {
	if err := run(ctx); err != nil && !presentation.IsStopped(err) {
		log.Error().Err(err).Str("consumer", name).Msg("Display consumer stopped")
	}
}
