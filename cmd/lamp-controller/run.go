package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sweeney/lamp-controller/internal/command"
	"github.com/sweeney/lamp-controller/internal/config"
	"github.com/sweeney/lamp-controller/internal/gpio"
	"github.com/sweeney/lamp-controller/internal/heartbeat"
	"github.com/sweeney/lamp-controller/internal/lamp"
	"github.com/sweeney/lamp-controller/internal/logger"
	"github.com/sweeney/lamp-controller/internal/metrics"
	"github.com/sweeney/lamp-controller/internal/mqtt"
	"github.com/sweeney/lamp-controller/internal/status"
	"github.com/sweeney/lamp-controller/internal/store"
	"github.com/sweeney/lamp-controller/internal/web"
)

const shutdownTimeout = 5 * time.Second

var errNotReady = errors.New("controller not ready")

// client is the broker connection the daemon needs.
type client interface {
	mqtt.Publisher
	IsConnected() bool
}

type connectFunc func(opts mqtt.Options, handler mqtt.MessageHandler) (client, error)

// deps holds everything serve needs from the outside world.
type deps struct {
	out     gpio.Output
	in      gpio.Input
	store   store.Store
	connect connectFunc

	// listener, when set, is used instead of listening on cfg.HTTPAddr.
	listener net.Listener
}

func connectMQTT(opts mqtt.Options, handler mqtt.MessageHandler) (client, error) {
	c, err := mqtt.Connect(opts, handler)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// runDaemon opens the hardware and the state file and serves until ctx is done.
func runDaemon(ctx context.Context, cfg *config.Config) error {
	log := logger.Logger()

	db, err := store.OpenSQLite(cfg.Store.Path, cfg.Store.Timeout)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warnw("closing state store failed", "error", err)
		}
	}()

	out, err := gpio.NewRealOutput(cfg.GPIO.Chip, cfg.GPIO.RelayPin, cfg.GPIO.RelayActiveLow)
	if err != nil {
		return fmt.Errorf("open relay output: %w", err)
	}
	defer out.Close()

	in, err := gpio.NewRealInput(cfg.GPIO.Chip, cfg.GPIO.SensorPin, cfg.GPIO.SensorActiveLow)
	if err != nil {
		return fmt.Errorf("open sensor input: %w", err)
	}
	defer in.Close()

	policy := store.NewPolicy(cfg.Store.Retry.Attempts, cfg.Store.Retry.Initial, cfg.Store.Retry.Max)

	return serve(ctx, cfg, deps{
		out:     out,
		in:      in,
		store:   store.NewRetryingStore(db, policy),
		connect: connectMQTT,
	})
}

// serve wires the broker, reconciler, command router, heartbeat and status
// server together and blocks until ctx is cancelled or the status server
// fails. Shutdown stops the heartbeat, then the reconciler, then the status
// server, then the broker connection.
func serve(ctx context.Context, cfg *config.Config, d deps) error {
	log := logger.Logger().With("component", "daemon")

	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	reg := metrics.NewRegistry()
	recorder := metrics.NewRecorder(reg)

	// The broker may deliver requests before the reconciler exists.
	var router atomic.Pointer[command.Router]
	handler := func(topic string, payload []byte) error {
		r := router.Load()
		if r == nil {
			return errNotReady
		}
		return r.Handle(ctx, topic, payload)
	}

	c, err := d.connect(mqtt.Options{
		Broker:     cfg.MQTT.Broker,
		Username:   cfg.MQTT.Username,
		Password:   cfg.MQTT.Password,
		ClientID:   mqtt.ClientID(cfg.MQTT.ClientID),
		BufferSize: cfg.MQTT.BufferSize,
	}, handler)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Warnw("closing broker connection failed", "error", err)
		}
	}()

	tracker.WatchConnection(c)
	metrics.WatchConnection(reg, c.IsConnected)

	serveErr := make(chan error, 1)
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, metrics.Handler(reg))
		go func() {
			var err error
			if d.listener != nil {
				err = srv.Serve(d.listener)
			} else {
				err = srv.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- fmt.Errorf("status server: %w", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				log.Warnw("status server shutdown failed", "error", err)
			}
		}()
		log.Infow("status server listening", "addr", cfg.HTTPAddr)
	}

	rec, err := lamp.New(ctx, d.out, d.in, d.store, c,
		lamp.WithPollInterval(cfg.Poll),
		lamp.WithDebounce(cfg.Debounce),
		lamp.WithObserver(lamp.Observers(tracker, recorder)),
	)
	if err != nil {
		return fmt.Errorf("start reconciler: %w", err)
	}
	defer rec.Stop()

	router.Store(command.NewRouter(rec, c))

	hb, err := heartbeat.New(cfg.Heartbeat, rec, c)
	if err != nil {
		return err
	}
	hb.Start()
	defer func() {
		if err := hb.Stop(); err != nil {
			log.Warnw("heartbeat shutdown failed", "error", err)
		}
	}()

	snap := rec.Snapshot()
	log.Infow("lamp controller running",
		"lamp_state", snap.LampState,
		"sensor_state", snap.SensorMode,
		"mode", snap.Mode(),
		"broker", cfg.MQTT.Broker,
		"poll", cfg.Poll)

	select {
	case <-ctx.Done():
		log.Infow("shutting down")
		return nil
	case err := <-serveErr:
		log.Errorw("status server failed", "error", err)
		return err
	}
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		PollMs:      cfg.Poll.Milliseconds(),
		DebounceMs:  cfg.Debounce.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTPAddr,
		StorePath:   cfg.Store.Path,
		RelayPin:    cfg.GPIO.RelayPin,
		SensorPin:   cfg.GPIO.SensorPin,
	}
}
