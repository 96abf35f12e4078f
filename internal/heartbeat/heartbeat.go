// Package heartbeat periodically republishes the current lamp snapshot so a
// dashboard that missed a change, or a broker that restarted, catches up.
package heartbeat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/sweeney/lamp-controller/internal/lamp"
	"github.com/sweeney/lamp-controller/internal/logger"
)

// Source provides the snapshot to republish. Only durable state is repeated,
// so a change still waiting on a write is never announced early.
type Source interface {
	Saved() lamp.Snapshot
}

// Heartbeat wraps a gocron scheduler running a single republish job.
type Heartbeat struct {
	scheduler gocron.Scheduler
	interval  time.Duration
	src       Source
	sink      lamp.Sink
	log       *zap.SugaredLogger
}

// New creates a heartbeat. A non-positive interval disables it: Start and
// Stop become no-ops.
func New(interval time.Duration, src Source, sink lamp.Sink) (*Heartbeat, error) {
	h := &Heartbeat{
		interval: interval,
		src:      src,
		sink:     sink,
		log:      logger.Logger().With("component", "heartbeat"),
	}
	if interval <= 0 {
		return h, nil
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create heartbeat scheduler: %w", err)
	}
	h.scheduler = s

	if _, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(h.run),
		gocron.WithName("heartbeat"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("schedule heartbeat: %w", err)
	}

	return h, nil
}

// Enabled reports whether a job is scheduled.
func (h *Heartbeat) Enabled() bool {
	return h.scheduler != nil
}

// Start begins the schedule.
func (h *Heartbeat) Start() {
	if h.scheduler == nil {
		return
	}
	h.log.Infow("heartbeat started", "interval", h.interval)
	h.scheduler.Start()
}

// Stop shuts the scheduler down and waits for a running beat to finish.
func (h *Heartbeat) Stop() error {
	if h.scheduler == nil {
		return nil
	}
	if err := h.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("stop heartbeat: %w", err)
	}
	return nil
}

// Beat publishes the current snapshot once.
func (h *Heartbeat) Beat() error {
	payload, err := json.Marshal(h.src.Saved())
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := h.sink.Publish(payload); err != nil {
		return fmt.Errorf("publish heartbeat: %w", err)
	}
	return nil
}

func (h *Heartbeat) run() {
	if err := h.Beat(); err != nil {
		h.log.Warnw("heartbeat failed", "error", err)
	}
}
