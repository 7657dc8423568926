package connectivity

import (
	"context"
	"sync/atomic"
	"time"

	"opay/events"
	"opay/logx"
)

// HealthChecker is the probe target, normally the verifier client.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Watcher turns the ambient online/offline state into explicit bus events by
// probing the verifier origin. Only transitions are published, never the
// steady state, so subscribers see edges.
type Watcher struct {
	checker  HealthChecker
	bus      *events.EventBus
	interval time.Duration
	online   atomic.Bool
}

func NewWatcher(checker HealthChecker, bus *events.EventBus, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 20 * time.Second
	}
	w := &Watcher{
		checker:  checker,
		bus:      bus,
		interval: interval,
	}
	return w
}

// Run probes until ctx is done. The first probe establishes the initial
// state; an initial online result is still published so a freshly started
// agent drains any queue left over from the previous run.
func (w *Watcher) Run(ctx context.Context) {
	w.probe(ctx, true)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.probe(ctx, false)
		}
	}
}

// Online reports the last probed state.
func (w *Watcher) Online() bool {
	return w.online.Load()
}

func (w *Watcher) probe(ctx context.Context, initial bool) {
	probeCtx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	err := w.checker.Health(probeCtx)
	nowOnline := err == nil

	wasOnline := w.online.Swap(nowOnline)
	if !initial && nowOnline == wasOnline {
		return
	}

	if nowOnline {
		logx.Info("CONNECTIVITY", "Verifier reachable, device is online")
		w.bus.Publish(events.NewConnectivityChanged(true, "probe"))
	} else if wasOnline || initial {
		logx.Warn("CONNECTIVITY", "Verifier unreachable, device is offline")
		w.bus.Publish(events.NewConnectivityChanged(false, "probe"))
	}
}
