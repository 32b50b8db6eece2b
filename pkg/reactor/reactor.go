package reactor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/danielnorberg/helios/pkg/log"
)

// Callback is the unit of work a Reactor runs. It must treat context
// cancellation as a clean exit and return ctx.Err() when it does.
type Callback func(ctx context.Context) error

// Reactor is a single-worker, level-triggered task runner. Update requests
// that the callback run at least once more; requests arriving while a run is
// in flight coalesce into exactly one further run. Independently, the
// callback runs every interval even without updates.
type Reactor struct {
	name     string
	callback Callback
	interval time.Duration
	logger   zerolog.Logger

	// updateCh is a one-slot mailbox: a pending update is a single token
	// regardless of how many Update calls produced it.
	updateCh chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a reactor that runs callback every interval and on demand.
func New(name string, callback Callback, interval time.Duration) *Reactor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reactor{
		name:     name,
		callback: callback,
		interval: interval,
		logger:   log.WithComponent("reactor").With().Str("reactor", name).Logger(),
		updateCh: make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the worker.
func (r *Reactor) Start() {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go r.run()
	})
}

// Stop signals shutdown and blocks until the worker has returned from any
// in-flight callback invocation and terminated. Pending updates are dropped.
func (r *Reactor) Stop() {
	r.stopOnce.Do(func() {
		r.cancel()
	})
	r.wg.Wait()
}

// Update requests that the callback be run at least once more after this
// call returns. Thread-safe and non-blocking.
func (r *Reactor) Update() {
	select {
	case r.updateCh <- struct{}{}:
	default:
		// A run is already pending; this request coalesces into it.
	}
}

func (r *Reactor) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		// Shutdown wins over pending work.
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		select {
		case <-r.ctx.Done():
			return
		case <-r.updateCh:
		case <-ticker.C:
		}

		if err := r.callback(r.ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			r.logger.Error().Err(err).Msg("callback failed")
		}
	}
}
