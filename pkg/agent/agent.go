package agent

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/danielnorberg/helios/pkg/events"
	"github.com/danielnorberg/helios/pkg/log"
	"github.com/danielnorberg/helios/pkg/metrics"
	"github.com/danielnorberg/helios/pkg/persist"
	"github.com/danielnorberg/helios/pkg/ports"
	"github.com/danielnorberg/helios/pkg/reactor"
	"github.com/danielnorberg/helios/pkg/types"
)

// DefaultUpdateInterval is the timed-refresh period of the reconciliation
// loop. A tick also runs whenever the model reports a task change.
const DefaultUpdateInterval = 30 * time.Second

// Agent drives the containers on this host toward the desired state
// published in the model. It owns the supervisor map and the persistent
// execution map; all mutation happens on the reactor worker.
type Agent struct {
	model      Model
	factory    SupervisorFactory
	executions persist.Cell[map[types.JobID]types.Execution]
	allocator  *ports.Allocator
	broker     *events.Broker

	reactor     Reactor
	supervisors map[types.JobID]Supervisor
	// supervisorsMu only guards snapshot reads from other goroutines;
	// mutation is confined to the reactor worker.
	supervisorsMu sync.Mutex

	tracer trace.Tracer
	logger zerolog.Logger
}

// Config collects the agent's collaborators.
type Config struct {
	Model             Model
	SupervisorFactory SupervisorFactory
	Executions        persist.Cell[map[types.JobID]types.Execution]
	PortAllocator     *ports.Allocator

	// ReactorFactory may be nil, in which case reactor.New is used.
	ReactorFactory ReactorFactory

	// UpdateInterval may be zero, in which case DefaultUpdateInterval is
	// used.
	UpdateInterval time.Duration

	// Events may be nil; lifecycle events are then not published.
	Events *events.Broker
}

// New creates an agent. Start must be called before the agent reconciles.
func New(cfg Config) *Agent {
	a := &Agent{
		model:         cfg.Model,
		factory:       cfg.SupervisorFactory,
		executions:    cfg.Executions,
		allocator:     cfg.PortAllocator,
		broker:        cfg.Events,
		supervisors:   make(map[types.JobID]Supervisor),
		tracer:        otel.Tracer("helios/agent"),
		logger:        log.WithComponent("agent"),
	}

	interval := cfg.UpdateInterval
	if interval == 0 {
		interval = DefaultUpdateInterval
	}
	factory := cfg.ReactorFactory
	if factory == nil {
		factory = func(name string, cb reactor.Callback, interval time.Duration) Reactor {
			return reactor.New(name, cb, interval)
		}
	}
	a.reactor = factory("agent", a.update, interval)

	return a
}

// Start reconstructs supervisors for persisted executions with allocated
// ports, registers for model notifications, and begins reconciling. The
// reconstructed supervisors are not commanded here; the first tick delegates
// goals.
func (a *Agent) Start() error {
	for _, id := range types.SortedJobIDs(a.executions.Get()) {
		execution := a.executions.Get()[id]
		if execution.Ports != nil {
			a.createSupervisor(id, execution.Job, execution.Ports)
		}
	}

	a.model.AddListener(func() {
		a.reactor.Update()
	})

	a.reactor.Start()
	a.reactor.Update()

	a.publish(&events.Event{Type: events.EventAgentStarted})
	a.logger.Info().Int("executions", len(a.executions.Get())).Msg("agent started")
	return nil
}

// Stop terminates the reconciliation loop, waiting for any in-flight tick,
// then releases all supervisors. Containers are left to the supervisor
// implementation; after Stop returns the agent holds no references.
func (a *Agent) Stop() {
	a.reactor.Stop()

	a.supervisorsMu.Lock()
	for id, supervisor := range a.supervisors {
		if err := supervisor.Close(); err != nil {
			metrics.SupervisorOperationErrors.WithLabelValues("close").Inc()
			a.logger.Error().Err(err).Str("job_id", id.String()).Msg("failed to close supervisor")
		}
		delete(a.supervisors, id)
	}
	a.supervisorsMu.Unlock()

	metrics.SupervisorsRunning.Set(0)
	a.publish(&events.Event{Type: events.EventAgentStopped})
	a.logger.Info().Msg("agent stopped")
}

// Executions returns a copy of the current execution map.
func (a *Agent) Executions() map[types.JobID]types.Execution {
	return maps.Clone(a.executions.Get())
}

// SupervisorStates returns a snapshot of the live supervisors' observed
// states.
func (a *Agent) SupervisorStates() map[types.JobID]types.JobState {
	a.supervisorsMu.Lock()
	defer a.supervisorsMu.Unlock()
	states := make(map[types.JobID]types.JobState, len(a.supervisors))
	for id, supervisor := range a.supervisors {
		states[id] = supervisor.Status()
	}
	return states
}

// update is the reconciliation tick, run single-threaded by the reactor.
//
// Invariants maintained here:
//   - supervisors for the same job never run concurrently: a replacement is
//     not constructed until the prior one is observed done and stopped and
//     has been closed,
//   - a supervisor is never released before its container is stopped,
//   - executions are persisted before supervisors are mutated, so a crash
//     between deciding ports and running containers cannot reuse stale
//     ports for a different job,
//   - book-keeping one job does not block processing of the others.
func (a *Agent) update(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, span := a.tracer.Start(ctx, "reconcile")
	defer span.End()

	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconcileDuration)
		metrics.ReconcileTicksTotal.Inc()
	}()

	tasks := a.model.Tasks()
	current := a.executions.Get()

	a.logger.Debug().
		Int("tasks", len(tasks)).
		Int("executions", len(current)).
		Int("supervisors", len(a.supervisors)).
		Msg("reconciling")

	// Merge goals and introduce executions for new tasks. Task deletion does
	// not remove executions; removal is driven by the undeploy tombstone.
	next := maps.Clone(current)
	for _, id := range types.SortedJobIDs(tasks) {
		task := tasks[id]
		existing, ok := next[id]
		if ok {
			if existing.Goal != task.Goal {
				next[id] = existing.WithGoal(task.Goal)
			}
		} else if task.Goal != types.GoalUndeploy {
			next[id] = types.NewExecution(task.Job, task.Goal)
			a.publish(&events.Event{Type: events.EventExecutionCreated, JobID: id.String()})
		}
	}

	// Allocate ports for executions that have none yet, in job order, each
	// allocation extending the used set seen by the next.
	used := make(map[int]bool)
	for _, execution := range next {
		for _, port := range execution.Ports {
			used[port] = true
		}
	}
	for _, id := range types.SortedJobIDs(next) {
		execution := next[id]
		if execution.Ports != nil {
			continue
		}
		allocation := a.allocator.Allocate(execution.Job.Ports, used)
		if allocation == nil {
			metrics.PortAllocationFailures.Inc()
			a.logger.Warn().Str("job_id", id.String()).Msg("unable to allocate ports for job")
			continue
		}
		next[id] = execution.WithPorts(allocation)
		for _, port := range allocation {
			used[port] = true
		}
	}

	// Persist before any supervisor is touched. A persistence failure aborts
	// the tick; the level-triggered loop retries later.
	if !types.ExecutionsEqual(next, current) {
		if err := a.executions.Set(next); err != nil {
			metrics.PersistenceFailures.Inc()
			a.logger.Error().Err(err).Msg("failed to persist executions")
			return nil
		}
	}

	// Release stopped supervisors before spawning so a replacement for the
	// same job never coexists with its predecessor.
	a.supervisorsMu.Lock()
	for _, id := range types.SortedJobIDs(a.supervisors) {
		supervisor := a.supervisors[id]
		if supervisor.IsDone() && supervisor.Status() == types.StateStopped {
			a.logger.Debug().Str("job_id", id.String()).Msg("releasing stopped supervisor")
			delete(a.supervisors, id)
			if err := supervisor.Close(); err != nil {
				metrics.SupervisorOperationErrors.WithLabelValues("close").Inc()
				a.logger.Error().Err(err).Str("job_id", id.String()).Msg("failed to close supervisor")
			}
			a.publish(&events.Event{Type: events.EventSupervisorClosed, JobID: id.String()})
			a.reactor.Update()
		}
	}

	// Spawn supervisors for startable executions.
	for _, id := range types.SortedJobIDs(a.executions.Get()) {
		execution := a.executions.Get()[id]
		if _, ok := a.supervisors[id]; !ok &&
			execution.Goal == types.GoalStart &&
			execution.Ports != nil {
			a.createSupervisorLocked(id, execution.Job, execution.Ports)
		}
	}

	// Delegate goals.
	for _, id := range types.SortedJobIDs(a.supervisors) {
		execution, ok := a.executions.Get()[id]
		if !ok {
			continue
		}
		a.delegate(a.supervisors[id], execution.Goal)
	}

	// Reap tombstones whose supervisor is gone.
	var reaped []types.JobID
	for _, id := range types.SortedJobIDs(a.executions.Get()) {
		execution := a.executions.Get()[id]
		if execution.Goal != types.GoalUndeploy {
			continue
		}
		if _, ok := a.supervisors[id]; ok {
			continue
		}
		a.logger.Debug().Str("job_id", id.String()).Msg("removing tombstoned job")
		a.model.RemoveUndeployTombstone(id)
		a.model.RemoveTaskStatus(id)
		a.publish(&events.Event{Type: events.EventExecutionReaped, JobID: id.String()})
		reaped = append(reaped, id)
	}

	supervisorCount := len(a.supervisors)
	a.supervisorsMu.Unlock()

	if len(reaped) > 0 {
		survivors := maps.Clone(a.executions.Get())
		for _, id := range reaped {
			delete(survivors, id)
		}
		if err := a.executions.Set(survivors); err != nil {
			metrics.PersistenceFailures.Inc()
			a.logger.Error().Err(err).Msg("failed to persist reaped executions")
			return nil
		}
	}

	metrics.SupervisorsRunning.Set(float64(supervisorCount))
	metrics.ExecutionsTotal.Set(float64(len(a.executions.Get())))
	return nil
}

// delegate commands the supervisor toward the goal.
func (a *Agent) delegate(supervisor Supervisor, goal types.Goal) {
	switch goal {
	case types.GoalStart:
		if !supervisor.IsStarting() {
			supervisor.Start()
		}
	case types.GoalStop, types.GoalUndeploy:
		if !supervisor.IsStopping() {
			supervisor.Stop()
		}
	}
}

func (a *Agent) createSupervisor(id types.JobID, job types.Job, allocation map[string]int) {
	a.supervisorsMu.Lock()
	defer a.supervisorsMu.Unlock()
	a.createSupervisorLocked(id, job, allocation)
}

func (a *Agent) createSupervisorLocked(id types.JobID, job types.Job, allocation map[string]int) {
	a.logger.Debug().Str("job_id", id.String()).Str("image", job.Image).Msg("creating job supervisor")
	a.supervisors[id] = a.factory.Create(id, job, allocation)
	a.publish(&events.Event{Type: events.EventSupervisorCreated, JobID: id.String()})
}

func (a *Agent) publish(event *events.Event) {
	if a.broker != nil {
		a.broker.Publish(event)
	}
}
