package supervisor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/danielnorberg/helios/pkg/events"
	"github.com/danielnorberg/helios/pkg/log"
	"github.com/danielnorberg/helios/pkg/runtime"
	"github.com/danielnorberg/helios/pkg/types"
)

const (
	// DefaultStopTimeout is how long a container gets to exit on SIGTERM
	// before it is killed.
	DefaultStopTimeout = 10 * time.Second

	// DefaultPollInterval is how often a running container's status is
	// observed.
	DefaultPollInterval = 5 * time.Second

	// DefaultRestartDelay is the pause before a failed container is
	// restarted while its intent is still to run.
	DefaultRestartDelay = 2 * time.Second
)

// StatusReporter receives observed job status. The model implements it.
type StatusReporter interface {
	SetTaskStatus(id types.JobID, status types.JobStatus)
}

// intent is the supervisor's current command.
type intent int

const (
	intentNone intent = iota
	intentRun
	intentHalt
)

// Config holds the collaborators shared by all supervisors of a factory.
type Config struct {
	Runtime  runtime.Runtime
	Reporter StatusReporter

	// Events may be nil; state transitions are then not published.
	Events *events.Broker

	// StopTimeout, PollInterval, and RestartDelay fall back to the package
	// defaults when zero.
	StopTimeout  time.Duration
	PollInterval time.Duration
	RestartDelay time.Duration
}

// Factory builds supervisors bound to a container runtime.
type Factory struct {
	cfg Config
}

// NewFactory creates a supervisor factory.
func NewFactory(cfg Config) *Factory {
	if cfg.StopTimeout == 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = DefaultRestartDelay
	}
	return &Factory{cfg: cfg}
}

// Create builds the supervisor for one job. The supervisor idles until its
// first command.
func (f *Factory) Create(id types.JobID, job types.Job, allocation map[string]int) *Supervisor {
	s := &Supervisor{
		id:         id,
		job:        job,
		allocation: allocation,
		cfg:        f.cfg,
		logger:     log.WithComponent("supervisor").With().Str("job_id", id.String()).Logger(),
		wake:       make(chan struct{}, 1),
		closeCh:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.worker()
	return s
}

// Supervisor owns one job's container lifecycle. A single worker goroutine
// performs all runtime operations; Start and Stop only record intent and
// wake it, so they return promptly. Methods are safe for concurrent use.
type Supervisor struct {
	id         types.JobID
	job        types.Job
	allocation map[string]int
	cfg        Config
	logger     zerolog.Logger

	wake    chan struct{}
	closeCh chan struct{}
	wg      sync.WaitGroup

	mu          sync.Mutex
	desired     intent
	state       types.JobState
	containerID string
	lastError   string
	done        bool
	closeOnce   sync.Once
}

// Start requests the container to be running. Idempotent.
func (s *Supervisor) Start() {
	s.mu.Lock()
	if s.desired == intentRun {
		s.mu.Unlock()
		return
	}
	s.desired = intentRun
	s.done = false
	s.mu.Unlock()
	s.signal()
}

// Stop requests the container to be halted. Idempotent.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.desired == intentHalt {
		s.mu.Unlock()
		return
	}
	s.desired = intentHalt
	s.mu.Unlock()
	s.signal()
}

// Close terminates the worker and releases the supervisor. It does not stop
// the container: at agent shutdown a running container is left behind. A
// supervisor created later for the same job does not adopt it; it creates a
// new container.
func (s *Supervisor) Close() error {
	s.closeOnce.Do(func() {
		close(s.closeCh)
	})
	s.wg.Wait()
	return nil
}

// IsStarting reports whether the current intent is to run the container.
func (s *Supervisor) IsStarting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desired == intentRun
}

// IsStopping reports whether the current intent is to halt the container.
func (s *Supervisor) IsStopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desired == intentHalt
}

// IsDone reports whether the supervisor has reached a terminal state.
func (s *Supervisor) IsDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Status returns the observed container state.
func (s *Supervisor) Status() types.JobState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Supervisor) intent() intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desired
}

func (s *Supervisor) closing() bool {
	select {
	case <-s.closeCh:
		return true
	default:
		return false
	}
}

// worker is the sole goroutine performing runtime operations.
func (s *Supervisor) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.closeCh:
			return
		case <-s.wake:
		}
		if !s.converge() {
			return
		}
	}
}

// converge drives the container toward the current intent. It returns false
// when the supervisor is closing.
func (s *Supervisor) converge() bool {
	for {
		if s.closing() {
			return false
		}
		switch s.intent() {
		case intentNone:
			return true
		case intentRun:
			err := s.runContainer()
			if s.closing() {
				return false
			}
			if s.intent() != intentRun {
				continue
			}
			// The container stopped while it should be running; restart
			// after a delay. Container-level failures are this supervisor's
			// responsibility, not the reconciler's.
			if err != nil {
				s.logger.Warn().Err(err).Msg("container stopped unexpectedly, restarting")
			}
			s.setState(types.StateFailed, errorString(err))
			select {
			case <-s.closeCh:
				return false
			case <-s.wake:
			case <-time.After(s.cfg.RestartDelay):
			}
		case intentHalt:
			s.haltContainer()
			return true
		}
	}
}

// runContainer performs one pull-create-start-observe cycle. It returns nil
// when interrupted by an intent change or close, and an error when the
// container stopped or could not be started.
func (s *Supervisor) runContainer() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.interruptWhenRedirected(ctx, cancel)

	s.setState(types.StatePullingImage, "")
	if err := s.cfg.Runtime.PullImage(ctx, s.job.Image); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to pull image: %w", err)
	}

	s.setState(types.StateStarting, "")
	name := containerName(s.id)
	containerID, err := s.cfg.Runtime.CreateContainer(ctx, runtime.ContainerConfig{
		Name:    name,
		Image:   s.job.Image,
		Command: s.job.Command,
		Env:     s.containerEnv(),
		Mounts:  s.containerMounts(),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to create container: %w", err)
	}
	s.setContainerID(containerID)

	if err := s.cfg.Runtime.StartContainer(ctx, containerID); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to start container: %w", err)
	}
	s.setState(types.StateRunning, "")
	s.logger.Info().Str("container_id", containerID).Msg("container running")

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			state, err := s.cfg.Runtime.ContainerStatus(ctx, containerID)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Warn().Err(err).Msg("failed to observe container status")
				continue
			}
			switch state {
			case runtime.ContainerExited:
				return fmt.Errorf("container exited")
			case runtime.ContainerFailed:
				return fmt.Errorf("container failed")
			}
		}
	}
}

// interruptWhenRedirected cancels the run context once the intent is no
// longer to run or the supervisor is closing.
func (s *Supervisor) interruptWhenRedirected(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closeCh:
			cancel()
			return
		case <-ticker.C:
			if s.intent() != intentRun {
				cancel()
				return
			}
		}
	}
}

// haltContainer stops and removes the container, then records the terminal
// stopped state.
func (s *Supervisor) haltContainer() {
	containerID := s.currentContainerID()
	if containerID != "" {
		s.setState(types.StateStopping, "")
		ctx := context.Background()
		if err := s.cfg.Runtime.StopContainer(ctx, containerID, s.cfg.StopTimeout); err != nil {
			s.logger.Error().Err(err).Msg("failed to stop container")
		}
		if err := s.cfg.Runtime.DeleteContainer(ctx, containerID); err != nil {
			s.logger.Error().Err(err).Msg("failed to delete container")
		}
		s.setContainerID("")
	}

	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
	s.setState(types.StateStopped, "")
	s.logger.Info().Msg("container stopped")
}

// containerEnv is the job environment extended with the allocated host
// ports, one HELIOS_PORT_<NAME> variable per port.
func (s *Supervisor) containerEnv() []string {
	env := append([]string(nil), s.job.Env...)
	names := make([]string, 0, len(s.allocation))
	for name := range s.allocation {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		key := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
		env = append(env, fmt.Sprintf("HELIOS_PORT_%s=%d", key, s.allocation[name]))
	}
	return env
}

func (s *Supervisor) containerMounts() []runtime.Mount {
	if len(s.job.Volumes) == 0 {
		return nil
	}
	paths := make([]string, 0, len(s.job.Volumes))
	for containerPath := range s.job.Volumes {
		paths = append(paths, containerPath)
	}
	sort.Strings(paths)
	mounts := make([]runtime.Mount, 0, len(paths))
	for _, containerPath := range paths {
		mounts = append(mounts, runtime.Mount{
			HostPath:      s.job.Volumes[containerPath],
			ContainerPath: containerPath,
		})
	}
	return mounts
}

func (s *Supervisor) setState(state types.JobState, errorMessage string) {
	s.mu.Lock()
	s.state = state
	s.lastError = errorMessage
	containerID := s.containerID
	s.mu.Unlock()

	if s.cfg.Reporter != nil {
		s.cfg.Reporter.SetTaskStatus(s.id, types.JobStatus{
			State:       state,
			ContainerID: containerID,
			Error:       errorMessage,
		})
	}
	if s.cfg.Events != nil {
		s.cfg.Events.Publish(&events.Event{
			Type:    events.EventJobStateChanged,
			JobID:   s.id.String(),
			Message: string(state),
		})
	}
}

func (s *Supervisor) setContainerID(containerID string) {
	s.mu.Lock()
	s.containerID = containerID
	s.mu.Unlock()
}

func (s *Supervisor) currentContainerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.containerID
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// containerName derives a runtime-unique container name from the job ID.
func containerName(id types.JobID) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, id.String())
	return fmt.Sprintf("%s-%s", sanitized, uuid.New().String()[:8])
}
