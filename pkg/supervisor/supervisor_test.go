package supervisor

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielnorberg/helios/pkg/log"
	"github.com/danielnorberg/helios/pkg/runtime"
	"github.com/danielnorberg/helios/pkg/types"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true, Output: io.Discard})
	os.Exit(m.Run())
}

// fakeRuntime simulates a container runtime whose observed state the test
// controls.
type fakeRuntime struct {
	mu      sync.Mutex
	pulls   int
	creates int
	starts  int
	stops   int
	deletes int
	status  runtime.ContainerState
	pullErr error
	configs []runtime.ContainerConfig
}

func (r *fakeRuntime) PullImage(ctx context.Context, imageRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pulls++
	return r.pullErr
}

func (r *fakeRuntime) CreateContainer(ctx context.Context, cfg runtime.ContainerConfig) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	r.configs = append(r.configs, cfg)
	return cfg.Name, nil
}

func (r *fakeRuntime) StartContainer(ctx context.Context, containerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	r.status = runtime.ContainerRunning
	return nil
}

func (r *fakeRuntime) StopContainer(ctx context.Context, containerID string, timeout time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	r.status = runtime.ContainerExited
	return nil
}

func (r *fakeRuntime) DeleteContainer(ctx context.Context, containerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes++
	return nil
}

func (r *fakeRuntime) ContainerStatus(ctx context.Context, containerID string) (runtime.ContainerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, nil
}

func (r *fakeRuntime) Close() error {
	return nil
}

func (r *fakeRuntime) setStatus(state runtime.ContainerState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = state
}

func (r *fakeRuntime) snapshot() (pulls, creates, starts, stops, deletes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pulls, r.creates, r.starts, r.stops, r.deletes
}

func (r *fakeRuntime) lastConfig(t *testing.T) runtime.ContainerConfig {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.configs)
	return r.configs[len(r.configs)-1]
}

// fakeReporter records observed statuses.
type fakeReporter struct {
	mu       sync.Mutex
	statuses []types.JobStatus
}

func (r *fakeReporter) SetTaskStatus(id types.JobID, status types.JobStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *fakeReporter) states() []types.JobState {
	r.mu.Lock()
	defer r.mu.Unlock()
	states := make([]types.JobState, len(r.statuses))
	for i, status := range r.statuses {
		states[i] = status.State
	}
	return states
}

func newTestFactory(rt *fakeRuntime, reporter *fakeReporter) *Factory {
	return NewFactory(Config{
		Runtime:      rt,
		Reporter:     reporter,
		StopTimeout:  time.Second,
		PollInterval: 10 * time.Millisecond,
		RestartDelay: 20 * time.Millisecond,
	})
}

func testJob() types.Job {
	return types.Job{
		ID:    "web:1",
		Image: "nginx:1.25",
		Env:   []string{"MODE=prod"},
		Ports: map[string]types.PortSpec{"http": {InternalPort: 80}},
	}
}

func TestStartRunsContainer(t *testing.T) {
	rt := &fakeRuntime{}
	reporter := &fakeReporter{}
	s := newTestFactory(rt, reporter).Create("web:1", testJob(), map[string]int{"http": 20000})
	defer s.Close()

	s.Start()

	assert.Eventually(t, func() bool {
		return s.Status() == types.StateRunning
	}, 5*time.Second, 10*time.Millisecond)

	pulls, creates, starts, _, _ := rt.snapshot()
	assert.Equal(t, 1, pulls)
	assert.Equal(t, 1, creates)
	assert.Equal(t, 1, starts)
	assert.True(t, s.IsStarting())
	assert.False(t, s.IsDone())
	assert.Contains(t, reporter.states(), types.StatePullingImage)
	assert.Contains(t, reporter.states(), types.StateRunning)
}

func TestContainerEnvCarriesPortAllocation(t *testing.T) {
	rt := &fakeRuntime{}
	s := newTestFactory(rt, &fakeReporter{}).Create("web:1", testJob(), map[string]int{"http": 20000, "admin-ui": 20001})
	defer s.Close()

	s.Start()
	assert.Eventually(t, func() bool {
		return s.Status() == types.StateRunning
	}, 5*time.Second, 10*time.Millisecond)

	env := rt.lastConfig(t).Env
	assert.Contains(t, env, "MODE=prod")
	assert.Contains(t, env, "HELIOS_PORT_HTTP=20000")
	assert.Contains(t, env, "HELIOS_PORT_ADMIN_UI=20001")
}

func TestStopHaltsContainer(t *testing.T) {
	rt := &fakeRuntime{}
	s := newTestFactory(rt, &fakeReporter{}).Create("web:1", testJob(), map[string]int{"http": 20000})
	defer s.Close()

	s.Start()
	assert.Eventually(t, func() bool {
		return s.Status() == types.StateRunning
	}, 5*time.Second, 10*time.Millisecond)

	s.Stop()

	assert.Eventually(t, func() bool {
		return s.IsDone() && s.Status() == types.StateStopped
	}, 5*time.Second, 10*time.Millisecond)

	_, _, _, stops, deletes := rt.snapshot()
	assert.Equal(t, 1, stops)
	assert.Equal(t, 1, deletes)
	assert.True(t, s.IsStopping())
}

func TestStopWithoutStart(t *testing.T) {
	rt := &fakeRuntime{}
	s := newTestFactory(rt, &fakeReporter{}).Create("web:1", testJob(), map[string]int{"http": 20000})
	defer s.Close()

	s.Stop()

	assert.Eventually(t, func() bool {
		return s.IsDone() && s.Status() == types.StateStopped
	}, 5*time.Second, 10*time.Millisecond)

	_, _, _, stops, _ := rt.snapshot()
	assert.Equal(t, 0, stops, "there is no container to stop")
}

func TestRestartsFailedContainer(t *testing.T) {
	rt := &fakeRuntime{}
	s := newTestFactory(rt, &fakeReporter{}).Create("web:1", testJob(), map[string]int{"http": 20000})
	defer s.Close()

	s.Start()
	assert.Eventually(t, func() bool {
		return s.Status() == types.StateRunning
	}, 5*time.Second, 10*time.Millisecond)

	rt.setStatus(runtime.ContainerFailed)

	// StartContainer flips the fake back to running, so a successful restart
	// is observable as a second create.
	assert.Eventually(t, func() bool {
		_, creates, _, _, _ := rt.snapshot()
		return creates >= 2 && s.Status() == types.StateRunning
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStartIdempotent(t *testing.T) {
	rt := &fakeRuntime{}
	s := newTestFactory(rt, &fakeReporter{}).Create("web:1", testJob(), map[string]int{"http": 20000})
	defer s.Close()

	s.Start()
	s.Start()
	s.Start()

	assert.Eventually(t, func() bool {
		return s.Status() == types.StateRunning
	}, 5*time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	_, creates, _, _, _ := rt.snapshot()
	assert.Equal(t, 1, creates)
}

func TestCloseLeavesContainerRunning(t *testing.T) {
	rt := &fakeRuntime{}
	s := newTestFactory(rt, &fakeReporter{}).Create("web:1", testJob(), map[string]int{"http": 20000})

	s.Start()
	assert.Eventually(t, func() bool {
		return s.Status() == types.StateRunning
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Close())

	_, _, _, stops, _ := rt.snapshot()
	assert.Equal(t, 0, stops, "close must not stop the container")
}

func TestVolumesBecomeMounts(t *testing.T) {
	rt := &fakeRuntime{}
	job := testJob()
	job.Volumes = map[string]string{"/data": "/srv/web-data"}
	s := newTestFactory(rt, &fakeReporter{}).Create("web:1", job, map[string]int{"http": 20000})
	defer s.Close()

	s.Start()
	assert.Eventually(t, func() bool {
		return s.Status() == types.StateRunning
	}, 5*time.Second, 10*time.Millisecond)

	mounts := rt.lastConfig(t).Mounts
	require.Len(t, mounts, 1)
	assert.Equal(t, "/srv/web-data", mounts[0].HostPath)
	assert.Equal(t, "/data", mounts[0].ContainerPath)
}

func TestContainerNameSanitized(t *testing.T) {
	name := containerName("web/service:1.2")
	assert.NotContains(t, name, "/")
	assert.NotContains(t, name, ":")
	assert.Contains(t, name, "web-service-1-2")
}
