package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danielnorberg/helios/pkg/agent"
	"github.com/danielnorberg/helios/pkg/api"
	"github.com/danielnorberg/helios/pkg/config"
	"github.com/danielnorberg/helios/pkg/events"
	"github.com/danielnorberg/helios/pkg/log"
	"github.com/danielnorberg/helios/pkg/model"
	"github.com/danielnorberg/helios/pkg/persist"
	"github.com/danielnorberg/helios/pkg/ports"
	"github.com/danielnorberg/helios/pkg/runtime"
	"github.com/danielnorberg/helios/pkg/supervisor"
	"github.com/danielnorberg/helios/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "helios-agent",
	Short: "Helios agent - node-local container reconciler",
	Long: `The Helios agent continuously drives the containers on this host
toward the deployed task set, allocating host ports, supervising
container lifecycles, and reporting observed state back.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Helios agent version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent",
	Long: `Run the agent until interrupted.

The agent restores persisted executions with their port allocations and
reconciles whenever the task set changes or the refresh interval elapses.
Containers left running by a previous run are not adopted; each restored job
gets a new container.`,
	RunE: runAgent,
}

func init() {
	runCmd.Flags().String("config", "", "Path to the agent configuration file")
}

// supervisorFactory adapts the supervisor package's concrete factory to the
// agent's factory capability.
type supervisorFactory struct {
	factory *supervisor.Factory
}

func (f supervisorFactory) Create(id types.JobID, job types.Job, allocation map[string]int) agent.Supervisor {
	return f.factory.Create(id, job, allocation)
}

func runAgent(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})
	logger := log.WithComponent("main")

	// Open the executions cell. Allocated ports must survive crashes, so
	// this is the first thing that has to work.
	initial := map[types.JobID]types.Execution{}
	codec := persist.JSONCodec[map[types.JobID]types.Execution]{}
	var cell persist.Cell[map[types.JobID]types.Execution]
	var closeCell func() error
	switch cfg.Executions.Store {
	case config.StoreBolt:
		boltCell, err := persist.OpenBolt(cfg.Executions.Path, "executions", initial, codec)
		if err != nil {
			return fmt.Errorf("failed to open executions cell: %w", err)
		}
		cell = boltCell
		closeCell = boltCell.Close
	default:
		fileCell, err := persist.OpenFile(cfg.Executions.Path, initial, codec)
		if err != nil {
			return fmt.Errorf("failed to open executions cell: %w", err)
		}
		cell = fileCell
	}
	if closeCell != nil {
		defer func() { _ = closeCell() }()
	}

	containerRuntime, err := runtime.NewContainerdRuntime(cfg.Runtime.Socket)
	if err != nil {
		return fmt.Errorf("failed to initialize container runtime: %w", err)
	}
	defer containerRuntime.Close()

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	go logEvents(broker)

	taskModel := model.NewInMemory()

	factory := supervisor.NewFactory(supervisor.Config{
		Runtime:  containerRuntime,
		Reporter: taskModel,
		Events:   broker,
	})

	heliosAgent := agent.New(agent.Config{
		Model:             taskModel,
		SupervisorFactory: supervisorFactory{factory: factory},
		Executions:        cell,
		PortAllocator:     ports.NewAllocator(cfg.Ports.Range.Lo, cfg.Ports.Range.Hi),
		UpdateInterval:    cfg.Reactor.Interval.Std(),
		Events:            broker,
	})

	if err := heliosAgent.Start(); err != nil {
		return fmt.Errorf("failed to start agent: %w", err)
	}

	server := api.NewServer(taskModel, heliosAgent)
	go func() {
		logger.Info().Str("addr", cfg.API.Addr).Msg("serving API")
		if err := server.Start(cfg.API.Addr); err != nil {
			logger.Error().Err(err).Msg("API server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	heliosAgent.Stop()
	return nil
}

// logEvents mirrors broker events into the log.
func logEvents(broker *events.Broker) {
	sub := broker.Subscribe()
	logger := log.WithComponent("events")
	for event := range sub {
		logger.Info().
			Str("type", string(event.Type)).
			Str("job_id", event.JobID).
			Str("message", event.Message).
			Msg("event")
	}
}
