package cmd

import (
	"math"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/thermal-sim/thermal-sim/sim"
	"github.com/thermal-sim/thermal-sim/sim/trace"
)

var (
	// CLI flags for world construction
	scenePath string // Path to the scene YAML describing geometry and materials
	worldPath string // Path to a chunked world file
	chunkSize int    // Chunk edge length in voxels for persisted worlds
	cacheSize int    // Maximum number of chunks resident in memory
	logLevel  string // Log verbosity level

	// CLI flags for the simulation run
	backend   string  // Runner backend (sequential, parallel, accelerator)
	workers   int     // Worker count for the parallel backend, 0 = all CPUs
	totalTime float64 // Simulated duration in seconds
	timestep  float64 // Integration timestep in seconds
	tracePath string  // Optional JSON-lines trace output path
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "thermal-sim",
	Short: "Transient heat-conduction simulator for voxel worlds",
}

func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// buildCmd voxelizes a scene and writes it as a chunked world file
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Voxelize a scene into a chunked world file",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		cfg, err := LoadSceneConfig(scenePath)
		if err != nil {
			logrus.Fatalf("Invalid scene: %v", err)
		}
		if worldPath == "" {
			logrus.Fatalf("No output world path provided. Use --world.")
		}

		startTime := time.Now()
		w, err := cfg.Builder().BuildPersisted(cfg.CellSize, chunkSize, cacheSize, worldPath)
		if err != nil {
			logrus.Fatalf("World build failed: %v", err)
		}
		logrus.Infof("Built %dx%dx%d world (%d materials) into %s in %v",
			w.XSize, w.YSize, w.ZSize, len(w.Materials), worldPath, time.Since(startTime))
	},
}

func newRunner() sim.Runner {
	switch backend {
	case "sequential":
		return sim.NewSequentialRunner()
	case "parallel":
		return sim.NewParallelRunner(workers)
	case "accelerator":
		return sim.NewAcceleratorRunner(nil)
	default:
		logrus.Fatalf("Unknown backend %q (want sequential, parallel or accelerator)", backend)
		return nil
	}
}

// loadWorld picks the world source: a prebuilt chunked file when --world is
// set, otherwise the scene is voxelized in memory.
func loadWorld(cfg *SceneConfig) *sim.World {
	if worldPath != "" {
		w, err := sim.LoadWorld(worldPath, cacheSize)
		if err != nil {
			logrus.Fatalf("Cannot load world %s: %v", worldPath, err)
		}
		return w
	}
	w, err := cfg.Builder().Build(cfg.CellSize)
	if err != nil {
		logrus.Fatalf("World build failed: %v", err)
	}
	return w
}

// runCmd executes the simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the heat conduction simulation",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		cfg, err := LoadSceneConfig(scenePath)
		if err != nil {
			logrus.Fatalf("Invalid scene: %v", err)
		}

		w := loadWorld(cfg)
		state, err := cfg.InitialState(w)
		if err != nil {
			logrus.Fatalf("Cannot build initial state: %v", err)
		}
		runner := newRunner()

		logrus.Infof("Starting simulation: backend=%s, total=%vs, dt=%vs, world=%dx%dx%d",
			backend, totalTime, timestep, w.XSize, w.YSize, w.ZSize)
		startTime := time.Now()

		if tracePath != "" {
			state = runTraced(w, state, runner)
		} else {
			state, err = runner.AdvanceSimulation(w, state, totalTime, timestep)
			if err != nil {
				logrus.Fatalf("Simulation failed: %v", err)
			}
		}

		summary, err := sim.Summarize(w, state)
		if err != nil {
			logrus.Fatalf("Cannot summarize final state: %v", err)
		}
		logrus.Infof("Simulation complete in %v: min=%.3fK max=%.3fK mean=%.3fK energy=%.3eJ",
			time.Since(startTime), summary.MinTemp, summary.MaxTemp, summary.MeanTemp, summary.TotalEnergy)
	},
}

// runTraced advances one timestep at a time so every step can be recorded,
// clamping the final step to land exactly on the requested duration.
func runTraced(w *sim.World, state *sim.SimState, runner sim.Runner) *sim.SimState {
	rec := trace.NewRecorder()
	simTime := 0.0
	for step := 1; simTime < totalTime; step++ {
		dt := math.Min(timestep, totalTime-simTime)
		next, err := runner.AdvanceSimulation(w, state, dt, dt)
		if err != nil {
			logrus.Fatalf("Simulation failed at t=%vs: %v", simTime, err)
		}
		state = next
		simTime += dt

		summary, err := sim.Summarize(w, state)
		if err != nil {
			logrus.Fatalf("Cannot summarize state at t=%vs: %v", simTime, err)
		}
		rec.RecordStep(trace.StepRecord{
			Step:        step,
			SimTime:     simTime,
			MinTemp:     summary.MinTemp,
			MaxTemp:     summary.MaxTemp,
			MeanTemp:    summary.MeanTemp,
			TotalEnergy: summary.TotalEnergy,
		})
		logrus.Debugf("step %d: t=%.6fs mean=%.3fK", step, simTime, summary.MeanTemp)
	}

	f, err := os.Create(tracePath)
	if err != nil {
		logrus.Fatalf("Cannot create trace file %s: %v", tracePath, err)
	}
	defer f.Close()
	if err := rec.WriteJSON(f); err != nil {
		logrus.Fatalf("Cannot write trace: %v", err)
	}
	logrus.Infof("Wrote %d trace records to %s", len(rec.Records()), tracePath)
	return state
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	buildCmd.Flags().StringVar(&scenePath, "scene", "", "Path to the scene YAML file")
	buildCmd.Flags().StringVar(&worldPath, "world", "", "Output path for the chunked world file")
	buildCmd.Flags().IntVar(&chunkSize, "chunk-size", 16, "Chunk edge length in voxels")
	buildCmd.Flags().IntVar(&cacheSize, "cache", 64, "Maximum chunks resident in memory")
	buildCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	buildCmd.MarkFlagRequired("scene")
	buildCmd.MarkFlagRequired("world")

	runCmd.Flags().StringVar(&scenePath, "scene", "", "Path to the scene YAML file")
	runCmd.Flags().StringVar(&worldPath, "world", "", "Chunked world file (omit to voxelize the scene in memory)")
	runCmd.Flags().IntVar(&cacheSize, "cache", 64, "Maximum chunks resident in memory")
	runCmd.Flags().StringVar(&backend, "backend", "sequential", "Runner backend (sequential, parallel, accelerator)")
	runCmd.Flags().IntVar(&workers, "workers", 0, "Worker goroutines for the parallel backend (0 = all CPUs)")
	runCmd.Flags().Float64Var(&totalTime, "total-time", 1.0, "Simulated duration in seconds")
	runCmd.Flags().Float64Var(&timestep, "timestep", 0.1, "Integration timestep in seconds")
	runCmd.Flags().StringVar(&tracePath, "trace", "", "Write per-step JSON trace records to this file")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.MarkFlagRequired("scene")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(runCmd)
}
