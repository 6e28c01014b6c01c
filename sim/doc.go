// Package sim provides the core thermal voxel simulation engine.
//
// # Reading Guide
//
// Start with these three files to understand the engine:
//   - world.go: WorldBuilder voxelization, the immutable World, and its chunk accessor
//   - state.go: the immutable temperature field and its derive-new-on-write operations
//   - runner.go: the Runner contract and step planning shared by all backends
//
// # Architecture
//
// The sim package defines the world model and the runner backends; the hard
// mechanics live in sub-packages:
//   - sim/kernel: the single pure per-voxel conduction update every backend calls
//   - sim/chunk: run-length codec, world-file container, bounded LRU chunk store
//   - sim/device: accelerator abstraction behind the AcceleratorRunner
//   - sim/trace: per-step field summary recording
//
// # Backends
//
// SequentialRunner, ParallelRunner, and AcceleratorRunner implement Runner
// with identical numerics: the physics is factored into kernel.StepRegion
// and the backends only schedule it differently (one pass, a chunk-
// partitioned worker pool, or whole-grid device dispatches). Double
// buffering of the temperature field is mandatory in all three, which makes
// results independent of iteration order and lets parallel workers run
// without locks.
package sim
