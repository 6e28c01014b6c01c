package sim

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/thermal-sim/thermal-sim/sim/chunk"
	"github.com/thermal-sim/thermal-sim/sim/kernel"
)

// chunkAccessor is what a World needs from its chunk layer. The persisted
// bounded-cache store and the in-memory single-chunk store both satisfy it.
type chunkAccessor interface {
	Get(chunk.Coord) (*chunk.Chunk, error)
	Pin(chunk.Coord) (*chunk.Chunk, error)
	Unpin(chunk.Coord)
}

// World is the immutable geometric description a simulation runs over:
// voxel dimensions, cell size, the material table, and the chunk accessor
// that resolves every voxel to exactly one material index. Worlds never
// change after construction, which is what lets simulation workers read
// chunk payloads concurrently without locks.
type World struct {
	XSize, YSize, ZSize int
	CellSize            float64
	ChunkSize           int
	Materials           []Material

	store chunkAccessor
}

func (w *World) grid() kernel.Grid {
	return kernel.Grid{NX: w.XSize, NY: w.YSize, NZ: w.ZSize, CellSize: w.CellSize}
}

func (w *World) inBounds(x, y, z int) bool {
	return x >= 0 && x < w.XSize && y >= 0 && y < w.YSize && z >= 0 && z < w.ZSize
}

// MaterialIndexAt resolves a voxel coordinate to its material index,
// faulting the owning chunk in if necessary.
func (w *World) MaterialIndexAt(x, y, z int) (uint8, error) {
	if !w.inBounds(x, y, z) {
		return 0, fmt.Errorf("%w: voxel (%d,%d,%d) outside %dx%dx%d world",
			ErrChunkOutOfRange, x, y, z, w.XSize, w.YSize, w.ZSize)
	}
	c := chunk.Coord{X: x / w.ChunkSize, Y: y / w.ChunkSize, Z: z / w.ChunkSize}
	ch, err := w.store.Get(c)
	if err != nil {
		return 0, err
	}
	return ch.Voxels[ch.Index(x%w.ChunkSize, y%w.ChunkSize, z%w.ChunkSize)], nil
}

// SampleMaterial returns the material of the voxel containing the given
// continuous point, or ok=false outside the world.
func (w *World) SampleMaterial(x, y, z float64) (Material, bool) {
	vx := int(math.Floor(x / w.CellSize))
	vy := int(math.Floor(y / w.CellSize))
	vz := int(math.Floor(z / w.CellSize))
	if !w.inBounds(vx, vy, vz) {
		return Material{}, false
	}
	idx, err := w.MaterialIndexAt(vx, vy, vz)
	if err != nil {
		return Material{}, false
	}
	return w.Materials[idx], true
}

// pinChunk holds the chunk covering the given chunk coordinate resident for
// the duration of a step partition; callers must Unpin.
func (w *World) pinChunk(c chunk.Coord) (*chunk.Chunk, error) { return w.store.Pin(c) }

func (w *World) unpinChunk(c chunk.Coord) { w.store.Unpin(c) }

// partition is one chunk-aligned voxel box a parallel step worker owns.
type partition struct {
	coord chunk.Coord
	box   VoxelRange
}

// chunkPartitions splits the voxel grid along chunk boundaries, the
// granularity the chunk store caches at.
func (w *World) chunkPartitions() []partition {
	ccx := (w.XSize + w.ChunkSize - 1) / w.ChunkSize
	ccy := (w.YSize + w.ChunkSize - 1) / w.ChunkSize
	ccz := (w.ZSize + w.ChunkSize - 1) / w.ChunkSize
	parts := make([]partition, 0, ccx*ccy*ccz)
	for cx := 0; cx < ccx; cx++ {
		for cy := 0; cy < ccy; cy++ {
			for cz := 0; cz < ccz; cz++ {
				parts = append(parts, partition{
					coord: chunk.Coord{X: cx, Y: cy, Z: cz},
					box: VoxelRange{
						X0: cx * w.ChunkSize, X1: min((cx+1)*w.ChunkSize, w.XSize),
						Y0: cy * w.ChunkSize, Y1: min((cy+1)*w.ChunkSize, w.YSize),
						Z0: cz * w.ChunkSize, Z1: min((cz+1)*w.ChunkSize, w.ZSize),
					},
				})
			}
		}
	}
	return parts
}

// BlankSimState returns a state with every voxel at the default temperature
// of zero. Two calls on the same world yield equal states.
func (w *World) BlankSimState() *SimState {
	return newSimState(w.XSize, w.YSize, w.ZSize)
}

func (w *World) checkShape(state *SimState) error {
	if state.XSize != w.XSize || state.YSize != w.YSize || state.ZSize != w.ZSize {
		return fmt.Errorf("%w: state %dx%dx%d vs world %dx%dx%d",
			ErrDimensionMismatch, state.XSize, state.YSize, state.ZSize, w.XSize, w.YSize, w.ZSize)
	}
	return nil
}

// intersectRegion maps a volume onto the world's voxel box, failing when it
// misses the world entirely.
func (w *World) intersectRegion(volume Volume) (VoxelRange, error) {
	if err := volume.Validate(); err != nil {
		return VoxelRange{}, err
	}
	r := volume.VoxelRange(w.CellSize).Clamp(w.XSize, w.YSize, w.ZSize)
	if r.Empty() {
		return VoxelRange{}, fmt.Errorf("%w: volume [%v,%v,%v]..[%v,%v,%v] does not intersect the world",
			ErrRegionOutOfBounds, volume.MinX, volume.MinY, volume.MinZ, volume.MaxX, volume.MaxY, volume.MaxZ)
	}
	return r, nil
}

// SetSimStateTemperature derives a new state equal to the input except that
// every voxel inside the intersection of the volume and the world carries
// the given temperature. The input state is left untouched.
func (w *World) SetSimStateTemperature(state *SimState, temperature float64, volume Volume) (*SimState, error) {
	if err := w.checkShape(state); err != nil {
		return nil, err
	}
	r, err := w.intersectRegion(volume)
	if err != nil {
		return nil, err
	}
	out := state.Clone()
	for x := r.X0; x < r.X1; x++ {
		for y := r.Y0; y < r.Y1; y++ {
			for z := r.Z0; z < r.Z1; z++ {
				out.temps[out.index(x, y, z)] = temperature
			}
		}
	}
	return out, nil
}

// AddSimStateEnergy derives a new state with the given energy (joules)
// injected into every voxel the volume covers, converted to a temperature
// delta through the local material's volumetric heat capacity.
func (w *World) AddSimStateEnergy(state *SimState, joules float64, volume Volume) (*SimState, error) {
	if err := w.checkShape(state); err != nil {
		return nil, err
	}
	r, err := w.intersectRegion(volume)
	if err != nil {
		return nil, err
	}
	cellVolume := w.CellSize * w.CellSize * w.CellSize
	out := state.Clone()
	for x := r.X0; x < r.X1; x++ {
		for y := r.Y0; y < r.Y1; y++ {
			for z := r.Z0; z < r.Z1; z++ {
				mi, err := w.MaterialIndexAt(x, y, z)
				if err != nil {
					return nil, err
				}
				m := w.Materials[mi]
				out.temps[out.index(x, y, z)] += joules / (m.Density * m.SpecificHeat * cellVolume)
			}
		}
	}
	return out, nil
}

// materialOp is one ordered (material, volume) assignment. Later ops
// overwrite earlier ones per voxel.
type materialOp struct {
	material Material
	volume   Volume
}

// WorldBuilder accumulates material assignments over a continuous extent and
// voxelizes them into a World. Assignment order is significant: the last
// writer wins per voxel, which is why the ops live in an explicit ordered
// list.
type WorldBuilder struct {
	xExtent, yExtent, zExtent float64
	ops                       []materialOp
}

// NewWorldBuilder starts a builder for a world of the given continuous
// extent in meters.
func NewWorldBuilder(xExtent, yExtent, zExtent float64) *WorldBuilder {
	return &WorldBuilder{xExtent: xExtent, yExtent: yExtent, zExtent: zExtent}
}

// WithMaterial assigns a material to every voxel the volume covers,
// overriding earlier assignments. Returns the builder for chaining.
func (b *WorldBuilder) WithMaterial(m Material, volume Volume) *WorldBuilder {
	b.ops = append(b.ops, materialOp{material: m, volume: volume})
	return b
}

// resolve validates the build inputs and produces the material table (index
// 0 is always the blank insulator; identical materials dedupe) plus each
// op's table index and clamped voxel range.
func (b *WorldBuilder) resolve(cellSize float64) (nx, ny, nz int, table []Material, opIdx []uint8, opRange []VoxelRange, err error) {
	if cellSize <= 0 || b.xExtent <= 0 || b.yExtent <= 0 || b.zExtent <= 0 {
		err = fmt.Errorf("%w: world extent %vx%vx%v with cell size %v",
			ErrInvalidGeometry, b.xExtent, b.yExtent, b.zExtent, cellSize)
		return
	}
	nx = int(math.Ceil(b.xExtent / cellSize))
	ny = int(math.Ceil(b.yExtent / cellSize))
	nz = int(math.Ceil(b.zExtent / cellSize))

	table = []Material{BlankMaterial()}
	opIdx = make([]uint8, len(b.ops))
	opRange = make([]VoxelRange, len(b.ops))
	for i, op := range b.ops {
		if err = ValidateMaterial(op.material); err != nil {
			err = fmt.Errorf("%w: op %d: %v", ErrInvalidGeometry, i, err)
			return
		}
		if err = op.volume.Validate(); err != nil {
			return
		}
		r := op.volume.VoxelRange(cellSize).Clamp(nx, ny, nz)
		if r.Empty() {
			err = fmt.Errorf("%w: op %d volume lies entirely outside the world", ErrInvalidGeometry, i)
			return
		}
		opRange[i] = r

		found := -1
		for j, existing := range table {
			if existing == op.material {
				found = j
				break
			}
		}
		if found < 0 {
			if len(table) == chunk.MaxMaterials {
				err = fmt.Errorf("%w: more than %d distinct materials", ErrMaterialTableOverflow, chunk.MaxMaterials)
				return
			}
			table = append(table, op.material)
			found = len(table) - 1
		}
		opIdx[i] = uint8(found)
	}
	return
}

// Build voxelizes the assignments into a fully in-memory world: the whole
// grid lives in a single implicit chunk and nothing touches disk. Intended
// for worlds small enough to hold resident.
func (b *WorldBuilder) Build(cellSize float64) (*World, error) {
	nx, ny, nz, table, opIdx, opRange, err := b.resolve(cellSize)
	if err != nil {
		return nil, err
	}
	voxels := make([]uint8, nx*ny*nz)
	for i := range b.ops {
		r := opRange[i]
		for x := r.X0; x < r.X1; x++ {
			for y := r.Y0; y < r.Y1; y++ {
				for z := r.Z0; z < r.Z1; z++ {
					voxels[(x*ny+y)*nz+z] = opIdx[i]
				}
			}
		}
	}
	chunkSize := max(nx, max(ny, nz))
	logrus.Debugf("built in-memory world %dx%dx%d with %d materials", nx, ny, nz, len(table))
	return &World{
		XSize: nx, YSize: ny, ZSize: nz,
		CellSize:  cellSize,
		ChunkSize: chunkSize,
		Materials: table,
		store:     chunk.NewMemStore(nx, ny, nz, voxels),
	}, nil
}

// BuildPersisted voxelizes the assignments chunk by chunk, streams them into
// a world file at outputPath, and returns a World bound to a bounded-cache
// chunk store over that file. Peak memory stays proportional to
// maxResidentChunks, not to the world size.
func (b *WorldBuilder) BuildPersisted(cellSize float64, chunkSize, maxResidentChunks int, outputPath string) (*World, error) {
	nx, ny, nz, table, opIdx, opRange, err := b.resolve(cellSize)
	if err != nil {
		return nil, err
	}
	if chunkSize <= 0 || chunkSize > min(nx, min(ny, nz)) {
		return nil, fmt.Errorf("%w: chunk size %d must be in 1..%d", ErrInvalidGeometry, chunkSize, min(nx, min(ny, nz)))
	}
	header := chunk.Header{
		XSize: nx, YSize: ny, ZSize: nz,
		CellSize:  cellSize,
		ChunkSize: chunkSize,
		Materials: materialRecords(table),
	}
	store, err := chunk.NewBuildStore(outputPath, header, maxResidentChunks)
	if err != nil {
		return nil, err
	}

	ccx, ccy, ccz := header.ChunkCounts()
	for cx := 0; cx < ccx; cx++ {
		for cy := 0; cy < ccy; cy++ {
			for cz := 0; cz < ccz; cz++ {
				c := chunk.Coord{X: cx, Y: cy, Z: cz}
				if err := store.Put(b.voxelizeChunk(header, c, opIdx, opRange)); err != nil {
					return nil, err
				}
			}
		}
	}
	if err := store.FinishBuild(outputPath); err != nil {
		return nil, err
	}
	logrus.Infof("persisted world %dx%dx%d (%d chunks, %d materials) to %s",
		nx, ny, nz, ccx*ccy*ccz, len(table), outputPath)
	return &World{
		XSize: nx, YSize: ny, ZSize: nz,
		CellSize:  cellSize,
		ChunkSize: chunkSize,
		Materials: table,
		store:     store,
	}, nil
}

// voxelizeChunk rasterizes the ordered op list into one chunk's voxels.
// Replaying ops in order keeps last-writer-wins semantics per voxel.
func (b *WorldBuilder) voxelizeChunk(header chunk.Header, c chunk.Coord, opIdx []uint8, opRange []VoxelRange) *chunk.Chunk {
	sx, sy, sz := header.ChunkDims(c)
	ch := &chunk.Chunk{Coord: c, SizeX: sx, SizeY: sy, SizeZ: sz, Voxels: make([]uint8, sx*sy*sz)}
	baseX, baseY, baseZ := c.X*header.ChunkSize, c.Y*header.ChunkSize, c.Z*header.ChunkSize
	for i := range b.ops {
		// Intersect the op's voxel range with this chunk's box.
		r := opRange[i]
		x0, x1 := max(r.X0, baseX), min(r.X1, baseX+sx)
		y0, y1 := max(r.Y0, baseY), min(r.Y1, baseY+sy)
		z0, z1 := max(r.Z0, baseZ), min(r.Z1, baseZ+sz)
		for x := x0; x < x1; x++ {
			for y := y0; y < y1; y++ {
				for z := z0; z < z1; z++ {
					ch.Voxels[ch.Index(x-baseX, y-baseY, z-baseZ)] = opIdx[i]
				}
			}
		}
	}
	return ch
}

// LoadWorld reopens a persisted world file with a bounded residency cache.
func LoadWorld(path string, maxResidentChunks int) (*World, error) {
	store, err := chunk.NewStore(path, maxResidentChunks)
	if err != nil {
		return nil, err
	}
	h := store.Header()
	return &World{
		XSize: h.XSize, YSize: h.YSize, ZSize: h.ZSize,
		CellSize:  h.CellSize,
		ChunkSize: h.ChunkSize,
		Materials: recordMaterials(h.Materials),
		store:     store,
	}, nil
}

func materialRecords(mats []Material) []chunk.MaterialRecord {
	out := make([]chunk.MaterialRecord, len(mats))
	for i, m := range mats {
		out[i] = chunk.MaterialRecord{
			Density:      m.Density,
			SpecificHeat: m.SpecificHeat,
			ThermalConA:  m.ThermalConA,
			ThermalConB:  m.ThermalConB,
			ThermalConC:  m.ThermalConC,
		}
	}
	return out
}

func recordMaterials(records []chunk.MaterialRecord) []Material {
	out := make([]Material, len(records))
	for i, r := range records {
		out[i] = Material{
			Density:      r.Density,
			SpecificHeat: r.SpecificHeat,
			ThermalConA:  r.ThermalConA,
			ThermalConB:  r.ThermalConB,
			ThermalConC:  r.ThermalConC,
		}
	}
	return out
}
