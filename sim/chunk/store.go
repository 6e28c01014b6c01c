package chunk

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// cacheEntry is one resident chunk plus its eviction bookkeeping. Entries
// form a doubly linked recency list: head is least recently used, tail is
// most recently used.
type cacheEntry struct {
	chunk *Chunk
	dirty bool // not yet written to the world file (build phase only)
	pins  int  // in-flight readers; pinned entries are never evicted
	prev  *cacheEntry
	next  *cacheEntry
}

// Store manages a world's chunks on durable storage with a bounded in-memory
// residency cache. Chunk payloads are immutable once faulted in, so callers
// may read returned chunks without holding any lock; the single mutex guards
// only cache bookkeeping and faulting.
//
// A Store starts in one of two modes. NewStore opens an existing world file
// read-only. NewBuildStore creates the file and accepts Put calls in
// ascending chunk order while the world is voxelized; dirty chunks are
// encoded and flushed to the file when evicted, and FinishBuild drains the
// remainder and flips the store into read mode.
type Store struct {
	mu      sync.Mutex
	header  Header
	limit   int
	entries map[Coord]*cacheEntry
	lruHead *cacheEntry
	lruTail *cacheEntry

	reader *FileReader
	writer *FileWriter
}

// NewStore opens a persisted world file with at most maxResident chunks held
// in memory.
func NewStore(path string, maxResident int) (*Store, error) {
	if maxResident <= 0 {
		return nil, fmt.Errorf("%w: max resident chunks must be positive, got %d", ErrStorageIO, maxResident)
	}
	reader, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	return &Store{
		header:  reader.Header(),
		limit:   maxResident,
		entries: make(map[Coord]*cacheEntry),
		reader:  reader,
	}, nil
}

// NewBuildStore creates the world file and a store accepting the build's
// Put stream.
func NewBuildStore(path string, header Header, maxResident int) (*Store, error) {
	if maxResident <= 0 {
		return nil, fmt.Errorf("%w: max resident chunks must be positive, got %d", ErrStorageIO, maxResident)
	}
	writer, err := NewFileWriter(path, header)
	if err != nil {
		return nil, err
	}
	return &Store{
		header:  header,
		limit:   maxResident,
		entries: make(map[Coord]*cacheEntry),
		writer:  writer,
	}, nil
}

// Header returns the world-file header the store serves.
func (s *Store) Header() Header { return s.header }

// Get returns the chunk at the given chunk coordinate, faulting it in from
// storage (or, during a build, from the in-progress build buffer) on a cache
// miss. Faults are serialized under the store mutex, so each chunk is decoded
// at most once per residency.
func (s *Store) Get(c Coord) (*Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.locked(c)
	if err != nil {
		return nil, err
	}
	return entry.chunk, nil
}

// Pin returns the chunk like Get and additionally holds it resident until a
// matching Unpin. Simulation workers pin the chunks a step is reading so
// eviction can never drop them mid-step.
func (s *Store) Pin(c Coord) (*Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.locked(c)
	if err != nil {
		return nil, err
	}
	entry.pins++
	return entry.chunk, nil
}

// Unpin releases one Pin reference.
func (s *Store) Unpin(c Coord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[c]; ok && entry.pins > 0 {
		entry.pins--
	}
}

// Put caches a freshly voxelized chunk during world construction. Chunks
// must arrive in ascending chunk-coordinate order, the order the file
// format requires.
func (s *Store) Put(ch *Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return fmt.Errorf("%w: store is read-only after build", ErrStorageIO)
	}
	if _, err := s.header.ChunkIndex(ch.Coord); err != nil {
		return err
	}
	entry := &cacheEntry{chunk: ch, dirty: true}
	s.entries[ch.Coord] = entry
	s.pushTail(entry)
	return s.evictOverflow()
}

// FinishBuild flushes all dirty chunks in file order, closes the writer, and
// reopens the file for random-access reads. Cached clean chunks stay
// resident.
func (s *Store) FinishBuild(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return fmt.Errorf("%w: store is not in build mode", ErrStorageIO)
	}
	cx, cy, cz := s.header.ChunkCounts()
	if err := s.flushThrough(cx*cy*cz - 1); err != nil {
		return err
	}
	if err := s.writer.Close(); err != nil {
		return err
	}
	s.writer = nil
	reader, err := OpenFile(path)
	if err != nil {
		return err
	}
	s.reader = reader
	return nil
}

// Resident returns the number of chunks currently held in memory.
func (s *Store) Resident() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close releases the underlying file handles.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader != nil {
		return s.reader.Close()
	}
	return nil
}

// locked returns the cache entry for a coordinate, faulting on miss and
// updating recency. Caller holds s.mu.
func (s *Store) locked(c Coord) (*cacheEntry, error) {
	if entry, ok := s.entries[c]; ok {
		s.moveToTail(entry)
		return entry, nil
	}
	ch, err := s.fault(c)
	if err != nil {
		return nil, err
	}
	entry := &cacheEntry{chunk: ch}
	s.entries[c] = entry
	s.pushTail(entry)
	if err := s.evictOverflow(); err != nil {
		return nil, err
	}
	return entry, nil
}

// fault reads and decodes one chunk from storage.
func (s *Store) fault(c Coord) (*Chunk, error) {
	if s.reader != nil {
		return s.reader.ReadChunk(c)
	}
	// Build phase: the chunk must have been flushed to the in-progress file.
	idx, err := s.header.ChunkIndex(c)
	if err != nil {
		return nil, err
	}
	payload, err := s.writer.ReadPayload(idx)
	if err != nil {
		return nil, err
	}
	voxels, err := DecodeString(payload, s.header.ExpectedVoxels(c))
	if err != nil {
		return nil, fmt.Errorf("chunk (%d,%d,%d): %w", c.X, c.Y, c.Z, err)
	}
	sx, sy, sz := s.header.ChunkDims(c)
	return &Chunk{Coord: c, SizeX: sx, SizeY: sy, SizeZ: sz, Voxels: voxels}, nil
}

// evictOverflow drops least-recently-used unpinned chunks until the cache is
// back under its residency limit, flushing dirty ones first.
func (s *Store) evictOverflow() error {
	for len(s.entries) > s.limit {
		victim := s.lruHead
		for victim != nil && victim.pins > 0 {
			victim = victim.next
		}
		if victim == nil {
			// Every resident chunk is pinned by an in-flight step; tolerate
			// the overflow until pins drain.
			logrus.Warnf("chunk cache over limit (%d > %d) with all chunks pinned", len(s.entries), s.limit)
			return nil
		}
		if victim.dirty {
			idx, err := s.header.ChunkIndex(victim.chunk.Coord)
			if err != nil {
				return err
			}
			if err := s.flushThrough(idx); err != nil {
				return err
			}
		}
		logrus.Debugf("evicting chunk (%d,%d,%d)", victim.chunk.Coord.X, victim.chunk.Coord.Y, victim.chunk.Coord.Z)
		s.unlink(victim)
		delete(s.entries, victim.chunk.Coord)
	}
	return nil
}

// flushThrough writes every dirty chunk with file index <= idx. Because Put
// receives chunks in ascending order, the unwritten chunks form a contiguous
// range starting at the writer's cursor.
func (s *Store) flushThrough(idx int) error {
	for i := s.writer.Written(); i <= idx; i++ {
		c := s.coordOf(i)
		entry, ok := s.entries[c]
		if !ok || !entry.dirty {
			return fmt.Errorf("%w: chunk block %d missing from build buffer", ErrStorageIO, i)
		}
		if _, err := s.writer.WriteChunk(EncodeString(entry.chunk.Voxels)); err != nil {
			return err
		}
		entry.dirty = false
	}
	return nil
}

// coordOf inverts Header.ChunkIndex.
func (s *Store) coordOf(idx int) Coord {
	_, cy, cz := s.header.ChunkCounts()
	return Coord{X: idx / (cy * cz), Y: (idx / cz) % cy, Z: idx % cz}
}

func (s *Store) pushTail(entry *cacheEntry) {
	entry.next = nil
	entry.prev = s.lruTail
	if s.lruTail != nil {
		s.lruTail.next = entry
	} else {
		s.lruHead = entry
	}
	s.lruTail = entry
}

func (s *Store) unlink(entry *cacheEntry) {
	if entry.prev != nil {
		entry.prev.next = entry.next
	} else {
		s.lruHead = entry.next
	}
	if entry.next != nil {
		entry.next.prev = entry.prev
	} else {
		s.lruTail = entry.prev
	}
	entry.prev = nil
	entry.next = nil
}

func (s *Store) moveToTail(entry *cacheEntry) {
	if s.lruTail == entry {
		return
	}
	s.unlink(entry)
	s.pushTail(entry)
}

// MemStore is the degenerate accessor for worlds built fully in memory: the
// whole voxel grid lives in a single implicit chunk and nothing is ever
// evicted.
type MemStore struct {
	chunk *Chunk
}

// NewMemStore wraps a whole-world voxel grid (x-outer/y-middle/z-inner
// order) as a single-chunk store.
func NewMemStore(xSize, ySize, zSize int, voxels []uint8) *MemStore {
	return &MemStore{chunk: &Chunk{
		SizeX:  xSize,
		SizeY:  ySize,
		SizeZ:  zSize,
		Voxels: voxels,
	}}
}

// Get returns the single resident chunk; only coordinate (0,0,0) exists.
func (m *MemStore) Get(c Coord) (*Chunk, error) {
	if c != (Coord{}) {
		return nil, fmt.Errorf("%w: in-memory world has a single chunk, got (%d,%d,%d)", ErrChunkOutOfRange, c.X, c.Y, c.Z)
	}
	return m.chunk, nil
}

// Pin is equivalent to Get; in-memory chunks are always resident.
func (m *MemStore) Pin(c Coord) (*Chunk, error) { return m.Get(c) }

// Unpin is a no-op for in-memory worlds.
func (m *MemStore) Unpin(Coord) {}
