package chunk

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaterialRecord is the persisted form of one material table entry.
type MaterialRecord struct {
	Density      float64 `yaml:"density"`
	SpecificHeat float64 `yaml:"specific_heat"`
	ThermalConA  float64 `yaml:"thermal_con_a"`
	ThermalConB  float64 `yaml:"thermal_con_b"`
	ThermalConC  float64 `yaml:"thermal_con_c"`
}

// MaxMaterials caps the material table; indices persist as single bytes.
const MaxMaterials = 256

// Header is the yaml front matter of a world file. It precedes the `chunks:`
// sequence, which holds one base64 run-length block per chunk in ascending
// chunk-coordinate order (x outer, y middle, z inner).
type Header struct {
	XSize     int              `yaml:"x_size"`
	YSize     int              `yaml:"y_size"`
	ZSize     int              `yaml:"z_size"`
	CellSize  float64          `yaml:"cell_size"`
	ChunkSize int              `yaml:"chunk_size"`
	Materials []MaterialRecord `yaml:"materials"`
}

// Validate checks the header's structural invariants.
func (h *Header) Validate() error {
	if h.XSize <= 0 || h.YSize <= 0 || h.ZSize <= 0 {
		return fmt.Errorf("%w: non-positive world dimensions %dx%dx%d", ErrCorruptChunk, h.XSize, h.YSize, h.ZSize)
	}
	if h.CellSize <= 0 {
		return fmt.Errorf("%w: non-positive cell size %v", ErrCorruptChunk, h.CellSize)
	}
	if h.ChunkSize <= 0 {
		return fmt.Errorf("%w: non-positive chunk size %d", ErrCorruptChunk, h.ChunkSize)
	}
	if len(h.Materials) == 0 || len(h.Materials) > MaxMaterials {
		return fmt.Errorf("%w: material table has %d entries, want 1..%d", ErrCorruptChunk, len(h.Materials), MaxMaterials)
	}
	return nil
}

// ChunkCounts returns the chunk grid dimensions, counting truncated boundary
// chunks.
func (h *Header) ChunkCounts() (int, int, int) {
	return ceilDiv(h.XSize, h.ChunkSize), ceilDiv(h.YSize, h.ChunkSize), ceilDiv(h.ZSize, h.ChunkSize)
}

// ChunkIndex linearizes a chunk coordinate into the file's block order.
func (h *Header) ChunkIndex(c Coord) (int, error) {
	cx, cy, cz := h.ChunkCounts()
	if c.X < 0 || c.X >= cx || c.Y < 0 || c.Y >= cy || c.Z < 0 || c.Z >= cz {
		return 0, fmt.Errorf("%w: chunk (%d,%d,%d) outside %dx%dx%d chunk grid", ErrChunkOutOfRange, c.X, c.Y, c.Z, cx, cy, cz)
	}
	return (c.X*cy+c.Y)*cz + c.Z, nil
}

// ChunkDims returns the per-axis voxel counts of a chunk, truncated at the
// world boundary.
func (h *Header) ChunkDims(c Coord) (int, int, int) {
	return clampSpan(c.X, h.ChunkSize, h.XSize),
		clampSpan(c.Y, h.ChunkSize, h.YSize),
		clampSpan(c.Z, h.ChunkSize, h.ZSize)
}

// ExpectedVoxels returns the voxel count a decoded chunk block must cover.
func (h *Header) ExpectedVoxels(c Coord) int {
	sx, sy, sz := h.ChunkDims(c)
	return sx * sy * sz
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

func clampSpan(chunkCoord, chunkSize, worldSize int) int {
	min := chunkCoord * chunkSize
	max := min + chunkSize
	if max > worldSize {
		max = worldSize
	}
	return max - min
}

const chunksMarker = "chunks:"

// FileWriter streams a world file: the yaml header, then one chunk block per
// line. Chunks must arrive in ascending chunk-coordinate order; the writer
// records each block's payload offset so a store sharing the path can fault
// already-written chunks back in before the build finishes.
type FileWriter struct {
	f       *os.File
	w       *bufio.Writer
	header  Header
	off     int64
	offsets []int64
	lengths []int
	total   int
}

// NewFileWriter creates the output file and writes the header and the
// `chunks:` marker.
func NewFileWriter(path string, header Header) (*FileWriter, error) {
	if err := header.Validate(); err != nil {
		return nil, err
	}
	// Read-write so in-progress builds can fault already-written chunks back in.
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", ErrStorageIO, path, err)
	}
	head, err := yaml.Marshal(&header)
	if err != nil {
		return nil, fmt.Errorf("%w: marshalling header: %v", ErrStorageIO, err)
	}
	cx, cy, cz := header.ChunkCounts()
	fw := &FileWriter{
		f:      f,
		w:      bufio.NewWriter(f),
		header: header,
		total:  cx * cy * cz,
	}
	if err := fw.writeString(string(head)); err != nil {
		f.Close()
		return nil, err
	}
	if err := fw.writeString(chunksMarker + "\n"); err != nil {
		f.Close()
		return nil, err
	}
	return fw, nil
}

func (fw *FileWriter) writeString(s string) error {
	n, err := fw.w.WriteString(s)
	fw.off += int64(n)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageIO, err)
	}
	return nil
}

// WriteChunk appends the next chunk block and returns its payload offset.
func (fw *FileWriter) WriteChunk(encoded string) (int64, error) {
	if len(fw.offsets) >= fw.total {
		return 0, fmt.Errorf("%w: world has only %d chunks", ErrChunkOutOfRange, fw.total)
	}
	payloadOff := fw.off + 2 // skip the "- " sequence prefix
	if err := fw.writeString("- " + encoded + "\n"); err != nil {
		return 0, err
	}
	fw.offsets = append(fw.offsets, payloadOff)
	fw.lengths = append(fw.lengths, len(encoded))
	return payloadOff, nil
}

// Written returns how many chunk blocks have been appended so far.
func (fw *FileWriter) Written() int { return len(fw.offsets) }

// PayloadAt reports the offset and length of an already-written block, or
// ok=false if that block has not been written yet.
func (fw *FileWriter) PayloadAt(index int) (int64, int, bool) {
	if index < 0 || index >= len(fw.offsets) {
		return 0, 0, false
	}
	return fw.offsets[index], fw.lengths[index], true
}

// ReadPayload flushes buffered output and reads back an already-written
// chunk block's payload.
func (fw *FileWriter) ReadPayload(index int) (string, error) {
	off, length, ok := fw.PayloadAt(index)
	if !ok {
		return "", fmt.Errorf("%w: chunk block %d not yet written", ErrStorageIO, index)
	}
	if err := fw.w.Flush(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageIO, err)
	}
	buf := make([]byte, length)
	if _, err := fw.f.ReadAt(buf, off); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageIO, err)
	}
	return string(buf), nil
}

// Close flushes and closes the file, failing if the chunk sequence is
// incomplete.
func (fw *FileWriter) Close() error {
	if len(fw.offsets) != fw.total {
		fw.f.Close()
		return fmt.Errorf("%w: wrote %d of %d chunk blocks", ErrStorageIO, len(fw.offsets), fw.total)
	}
	if err := fw.w.Flush(); err != nil {
		fw.f.Close()
		return fmt.Errorf("%w: %v", ErrStorageIO, err)
	}
	if err := fw.f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageIO, err)
	}
	return nil
}

// FileReader provides random access to the chunk blocks of a persisted world
// file. The header is parsed once; chunk payloads are located by byte offset
// and read with ReadAt, so concurrent reads need no coordination here.
type FileReader struct {
	f       *os.File
	header  Header
	offsets []int64
	lengths []int
}

// OpenFile parses a world file's header and indexes its chunk blocks.
func OpenFile(path string) (*FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrStorageIO, path, err)
	}
	fr := &FileReader{f: f}
	if err := fr.index(); err != nil {
		f.Close()
		return nil, err
	}
	return fr, nil
}

func (fr *FileReader) index() error {
	scanner := bufio.NewScanner(fr.f)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	var headerText strings.Builder
	var off int64
	inChunks := false
	for scanner.Scan() {
		line := scanner.Text()
		lineLen := int64(len(line)) + 1 // trailing newline
		if !inChunks {
			if strings.TrimRight(line, " ") == chunksMarker {
				inChunks = true
				if err := yaml.Unmarshal([]byte(headerText.String()), &fr.header); err != nil {
					return fmt.Errorf("%w: parsing header: %v", ErrCorruptChunk, err)
				}
				if err := fr.header.Validate(); err != nil {
					return err
				}
			} else {
				headerText.WriteString(line)
				headerText.WriteString("\n")
			}
			off += lineLen
			continue
		}
		if strings.TrimSpace(line) == "" {
			off += lineLen
			continue
		}
		if !strings.HasPrefix(line, "- ") {
			return fmt.Errorf("%w: malformed chunk line %q", ErrCorruptChunk, line)
		}
		fr.offsets = append(fr.offsets, off+2)
		fr.lengths = append(fr.lengths, len(line)-2)
		off += lineLen
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageIO, err)
	}
	if !inChunks {
		return fmt.Errorf("%w: missing %q section", ErrCorruptChunk, chunksMarker)
	}
	cx, cy, cz := fr.header.ChunkCounts()
	if want := cx * cy * cz; len(fr.offsets) != want {
		return fmt.Errorf("%w: file holds %d chunk blocks, header implies %d", ErrCorruptChunk, len(fr.offsets), want)
	}
	return nil
}

// Header returns the parsed world-file header.
func (fr *FileReader) Header() Header { return fr.header }

// ReadChunk faults one chunk in: it reads the block at the given coordinate,
// decodes it, and validates the run-length sum against the coordinate's
// expected voxel count.
func (fr *FileReader) ReadChunk(c Coord) (*Chunk, error) {
	idx, err := fr.header.ChunkIndex(c)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, fr.lengths[idx])
	if _, err := fr.f.ReadAt(buf, fr.offsets[idx]); err != nil {
		return nil, fmt.Errorf("%w: reading chunk block %d: %v", ErrStorageIO, idx, err)
	}
	voxels, err := DecodeString(string(buf), fr.header.ExpectedVoxels(c))
	if err != nil {
		return nil, fmt.Errorf("chunk (%d,%d,%d): %w", c.X, c.Y, c.Z, err)
	}
	sx, sy, sz := fr.header.ChunkDims(c)
	return &Chunk{Coord: c, SizeX: sx, SizeY: sy, SizeZ: sz, Voxels: voxels}, nil
}

// Close releases the underlying file handle.
func (fr *FileReader) Close() error {
	if err := fr.f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageIO, err)
	}
	return nil
}
