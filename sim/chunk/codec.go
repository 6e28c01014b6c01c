// Package chunk implements the persistence unit of a voxel world: fixed-size
// cubic blocks of material indices, their run-length codec, the text-based
// world-file container, and the bounded-residency store that faults chunks in
// on demand.
package chunk

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// Storage error kinds. Callers discriminate with errors.Is; every failure
// surfaced by this package wraps one of these.
var (
	// ErrCorruptChunk flags a chunk block whose decoded run lengths do not
	// cover the expected voxel count, or whose encoding is malformed.
	ErrCorruptChunk = errors.New("corrupt chunk")
	// ErrChunkOutOfRange flags a chunk coordinate outside the world.
	ErrChunkOutOfRange = errors.New("chunk coordinate out of range")
	// ErrStorageIO flags an underlying read or write failure.
	ErrStorageIO = errors.New("storage I/O failure")
)

// Coord identifies a chunk by its position in chunk units.
type Coord struct {
	X, Y, Z int
}

// Chunk is a cubic block of per-voxel material indices. Blocks on the world
// boundary are truncated, so the per-axis sizes are carried explicitly.
// Voxels are linearized x-outer, y-middle, z-inner (z varies fastest), the
// same order the codec walks.
type Chunk struct {
	Coord               Coord
	SizeX, SizeY, SizeZ int
	Voxels              []uint8
}

// Index linearizes a chunk-local voxel coordinate.
func (c *Chunk) Index(lx, ly, lz int) int {
	return (lx*c.SizeY+ly)*c.SizeZ + lz
}

// Len returns the voxel count of the (possibly truncated) chunk.
func (c *Chunk) Len() int { return c.SizeX * c.SizeY * c.SizeZ }

// Encode run-length encodes a voxel slice as (runLength, materialIndex) byte
// pairs. Runs longer than 255 voxels split across multiple pairs. The input
// must already be in x-outer/y-middle/z-inner order.
func Encode(voxels []uint8) []byte {
	out := make([]byte, 0, 2)
	if len(voxels) == 0 {
		return out
	}
	current := voxels[0]
	run := 0
	for _, v := range voxels {
		if v != current {
			// run is 0 here when the previous pair closed exactly at 255;
			// there is no open run to flush in that case.
			if run > 0 {
				out = append(out, byte(run), current)
			}
			current = v
			run = 0
		}
		run++
		if run == 255 {
			out = append(out, byte(run), current)
			run = 0
		}
	}
	if run > 0 {
		out = append(out, byte(run), current)
	}
	return out
}

// Decode is the exact inverse of Encode. expected is the voxel count of the
// chunk's position in the world (reduced for edge chunks); any mismatch
// between it and the decoded run-length sum fails with ErrCorruptChunk.
func Decode(data []byte, expected int) ([]uint8, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: odd pair-stream length %d", ErrCorruptChunk, len(data))
	}
	out := make([]uint8, 0, expected)
	for i := 0; i < len(data); i += 2 {
		run := int(data[i])
		if run == 0 {
			return nil, fmt.Errorf("%w: zero-length run at pair %d", ErrCorruptChunk, i/2)
		}
		if len(out)+run > expected {
			return nil, fmt.Errorf("%w: run-length sum exceeds expected voxel count %d", ErrCorruptChunk, expected)
		}
		for j := 0; j < run; j++ {
			out = append(out, data[i+1])
		}
	}
	if len(out) != expected {
		return nil, fmt.Errorf("%w: decoded %d voxels, expected %d", ErrCorruptChunk, len(out), expected)
	}
	return out, nil
}

// EncodeString produces the persisted, text-safe form of a voxel slice:
// run-length pairs wrapped in standard base64.
func EncodeString(voxels []uint8) string {
	return base64.StdEncoding.EncodeToString(Encode(voxels))
}

// DecodeString reverses EncodeString, rejecting malformed base64 as corrupt.
func DecodeString(s string, expected int) ([]uint8, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrCorruptChunk, err)
	}
	return Decode(raw, expected)
}
