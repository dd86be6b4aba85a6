package vecstore

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
)

var hnswMagic = [4]byte{'H', 'N', 'S', 'W'}

const hnswVersion uint32 = 2

// maxSerializedDim bounds the dimension accepted from serialized data so a
// corrupt header cannot trigger huge allocations.
const maxSerializedDim = 1 << 16

// Save serializes the entire HNSW index to w in a compact binary format.
//
// Positions are implicit in node order, so neighbor references stay valid
// after deserialization.
//
// Format overview (little endian):
//
//	[4B magic "HNSW"] [4B version]
//	[4B dim] [4B M] [4B efConstruction] [4B efSearch] [8B seed]
//	[4B count] [4B maxLevel] [4B entryID]
//	For each node in position order:
//	  [4B level]
//	  [dim × 4B float32 vector]
//	  For each layer 0..level:
//	    [4B numFriends] [numFriends × 4B friend positions]
func (h *HNSW) Save(w io.Writer) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	bw := bufio.NewWriter(w)
	le := binary.LittleEndian
	write := func(v any) error { return binary.Write(bw, le, v) }

	if _, err := bw.Write(hnswMagic[:]); err != nil {
		return fmt.Errorf("vecstore: save magic: %w", err)
	}
	header := []any{
		hnswVersion,
		uint32(h.cfg.Dim),
		uint32(h.cfg.M),
		uint32(h.cfg.EfConstruction),
		uint32(h.cfg.EfSearch),
		h.cfg.Seed,
		uint32(len(h.nodes)),
		uint32(h.maxLevel),
		h.entryID,
	}
	for _, v := range header {
		if err := write(v); err != nil {
			return fmt.Errorf("vecstore: save header: %w", err)
		}
	}

	for i, nd := range h.nodes {
		if err := write(uint32(nd.level)); err != nil {
			return fmt.Errorf("vecstore: save node %d: %w", i, err)
		}
		if err := write(nd.vector); err != nil {
			return fmt.Errorf("vecstore: save node %d: %w", i, err)
		}
		for lev := 0; lev <= nd.level; lev++ {
			var friends []uint32
			if lev < len(nd.friends) {
				friends = nd.friends[lev]
			}
			if err := write(uint32(len(friends))); err != nil {
				return err
			}
			if len(friends) == 0 {
				continue
			}
			if err := write(friends); err != nil {
				return err
			}
		}
	}

	return bw.Flush()
}

// LoadHNSW deserializes an HNSW index from r. The returned index is ready
// for immediate use. Structural inconsistencies (out-of-range neighbor
// positions, impossible levels) are reported as errors.
func LoadHNSW(r io.Reader) (*HNSW, error) {
	br := bufio.NewReader(r)
	le := binary.LittleEndian
	read := func(v any) error { return binary.Read(br, le, v) }

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("vecstore: load magic: %w", err)
	}
	if magic != hnswMagic {
		return nil, fmt.Errorf("vecstore: invalid magic %q", magic[:])
	}

	var version uint32
	if err := read(&version); err != nil {
		return nil, fmt.Errorf("vecstore: load version: %w", err)
	}
	if version != hnswVersion {
		return nil, fmt.Errorf("vecstore: unsupported version %d (want %d)", version, hnswVersion)
	}

	var (
		dim, m, efC, efS uint32
		seed             uint64
		count, maxLev    uint32
		entryID          int32
	)
	for _, v := range []any{&dim, &m, &efC, &efS, &seed, &count, &maxLev, &entryID} {
		if err := read(v); err != nil {
			return nil, fmt.Errorf("vecstore: load header: %w", err)
		}
	}
	if dim == 0 || dim > maxSerializedDim {
		return nil, fmt.Errorf("vecstore: invalid dimension %d in serialized index", dim)
	}
	if maxLev > maxHNSWLevel {
		return nil, fmt.Errorf("vecstore: invalid max level %d", maxLev)
	}
	if count == 0 && entryID != -1 || count > 0 && (entryID < 0 || uint32(entryID) >= count) {
		return nil, fmt.Errorf("vecstore: entry point %d out of range for %d nodes", entryID, count)
	}

	cfg := HNSWConfig{
		Dim:            int(dim),
		M:              int(m),
		EfConstruction: int(efC),
		EfSearch:       int(efS),
		Seed:           seed,
	}
	cfg.setDefaults() // clamp M < 2 to avoid log(1)=0 → +Inf

	nodes := make([]*hnswNode, 0, min(count, 1<<16))
	for i := uint32(0); i < count; i++ {
		var level uint32
		if err := read(&level); err != nil {
			return nil, fmt.Errorf("vecstore: load node %d: %w", i, err)
		}
		if level > maxLev {
			return nil, fmt.Errorf("vecstore: node %d level %d exceeds max level %d", i, level, maxLev)
		}

		vec := make([]float32, dim)
		if err := read(vec); err != nil {
			return nil, fmt.Errorf("vecstore: load node %d: %w", i, err)
		}

		friends := make([][]uint32, level+1)
		for lev := uint32(0); lev <= level; lev++ {
			var nf uint32
			if err := read(&nf); err != nil {
				return nil, fmt.Errorf("vecstore: load node %d: %w", i, err)
			}
			if int(nf) > cfg.maxConns(int(lev)) {
				return nil, fmt.Errorf("vecstore: node %d has %d friends at layer %d", i, nf, lev)
			}
			if nf == 0 {
				continue
			}
			friends[lev] = make([]uint32, nf)
			if err := read(friends[lev]); err != nil {
				return nil, fmt.Errorf("vecstore: load node %d: %w", i, err)
			}
			for _, f := range friends[lev] {
				if f >= count {
					return nil, fmt.Errorf("vecstore: node %d references position %d beyond %d nodes", i, f, count)
				}
			}
		}

		nodes = append(nodes, &hnswNode{
			vector:  vec,
			level:   int(level),
			friends: friends,
		})
	}

	return &HNSW{
		cfg:      cfg,
		nodes:    nodes,
		entryID:  entryID,
		maxLevel: int(maxLev),
		rng:      rand.New(rand.NewPCG(cfg.Seed, uint64(count))),
		levelMul: 1.0 / math.Log(float64(cfg.M)),
	}, nil
}
