package vecstore

import (
	"cmp"
	"container/heap"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// HNSWConfig configures a new [HNSW] index.
type HNSWConfig struct {
	// Dim is the vector dimension. Required; must be positive.
	// All added vectors must have exactly this many elements.
	Dim int

	// M is the maximum number of connections per node per layer (except
	// layer 0, which allows 2*M). Higher values improve recall but
	// increase memory usage and insertion time. Default: 16.
	M int

	// EfConstruction is the size of the dynamic candidate list during
	// index building. Default: 200.
	EfConstruction int

	// EfSearch is the default size of the dynamic candidate list during
	// search queries. Indexes holding no more than EfSearch vectors are
	// searched exhaustively. Default: 50.
	EfSearch int

	// Seed seeds the layer generator. The same seed and the same sequence
	// of added vectors always produce the same graph. Default: 1.
	Seed uint64
}

func (c *HNSWConfig) setDefaults() {
	if c.M < 2 {
		c.M = 16
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = 200
	}
	if c.EfSearch <= 0 {
		c.EfSearch = 50
	}
	if c.Seed == 0 {
		c.Seed = 1
	}
}

// maxConns returns the maximum number of connections at the given layer.
func (c *HNSWConfig) maxConns(layer int) int {
	if layer == 0 {
		return c.M * 2
	}
	return c.M
}

// ---------------------------------------------------------------------------
// Priority queues for beam search
// ---------------------------------------------------------------------------

type distItem struct {
	id   uint32
	dist float32
}

// minDistHeap is a min-heap ordered by distance (closest first).
type minDistHeap []distItem

func (h minDistHeap) Len() int           { return len(h) }
func (h minDistHeap) Less(i, j int) bool { return h[i].dist < h[j].dist }
func (h minDistHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minDistHeap) Push(x any)        { *h = append(*h, x.(distItem)) }
func (h *minDistHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// maxDistHeap is a max-heap ordered by distance (farthest first).
type maxDistHeap []distItem

func (h maxDistHeap) Len() int           { return len(h) }
func (h maxDistHeap) Less(i, j int) bool { return h[i].dist > h[j].dist }
func (h maxDistHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *maxDistHeap) Push(x any)        { *h = append(*h, x.(distItem)) }
func (h *maxDistHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// ---------------------------------------------------------------------------
// HNSW
// ---------------------------------------------------------------------------

// hnswNode is a single vector in the graph. Its position in HNSW.nodes is
// its insertion position.
type hnswNode struct {
	vector  []float32
	level   int        // highest layer this node appears on
	friends [][]uint32 // friends[layer] = neighbor positions at that layer
}

// HNSW is a Hierarchical Navigable Small World index implementing [Index].
//
// Vectors are organised into a multi-layer navigable graph. Higher layers
// hold exponentially fewer nodes and serve as express lanes; layer 0 holds
// every node.
//
// Search may run concurrently with other searches. Add takes the write lock.
type HNSW struct {
	mu       sync.RWMutex
	cfg      HNSWConfig
	nodes    []*hnswNode
	entryID  int32 // -1 if empty
	maxLevel int
	rng      *rand.Rand
	levelMul float64 // 1/ln(M)
}

var _ Index = (*HNSW)(nil)

// NewHNSW creates an empty HNSW index with the given configuration.
// Panics if cfg.Dim is not positive.
func NewHNSW(cfg HNSWConfig) *HNSW {
	if cfg.Dim <= 0 {
		panic("vecstore: HNSWConfig.Dim must be positive")
	}
	cfg.setDefaults()
	return &HNSW{
		cfg:      cfg,
		entryID:  -1,
		rng:      rand.New(rand.NewPCG(cfg.Seed, 0)),
		levelMul: 1.0 / math.Log(float64(cfg.M)),
	}
}

// SetEfSearch adjusts the search-time candidate list size.
func (h *HNSW) SetEfSearch(ef int) {
	h.mu.Lock()
	h.cfg.EfSearch = ef
	h.mu.Unlock()
}

// Config returns the effective configuration.
func (h *HNSW) Config() HNSWConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Len returns the number of vectors in the index.
func (h *HNSW) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.nodes)
}

// Dim returns the configured vector dimension.
func (h *HNSW) Dim() int { return h.cfg.Dim }

// Close is a no-op. The index should not be used after Close.
func (h *HNSW) Close() error { return nil }

// ---------------------------------------------------------------------------
// Add
// ---------------------------------------------------------------------------

// Add appends vectors to the graph in order. Either all vectors are added
// or, on a dimension mismatch, none are.
func (h *HNSW) Add(vectors ...[]float32) error {
	for _, v := range vectors {
		if err := checkDim(len(v), h.cfg.Dim); err != nil {
			return err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, v := range vectors {
		h.insertLocked(v)
	}
	return nil
}

func (h *HNSW) insertLocked(vector []float32) {
	vec := make([]float32, len(vector))
	copy(vec, vector)

	idx := uint32(len(h.nodes))
	level := h.randomLevel()
	nd := &hnswNode{
		vector:  vec,
		level:   level,
		friends: make([][]uint32, level+1),
	}
	h.nodes = append(h.nodes, nd)

	if h.entryID < 0 {
		h.entryID = int32(idx)
		h.maxLevel = level
		return
	}

	// Greedy descent from the top layer down to level+1.
	cur := uint32(h.entryID)
	curDist := CosineDistance(vec, h.nodes[cur].vector)
	for lev := h.maxLevel; lev > level; lev-- {
		cur, curDist = h.greedyLocked(vec, cur, curDist, lev)
	}

	// Beam search, neighbor selection and bidirectional links from
	// min(level, maxLevel) down to 0.
	ep := []uint32{cur}
	for lev := min(level, h.maxLevel); lev >= 0; lev-- {
		candidates := h.searchLayer(vec, ep, h.cfg.EfConstruction, lev)

		maxC := h.cfg.maxConns(lev)
		neighbors := h.selectClosest(vec, candidates, maxC)
		nd.friends[lev] = neighbors

		for _, nID := range neighbors {
			nn := h.nodes[nID]
			if lev >= len(nn.friends) {
				continue
			}
			nn.friends[lev] = append(nn.friends[lev], idx)
			if len(nn.friends[lev]) > maxC {
				nn.friends[lev] = h.selectClosest(nn.vector, nn.friends[lev], maxC)
			}
		}
		ep = candidates
	}

	if level > h.maxLevel {
		h.entryID = int32(idx)
		h.maxLevel = level
	}
}

// ---------------------------------------------------------------------------
// Search
// ---------------------------------------------------------------------------

// Search returns the top-k nearest vectors to the query, ordered by
// ascending distance and then ascending position.
//
// When the index holds no more than max(EfSearch, topK) vectors every
// vector is scored, so the result is exact and has min(topK, Len())
// entries.
func (h *HNSW) Search(query []float32, topK int) ([]Match, error) {
	if err := checkDim(len(query), h.cfg.Dim); err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.nodes) == 0 || topK <= 0 {
		return nil, nil
	}

	ef := max(h.cfg.EfSearch, topK)

	var candidates []uint32
	if len(h.nodes) <= ef {
		candidates = make([]uint32, len(h.nodes))
		for i := range candidates {
			candidates[i] = uint32(i)
		}
	} else {
		cur := uint32(h.entryID)
		curDist := CosineDistance(query, h.nodes[cur].vector)
		for lev := h.maxLevel; lev > 0; lev-- {
			cur, curDist = h.greedyLocked(query, cur, curDist, lev)
		}
		candidates = h.searchLayer(query, []uint32{cur}, ef, 0)
	}

	matches := make([]Match, len(candidates))
	for i, c := range candidates {
		matches[i] = Match{Position: int(c), Distance: CosineDistance(query, h.nodes[c].vector)}
	}
	sortMatches(matches)
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

// greedyLocked walks layer lev from cur towards the query, tracking only
// the single closest node.
func (h *HNSW) greedyLocked(query []float32, cur uint32, curDist float32, lev int) (uint32, float32) {
	changed := true
	for changed {
		changed = false
		nd := h.nodes[cur]
		if lev >= len(nd.friends) {
			break
		}
		for _, fID := range nd.friends[lev] {
			d := CosineDistance(query, h.nodes[fID].vector)
			if d < curDist {
				cur = fID
				curDist = d
				changed = true
			}
		}
	}
	return cur, curDist
}

// randomLevel draws a layer from an exponential distribution:
// P(level >= l) = exp(-l * ln(M)).
func (h *HNSW) randomLevel() int {
	r := max(h.rng.Float64(), math.SmallestNonzeroFloat64)
	level := int(-math.Log(r) * h.levelMul)
	if level > maxHNSWLevel {
		level = maxHNSWLevel
	}
	return level
}

const maxHNSWLevel = 31

// searchLayer performs a beam search on a single layer and returns up to
// ef node positions closest to the query.
func (h *HNSW) searchLayer(query []float32, entryPoints []uint32, ef int, layer int) []uint32 {
	visited := make(map[uint32]struct{}, ef*2)

	var candidates minDistHeap
	var results maxDistHeap

	for _, ep := range entryPoints {
		if _, seen := visited[ep]; seen {
			continue
		}
		visited[ep] = struct{}{}
		d := CosineDistance(query, h.nodes[ep].vector)
		heap.Push(&candidates, distItem{id: ep, dist: d})
		heap.Push(&results, distItem{id: ep, dist: d})
		if results.Len() > ef {
			heap.Pop(&results)
		}
	}

	for candidates.Len() > 0 {
		closest := heap.Pop(&candidates).(distItem)
		if results.Len() >= ef && closest.dist > results[0].dist {
			break
		}

		nd := h.nodes[closest.id]
		if layer >= len(nd.friends) {
			continue
		}
		for _, fID := range nd.friends[layer] {
			if _, seen := visited[fID]; seen {
				continue
			}
			visited[fID] = struct{}{}

			d := CosineDistance(query, h.nodes[fID].vector)
			if results.Len() < ef || d < results[0].dist {
				heap.Push(&candidates, distItem{id: fID, dist: d})
				heap.Push(&results, distItem{id: fID, dist: d})
				if results.Len() > ef {
					heap.Pop(&results)
				}
			}
		}
	}

	out := make([]uint32, results.Len())
	for i := range out {
		out[i] = results[i].id
	}
	return out
}

// selectClosest returns up to maxN positions from candidates closest to
// the query vector.
func (h *HNSW) selectClosest(query []float32, candidates []uint32, maxN int) []uint32 {
	if len(candidates) <= maxN {
		return slices.Clone(candidates)
	}

	items := make([]distItem, len(candidates))
	for i, cID := range candidates {
		items[i] = distItem{id: cID, dist: CosineDistance(query, h.nodes[cID].vector)}
	}
	slices.SortFunc(items, func(a, b distItem) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	out := make([]uint32, maxN)
	for i := range out {
		out[i] = items[i].id
	}
	return out
}
