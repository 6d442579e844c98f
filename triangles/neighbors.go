package triangles

import "sort"

// NeighborSet is the deduplicated, self-free neighborhood of a vertex.
type NeighborSet struct {
	ids    map[uint64]struct{}
	sorted []uint64
}

// NewNeighborSet collapses duplicate edge targets and drops self-loops.
func NewNeighborSet(self uint64, edges []uint64) NeighborSet {
	ids := make(map[uint64]struct{}, len(edges))
	for _, target := range edges {
		if target == self {
			continue
		}
		ids[target] = struct{}{}
	}
	sorted := make([]uint64, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return NeighborSet{ids: ids, sorted: sorted}
}

func (n NeighborSet) Contains(id uint64) bool {
	_, ok := n.ids[id]
	return ok
}

func (n NeighborSet) Len() int {
	return len(n.sorted)
}

// Ids returns the neighbors in ascending order. The slice must not be
// modified.
func (n NeighborSet) Ids() []uint64 {
	return n.sorted
}
