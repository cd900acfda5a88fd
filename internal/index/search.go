package index

import (
	"container/heap"
	"math"
	"sync"

	"github.com/ironsheep/target-tracker-mcp/internal/feature"
)

// DefaultMaxPops is the number of deferred branches a search may reopen.
const DefaultMaxPops = 8

type queueItem struct {
	node int32
	dist int
}

// nodeQueue is a min-heap of deferred branches ordered by distance, then by
// arena index.
type nodeQueue []queueItem

func (q nodeQueue) Len() int { return len(q) }
func (q nodeQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].node < q[j].node
}
func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x any)   { *q = append(*q, x.(queueItem)) }
func (q *nodeQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

var queuePool = sync.Pool{
	New: func() any {
		q := make(nodeQueue, 0, 64)
		return &q
	},
}

type searcher struct {
	tree    *Tree
	descs   []feature.Descriptor
	query   feature.Descriptor
	queue   *nodeQueue
	pops    int
	maxPops int
}

// Search appends to dst the point indices of every leaf reached by a
// best-bin-first traversal for query, and returns the extended slice.
//
// At each internal node every child whose representative is at the minimum
// distance is descended into; the others are deferred on a priority queue. After
// the ties are exhausted the closest deferred branch is reopened, up to maxPops
// times over the whole search. descs must be the descriptors the tree was built
// from.
func (t *Tree) Search(descs []feature.Descriptor, query feature.Descriptor, maxPops int, dst []int32) []int32 {
	if len(t.Nodes) == 0 {
		return dst
	}

	q := queuePool.Get().(*nodeQueue)
	*q = (*q)[:0]
	s := searcher{
		tree:    t,
		descs:   descs,
		query:   query,
		queue:   q,
		maxPops: maxPops,
	}
	dst = s.visit(0, dst)
	queuePool.Put(q)
	return dst
}

func (s *searcher) visit(id int32, dst []int32) []int32 {
	n := &s.tree.Nodes[id]
	if n.Leaf {
		return append(dst, s.tree.Indices[n.Start:n.End]...)
	}

	children := n.ChildIndices()
	var dists [MaxBranching]int
	minD := math.MaxInt
	for i, c := range children {
		rep := s.tree.Nodes[c].Representative
		d := feature.Distance(s.query, s.descs[rep])
		dists[i] = d
		if d < minD {
			minD = d
		}
	}

	for i, c := range children {
		if dists[i] != minD {
			heap.Push(s.queue, queueItem{node: c, dist: dists[i]})
		}
	}
	for i, c := range children {
		if dists[i] == minD {
			dst = s.visit(c, dst)
		}
	}

	if s.pops < s.maxPops && s.queue.Len() > 0 {
		item := heap.Pop(s.queue).(queueItem)
		s.pops++
		dst = s.visit(item.node, dst)
	}
	return dst
}
