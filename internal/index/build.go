package index

import (
	"math"
	"math/rand"

	"github.com/ironsheep/target-tracker-mcp/internal/feature"
)

// BuildOptions configures tree construction.
type BuildOptions struct {
	// LeafSize is the largest point set emitted as a leaf without partitioning.
	LeafSize int

	// Branching is the number of representatives (K) drawn per partition,
	// at most MaxBranching.
	Branching int

	// Hypotheses is the number of independent random seedings tried per
	// partition; the one with the lowest total distance wins.
	Hypotheses int

	// Seed fixes the random seedings so a build can be reproduced.
	Seed int64
}

// DefaultBuildOptions returns the construction parameters used by the target
// compiler.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		LeafSize:   16,
		Branching:  8,
		Hypotheses: 64,
		Seed:       1,
	}
}

func (o BuildOptions) withDefaults() BuildOptions {
	def := DefaultBuildOptions()
	if o.LeafSize <= 0 {
		o.LeafSize = def.LeafSize
	}
	if o.Branching < 2 || o.Branching > MaxBranching {
		o.Branching = def.Branching
	}
	if o.Hypotheses <= 0 {
		o.Hypotheses = def.Hypotheses
	}
	return o
}

// Build constructs a cluster tree over descs.
//
// # Algorithm
//
// A set no larger than LeafSize (or Branching) becomes a leaf. Otherwise
// Hypotheses random draws of Branching distinct representatives are tried; in
// each, every point is assigned to its nearest representative by Hamming
// distance and the draw with the smallest total distance is kept. Each
// non-empty cluster becomes a child with its representative, and is
// partitioned in turn. A partition that yields a single cluster becomes a leaf.
func Build(descs []feature.Descriptor, opts BuildOptions) *Tree {
	opts = opts.withDefaults()
	b := &builder{
		descs: descs,
		opts:  opts,
		rng:   rand.New(rand.NewSource(opts.Seed)),
		tree: &Tree{
			Indices: make([]int32, 0, len(descs)),
		},
	}

	all := make([]int32, len(descs))
	for i := range all {
		all[i] = int32(i)
	}
	b.build(all, -1)
	return b.tree
}

type builder struct {
	descs []feature.Descriptor
	opts  BuildOptions
	rng   *rand.Rand
	tree  *Tree
}

func (b *builder) build(members []int32, rep int32) int32 {
	id := int32(len(b.tree.Nodes))
	b.tree.Nodes = append(b.tree.Nodes, Node{Representative: rep})

	if len(members) <= b.opts.LeafSize || len(members) <= b.opts.Branching {
		b.leaf(id, members)
		return id
	}

	centers, clusters := b.partition(members)
	if len(clusters) <= 1 {
		b.leaf(id, members)
		return id
	}

	for i, cluster := range clusters {
		child := b.build(cluster, centers[i])
		// The arena may have grown; re-index rather than hold a pointer.
		n := &b.tree.Nodes[id]
		n.Children[n.NumChildren] = child
		n.NumChildren++
	}
	return id
}

func (b *builder) leaf(id int32, members []int32) {
	n := &b.tree.Nodes[id]
	n.Leaf = true
	n.Start = int32(len(b.tree.Indices))
	b.tree.Indices = append(b.tree.Indices, members...)
	n.End = int32(len(b.tree.Indices))
}

// partition runs the randomized k-medoid assignment and returns the kept
// representatives with their non-empty clusters, in draw order.
func (b *builder) partition(members []int32) ([]int32, [][]int32) {
	k := b.opts.Branching
	if k > len(members) {
		k = len(members)
	}

	pool := make([]int32, len(members))
	copy(pool, members)
	assign := make([]int, len(members))
	bestAssign := make([]int, len(members))
	bestCenters := make([]int32, k)
	bestCost := math.MaxInt

	for h := 0; h < b.opts.Hypotheses; h++ {
		// Partial Fisher-Yates: pool[:k] becomes k distinct random members
		for i := 0; i < k; i++ {
			j := i + b.rng.Intn(len(pool)-i)
			pool[i], pool[j] = pool[j], pool[i]
		}

		cost := 0
		for m, p := range members {
			best, bestD := 0, math.MaxInt
			for c := 0; c < k; c++ {
				d := feature.Distance(b.descs[p], b.descs[pool[c]])
				if d < bestD {
					best, bestD = c, d
				}
			}
			assign[m] = best
			cost += bestD
		}

		if cost < bestCost {
			bestCost = cost
			copy(bestCenters, pool[:k])
			copy(bestAssign, assign)
		}
	}

	groups := make([][]int32, k)
	for m, p := range members {
		groups[bestAssign[m]] = append(groups[bestAssign[m]], p)
	}

	centers := make([]int32, 0, k)
	clusters := make([][]int32, 0, k)
	for c, g := range groups {
		if len(g) == 0 {
			continue
		}
		centers = append(centers, bestCenters[c])
		clusters = append(clusters, g)
	}
	return centers, clusters
}
