// Package plan orders provisioning steps by their declared dependencies.
//
// Dependencies are explicit edges rather than declaration position. Among
// steps that are ready to run, the one declared first wins, so a recipe whose
// declaration order already satisfies its edges runs in that order.
package plan

import "container/heap"

// Node is one step in a plan.
type Node struct {
	ID       string
	Requires []string
}

// Plan is a validated, acyclic set of nodes.
type Plan struct {
	nodes []Node
	index map[string]int
	order []int
}

// New builds and validates a plan.
//
// It rejects empty or duplicate IDs, requirements on unknown IDs,
// self-requirements and cycles.
func New(nodes []Node) (*Plan, error) {
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if n.ID == "" {
			return nil, invalidf("node %d has no id", i)
		}
		if _, exists := index[n.ID]; exists {
			return nil, invalidf("duplicate id %q", n.ID)
		}
		index[n.ID] = i
	}

	p := &Plan{nodes: nodes, index: index}

	for _, n := range nodes {
		seen := make(map[string]bool, len(n.Requires))
		for _, req := range n.Requires {
			if req == n.ID {
				return nil, invalidf("%q requires itself", n.ID)
			}
			if _, ok := index[req]; !ok {
				return nil, invalidf("%q requires unknown step %q", n.ID, req)
			}
			if seen[req] {
				return nil, invalidf("%q requires %q more than once", n.ID, req)
			}
			seen[req] = true
		}
	}

	order, err := p.sort()
	if err != nil {
		return nil, err
	}
	p.order = order

	return p, nil
}

// Order returns the node IDs in execution order.
func (p *Plan) Order() []string {
	ids := make([]string, len(p.order))
	for i, idx := range p.order {
		ids[i] = p.nodes[idx].ID
	}
	return ids
}

// sort is Kahn's algorithm with a min-heap on declaration index.
func (p *Plan) sort() ([]int, error) {
	indeg := make([]int, len(p.nodes))
	dependents := make([][]int, len(p.nodes))
	for i, n := range p.nodes {
		for _, req := range n.Requires {
			j := p.index[req]
			dependents[j] = append(dependents[j], i)
			indeg[i]++
		}
	}

	ready := &intHeap{}
	for i, d := range indeg {
		if d == 0 {
			heap.Push(ready, i)
		}
	}

	order := make([]int, 0, len(p.nodes))
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		order = append(order, i)
		for _, j := range dependents[i] {
			indeg[j]--
			if indeg[j] == 0 {
				heap.Push(ready, j)
			}
		}
	}

	if len(order) != len(p.nodes) {
		return nil, cycleError(p.findCycle(indeg))
	}
	return order, nil
}

// findCycle walks requirements from any node left with unmet requirements
// until a node repeats.
func (p *Plan) findCycle(indeg []int) []string {
	start := -1
	for i, d := range indeg {
		if d > 0 {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	pos := make(map[int]int)
	var path []int
	cur := start
	for {
		if at, ok := pos[cur]; ok {
			cycle := path[at:]
			ids := make([]string, 0, len(cycle)+1)
			for _, idx := range cycle {
				ids = append(ids, p.nodes[idx].ID)
			}
			return append(ids, p.nodes[cur].ID)
		}
		pos[cur] = len(path)
		path = append(path, cur)

		next := -1
		for _, req := range p.nodes[cur].Requires {
			if j := p.index[req]; indeg[j] > 0 {
				next = j
				break
			}
		}
		if next < 0 {
			return nil
		}
		cur = next
	}
}

type intHeap []int

func (h intHeap) Len() int           { return len(h) }
func (h intHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
