package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
)

// CycleWarning represents a potential cycle among output streams.
//
// Cycles are warnings, not errors, because the evaluation order is explicit:
// a stream that reads another before it is written in the same cycle simply
// observes the previous value. They usually indicate a mis-ordered eval
// list though.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["x", "y", "x"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles performs static dependency analysis on the eval order.
//
// The algorithm:
//  1. Build output -> output graph from zero-offset loads inside each assign
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a potential cycle warning
//  4. Report zero-offset reads of outputs assigned later as "info"
//
// A DAG evaluated in order returns an empty warning list.
func AnalyzeCycles(spec *ir.StreamIR) []CycleWarning {
	if spec == nil || spec.Stmt == nil {
		return []CycleWarning{}
	}

	graph := buildDependencyGraph(spec)
	sccs := tarjanSCC(graph)

	var warnings []CycleWarning
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	warnings = append(warnings, staleReads(spec)...)

	return warnings
}

// dependencyGraph maps output name -> outputs it reads at offset 0.
type dependencyGraph map[string][]string

// buildDependencyGraph constructs the same-cycle dependency graph.
//
// For each assign:
//   - Collect the outputs loaded at offset 0 by its expression
//   - Add edges: assigned output -> loaded outputs
func buildDependencyGraph(spec *ir.StreamIR) dependencyGraph {
	graph := make(dependencyGraph)
	for _, out := range spec.Outputs {
		graph[out.Name] = []string{}
	}

	ir.Walk(spec.Stmt, func(n any) {
		assign, ok := n.(ir.Assign)
		if !ok || assign.Output.Index >= len(spec.Outputs) {
			return
		}
		from := spec.Outputs[assign.Output.Index].Name
		for _, dep := range sameCycleReads(spec, assign.Expr) {
			if !slices.Contains(graph[from], dep) {
				graph[from] = append(graph[from], dep)
			}
		}
	})

	return graph
}

// sameCycleReads returns the outputs read at offset 0 by e, through loads
// or windows over outputs.
func sameCycleReads(spec *ir.StreamIR, e ir.Expr) []string {
	var deps []string
	ir.Walk(e, func(n any) {
		var ref ir.StreamReference
		switch x := n.(type) {
		case ir.Load:
			if x.Offset != 0 {
				return
			}
			ref = x.Stream
		case ir.WindowAccess:
			if int(x.Window) >= len(spec.Windows) {
				return
			}
			ref = spec.Windows[x.Window].Source
		default:
			return
		}
		if ref.IsOutput() && ref.Index < len(spec.Outputs) {
			deps = append(deps, spec.Outputs[ref.Index].Name)
		}
	})
	return deps
}

// staleReads reports outputs read at offset 0 by an assign that runs before
// the output's own first assign in eval order.
func staleReads(spec *ir.StreamIR) []CycleWarning {
	assigned := make(map[string]bool)
	var firstAssign []string
	ir.Walk(spec.Stmt, func(n any) {
		if a, ok := n.(ir.Assign); ok && a.Output.Index < len(spec.Outputs) {
			name := spec.Outputs[a.Output.Index].Name
			if !assigned[name] {
				assigned[name] = true
				firstAssign = append(firstAssign, name)
			}
		}
	})

	seen := make(map[string]bool)
	reported := make(map[[2]string]bool)
	var warnings []CycleWarning
	ir.Walk(spec.Stmt, func(n any) {
		a, ok := n.(ir.Assign)
		if !ok || a.Output.Index >= len(spec.Outputs) {
			return
		}
		name := spec.Outputs[a.Output.Index].Name
		for _, dep := range sameCycleReads(spec, a.Expr) {
			if dep == name || seen[dep] || !assigned[dep] || reported[[2]string{name, dep}] {
				continue
			}
			reported[[2]string{name, dep}] = true
			warnings = append(warnings, CycleWarning{
				Path:    []string{name, dep},
				Message: fmt.Sprintf("%s reads %s before %s is evaluated in this cycle", name, dep, dep),
				Level:   "info",
			})
		}
		seen[name] = true
	})
	return warnings
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of output names.
// Single-node SCCs without self-loops are NOT cycles.
// Nodes are visited in sorted order so the result is deterministic.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		// Set the depth index for v
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		// Consider successors of v
		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// If v is a root node, pop the stack and create an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
//
// For self-loops, the path is [name, name].
// For multi-node cycles, the path shows a cycle traversal.
func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("Stream reads its own current value: %s \u2192 %s", name, name),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)

	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Potential cycle detected: %s", strings.Join(path, " \u2192 ")),
		Level:   "warning",
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: start at the smallest member, follow edges to other SCC members,
// continue until we return to start node.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := slices.Min(scc)
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			break
		}

		path = append(path, next)

		if next == start {
			break
		}

		current = next
	}

	return path
}
