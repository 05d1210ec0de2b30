package render

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/igoriakovlev/JumpToLine/internal/callgraph"
)

// ClassgraphDOT renders a class-level call graph where each owner class is
// one node and edges aggregate calls between classes. Classes that only
// appear as call targets are drawn with the stub fill. maxNodes limits
// rendered classes (0 = all).
func ClassgraphDOT(funcs []callgraph.FuncInfo, title string, t Theme, maxNodes int) string {
	ownerMethodCount := make(map[string]int)
	for _, f := range funcs {
		ownerMethodCount[ownerOf(f.Name)]++
	}

	type classEdge struct {
		from, to string
	}
	classCounts := make(map[classEdge]int)
	for _, f := range funcs {
		src := ownerOf(f.Name)
		for _, e := range f.CallEdges {
			if e.Owner == "" || e.Owner == src {
				continue // invokedynamic and intra-class calls
			}
			classCounts[classEdge{src, e.Owner}]++
		}
	}

	classInvolvement := make(map[string]int)
	for ce, count := range classCounts {
		classInvolvement[ce.from] += count
		classInvolvement[ce.to] += count
	}

	type rankedClass struct {
		name        string
		involvement int
	}
	ranked := make([]rankedClass, 0, len(classInvolvement))
	for name, inv := range classInvolvement {
		ranked = append(ranked, rankedClass{name, inv})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].involvement != ranked[j].involvement {
			return ranked[i].involvement > ranked[j].involvement
		}
		return ranked[i].name < ranked[j].name
	})

	limit := len(ranked)
	if maxNodes > 0 && limit > maxNodes {
		limit = maxNodes
	}
	renderSet := make(map[string]bool, limit)
	for _, rc := range ranked[:limit] {
		renderSet[rc.name] = true
	}

	var b strings.Builder
	b.WriteString("digraph classgraph {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  splines=true;\n")
	b.WriteString("  nodesep=0.5;\n")
	b.WriteString("  ranksep=0.8;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=\"filled,rounded\", fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Helvetica Neue,Helvetica,Arial\", fontsize=10, fontcolor=%q, height=0.4, margin=\"0.15,0.08\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	fmt.Fprintf(&b, "  edge [penwidth=0.5, arrowsize=0.5, arrowhead=vee, color=%q];\n", t.EdgeDirect)
	if title != "" {
		fmt.Fprintf(&b, "  labelloc=t;\n  labeljust=l;\n")
		fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"8\" color=\"%s\">%s</font>>;\n",
			t.TextColor, dotEscape(title))
	}
	b.WriteByte('\n')

	maxMethods := 1
	for name := range renderSet {
		if c := ownerMethodCount[name]; c > maxMethods {
			maxMethods = c
		}
	}
	for _, rc := range ranked[:limit] {
		name := rc.name
		id := dotID(name)
		methods := ownerMethodCount[name]

		// Scale node height by method count (log scale).
		height := 0.4 + 0.3*math.Log2(float64(methods)+1)/math.Log2(float64(maxMethods)+1)

		if methods == 0 {
			fmt.Fprintf(&b, "  %s [label=<<font point-size=\"10\">%s</font>>, fillcolor=%q, height=%.2f];\n",
				id, dotEscape(simpleName(name)), t.StubFill, height)
			continue
		}
		fmt.Fprintf(&b, "  %s [label=<<font point-size=\"10\">%s</font><br/><font point-size=\"7\" color=\"%s\">%d methods</font>>, height=%.2f];\n",
			id, dotEscape(simpleName(name)), t.ExternalText, methods, height)
	}
	b.WriteByte('\n')

	edges := make([]classEdge, 0, len(classCounts))
	maxEdgeCount := 1
	for ce, count := range classCounts {
		if !renderSet[ce.from] || !renderSet[ce.to] {
			continue
		}
		edges = append(edges, ce)
		maxEdgeCount = max(maxEdgeCount, count)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].from != edges[j].from {
			return edges[i].from < edges[j].from
		}
		return edges[i].to < edges[j].to
	})
	for _, ce := range edges {
		count := classCounts[ce]
		pw := 0.5 + 2.0*math.Log2(float64(count)+1)/math.Log2(float64(maxEdgeCount)+1)
		attrs := fmt.Sprintf("penwidth=%.1f", pw)
		if count > 1 {
			attrs += fmt.Sprintf(", label=<<font point-size=\"7\" color=\"%s\">%d</font>>",
				t.ExternalText, count)
		}
		fmt.Fprintf(&b, "  %s -> %s [%s];\n", dotID(ce.from), dotID(ce.to), attrs)
	}

	b.WriteString("}\n")
	return b.String()
}
