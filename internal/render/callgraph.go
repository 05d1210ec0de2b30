package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/igoriakovlev/JumpToLine/internal/callgraph"
)

// edgeColor returns the DOT color for an invoke kind.
func edgeColor(kind string, t Theme) string {
	switch kind {
	case "invokestatic":
		return t.EdgeStatic
	case "invokevirtual", "invokeinterface":
		return t.EdgeVirtual
	case "invokespecial":
		return t.EdgeSpecial
	case "invokedynamic":
		return t.EdgeDynamic
	default:
		return t.EdgeDirect
	}
}

// edgeStyle returns dot style attributes for an invoke kind.
func edgeStyle(kind string) string {
	switch kind {
	case "invokeinterface":
		return "dotted"
	case "invokedynamic":
		return "dashed"
	default:
		return "solid"
	}
}

// CallgraphDOT renders the call graph of a set of methods as DOT. Methods
// of the same class are clustered; callees outside funcs are shown as
// plaintext nodes. maxNodes limits the number of method nodes (0 = all).
func CallgraphDOT(funcs []callgraph.FuncInfo, title string, t Theme, maxNodes int) string {
	if maxNodes > 0 && len(funcs) > maxNodes {
		funcs = funcs[:maxNodes]
	}
	funcSet := make(map[string]bool, len(funcs))
	for _, f := range funcs {
		funcSet[f.Name] = true
	}

	// Deduplicate edges: caller→callee→kind.
	type edgeKey struct {
		from, to, kind string
	}
	counts := make(map[edgeKey]int)
	var keys []edgeKey
	externalNodes := make(map[string]bool)
	for _, f := range funcs {
		for _, e := range f.CallEdges {
			k := edgeKey{f.Name, e.Callee(), e.Kind}
			if counts[k] == 0 {
				keys = append(keys, k)
			}
			counts[k]++
			if !funcSet[k.to] {
				externalNodes[k.to] = true
			}
		}
	}

	// Group methods by owner for clustering.
	ownerFuncs := make(map[string][]string)
	var owners []string
	for _, f := range funcs {
		owner := ownerOf(f.Name)
		if _, ok := ownerFuncs[owner]; !ok {
			owners = append(owners, owner)
		}
		ownerFuncs[owner] = append(ownerFuncs[owner], f.Name)
	}

	var b strings.Builder
	b.WriteString("digraph callgraph {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  compound=true;\n")
	b.WriteString("  splines=true;\n")
	b.WriteString("  nodesep=0.4;\n")
	b.WriteString("  ranksep=0.6;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=filled, fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Helvetica Neue,Helvetica,Arial\", fontsize=9, fontcolor=%q, height=0.3, margin=\"0.12,0.06\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	fmt.Fprintf(&b, "  edge [penwidth=0.5, arrowsize=0.5, arrowhead=vee];\n")
	if title != "" {
		fmt.Fprintf(&b, "  labelloc=t;\n  labeljust=l;\n")
		fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"8\" color=\"%s\">%s</font>>;\n",
			t.TextColor, dotEscape(title))
	}
	b.WriteByte('\n')

	for _, owner := range owners {
		names := ownerFuncs[owner]
		if owner == "" || len(names) < 2 {
			for _, name := range names {
				fmt.Fprintf(&b, "  %s [label=%q];\n", dotID(name), truncLabel(name, 60))
			}
			continue
		}
		fmt.Fprintf(&b, "  subgraph %s {\n", "cluster_"+dotID(owner))
		fmt.Fprintf(&b, "    label=<<font point-size=\"8\" color=\"%s\">%s</font>>;\n",
			t.ClusterLabel, dotEscape(simpleName(owner)))
		fmt.Fprintf(&b, "    style=dotted; color=%q; penwidth=0.3;\n", t.ClusterBorder)
		for _, name := range names {
			label := truncLabel(stripMethodName(name, owner), 50)
			fmt.Fprintf(&b, "    %s [label=%q];\n", dotID(name), label)
		}
		fmt.Fprintf(&b, "  }\n")
	}
	b.WriteByte('\n')

	ext := make([]string, 0, len(externalNodes))
	for name := range externalNodes {
		ext = append(ext, name)
	}
	sort.Strings(ext)
	for _, name := range ext {
		fmt.Fprintf(&b, "  %s [label=%q, shape=plaintext, style=\"\", fillcolor=none, fontcolor=%q, fontsize=8];\n",
			dotID(name), truncLabel(name, 50), t.ExternalText)
	}
	b.WriteByte('\n')

	for _, k := range keys {
		color := edgeColor(k.kind, t)
		attrs := fmt.Sprintf("color=%q, style=%q", color, edgeStyle(k.kind))
		if n := counts[k]; n > 1 {
			attrs += fmt.Sprintf(", penwidth=%.1f", 0.5+float64(n)*0.1)
			if n > 2 {
				attrs += fmt.Sprintf(", label=<<font point-size=\"7\" color=\"%s\">%dx</font>>", color, n)
			}
		}
		fmt.Fprintf(&b, "  %s -> %s [%s];\n", dotID(k.from), dotID(k.to), attrs)
	}

	b.WriteString("}\n")
	return b.String()
}
