// Package graphexport is an ancillary, read-only tool (SPEC_FULL §4.6) that
// renders the current state of the job graph for operator inspection. It
// never participates in the claim protocol: it only reads store.Graph.Snapshot.
package graphexport

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/bluedotiya/web-crawler/internal/model"
	"github.com/bluedotiya/web-crawler/internal/store"
)

// ToDOT renders every node and Lead edge in the snapshot as a Graphviz DOT
// document, one box per node colored by job status.
func ToDOT(nodes []*model.Node, edges []model.Edge) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fontsize=11];\n\n")

	byID := make(map[string]*model.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
		label := fmt.Sprintf("%s\\n%s\\ndepth %d/%d", n.Name, n.JobStatus, n.CurrentDepth, n.RequestedDepth)
		fmt.Fprintf(&buf, "  %q [label=%q, fillcolor=%q];\n", n.ID, label, colorFor(n.JobStatus))
	}

	buf.WriteString("\n")
	for _, e := range edges {
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.ParentID, e.ChildID)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func colorFor(status model.JobStatus) string {
	switch status {
	case model.Completed:
		return "lightgreen"
	case model.Failed:
		return "lightcoral"
	case model.NoLead:
		return "lightyellow"
	case model.InProgress:
		return "lightblue"
	case model.Restricted:
		return "lightgrey"
	default:
		return "white"
	}
}

// RenderSVG renders a DOT document to SVG using Graphviz, matching the
// pattern of the teacher-adjacent render helper every satellite CLI in this
// corpus reuses.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("graphexport: init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("graphexport: parse dot: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("graphexport: render: %w", err)
	}
	return buf.Bytes(), nil
}

// Summarize renders a short plain-text status breakdown, grouping node
// counts by JobStatus, for a quick terminal glance without invoking Graphviz.
func Summarize(nodes []*model.Node) string {
	counts := make(map[model.JobStatus]int)
	for _, n := range nodes {
		counts[n.JobStatus]++
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d nodes total\n", len(nodes))
	for _, status := range []model.JobStatus{
		model.Pending, model.InProgress, model.Completed,
		model.NoLead, model.Failed, model.Restricted,
	} {
		if n := counts[status]; n > 0 {
			fmt.Fprintf(&sb, "  %-12s %d\n", status, n)
		}
	}
	return sb.String()
}

// Snapshot fetches the current graph state through the store.Graph contract,
// never touching a concrete backend directly.
func Snapshot(ctx context.Context, g store.Graph) ([]*model.Node, []model.Edge, error) {
	return g.Snapshot(ctx)
}
