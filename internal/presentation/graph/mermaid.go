package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/autonoma-fleet/autonoma/internal/runtime"
	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/autonoma-fleet/autonoma/pkg/policy"
)

// Overlay contains run data to visualize on the graph.
type Overlay struct {
	VisitedNodes []domain.NodeID
	CurrentNode  domain.NodeID
}

// OverlayFor builds an overlay from the path of a finished run.
func OverlayFor(s *domain.State) *Overlay {
	if s == nil || len(s.Path) == 0 {
		return nil
	}
	return &Overlay{VisitedNodes: s.Path, CurrentNode: s.Path[len(s.Path)-1]}
}

// GenerateMermaid produces a Mermaid flowchart of a design checked against an
// allow-list. It applies semantic styling:
// - Start/End: ((Circle))
// - RCA (publishes to the fleet): [[Subroutine]]
// - Customer engagement (talks to the driver): [/Parallelogram/]
// - Default: [Rectangle]
//
// Routed and permitted edges are solid, routed but forbidden edges are drawn
// as blocked, and permitted edges the design never takes are dotted.
func GenerateMermaid(d runtime.Design, p *policy.Policy, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if d.Name != "" {
		fmt.Fprintf(&sb, "    %%%% design: %s\n", d.Name)
	}

	for _, node := range domain.Nodes() {
		route, routed := d.Routes[node]
		var allowed []domain.NodeID
		if p != nil {
			allowed = p.Successors(node)
		}
		if !routed && len(allowed) == 0 && !targeted(d, node) {
			continue
		}

		opener, closer := "[", "]"
		switch node {
		case domain.NodeStart, domain.NodeEnd:
			opener, closer = "((", "))"
		case domain.NodeRCA:
			opener, closer = "[[", "]]"
		case domain.NodeCustomerEngagement:
			opener, closer = "[/", "/]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", node, opener, node, closer)

		for _, target := range route.Targets {
			switch {
			case p == nil || p.Allows(string(node), string(target)):
				fmt.Fprintf(&sb, "    %s --> %s\n", node, target)
			default:
				fmt.Fprintf(&sb, "    %s -. \"⛔ blocked\" .-> %s\n", node, target)
			}
		}
		for _, target := range allowed {
			if !slices.Contains(route.Targets, target) {
				fmt.Fprintf(&sb, "    %s -.-> %s\n", node, target)
			}
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[domain.NodeID]bool)
		for _, id := range overlay.VisitedNodes {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", id)
		}
		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", overlay.CurrentNode)
		}
	}

	return sb.String()
}

func targeted(d runtime.Design, node domain.NodeID) bool {
	for _, r := range d.Routes {
		if slices.Contains(r.Targets, node) {
			return true
		}
	}
	return false
}
