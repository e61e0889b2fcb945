package domain

import (
	"fmt"
	"strings"
)

// NodeID names a step of the pipeline. Start and End are markers that never
// execute.
type NodeID string

const (
	NodeStart              NodeID = "start"
	NodeDataAnalysis       NodeID = "data_analysis"
	NodeDiagnosis          NodeID = "diagnosis"
	NodeCustomerEngagement NodeID = "customer_engagement"
	NodeScheduling         NodeID = "scheduling"
	NodeRCA                NodeID = "rca"
	NodeEnd                NodeID = "end"
)

var knownNodes = []NodeID{
	NodeStart,
	NodeDataAnalysis,
	NodeDiagnosis,
	NodeCustomerEngagement,
	NodeScheduling,
	NodeRCA,
	NodeEnd,
}

// Nodes returns every known node identifier in pipeline order.
func Nodes() []NodeID {
	out := make([]NodeID, len(knownNodes))
	copy(out, knownNodes)
	return out
}

// ParseNodeID resolves a node name case-insensitively.
func ParseNodeID(s string) (NodeID, error) {
	id := NodeID(strings.ToLower(strings.TrimSpace(s)))
	for _, n := range knownNodes {
		if n == id {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownNode, s)
}

// IsMarker reports whether the node is START or END.
func (n NodeID) IsMarker() bool {
	return n == NodeStart || n == NodeEnd
}

func (n NodeID) String() string { return string(n) }
