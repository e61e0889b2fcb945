package graph_test

import (
	"strings"
	"testing"

	"github.com/autonoma-fleet/autonoma/internal/presentation/graph"
	"github.com/autonoma-fleet/autonoma/internal/runtime"
	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/autonoma-fleet/autonoma/pkg/policy"
)

func TestGenerateMermaid(t *testing.T) {
	strict, err := policy.New(map[string][]string{
		"start":         {"data_analysis"},
		"data_analysis": {"end"},
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		design      runtime.Design
		policy      *policy.Policy
		overlay     *graph.Overlay
		contains    []string
		notContains []string
	}{
		{
			name:   "Node Shapes",
			design: runtime.Deterministic(),
			policy: policy.Default(),
			contains: []string{
				`start(("start"))`,
				`end(("end"))`,
				`rca[["rca"]]`,
				`customer_engagement[/"customer_engagement"/]`,
				`diagnosis["diagnosis"]`,
			},
		},
		{
			name:   "Deterministic Routes",
			design: runtime.Deterministic(),
			policy: policy.Default(),
			contains: []string{
				"%% design: deterministic",
				"start --> data_analysis",
				"data_analysis --> diagnosis",
				"data_analysis --> end",
				"scheduling --> rca",
				"rca --> end",
			},
			notContains: []string{"blocked", "-.->"},
		},
		{
			name:   "Conversational Skips RCA",
			design: runtime.Conversational(),
			policy: policy.Default(),
			contains: []string{
				"scheduling --> end",
				"scheduling -.-> rca",
			},
			notContains: []string{"scheduling --> rca"},
		},
		{
			name:   "Forbidden Route",
			design: runtime.Deterministic(),
			policy: strict,
			contains: []string{
				"data_analysis --> end",
				`data_analysis -. "⛔ blocked" .-> diagnosis`,
			},
		},
		{
			name:   "Overlay",
			design: runtime.Deterministic(),
			policy: policy.Default(),
			overlay: graph.OverlayFor(&domain.State{Path: []domain.NodeID{
				domain.NodeDataAnalysis, domain.NodeDiagnosis, domain.NodeDiagnosis,
			}}),
			contains: []string{
				"classDef visited",
				"class data_analysis visited;",
				"class diagnosis current;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.design, tt.policy, tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() missing %q\nGot:\n%s", want, got)
				}
			}
			for _, unwanted := range tt.notContains {
				if strings.Contains(got, unwanted) {
					t.Errorf("GenerateMermaid() unexpectedly contains %q\nGot:\n%s", unwanted, got)
				}
			}
			if n := strings.Count(got, "class diagnosis visited;"); tt.overlay != nil && n != 1 {
				t.Errorf("visited class applied %d times, want 1", n)
			}
		})
	}
}

func TestOverlayForEmptyRun(t *testing.T) {
	if graph.OverlayFor(nil) != nil {
		t.Error("OverlayFor(nil) should be nil")
	}
	if graph.OverlayFor(&domain.State{}) != nil {
		t.Error("OverlayFor(no path) should be nil")
	}
}
