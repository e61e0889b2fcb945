package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Policy is an immutable allow-list of transitions. It is safe for concurrent use.
type Policy struct {
	edges map[domain.NodeID][]domain.NodeID
}

// File represents the structure of a policy file.
type File struct {
	Transitions map[string][]string `yaml:"transitions" json:"transitions"`
}

// Default returns the allow-list of the diagnostics pipeline.
func Default() *Policy {
	p, err := New(map[string][]string{
		"start":               {"data_analysis"},
		"data_analysis":       {"diagnosis", "end"},
		"diagnosis":           {"customer_engagement"},
		"customer_engagement": {"scheduling", "end"},
		"scheduling":          {"rca", "end"},
		"rca":                 {"end"},
	})
	if err != nil {
		panic(err)
	}
	return p
}

// New builds a policy from a source→targets table.
// Every name must be a known node and END cannot be a source.
func New(table map[string][]string) (*Policy, error) {
	p := &Policy{edges: make(map[domain.NodeID][]domain.NodeID, len(table))}
	var errs []string

	for src, targets := range table {
		from, err := domain.ParseNodeID(src)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if from == domain.NodeEnd {
			errs = append(errs, "end cannot have outgoing transitions")
			continue
		}
		seen := make(map[domain.NodeID]bool)
		for _, dst := range targets {
			to, err := domain.ParseNodeID(dst)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", from, err))
				continue
			}
			if to == domain.NodeStart {
				errs = append(errs, fmt.Sprintf("%s: start cannot be a target", from))
				continue
			}
			if seen[to] {
				continue
			}
			seen[to] = true
			p.edges[from] = append(p.edges[from], to)
		}
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return nil, fmt.Errorf("invalid policy:\n- %s", strings.Join(errs, "\n- "))
	}
	if len(p.edges[domain.NodeStart]) == 0 {
		return nil, fmt.Errorf("invalid policy: start has no outgoing transitions")
	}
	return p, nil
}

// Load reads a policy file (YAML, or JSON by extension).
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy: %w", err)
	}

	var f File
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse policy json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse policy yaml: %w", err)
		}
	}
	return New(f.Transitions)
}

// Allows reports whether source→target is permitted. Names are matched
// case-insensitively; unknown names are never permitted.
func (p *Policy) Allows(source, target string) bool {
	from, err := domain.ParseNodeID(source)
	if err != nil {
		return false
	}
	to, err := domain.ParseNodeID(target)
	if err != nil {
		return false
	}
	for _, n := range p.edges[from] {
		if n == to {
			return true
		}
	}
	return false
}

// Successors lists the permitted targets of source.
func (p *Policy) Successors(source domain.NodeID) []domain.NodeID {
	out := make([]domain.NodeID, len(p.edges[source]))
	copy(out, p.edges[source])
	return out
}

// HasSource reports whether the table knows source at all.
func (p *Policy) HasSource(source string) bool {
	from, err := domain.ParseNodeID(source)
	if err != nil {
		return false
	}
	_, ok := p.edges[from]
	return ok
}

// Table exports the policy in the shape of File.Transitions.
func (p *Policy) Table() map[string][]string {
	out := make(map[string][]string, len(p.edges))
	for src, targets := range p.edges {
		names := make([]string, len(targets))
		for i, t := range targets {
			names[i] = string(t)
		}
		out[string(src)] = names
	}
	return out
}

// Unreachable returns the executable nodes that cannot be reached from START.
func (p *Policy) Unreachable() []domain.NodeID {
	visited := map[domain.NodeID]bool{domain.NodeStart: true}
	queue := []domain.NodeID{domain.NodeStart}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range p.edges[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	var out []domain.NodeID
	for _, n := range domain.Nodes() {
		if !n.IsMarker() && !visited[n] {
			out = append(out, n)
		}
	}
	return out
}
