package runtime

import (
	"fmt"
	"strings"

	"github.com/autonoma-fleet/autonoma/internal/agents"
	"github.com/autonoma-fleet/autonoma/pkg/domain"
)

// Router picks the desired successor of a node from the merged record.
type Router func(*domain.State) domain.NodeID

// Route is one row of a design's routing table. Targets lists every node the
// router may return; it documents the design and feeds graph rendering.
type Route struct {
	Targets []domain.NodeID
	Next    Router
}

// Design is an orchestration configuration. Node behavior does not change
// between designs; only the routing and the node modes do.
type Design struct {
	Name       string
	Engagement agents.EngagementMode
	AutoBook   bool
	Routes     map[domain.NodeID]Route
}

// Names of the built-in designs.
const (
	DesignConversational = "conversational"
	DesignDeterministic  = "deterministic"
)

func always(n domain.NodeID) Route {
	return Route{Targets: []domain.NodeID{n}, Next: func(*domain.State) domain.NodeID { return n }}
}

func when(cond func(*domain.State) bool, then, otherwise domain.NodeID) Route {
	return Route{
		Targets: []domain.NodeID{then, otherwise},
		Next: func(s *domain.State) domain.NodeID {
			if cond(s) {
				return then
			}
			return otherwise
		},
	}
}

func anomalous(s *domain.State) bool { return s.AnomalyDetected }

func urgent(s *domain.State) bool { return s.Severity.Urgent() }

func wantsBooking(s *domain.State) bool { return s.ShowBookingUI || s.BookingIntent != nil }

// Conversational talks to the driver and stops after scheduling.
func Conversational() Design {
	return Design{
		Name:       DesignConversational,
		Engagement: agents.ModeConversational,
		Routes: map[domain.NodeID]Route{
			domain.NodeStart:              always(domain.NodeDataAnalysis),
			domain.NodeDataAnalysis:       when(anomalous, domain.NodeDiagnosis, domain.NodeEnd),
			domain.NodeDiagnosis:          always(domain.NodeCustomerEngagement),
			domain.NodeCustomerEngagement: when(wantsBooking, domain.NodeScheduling, domain.NodeEnd),
			domain.NodeScheduling:         always(domain.NodeEnd),
		},
	}
}

// Deterministic alerts with templates, auto-books urgent cases and runs root
// cause analysis after scheduling.
func Deterministic() Design {
	return Design{
		Name:       DesignDeterministic,
		Engagement: agents.ModeDeterministic,
		AutoBook:   true,
		Routes: map[domain.NodeID]Route{
			domain.NodeStart:              always(domain.NodeDataAnalysis),
			domain.NodeDataAnalysis:       when(anomalous, domain.NodeDiagnosis, domain.NodeEnd),
			domain.NodeDiagnosis:          always(domain.NodeCustomerEngagement),
			domain.NodeCustomerEngagement: when(urgent, domain.NodeScheduling, domain.NodeEnd),
			domain.NodeScheduling:         when(urgent, domain.NodeRCA, domain.NodeEnd),
			domain.NodeRCA:                always(domain.NodeEnd),
		},
	}
}

// DesignByName resolves a built-in design, case-insensitively.
func DesignByName(name string) (Design, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case DesignConversational:
		return Conversational(), nil
	case DesignDeterministic, "":
		return Deterministic(), nil
	}
	return Design{}, fmt.Errorf("unknown design %q (want %s or %s)", name, DesignConversational, DesignDeterministic)
}

// Next returns the desired successor of current, or END when the design has
// no route for it.
func (d Design) Next(current domain.NodeID, s *domain.State) domain.NodeID {
	r, ok := d.Routes[current]
	if !ok || r.Next == nil {
		return domain.NodeEnd
	}
	return r.Next(s)
}

// Executable lists the non-marker nodes the design can reach.
func (d Design) Executable() []domain.NodeID {
	seen := make(map[domain.NodeID]bool)
	for src, r := range d.Routes {
		if !src.IsMarker() {
			seen[src] = true
		}
		for _, t := range r.Targets {
			if !t.IsMarker() {
				seen[t] = true
			}
		}
	}
	var out []domain.NodeID
	for _, n := range domain.Nodes() {
		if seen[n] {
			out = append(out, n)
		}
	}
	return out
}
