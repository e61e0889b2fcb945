package domain

import (
	"fmt"
	"strings"
)

// Severity grades an anomaly. The zero value means "not assessed".
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// ParseSeverity accepts the four levels in any letter case.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, s)
}

// Rank orders severities from 0 (unset) to 4 (Critical).
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// Urgent is true for High and Critical, the levels that warrant a service visit.
func (s Severity) Urgent() bool {
	return s.Rank() >= SeverityHigh.Rank()
}
