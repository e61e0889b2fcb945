package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/autonoma-fleet/autonoma/pkg/ports"
)

// Mask replaces every redacted span of a stored message.
const Mask = "***"

// DefaultPIIPatterns match e-mail addresses and phone numbers drivers tend
// to paste into the chat.
var DefaultPIIPatterns = []string{
	`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`,
	`\+?\d[\d\s().\-]{7,}\d`,
}

type piiMiddleware struct {
	next     ports.RunStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks transcript text matching
// any of the patterns before the record reaches the underlying store.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.RunStore) ports.RunStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, vehicleID string, state *domain.State) error {
	if state == nil {
		return m.next.Save(ctx, vehicleID, state)
	}
	// The engine keeps using its copy; only the persisted one is masked.
	cloned := state.Clone()
	for i := range cloned.Messages {
		cloned.Messages[i].Content = m.mask(cloned.Messages[i].Content)
	}
	return m.next.Save(ctx, vehicleID, cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, vehicleID string) (*domain.State, error) {
	return m.next.Load(ctx, vehicleID)
}

func (m *piiMiddleware) Delete(ctx context.Context, vehicleID string) error {
	return m.next.Delete(ctx, vehicleID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) mask(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, Mask)
	}
	return s
}
