package ports

import (
	"context"
	"errors"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
)

// AuditSink receives every transition-guard decision.
type AuditSink interface {
	Record(ctx context.Context, rec domain.AuditRecord) error
}

// AuditSinkFunc adapts a function to AuditSink.
type AuditSinkFunc func(ctx context.Context, rec domain.AuditRecord) error

func (f AuditSinkFunc) Record(ctx context.Context, rec domain.AuditRecord) error {
	return f(ctx, rec)
}

// MultiAuditSink fans a record out to every sink and joins their errors.
func MultiAuditSink(sinks ...AuditSink) AuditSink {
	return AuditSinkFunc(func(ctx context.Context, rec domain.AuditRecord) error {
		var errs []error
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s.Record(ctx, rec); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
