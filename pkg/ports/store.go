package ports

import (
	"context"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
)

// RunStore persists the latest record produced for each vehicle.
// The engine never uses it; transports do, to resume conversations.
type RunStore interface {
	// Save persists the record for a vehicle, replacing any previous one.
	Save(ctx context.Context, vehicleID string, state *domain.State) error

	// Load retrieves the record for a vehicle.
	// Returns domain.ErrRunNotFound if nothing is stored.
	Load(ctx context.Context, vehicleID string) (*domain.State, error)

	// Delete removes the record for a vehicle.
	Delete(ctx context.Context, vehicleID string) error

	// List returns the vehicle ids with a stored record.
	List(ctx context.Context) ([]string, error)
}
