package ports

import (
	"context"
	"testing"
	"time"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRunStoreContract runs a suite of tests to verify that a RunStore
// implementation adheres to the interface contract.
func RunRunStoreContract(t *testing.T, store RunStore) {
	ctx := context.Background()
	vehicleID := "contract-test-vehicle-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		rul := 45.0
		state := domain.NewState(vehicleID, domain.Sample{domain.SensorBatteryTemperature: 75})
		state.RunID = "run-1"
		state.AnomalyDetected = true
		state.Severity = domain.SeverityCritical
		state.RUL = &rul
		state.Messages = append(state.Messages, domain.Message{Sender: domain.SenderAI, Content: "stop"})
		state.Path = []domain.NodeID{domain.NodeDataAnalysis, domain.NodeDiagnosis}

		err := store.Save(ctx, vehicleID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, vehicleID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.RunID, loaded.RunID)
		assert.Equal(t, domain.SeverityCritical, loaded.Severity)
		assert.Equal(t, 75.0, loaded.CurrentData.Get(domain.SensorBatteryTemperature))
		require.NotNil(t, loaded.RUL)
		assert.Equal(t, 45.0, *loaded.RUL)
		assert.Equal(t, state.Messages, loaded.Messages)
		assert.Equal(t, state.Path, loaded.Path)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+vehicleID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, vehicleID, domain.NewState(vehicleID, nil))
		require.NoError(t, err)

		err = store.Delete(ctx, vehicleID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, vehicleID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "Load after Delete should return ErrRunNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := vehicleID + "-1"
		id2 := vehicleID + "-2"
		_ = store.Save(ctx, id1, domain.NewState(id1, nil))
		_ = store.Save(ctx, id2, domain.NewState(id2, nil))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
