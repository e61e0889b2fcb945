package agents

import (
	"context"
	"testing"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataAnalysis_Run(t *testing.T) {
	tests := []struct {
		name        string
		data        domain.Sample
		wantAnomaly bool
		wantReason  string
		wantSev     domain.Severity
		wantRUL     float64
	}{
		{
			name:    "normal telemetry",
			data:    domain.Sample{domain.SensorBatteryTemperature: 25, domain.SensorVibrationLevel: 1},
			wantSev: domain.SeverityLow,
			wantRUL: 100,
		},
		{
			name:        "hot battery",
			data:        domain.Sample{domain.SensorBatteryTemperature: 75},
			wantAnomaly: true,
			wantReason:  "High Battery Temperature (75°C)",
			wantSev:     domain.SeverityHigh,
			wantRUL:    45,
		},
		{
			name:        "warm battery",
			data:        domain.Sample{domain.SensorBatteryTemperature: 52.5},
			wantAnomaly: true,
			wantReason:  "High Battery Temperature (52.5°C)",
			wantSev:     domain.SeverityMedium,
			wantRUL:    45,
		},
		{
			name:    "battery threshold is exclusive",
			data:    domain.Sample{domain.SensorBatteryTemperature: 45},
			wantSev: domain.SeverityLow,
			wantRUL: 100,
		},
		{
			name:        "battery rule wins over vibration",
			data:        domain.Sample{domain.SensorBatteryTemperature: 61, domain.SensorVibrationLevel: 9},
			wantAnomaly: true,
			wantReason:  "High Battery Temperature (61°C)",
			wantSev:     domain.SeverityHigh,
			wantRUL:    45,
		},
		{
			name:        "vibration",
			data:        domain.Sample{domain.SensorVibrationLevel: 6.2},
			wantAnomaly: true,
			wantReason:  "High Vibration Detected (6.2)",
			wantSev:     domain.SeverityMedium,
			wantRUL:    70,
		},
		{
			name:    "missing keys read as zero",
			data:    domain.Sample{},
			wantSev: domain.SeverityLow,
			wantRUL: 100,
		},
	}

	node := NewDataAnalysis()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := node.Run(context.Background(), domain.NewState("EV-1", tt.data))
			require.NoError(t, err)

			got := domain.Merge(domain.NewState("EV-1", tt.data), u)
			assert.Equal(t, tt.wantAnomaly, got.AnomalyDetected)
			assert.Equal(t, tt.wantReason, got.AnomalyReason)
			assert.Equal(t, tt.wantSev, got.Severity)
			require.NotNil(t, got.RUL)
			assert.Equal(t, tt.wantRUL, *got.RUL)
			assert.ElementsMatch(t, []string{"anomaly_detected", "anomaly_reason", "severity", "rul"}, u.Fields())
		})
	}
}

func TestDataAnalysis_ClearsStaleReason(t *testing.T) {
	s := domain.NewState("EV-1", domain.Sample{domain.SensorBatteryTemperature: 20})
	s.AnomalyReason = "High Vibration Detected (9)"

	u, err := NewDataAnalysis().Run(context.Background(), s)
	require.NoError(t, err)
	assert.Empty(t, domain.Merge(s, u).AnomalyReason)
}
