package telemetry_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/autonoma-fleet/autonoma/pkg/adapters/telemetry"
	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/autonoma-fleet/autonoma/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.TelemetrySource = (*telemetry.Replay)(nil)
	_ ports.TelemetrySource = (*telemetry.Synthetic)(nil)
)

const dataset = `Battery temperature [°C],Vibration,Motor RPM,Velocity [km/h],SoC [%]
25.5,1.2,3000,60,80
75,2,3100,,79
abc,6.1,2900,55,78
`

func take(t *testing.T, ch <-chan domain.Sample, n int) []domain.Sample {
	t.Helper()
	out := make([]domain.Sample, 0, n)
	for len(out) < n {
		select {
		case s, ok := <-ch:
			require.True(t, ok, "stream closed early")
			out = append(out, s)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for sample")
		}
	}
	return out
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Battery temperature [°C]", domain.SensorBatteryTemperature},
		{"  battery_temp ", domain.SensorBatteryTemperature},
		{"Vibration", domain.SensorVibrationLevel},
		{"Motor RPM", domain.SensorMotorRPM},
		{"Velocity [km/h]", domain.SensorVelocity},
		{"SoC [%]", "soc"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, telemetry.NormalizeKey(tt.in))
		})
	}
}

func TestReplay_LoopsAndRestarts(t *testing.T) {
	r, err := telemetry.ReadCSV(strings.NewReader(dataset), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := take(t, r.Stream(ctx), 4)
	assert.Equal(t, 25.5, got[0].Get(domain.SensorBatteryTemperature))
	assert.Equal(t, 60.0, got[0].Get(domain.SensorVelocity))
	assert.Equal(t, 75.0, got[1].Get(domain.SensorBatteryTemperature))
	assert.Equal(t, 0.0, got[1].Get(domain.SensorVelocity), "empty cell reads as 0")
	assert.Equal(t, 0.0, got[2].Get(domain.SensorBatteryTemperature), "non-numeric cell reads as 0")
	assert.Equal(t, got[0], got[3], "replay loops")

	again := take(t, r.Stream(ctx), 1)
	assert.Equal(t, got[0], again[0], "each stream starts from the first row")
}

func TestReplay_ClosesOnCancel(t *testing.T) {
	r, err := telemetry.ReadCSV(strings.NewReader(dataset), time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ch := r.Stream(ctx)
	take(t, ch, 1)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("stream not closed after cancel")
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ev.csv")
	require.NoError(t, os.WriteFile(path, []byte(dataset), 0o600))

	r, err := telemetry.LoadCSV(path, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len())

	_, err = telemetry.LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), time.Second)
	assert.Error(t, err)

	_, err = telemetry.ReadCSV(strings.NewReader("a,b\n"), time.Second)
	assert.Error(t, err, "header only")
}

func TestSynthetic_Reproducible(t *testing.T) {
	src := telemetry.NewSynthetic(0, telemetry.WithSeed(42), telemetry.WithAnomalyRate(0))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := take(t, src.Stream(ctx), 5)
	second := take(t, src.Stream(ctx), 5)
	assert.Equal(t, first, second)

	for _, s := range first {
		assert.Contains(t, s, domain.SensorBatteryTemperature)
		assert.Contains(t, s, domain.SensorVibrationLevel)
		assert.Contains(t, s, domain.SensorMotorRPM)
		assert.Contains(t, s, domain.SensorVelocity)
	}
}

func TestSynthetic_Anomalies(t *testing.T) {
	src := telemetry.NewSynthetic(0, telemetry.WithSeed(7), telemetry.WithAnomalyRate(1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, s := range take(t, src.Stream(ctx), 20) {
		hot := s.Get(domain.SensorBatteryTemperature) > 45
		shaky := s.Get(domain.SensorVibrationLevel) > 5
		assert.True(t, hot || shaky, "every sample should be anomalous: %v", s)
	}
}

func TestDecode(t *testing.T) {
	sample, err := telemetry.Decode(map[string]any{
		"Battery temperature [°C]": "75",
		"vibration_level":          2,
		"motor_rpm":                nil,
		"velocity":                 true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Sample{
		domain.SensorBatteryTemperature: 75,
		domain.SensorVibrationLevel:     2,
		domain.SensorMotorRPM:           0,
		domain.SensorVelocity:           1,
	}, sample)

	sample, err = telemetry.Decode(map[string]any{"battery_temperature": "hot", "vibration_level": 1.5})
	assert.Error(t, err)
	assert.Equal(t, 0.0, sample.Get(domain.SensorBatteryTemperature))
	assert.Equal(t, 1.5, sample.Get(domain.SensorVibrationLevel))
}

func TestDecode_NonFiniteReadingsDefaultToZero(t *testing.T) {
	sample, err := telemetry.Decode(map[string]any{
		"battery_temperature": "NaN",
		"vibration_level":     "+Inf",
		"motor_rpm":           "-inf",
		"velocity":            42,
	})
	assert.Error(t, err)
	assert.Equal(t, domain.Sample{
		domain.SensorBatteryTemperature: 0,
		domain.SensorVibrationLevel:     0,
		domain.SensorMotorRPM:           0,
		domain.SensorVelocity:           42,
	}, sample)
}

func TestReadCSV_NonFiniteCellsDefaultToZero(t *testing.T) {
	r, err := telemetry.ReadCSV(strings.NewReader("battery_temperature,vibration_level\nNaN,Inf\n"), time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sample := <-r.Stream(ctx)
	assert.Equal(t, domain.Sample{domain.SensorBatteryTemperature: 0, domain.SensorVibrationLevel: 0}, sample)
}
