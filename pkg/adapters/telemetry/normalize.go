// Package telemetry provides TelemetrySource adapters and helpers that turn
// raw vehicle readings into normalized samples.
package telemetry

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

var aliases = map[string]string{
	"battery_temp":        domain.SensorBatteryTemperature,
	"temperature":         domain.SensorBatteryTemperature,
	"battery_temperature": domain.SensorBatteryTemperature,
	"vibration":           domain.SensorVibrationLevel,
	"vibration_level":     domain.SensorVibrationLevel,
	"rpm":                 domain.SensorMotorRPM,
	"motor_speed":         domain.SensorMotorRPM,
	"motor_rpm":           domain.SensorMotorRPM,
	"speed":               domain.SensorVelocity,
	"vehicle_speed":       domain.SensorVelocity,
	"velocity":            domain.SensorVelocity,
}

// NormalizeKey maps a column header or JSON key to a sensor name.
// Units in brackets are dropped: "Battery temperature [°C]" becomes
// "battery_temperature". Unknown keys are kept in normalized form.
func NormalizeKey(key string) string {
	if i := strings.IndexByte(key, '['); i >= 0 {
		key = key[:i]
	}
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.Join(strings.Fields(key), "_")
	if canonical, ok := aliases[key]; ok {
		return canonical
	}
	return key
}

// Decode converts a loosely typed reading into a Sample. Numeric strings and
// booleans are accepted. Values that cannot be read as finite numbers are
// stored as 0 and reported in the returned error; the sample is usable
// either way.
func Decode(raw map[string]any) (domain.Sample, error) {
	out := make(domain.Sample, len(raw))
	var errs []error
	for k, v := range raw {
		key := NormalizeKey(k)
		var f float64
		if v != nil {
			if err := mapstructure.WeakDecode(v, &f); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", k, err))
				f = 0
			} else if !finite(f) {
				errs = append(errs, fmt.Errorf("%s: non-finite reading %v", k, v))
				f = 0
			}
		}
		out[key] = f
	}
	return out, errors.Join(errs...)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
