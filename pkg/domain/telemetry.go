package domain

// Normalized telemetry keys.
const (
	SensorBatteryTemperature = "battery_temperature"
	SensorVibrationLevel     = "vibration_level"
	SensorMotorRPM           = "motor_rpm"
	SensorVelocity           = "velocity"
)

// Sample is one telemetry reading keyed by normalized sensor name.
type Sample map[string]float64

// Get returns the reading for key, or 0 when the sensor did not report.
func (s Sample) Get(key string) float64 {
	if s == nil {
		return 0
	}
	return s[key]
}

// Clone returns an independent copy of the sample.
func (s Sample) Clone() Sample {
	if s == nil {
		return nil
	}
	out := make(Sample, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
