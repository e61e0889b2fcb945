package agents

import (
	"context"
	"fmt"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
)

// Detection thresholds.
const (
	BatteryTempAnomaly  = 45.0
	BatteryTempHigh     = 60.0
	VibrationAnomaly    = 5.0
	rulBatteryAnomaly   = 45.0
	rulVibrationAnomaly = 70.0
	rulHealthy          = 100.0
)

// DataAnalysis flags anomalies in the latest telemetry sample. The battery
// rule is evaluated before the vibration rule.
type DataAnalysis struct {
	base
}

// NewDataAnalysis creates the anomaly detection node.
func NewDataAnalysis(opts ...Option) *DataAnalysis {
	n := &DataAnalysis{base: newBase()}
	n.apply(opts)
	return n
}

func (n *DataAnalysis) ID() domain.NodeID { return domain.NodeDataAnalysis }

func (n *DataAnalysis) Run(_ context.Context, s *domain.State) (domain.Update, error) {
	temp := s.CurrentData.Get(domain.SensorBatteryTemperature)
	vib := s.CurrentData.Get(domain.SensorVibrationLevel)

	switch {
	case temp > BatteryTempAnomaly:
		sev := domain.SeverityMedium
		if temp > BatteryTempHigh {
			sev = domain.SeverityHigh
		}
		return anomaly(fmt.Sprintf("High Battery Temperature (%s°C)", formatReading(temp)), sev, rulBatteryAnomaly), nil
	case vib > VibrationAnomaly:
		return anomaly(fmt.Sprintf("High Vibration Detected (%s)", formatReading(vib)), domain.SeverityMedium, rulVibrationAnomaly), nil
	}

	return domain.Update{
		AnomalyDetected: domain.Set(false),
		AnomalyReason:   domain.Set(""),
		Severity:        domain.Set(domain.SeverityLow),
		RUL:             domain.Set(rulHealthy),
	}, nil
}

func anomaly(reason string, sev domain.Severity, rul float64) domain.Update {
	return domain.Update{
		AnomalyDetected: domain.Set(true),
		AnomalyReason:   domain.Set(reason),
		Severity:        domain.Set(sev),
		RUL:             domain.Set(rul),
	}
}
