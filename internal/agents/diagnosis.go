package agents

import (
	"context"
	"strings"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
)

// Escalation thresholds for the diagnosis rules.
const (
	BatteryTempCritical = 60.0
	VibrationCritical   = 8.0
)

// Diagnosis infers a root cause from the anomaly reason. Its severity is the
// one downstream nodes act on.
type Diagnosis struct {
	base
}

// NewDiagnosis creates the diagnosis node.
func NewDiagnosis(opts ...Option) *Diagnosis {
	n := &Diagnosis{base: newBase()}
	n.apply(opts)
	return n
}

func (n *Diagnosis) ID() domain.NodeID { return domain.NodeDiagnosis }

func (n *Diagnosis) Run(_ context.Context, s *domain.State) (domain.Update, error) {
	reason := strings.ToLower(s.AnomalyReason)

	var (
		text string
		conf float64
		sev  domain.Severity
	)
	switch {
	case strings.Contains(reason, "battery temperature"):
		if s.CurrentData.Get(domain.SensorBatteryTemperature) > BatteryTempCritical {
			text, conf, sev = "CRITICAL: Thermal Runaway Risk. Coolant pump failure inferred.", 0.98, domain.SeverityCritical
		} else {
			text, conf, sev = "Thermal Management System Warning. Possible radiator accumulation.", 0.85, domain.SeverityHigh
		}
	case strings.Contains(reason, "vibration"):
		if s.CurrentData.Get(domain.SensorVibrationLevel) > VibrationCritical {
			text, conf, sev = "DANGER: Structural Integrity Compromise. Motor mount failure.", 0.95, domain.SeverityCritical
		} else {
			text, conf, sev = "Drivetrain Misalignment or uneven tire wear detected.", 0.78, domain.SeverityMedium
		}
	case strings.Contains(reason, "motor"):
		text, conf, sev = "Motor Controller Logic Fault.", 0.80, domain.SeverityMedium
	default:
		text, conf, sev = "Unknown issue. Manual inspection required.", 0.5, domain.SeverityLow
	}

	n.logger.Debug("diagnosis inferred", "vehicle_id", s.VehicleID, "severity", sev, "confidence", conf)
	return domain.Update{
		Diagnosis:           domain.Set(text),
		DiagnosisConfidence: domain.Set(conf),
		Severity:            domain.Set(sev),
	}, nil
}
