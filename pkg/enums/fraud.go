package enums

// AlertSeverity maps to alert_severity_enum.
type AlertSeverity string

const (
	AlertSeverityMedium   AlertSeverity = "medium"
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityCritical AlertSeverity = "critical"
)

var validAlertSeverities = []AlertSeverity{
	AlertSeverityMedium,
	AlertSeverityHigh,
	AlertSeverityCritical,
}

func (s AlertSeverity) IsValid() bool { return oneOf(s, validAlertSeverities) }

func ParseAlertSeverity(value string) (AlertSeverity, error) {
	return parse("alert severity", value, validAlertSeverities)
}

// AlertReason identifies the rule that raised a fraud alert. At most one alert
// exists per (event, reason).
type AlertReason string

const (
	AlertReasonHighValueWithdrawal AlertReason = "high_value_withdrawal"
	AlertReasonLargeDeposit        AlertReason = "large_deposit"
	AlertReasonBurstActivity       AlertReason = "burst_activity"
	AlertReasonMLHighRisk          AlertReason = "ml_high_risk"
)

var validAlertReasons = []AlertReason{
	AlertReasonHighValueWithdrawal,
	AlertReasonLargeDeposit,
	AlertReasonBurstActivity,
	AlertReasonMLHighRisk,
}

func (r AlertReason) IsValid() bool { return oneOf(r, validAlertReasons) }

// Severity returns the severity each rule raises.
func (r AlertReason) Severity() AlertSeverity {
	switch r {
	case AlertReasonHighValueWithdrawal, AlertReasonMLHighRisk:
		return AlertSeverityCritical
	case AlertReasonLargeDeposit:
		return AlertSeverityHigh
	default:
		return AlertSeverityMedium
	}
}
