package tracking

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

type RiskAssessment struct {
	Level          RiskLevel `json:"level"`
	Confidence     string    `json:"confidence"`
	Recommendation string    `json:"recommendation"`
}

// Assess maps a detection count to a risk tier. faceRate is the percentage
// of analysed frames that contained a face and only affects the confidence
// of a LOW verdict.
func Assess(detections int, faceRate float64) RiskAssessment {
	switch {
	case detections >= 3:
		return RiskAssessment{
			Level:          RiskHigh,
			Confidence:     "High",
			Recommendation: "Multiple detections found. Consult an eye care professional immediately.",
		}
	case detections >= 1:
		return RiskAssessment{
			Level:          RiskMedium,
			Confidence:     "Medium",
			Recommendation: "Asymmetric eye movement detected. Consider professional evaluation.",
		}
	}

	confidence := "Medium"
	if faceRate > 70 {
		confidence = "High"
	}
	return RiskAssessment{
		Level:          RiskLow,
		Confidence:     confidence,
		Recommendation: "No significant asymmetric eye movements detected.",
	}
}
