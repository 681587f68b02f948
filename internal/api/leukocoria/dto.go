package leukocoria

const (
	BackendVision = "vision"
	BackendGemini = "gemini"
)

type DetectResponse struct {
	Leukocoria  bool   `json:"leukocoria"`
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Faces       int    `json:"faces"`
	EyesChecked int    `json:"eyes_checked"`
	Backend     string `json:"backend"`
}

func Message(detected bool) string {
	if detected {
		return "Leukocoria detected"
	}
	return "No leukocoria detected"
}

// GeminiVerdict is the JSON shape the fallback model is asked to answer in.
type GeminiVerdict struct {
	Leukocoria  *bool  `json:"leukocoria" validate:"required"`
	Faces       int    `json:"faces" validate:"min=0"`
	EyesChecked int    `json:"eyes_checked" validate:"min=0"`
	Reason      string `json:"reason"`
}
