package genai

// Role tokens used by the generateContent API.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Content is one role-tagged message in a generation request.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text"`
}

// Text builds a single-part content entry.
func Text(role, text string) Content {
	return Content{Role: role, Parts: []Part{{Text: text}}}
}

type generateRequest struct {
	Contents         []Content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	Temperature    float64 `json:"temperature"`
	CandidateCount int     `json:"candidateCount"`
}
