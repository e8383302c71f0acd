package queue

const (
	TypeCodegenText = "codegen:text"
)

// CodegenPayload asks a worker to generate markup from a text description.
type CodegenPayload struct {
	JobID       string `json:"job_id"`
	Source      string `json:"source"` // text or voice
	Description string `json:"description"`
	Prompt      string `json:"prompt,omitempty"` // instruction override
	Provider    string `json:"provider,omitempty"`
	Model       string `json:"model,omitempty"`
}
