package stt

// LocalConfig holds configuration for a local whisper.cpp server.
type LocalConfig struct {
	BaseURL string // default: "http://localhost:8178"
}

// Local is the Whisper backend pointed at a local server. No API key is
// sent. Start the server with: ./server -m models/ggml-base.en.bin --port 8178
type Local struct {
	*OpenAI
}

func NewLocal(cfg LocalConfig) *Local {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:8178"
	}
	return &Local{OpenAI: NewOpenAI(OpenAIConfig{BaseURL: baseURL})}
}

func (l *Local) Name() string { return "local-whisper" }
