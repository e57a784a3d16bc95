package domain

// AgentProps configures an agent node: the AI settings used when the agent
// is invoked. The invocation itself lives outside the core.
type AgentProps struct {
	Model              string  `json:"model"`
	Temperature        float64 `json:"temperature,omitempty"`
	MaxTokens          int     `json:"maxTokens,omitempty"`
	Reasoning          bool    `json:"reasoning,omitempty"`
	UseTools           bool    `json:"useTools,omitempty"`
	SystemInstructions string  `json:"systemInstructions,omitempty"`
}
