package llm

// Message is a single message in an LLM conversation.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	Content string
}

// ModelCapabilities describes the limits of an LLM model.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens generated in one completion.
	MaxOutputTokens int
}

// EstimateTokens approximates the token count of messages at four characters
// per token plus a fixed per-message overhead for role formatting.
func EstimateTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += (len(m.Content)+3)/4 + 4
	}
	return total
}
