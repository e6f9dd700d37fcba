package history

import "textbook-rag-be/pkg/llm"

// DefaultLimit is how many prior messages reach the model.
const DefaultLimit = 10

// Window returns the newest limit messages in their original order. The
// result never aliases past.
func Window(past []llm.Message, limit int) []llm.Message {
	if limit <= 0 || len(past) == 0 {
		return nil
	}
	if len(past) > limit {
		past = past[len(past)-limit:]
	}
	out := make([]llm.Message, len(past))
	copy(out, past)
	return out
}
