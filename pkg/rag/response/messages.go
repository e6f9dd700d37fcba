package response

import "strings"

// OutOfScope is streamed verbatim when retrieval finds nothing relevant.
const OutOfScope = `I apologize, but I couldn't find relevant information in the Physical AI & Humanoid Robotics textbook to answer your question.

This textbook covers topics such as:
• Physical AI and embodied intelligence concepts
• Humanoid robotics fundamentals and design
• Sensors and perception systems
• Actuators and movement control
• AI/ML integration in robotics
• Real-world applications and case studies

Please try rephrasing your question or ask about one of these topics!`

// Words splits text on single spaces and returns each piece with a trailing
// space, ready to be emitted as one token. Newlines stay inside their word.
func Words(text string) []string {
	parts := strings.Split(text, " ")
	tokens := make([]string, len(parts))
	for i, p := range parts {
		tokens[i] = p + " "
	}
	return tokens
}
