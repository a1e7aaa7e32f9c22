package core

import "fmt"

// BuildPrompt frames question with whatever context is available. Retrieved
// context and attached file text share one Context section.
func BuildPrompt(question, context, fileText string) string {
	material := context + fileText
	if material == "" {
		return fmt.Sprintf("### Question: %s\n### Answer:", question)
	}
	return fmt.Sprintf("### Context: \n%s\n### Question: %s\n### Answer:", material, question)
}
