package llm

import (
	"encoding/json"
	"strings"
)

func classifySystemPrompt(candidates []string) string {
	var b strings.Builder
	b.WriteString("You classify marketplace products into categories. ")
	b.WriteString("Pick exactly one category code from the list below that best matches the product text, ")
	b.WriteString("or answer NONE if none of them fits.\n\nCandidates:\n")
	for _, candidate := range candidates {
		b.WriteString("- ")
		b.WriteString(candidate)
		b.WriteByte('\n')
	}
	b.WriteString("\nRespond with JSON: {\"category\": \"<code or NONE>\"}")
	return b.String()
}

func fillSystemPrompt(specs []AttributeSpec) string {
	encoded, err := json.Marshal(specs)
	if err != nil {
		encoded = []byte("[]")
	}
	var b strings.Builder
	b.WriteString("You fill in marketplace listing attributes from product text. ")
	b.WriteString("For each attribute below choose a value: for attributes with options, pick one of the listed options verbatim; ")
	b.WriteString("for boolean attributes answer true or false; for numeric attributes answer a number; ")
	b.WriteString("otherwise extract a short value from the text. Omit attributes you cannot determine.\n\nAttributes:\n")
	b.Write(encoded)
	b.WriteString("\n\nRespond with a single JSON object mapping attribute code to value.")
	return b.String()
}
