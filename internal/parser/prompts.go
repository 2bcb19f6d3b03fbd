package parser

import (
	"fmt"
	"strings"
)

const extractionSystemPrompt = `You convert advisory answers into JSON. You never add commentary, never invent content that is not in the answer, and you always return a single JSON object.`

// extractionPrompt asks for the schema's fields as a fixed JSON shape.
func extractionPrompt(s Schema, raw string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Extract structured information from this %s agent response.\n\n", s.Title)
	fmt.Fprintf(&sb, "AGENT RESPONSE:\n%s\n\n", raw)
	sb.WriteString("Extract the following fields (if present):\n")
	for _, f := range s.Fields {
		fmt.Fprintf(&sb, "- %s: %s\n", f.Name, f.Description)
	}
	if s.Scenarios {
		sb.WriteString("- scenarios: Object with optimistic/realistic/pessimistic cases\n")
	}

	sb.WriteString("\nReturn ONLY valid JSON in this exact format:\n{\n")
	for i, f := range s.Fields {
		fmt.Fprintf(&sb, "    %q: %q", f.Name, f.Placeholder)
		if i < len(s.Fields)-1 || s.Scenarios {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	if s.Scenarios {
		sb.WriteString(`    "scenarios": {
        "optimistic": "best case or empty string",
        "realistic": "realistic case or empty string",
        "pessimistic": "worst case or empty string"
    }
`)
	}
	sb.WriteString("}\n\nIMPORTANT: Return ONLY the JSON object, no explanations or markdown.")
	return sb.String()
}
