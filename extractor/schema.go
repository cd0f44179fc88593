package extractor

import "github.com/brunobiangulo/legalrisk/llm"

const systemPrompt = `You are a legal document analysis expert. You read contracts, leases, agreements and similar instruments and extract their key facts accurately. Only report what the document states; use null when a field is not present.`

const userPromptTemplate = `Analyze the following legal document and extract the required information.

Document Content:
%s

Provide structured output with:
- purpose: what type of legal document this is and its main purpose
- parties_involved: every individual, company or entity that is a party, with its role
- date: the date of the document, if any
- city, state, country: the location named in the document, if any
- important_clauses: the key provisions, terms, conditions or clauses that are legally significant, one per entry`

func nullableString(desc string) map[string]any {
	return map[string]any{
		"type":        []string{"string", "null"},
		"description": desc,
	}
}

// ReportSchema is the strict JSON Schema sent with every extraction
// request. Every key is required; optional facts are expressed as null.
func ReportSchema() *llm.JSONSchema {
	return &llm.JSONSchema{
		Name:        "legal_document_analysis",
		Description: "Structured metadata extracted from a legal document",
		Strict:      true,
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"purpose": map[string]any{
					"type":        "string",
					"description": "The main purpose or type of the legal document",
				},
				"parties_involved": map[string]any{
					"type":        "array",
					"description": "All parties mentioned in the document",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"name": map[string]any{"type": "string", "description": "Name of the party"},
							"role": map[string]any{"type": "string", "description": "Role or designation of the party in the document"},
						},
						"required":             []string{"name", "role"},
						"additionalProperties": false,
					},
				},
				"date":    nullableString("Date mentioned in the document"),
				"city":    nullableString("City mentioned in the document"),
				"state":   nullableString("State mentioned in the document"),
				"country": nullableString("Country mentioned in the document"),
				"important_clauses": map[string]any{
					"type":        "array",
					"description": "Important clauses or provisions in the document",
					"items":       map[string]any{"type": "string"},
				},
			},
			"required": []string{
				"purpose", "parties_involved", "date", "city", "state", "country", "important_clauses",
			},
			"additionalProperties": false,
		},
	}
}
