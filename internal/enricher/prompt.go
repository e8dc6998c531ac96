package enricher

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const systemPrompt = "You are a Java code analysis expert. Analyze code and provide concise summaries and search keywords in JSON format."

const promptTemplate = `You are a senior Java architect. I will provide a method, its class context, and its dependencies.
Explain the intent of this code for a semantic search engine.

--- CONTEXT ---
1. Package: %s
2. Class Context: %s
   (includes fields and inherited methods)
3. Method Signature: %s
4. Dependencies: %s
   (custom parameter types that may need instantiation)

--- CODE ---
%s

--- TASK ---
1. Summary: one sentence describing the business logic. Do not explain syntax.
   For constructors, describe what the initialization establishes.
2. Keywords: 3-5 synonyms or technical terms a user might search for to find this code.
   Use domain terms, operation verbs and type names from the context and dependencies.

--- OUTPUT FORMAT ---
Return only a raw JSON object, no markdown:
{"summary": "...", "keywords": ["...", "...", "..."]}
`

// BuildPrompt renders the user prompt for a request
func BuildPrompt(req Request) string {
	deps := "None"
	if len(req.Dependencies) > 0 {
		deps = strings.Join(req.Dependencies, ", ")
	}
	return fmt.Sprintf(promptTemplate, req.Package, req.Context, req.Signature, deps, truncateRunes(req.Body, PromptBodyLimit))
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	i := 0
	for pos := range s {
		if i == limit {
			return s[:pos] + "\n... (truncated)"
		}
		i++
	}
	return s
}
