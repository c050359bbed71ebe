package prompt

import (
	"text2phenotype.com/notex/utils"
	"fmt"
)

const ConceptSystemPrompt = `You are a medical terminology expert. Given a clinical term, return its UMLS Concept Unique Identifier (CUI).

Return ONLY the CUI code (e.g., C0011849) in JSON format: {"cui": "C0011849"}
If no CUI exists, return: {"cui": null}`

// ConceptUserPrompt asks for the identifier of one term within its data class.
func ConceptUserPrompt(term, category string) string {
	return fmt.Sprintf("Clinical term: %q\nCategory: %s\n\nReturn the UMLS CUI code.", term, utils.Humanize(category))
}
