package entities

import (
	"fmt"
	"strings"
)

// Format renders the populated categories for a terminal.
func Format(result Result) string {
	var b strings.Builder
	b.WriteString(strings.Repeat("=", 80) + "\n")
	b.WriteString("MEDICAL ENTITY EXTRACTION RESULTS\n")
	b.WriteString(strings.Repeat("=", 80) + "\n")

	for _, c := range Categories {
		list := result[c.Key]
		if len(list) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n%s\n", c.Title, strings.Repeat("-", 80))
		for _, entity := range list {
			text := entity.Text
			if text == "" {
				text = "N/A"
			}
			fmt.Fprintf(&b, "  • %s\n", text)
			if entity.CUI != "" {
				fmt.Fprintf(&b, "    CUI: %s\n", entity.CUI)
			}
			if entity.Value != "" {
				fmt.Fprintf(&b, "    Value: %s\n", entity.Value)
			}
			if entity.Context != "" {
				fmt.Fprintf(&b, "    Context: %s\n", entity.Context)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
