package prompt

import (
	"text2phenotype.com/notex/types"
	"text2phenotype.com/notex/utils"
	"fmt"
	"strings"
)

const outputShape = `Return a JSON object with the following structure:
{
  "patient_demographics": {...},
  "allergies_and_intolerances": [...],
  "medications": [...],
  "problems": [...],
  "procedures": [...],
  "vital_signs": [...],
  "laboratory": [...],
  "immunizations": [...],
  "clinical_notes": {...},
  "encounter_information": {...},
  "care_plan": {...},
  ... (include all other relevant USCDI data classes)
}

Only include data classes and elements that are present in the clinical note. Use standard medical codes when possible.`

const primaryTermRule = `IMPORTANT: For each clinical entity, always include a "name" or "text" field with the primary clinical term.`

// BuildSystemPrompt renders the whole schema into one instruction block. The
// output depends on nothing but the schema.
func BuildSystemPrompt(schema *types.Schema) string {
	var b strings.Builder
	writeHeader(&b, schema)
	fmt.Fprintf(&b, "You are a clinical data extraction system specialized in extracting structured data according to the %s (United States Core Data for Interoperability) standard.\n\n", schema.Version)
	b.WriteString("Your task is to extract clinical information from medical notes and organize it into the following USCDI data classes:\n\n")
	for _, class := range schema.DataClasses {
		writeClassSection(&b, class)
	}
	writeGeneralInstructions(&b, schema.Instructions)
	b.WriteString("\n\n")
	b.WriteString(outputShape)
	return b.String()
}

func BuildUserPrompt(schema *types.Schema, note string) string {
	return fmt.Sprintf("Extract all %s data elements from this clinical note:\n\n%s\n\nReturn a comprehensive JSON object with all relevant USCDI data classes and elements found in the note.", schema.Version, note)
}

// BuildGroupPrompts is the batch variant: only the classes of one group are
// described, and the model is told to populate only their keys.
func BuildGroupPrompts(schema *types.Schema, group []string, note string) (string, string, error) {
	classes := make([]types.DataClass, 0, len(group))
	titles := make([]string, 0, len(group))
	for _, name := range group {
		class, ok := schema.Class(name)
		if !ok {
			return "", "", &types.UnknownDataClassError{Name: name, Valid: schema.ClassNames()}
		}
		classes = append(classes, class)
		titles = append(titles, utils.TitleCase(name))
	}
	classList := strings.Join(titles, ", ")

	var b strings.Builder
	writeHeader(&b, schema)
	fmt.Fprintf(&b, "You are a clinical data extraction system. Extract only the following %s data classes: %s.\n", schema.Version, classList)
	for _, class := range classes {
		writeClassSection(&b, class)
	}
	writeGeneralInstructions(&b, schema.Instructions)
	fmt.Fprintf(&b, "\n\nExtract all relevant information for these classes only. Return valid JSON with these keys: %s.\n\n", strings.Join(group, ", "))
	b.WriteString(primaryTermRule)

	user := fmt.Sprintf("Extract %s from this clinical note:\n\n%s\n\nReturn JSON with only these data classes populated. Each item should have a \"name\" field containing the primary term.", classList, note)
	return b.String(), user, nil
}

// BuildClassPrompts narrows the instructions to a single data class.
func BuildClassPrompts(schema *types.Schema, class types.DataClass, note string) (string, string) {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a clinical data extraction system. Extract %s from clinical notes according to the %s standard.\n\n", strings.ToLower(class.Description), schema.Version)
	if class.Prompt != "" {
		b.WriteString(class.Prompt)
		b.WriteString("\n\n")
	}
	if len(class.Elements) > 0 {
		b.WriteString("\nExtract the following elements:\n")
		for _, e := range class.Elements {
			fmt.Fprintf(&b, "- %s: %s\n", e.Key, e.Value)
		}
	}
	b.WriteString("\nReturn your response as a valid JSON object.")

	user := fmt.Sprintf("Extract %s from this clinical note:\n\n%s", utils.Humanize(class.Name), note)
	return b.String(), user
}

func writeHeader(b *strings.Builder, schema *types.Schema) {
	if schema.MasterSystemPrompt != "" {
		b.WriteString(schema.MasterSystemPrompt)
		b.WriteString("\n\n")
	}
	if schema.GlobalUpgrades != "" {
		b.WriteString("## GLOBAL UPGRADES\n")
		b.WriteString(schema.GlobalUpgrades)
		b.WriteString("\n\n")
	}
}

func writeClassSection(b *strings.Builder, class types.DataClass) {
	fmt.Fprintf(b, "\n## %s\n", utils.TitleCase(class.Name))
	if class.Description != "" {
		fmt.Fprintf(b, "%s\n", class.Description)
	}
	if len(class.Elements) > 0 {
		b.WriteString("Elements to extract:\n")
		for _, e := range class.Elements {
			fmt.Fprintf(b, "  - %s: %s\n", e.Key, e.Value)
		}
	}
	if len(class.Subtypes) > 0 {
		b.WriteString("Subtypes:\n")
		for _, e := range class.Subtypes {
			fmt.Fprintf(b, "  - %s: %s\n", e.Key, e.Value)
		}
	}
	fmt.Fprintf(b, "\nExtraction guidance: %s\n", class.Prompt)
}

func writeGeneralInstructions(b *strings.Builder, in types.ExtractionInstructions) {
	fmt.Fprintf(b, "\n\n## General Instructions:\n- %s", in.General)
	if in.OutputFormat != "" {
		fmt.Fprintf(b, "\n- Output format: %s", in.OutputFormat)
	}
	if in.HandleMissingData != "" {
		fmt.Fprintf(b, "\n- Missing data: %s", in.HandleMissingData)
	}
	if in.DateFormat != "" {
		fmt.Fprintf(b, "\n- Date format: %s", in.DateFormat)
	}
	if in.CoreferenceResolution != "" {
		fmt.Fprintf(b, "\n\n## Coreference Resolution:\n%s", in.CoreferenceResolution)
	}
	if in.NegationDetection != "" {
		fmt.Fprintf(b, "\n\n## Negation Detection:\n%s", in.NegationDetection)
	}
	if len(in.Gotchas) > 0 {
		b.WriteString("\n\n## Important Gotchas:\n")
		for _, g := range in.Gotchas {
			fmt.Fprintf(b, "- %s\n", g)
		}
	}
	if len(in.CodingSystems) > 0 {
		b.WriteString("\n\n## Standard Coding Systems:\n")
		for _, cs := range in.CodingSystems {
			fmt.Fprintf(b, "- %s: %s\n", utils.TitleCase(cs.Key), cs.Value)
		}
	}
}
