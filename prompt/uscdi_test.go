package prompt

import (
	"text2phenotype.com/notex/types"
	"errors"
	"github.com/stretchr/testify/require"
	"path"
	"strings"
	"testing"
)

func loadSchema(t *testing.T) *types.Schema {
	t.Helper()
	schema, err := types.LoadSchema(path.Join("..", "resources", "uscdi_v6.yaml"))
	require.NoError(t, err)
	return schema
}

func TestBuildSystemPromptDeterministic(t *testing.T) {
	schema := loadSchema(t)
	first := BuildSystemPrompt(schema)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, BuildSystemPrompt(schema))
	}
	// a schema parsed again from the same bytes renders identically
	require.Equal(t, first, BuildSystemPrompt(loadSchema(t)))
}

func TestBuildSystemPromptLayout(t *testing.T) {
	schema := loadSchema(t)
	p := BuildSystemPrompt(schema)

	order := []string{
		schema.MasterSystemPrompt,
		"## GLOBAL UPGRADES\n",
		"according to the USCDI v6 (United States Core Data for Interoperability) standard",
		"\n## Patient Demographics\n",
		"\n## Allergies And Intolerances\n",
		"\n## Medical Devices\n",
		"## General Instructions:\n- ",
		"\n- Output format: ",
		"\n- Missing data: ",
		"\n- Date format: ",
		"## Coreference Resolution:\n",
		"## Negation Detection:\n",
		"## Important Gotchas:\n",
		"## Standard Coding Systems:\n",
		"Return a JSON object with the following structure:",
	}
	last := -1
	for _, fragment := range order {
		idx := strings.Index(p, fragment)
		require.Greater(t, idx, last, "fragment %q out of order", fragment)
		last = idx
	}
	require.Contains(t, p, "Elements to extract:\n  - name: Medication name\n  - dose: Dose and unit\n")
	require.Contains(t, p, "Subtypes:\n  - systolic_blood_pressure: Systolic blood pressure\n")
	require.Contains(t, p, "- Medications: RxNorm\n")
}

func TestBuildSystemPromptOmitsAbsentBlocks(t *testing.T) {
	schema := &types.Schema{
		Version: "USCDI v6",
		DataClasses: types.DataClasses{
			{Name: "problems", Description: "Problems", Prompt: "List problems."},
		},
		Instructions: types.ExtractionInstructions{General: "Be precise."},
	}
	p := BuildSystemPrompt(schema)
	require.True(t, strings.HasPrefix(p, "You are a clinical data extraction system"))
	require.NotContains(t, p, "GLOBAL UPGRADES")
	require.NotContains(t, p, "Elements to extract")
	require.NotContains(t, p, "Subtypes")
	require.NotContains(t, p, "Gotchas")
	require.NotContains(t, p, "Output format")
	require.Contains(t, p, "\n## Problems\nProblems\n\nExtraction guidance: List problems.\n")
}

func TestBuildGroupPrompts(t *testing.T) {
	schema := loadSchema(t)
	group := []string{"problems", "medications", "allergies_and_intolerances"}
	system, user, err := BuildGroupPrompts(schema, group, "Patient on lisinopril.")
	require.NoError(t, err)

	require.Contains(t, system, "Extract only the following USCDI v6 data classes: Problems, Medications, Allergies And Intolerances.")
	require.Contains(t, system, "\n## Medications\n")
	require.Contains(t, system, "Return valid JSON with these keys: problems, medications, allergies_and_intolerances.")
	require.Contains(t, system, `"name" or "text" field`)
	require.NotContains(t, system, "\n## Vital Signs\n")
	require.NotContains(t, system, "\n## Patient Demographics\n")

	require.Contains(t, user, "Patient on lisinopril.")
	require.Contains(t, user, "Extract Problems, Medications, Allergies And Intolerances from this clinical note")

	again, _, _ := BuildGroupPrompts(schema, group, "other note")
	require.Equal(t, system, again)
}

func TestBuildGroupPromptsUnknownClass(t *testing.T) {
	schema := loadSchema(t)
	_, _, err := BuildGroupPrompts(schema, []string{"problems", "bogus"}, "note")
	var unknown *types.UnknownDataClassError
	require.True(t, errors.As(err, &unknown))
	require.Equal(t, "bogus", unknown.Name)
}

func TestBuildClassPrompts(t *testing.T) {
	schema := loadSchema(t)
	class, _ := schema.Class("vital_signs")
	system, user := BuildClassPrompts(schema, class, "BP 120/80")
	require.True(t, strings.HasPrefix(system, "You are a clinical data extraction system. Extract vital signs from clinical notes according to the USCDI v6 standard."))
	require.Contains(t, system, "\nExtract the following elements:\n- name: Vital sign name\n")
	require.True(t, strings.HasSuffix(system, "Return your response as a valid JSON object."))
	require.Equal(t, "Extract vital signs from this clinical note:\n\nBP 120/80", user)
}

func TestConceptUserPrompt(t *testing.T) {
	require.Equal(t,
		"Clinical term: \"Lisinopril\"\nCategory: allergies and intolerances\n\nReturn the UMLS CUI code.",
		ConceptUserPrompt("Lisinopril", "allergies_and_intolerances"))
	require.Contains(t, ConceptSystemPrompt, `{"cui": null}`)
}
