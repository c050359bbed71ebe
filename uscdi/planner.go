package uscdi

import (
	"text2phenotype.com/notex/types"
)

// Group is an ordered list of data classes extracted by one model call.
type Group []string

// ReferenceGroups clusters data classes by clinical cohesion.
var ReferenceGroups = []Group{
	{"patient_demographics", "encounter_information", "facility_information"},
	{"problems", "medications", "allergies_and_intolerances"},
	{"vital_signs", "laboratory", "clinical_tests"},
	{"procedures", "diagnostic_imaging", "orders"},
	{"care_plan", "immunizations", "family_health_history"},
	{"care_team_members", "provenance", "health_insurance_information"},
	{"goals_and_preferences", "health_status_assessments", "clinical_notes"},
	{"medical_devices"},
}

const leftoverGroupSize = 3

// PlanBatches partitions the schema's data classes into groups. Reference
// groups are filtered to the classes the schema defines; classes no reference
// group names are appended in schema order, three per group. Every schema
// class lands in exactly one group.
func PlanBatches(schema *types.Schema) []Group {
	defined := make(map[string]bool, len(schema.DataClasses))
	for _, name := range schema.ClassNames() {
		defined[name] = true
	}
	placed := make(map[string]bool, len(defined))

	groups := make([]Group, 0, len(ReferenceGroups))
	for _, ref := range ReferenceGroups {
		var group Group
		for _, name := range ref {
			if defined[name] && !placed[name] {
				group = append(group, name)
				placed[name] = true
			}
		}
		if len(group) > 0 {
			groups = append(groups, group)
		}
	}

	var leftover Group
	for _, name := range schema.ClassNames() {
		if placed[name] {
			continue
		}
		placed[name] = true
		leftover = append(leftover, name)
		if len(leftover) == leftoverGroupSize {
			groups = append(groups, leftover)
			leftover = nil
		}
	}
	if len(leftover) > 0 {
		groups = append(groups, leftover)
	}
	return groups
}
